package scheduler

import "github.com/hibiken/asynq"

// TaskIndexRefresh rebuilds the update index. It carries no payload; the
// catalog is the source of truth and a rebuild is idempotent.
const TaskIndexRefresh = "updates.index.refresh"

// NewIndexRefreshTask creates an index refresh task.
func NewIndexRefreshTask() *asynq.Task {
	return asynq.NewTask(TaskIndexRefresh, nil)
}
