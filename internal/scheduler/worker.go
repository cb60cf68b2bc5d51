package scheduler

import (
	"context"
	"fmt"

	"product_update_server/internal/updates/service"
	"product_update_server/platform/config"
	"product_update_server/platform/logger"

	"github.com/hibiken/asynq"
)

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	svc    *service.Service
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, svc *service.Service, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		svc:    svc,
		log:    log,
	}

	mux.HandleFunc(TaskIndexRefresh, w.handleIndexRefresh)

	return w, nil
}

func (w *Worker) handleIndexRefresh(ctx context.Context, _ *asynq.Task) error {
	index, err := w.svc.Refresh(ctx)
	if err != nil {
		return err
	}

	w.log.Info("scheduled index refresh completed", "items", len(index))
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
