package scheduler

import (
	"context"
	"fmt"
	"time"

	"product_update_server/internal/updates/domain"
	"product_update_server/internal/updates/repository"
	"product_update_server/platform/config"
	"product_update_server/platform/logger"

	"github.com/hibiken/asynq"
)

// SettingsProvider exposes periodic task configs derived from the stored
// settings, so toggling enable_cron takes effect without a restart.
type SettingsProvider struct {
	settings repository.SettingsStore
	queue    string
	log      *logger.Logger
}

func NewSettingsProvider(settings repository.SettingsStore, queue string, log *logger.Logger) *SettingsProvider {
	if queue == "" {
		queue = "default"
	}
	return &SettingsProvider{settings: settings, queue: queue, log: log}
}

func (p *SettingsProvider) GetConfigs() ([]*asynq.PeriodicTaskConfig, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	st, err := p.settings.GetSettings(ctx)
	if err != nil {
		p.log.Error("periodic config read failed", "error", err)
		st = domain.DefaultSettings()
	}

	return ConfigsForSettings(st, p.queue), nil
}

// ConfigsForSettings maps stored settings to the periodic schedule. The
// refresh cadence is fixed at one hour; the settings only gate whether it
// runs at all.
func ConfigsForSettings(st domain.Settings, queue string) []*asynq.PeriodicTaskConfig {
	if !st.EnableCron {
		return nil
	}

	return []*asynq.PeriodicTaskConfig{
		{
			Cronspec: "@every 1h",
			Task:     NewIndexRefreshTask(),
			Opts:     []asynq.Option{asynq.Queue(queue)},
		},
	}
}

func NewPeriodicManager(cfg config.SchedulerConfig, settings repository.SettingsStore, log *logger.Logger) (*asynq.PeriodicTaskManager, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	syncInterval := cfg.GetScheduleSyncInterval()
	if syncInterval <= 0 {
		syncInterval = time.Minute
	}

	return asynq.NewPeriodicTaskManager(asynq.PeriodicTaskManagerOpts{
		RedisConnOpt:               opt,
		PeriodicTaskConfigProvider: NewSettingsProvider(settings, cfg.GetAsynqQueueName(), log),
		SyncInterval:               syncInterval,
	})
}
