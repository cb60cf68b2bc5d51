package scheduler

import (
	"testing"

	"product_update_server/internal/updates/domain"
)

func TestConfigsForSettings_CronDisabled(t *testing.T) {
	configs := ConfigsForSettings(domain.Settings{CacheTTLSeconds: 3600, EnableCron: false}, "default")
	if len(configs) != 0 {
		t.Fatalf("expected no configs when cron is disabled, got %d", len(configs))
	}
}

func TestConfigsForSettings_CronEnabled(t *testing.T) {
	configs := ConfigsForSettings(domain.Settings{CacheTTLSeconds: 3600, EnableCron: true}, "default")
	if len(configs) != 1 {
		t.Fatalf("expected one config, got %d", len(configs))
	}
	if configs[0].Cronspec != "@every 1h" {
		t.Fatalf("unexpected cronspec %q", configs[0].Cronspec)
	}
	if configs[0].Task.Type() != TaskIndexRefresh {
		t.Fatalf("unexpected task type %q", configs[0].Task.Type())
	}
}

func TestConfigsForSettings_TTLDoesNotAffectCadence(t *testing.T) {
	short := ConfigsForSettings(domain.Settings{CacheTTLSeconds: 60, EnableCron: true}, "default")
	long := ConfigsForSettings(domain.Settings{CacheTTLSeconds: 86400, EnableCron: true}, "default")
	if short[0].Cronspec != long[0].Cronspec {
		t.Fatalf("cadence must not depend on ttl: %q vs %q", short[0].Cronspec, long[0].Cronspec)
	}
}
