package config

import (
	"fmt"
	"strings"

	"reportdesk/core/fieldcrypt"

	"github.com/robfig/cron/v3"
)

func Validate(cfg *AppConfig) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	if driver == "" {
		driver = "postgres"
	}
	switch driver {
	case "postgres":
		if strings.TrimSpace(cfg.DBURL) == "" {
			return fmt.Errorf("db_url must be set for postgres driver")
		}
	case "sqlite":
		if strings.TrimSpace(cfg.DBPath) == "" {
			return fmt.Errorf("db_path must be set for sqlite driver")
		}
	default:
		return fmt.Errorf("unsupported db_driver: %s", cfg.DBDriver)
	}
	if _, err := fieldcrypt.ValidateMasterKey(cfg.EncryptionKey, cfg.AppEnv); err != nil {
		return fmt.Errorf("encryption_key: %w", err)
	}
	if sched := strings.TrimSpace(cfg.Audit.ReplaySchedule); sched != "" {
		if _, err := cron.ParseStandard(sched); err != nil {
			return fmt.Errorf("audit.replay_schedule: %w", err)
		}
	}
	return nil
}
