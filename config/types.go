package config

import "time"

type AppConfig struct {
	DBDriver      string              `yaml:"db_driver" env:"REPORTDESK_DB_DRIVER"`
	DBURL         string              `yaml:"db_url" env:"REPORTDESK_DB_URL"`
	DBPath        string              `yaml:"db_path" env:"REPORTDESK_DB_PATH"`
	ListenAddr    string              `yaml:"listen_addr" env:"REPORTDESK_LISTEN_ADDR" env-default:"0.0.0.0:8080"`
	AppEnv        string              `yaml:"app_env" env:"REPORTDESK_APP_ENV" env-default:"prod"`
	EncryptionKey string              `yaml:"encryption_key" env:"REPORTDESK_ENCRYPTION_KEY"`
	HTTP          HTTPConfig          `yaml:"http"`
	Audit         AuditConfig         `yaml:"audit"`
	Observability ObservabilityConfig `yaml:"observability"`
}

func (c *AppConfig) IsDev() bool {
	if c == nil {
		return false
	}
	return c.AppEnv == "dev"
}

type HTTPConfig struct {
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REPORTDESK_HTTP_REQUEST_TIMEOUT" env-default:"15s"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes" env:"REPORTDESK_HTTP_MAX_UPLOAD_BYTES"`
}

type AuditConfig struct {
	QueueSize      int           `yaml:"queue_size" env:"REPORTDESK_AUDIT_QUEUE_SIZE"`
	MaxAttempts    int           `yaml:"max_attempts" env:"REPORTDESK_AUDIT_MAX_ATTEMPTS"`
	RetryBackoff   time.Duration `yaml:"retry_backoff" env:"REPORTDESK_AUDIT_RETRY_BACKOFF"`
	ReplaySchedule string        `yaml:"replay_schedule" env:"REPORTDESK_AUDIT_REPLAY_SCHEDULE"`
	ReplayBatch    int           `yaml:"replay_batch" env:"REPORTDESK_AUDIT_REPLAY_BATCH"`
}

type ObservabilityConfig struct {
	MetricsEnabled bool   `yaml:"metrics_enabled" env:"REPORTDESK_METRICS_ENABLED"`
	MetricsToken   string `yaml:"metrics_token" env:"REPORTDESK_METRICS_TOKEN"`
}
