package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	App      AppConfig      `mapstructure:"app"      validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Worker   WorkerConfig   `mapstructure:"worker"   validate:"required"`
	Mail     MailConfig     `mapstructure:"mail"`
	Push     PushConfig     `mapstructure:"push"`
}

// ServerConfig contains the HTTP server settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// AppConfig contains application-wide settings.
type AppConfig struct {
	// BaseURL is the externally reachable root of the tracker, used to build
	// the task links embedded in rendered messages.
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
}

// DatabaseConfig contains the settings for the coordination store.
type DatabaseConfig struct {
	// Driver selects the storage backend: sqlite for self-hosted single-node
	// deployments, postgres for everything else.
	Driver string `mapstructure:"driver" validate:"required,oneof=sqlite postgres"`

	// DSN is a file path for sqlite or a connection URL for postgres.
	DSN string `mapstructure:"dsn" validate:"required"`
}

// WorkerConfig contains the delivery worker settings.
type WorkerConfig struct {
	// PollIntervalSeconds is the pause between polling cycles. It doubles as
	// the retry backoff: a failed record waits at least one interval before
	// it is reconsidered.
	PollIntervalSeconds int `mapstructure:"poll_interval" validate:"gte=1"`

	// BatchSize caps how many records one cycle claims.
	BatchSize int `mapstructure:"batch_size" validate:"gte=1"`

	// MaxRetries is the number of failed delivery attempts before a record
	// is marked failed and never retried again.
	MaxRetries int `mapstructure:"max_retries" validate:"gte=1"`

	// StuckAfterMinutes is how long a record may sit in the sending state
	// before the in-loop reclaim treats its worker as dead and releases it.
	StuckAfterMinutes int `mapstructure:"stuck_after_minutes" validate:"gte=1"`

	// Embedded runs the worker inside the API server process. Disable it
	// when a dedicated worker deployment handles delivery.
	Embedded bool `mapstructure:"embedded"`
}

// PollInterval returns the poll interval as a duration.
func (c WorkerConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// StuckAfter returns the stuck-record reclaim age as a duration.
func (c WorkerConfig) StuckAfter() time.Duration {
	return time.Duration(c.StuckAfterMinutes) * time.Minute
}

// MailConfig contains the SMTP transport settings, consumed only by the email
// sender. Leaving Host or Sender empty disables outbound email; queued email
// records then fail rather than silently vanish.
type MailConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"     validate:"omitempty,gt=0,lt=65536"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Sender   string `mapstructure:"sender"   validate:"omitempty,email"`
}

// PushConfig contains the push transport settings, consumed only by the push
// sender.
type PushConfig struct {
	// Server is the base URL of the ntfy-compatible push endpoint.
	Server string `mapstructure:"server" validate:"omitempty,url"`
}
