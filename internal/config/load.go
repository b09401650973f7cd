package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from an optional config.yaml (working directory or
// /etc/cairn) and from CAIRN_* environment variables, applies defaults, and
// validates the result. Environment variables take precedence over file
// values: CAIRN_WORKER_POLL_INTERVAL overrides worker.poll_interval.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	return load("")
}

// LoadFile behaves like Load but reads the named config file instead of
// searching the default locations. The file must exist.
func LoadFile(path string) (*Config, error) {
	return load(path)
}

func load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/cairn")
	}

	v.SetEnvPrefix("CAIRN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine when searching default locations: defaults
		// and environment variables carry the configuration.
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers a default for every key, including the empty-string
// transport settings. Viper only honors environment overrides for keys it
// already knows about, so the blanks are load-bearing.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("app.base_url", "http://localhost:8080")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "cairn.db")

	v.SetDefault("worker.poll_interval", 5)
	v.SetDefault("worker.batch_size", 50)
	v.SetDefault("worker.max_retries", 3)
	v.SetDefault("worker.stuck_after_minutes", 30)
	v.SetDefault("worker.embedded", true)

	v.SetDefault("mail.host", "")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.sender", "")

	v.SetDefault("push.server", "https://ntfy.sh")
}
