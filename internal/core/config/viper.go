package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// secretKeys may only come from the environment.
var secretKeys = []string{"hmac_secret", "api.hmac_secret", "database.password"}

// LoadConfig loads configuration using viper.
// CLI flags > environment > config file > defaults precedence; flags are
// applied by the caller on the returned value.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	d := Default()
	v.SetDefault("api.host", d.API.Host)
	v.SetDefault("api.port", d.API.Port)
	v.SetDefault("api.request_timeout", d.API.RequestTimeout.String())
	v.SetDefault("api.max_batch_size", d.API.MaxBatchSize)
	v.SetDefault("discovery.iprange_limit", d.Discovery.IPRangeLimit)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.output", "stderr")
	v.SetDefault("database.url", "")

	// NK_API_PORT, NK_DISCOVERY_IPRANGE_LIMIT, NK_DATABASE_URL, ...
	v.SetEnvPrefix("NK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := validateNoSecretsInConfig(v); err != nil {
			return nil, err
		}
	}

	limit := v.GetInt64("discovery.iprange_limit")
	if limit < 0 {
		return nil, fmt.Errorf("iprange_limit must not be negative, got %d", limit)
	}

	cfg := &Config{
		API: APIConfig{
			Host:           v.GetString("api.host"),
			Port:           v.GetInt("api.port"),
			RequestTimeout: v.GetDuration("api.request_timeout"),
			MaxBatchSize:   v.GetInt("api.max_batch_size"),
		},
		Discovery: DiscoveryConfig{
			IPRangeLimit: uint64(limit),
		},
		DatabaseURL: v.GetString("database.url"),
	}
	cfg.Log.Level = v.GetString("log.level")
	cfg.Log.Format = v.GetString("log.format")
	cfg.Log.Output = v.GetString("log.output")

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig checks port range, positive timeout and batch size, and the
// log settings.
func validateConfig(cfg *Config) error {
	if cfg.API.Port <= 0 || cfg.API.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.API.Port)
	}
	if cfg.API.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.API.RequestTimeout)
	}
	if cfg.API.MaxBatchSize <= 0 {
		return fmt.Errorf("max_batch_size must be positive, got %d", cfg.API.MaxBatchSize)
	}
	switch cfg.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log format must be json or console, got %q", cfg.Log.Format)
	}
	switch strings.ToLower(cfg.Log.Level) {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("unknown log level %q", cfg.Log.Level)
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only secrets. Only the
// config file is inspected; env vars are the sanctioned source.
func validateNoSecretsInConfig(v *viper.Viper) error {
	for _, key := range secretKeys {
		if v.InConfig(key) {
			return fmt.Errorf("HMAC secrets not allowed in config files (use NK_HMAC_SECRET environment variable)")
		}
	}
	return nil
}
