package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/valter-silva-au/kanban-sync/pkg/models"
)

// ConfigFileName is the name of the configuration file looked up in the
// base path.
const ConfigFileName = ".boardconfig"

// ConfigurationManager loads and validates the board configuration.
type ConfigurationManager interface {
	LoadConfig() (*models.BoardConfig, error)
	ValidateConfig(cfg *models.BoardConfig) error
}

// viperConfigManager implements ConfigurationManager using Viper for
// reading the YAML configuration file and KB_* environment overrides.
type viperConfigManager struct {
	basePath string
}

// NewConfigurationManager creates a ConfigurationManager that reads
// .boardconfig from basePath.
func NewConfigurationManager(basePath string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath}
}

// DefaultConfig returns a BoardConfig populated with defaults. With no
// remote base URL the board runs in local-only mode.
func DefaultConfig() *models.BoardConfig {
	return &models.BoardConfig{
		Remote: models.RemoteConfig{
			Timeout: 10 * time.Second,
		},
		Persistence: models.PersistenceConfig{
			Backend:    models.BackendFile,
			Dir:        ".kb",
			Debounce:   250 * time.Millisecond,
			SQLitePath: "kb.db",
			KeyPrefix:  "kb:",
		},
		Log: models.LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: models.ServerConfig{
			Addr: ":3001",
		},
	}
}

// LoadConfig reads .boardconfig from the base path. A missing file yields
// the defaults; environment variables such as KB_REMOTE_BASE_URL override
// file values.
func (cm *viperConfigManager) LoadConfig() (*models.BoardConfig, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName(ConfigFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)
	v.SetEnvPrefix("KB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("remote.base_url", cfg.Remote.BaseURL)
	v.SetDefault("remote.timeout", cfg.Remote.Timeout)
	v.SetDefault("offline_mode", cfg.OfflineMode)
	v.SetDefault("persistence.backend", cfg.Persistence.Backend)
	v.SetDefault("persistence.dir", cfg.Persistence.Dir)
	v.SetDefault("persistence.debounce", cfg.Persistence.Debounce)
	v.SetDefault("persistence.redis_url", cfg.Persistence.RedisURL)
	v.SetDefault("persistence.sqlite_path", cfg.Persistence.SQLitePath)
	v.SetDefault("persistence.key_prefix", cfg.Persistence.KeyPrefix)
	v.SetDefault("history.limit", cfg.History.Limit)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("server.addr", cfg.Server.Addr)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading %s: %w", ConfigFileName, err)
		}
	}

	cfg.Remote.BaseURL = v.GetString("remote.base_url")
	cfg.Remote.Timeout = v.GetDuration("remote.timeout")
	cfg.OfflineMode = v.GetBool("offline_mode")
	cfg.Persistence.Backend = strings.ToLower(v.GetString("persistence.backend"))
	cfg.Persistence.Dir = v.GetString("persistence.dir")
	cfg.Persistence.Debounce = v.GetDuration("persistence.debounce")
	cfg.Persistence.RedisURL = v.GetString("persistence.redis_url")
	cfg.Persistence.SQLitePath = v.GetString("persistence.sqlite_path")
	cfg.Persistence.KeyPrefix = v.GetString("persistence.key_prefix")
	cfg.History.Limit = v.GetInt("history.limit")
	cfg.Log.Level = v.GetString("log.level")
	cfg.Log.Format = v.GetString("log.format")
	cfg.Server.Addr = v.GetString("server.addr")

	return cfg, nil
}

var validBackends = map[string]bool{
	models.BackendFile:   true,
	models.BackendRedis:  true,
	models.BackendSQLite: true,
}

// ValidateConfig checks the configuration for invalid values and returns an
// error listing every problem found.
func (cm *viperConfigManager) ValidateConfig(cfg *models.BoardConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string

	if !validBackends[cfg.Persistence.Backend] {
		errs = append(errs, fmt.Sprintf(
			"persistence.backend %q is invalid, must be one of: file, redis, sqlite",
			cfg.Persistence.Backend,
		))
	}
	if cfg.Persistence.Backend == models.BackendRedis && cfg.Persistence.RedisURL == "" {
		errs = append(errs, "persistence.redis_url is required for the redis backend")
	}
	if cfg.Persistence.Backend == models.BackendSQLite && cfg.Persistence.SQLitePath == "" {
		errs = append(errs, "persistence.sqlite_path is required for the sqlite backend")
	}
	if cfg.Persistence.Debounce < 0 {
		errs = append(errs, fmt.Sprintf("persistence.debounce must be non-negative, got %s", cfg.Persistence.Debounce))
	}
	if cfg.Remote.Timeout < 0 {
		errs = append(errs, fmt.Sprintf("remote.timeout must be non-negative, got %s", cfg.Remote.Timeout))
	}
	if cfg.Remote.BaseURL != "" && !strings.HasPrefix(cfg.Remote.BaseURL, "http://") && !strings.HasPrefix(cfg.Remote.BaseURL, "https://") {
		errs = append(errs, fmt.Sprintf("remote.base_url %q must start with http:// or https://", cfg.Remote.BaseURL))
	}
	if cfg.History.Limit < 0 {
		errs = append(errs, fmt.Sprintf("history.limit must be non-negative, got %d", cfg.History.Limit))
	}
	if _, err := log.ParseLevel(cfg.Log.Level); err != nil {
		errs = append(errs, fmt.Sprintf("log.level %q is invalid", cfg.Log.Level))
	}
	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		errs = append(errs, fmt.Sprintf("log.format %q is invalid, must be text or json", cfg.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
