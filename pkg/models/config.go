package models

import "time"

// RemoteConfig holds settings for the remote board API.
type RemoteConfig struct {
	BaseURL string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// PersistenceConfig selects and configures the slot store backend.
type PersistenceConfig struct {
	Backend    string        `yaml:"backend" mapstructure:"backend"` // file, redis, sqlite
	Dir        string        `yaml:"dir" mapstructure:"dir"`
	Debounce   time.Duration `yaml:"debounce" mapstructure:"debounce"`
	RedisURL   string        `yaml:"redis_url,omitempty" mapstructure:"redis_url"`
	SQLitePath string        `yaml:"sqlite_path,omitempty" mapstructure:"sqlite_path"`
	KeyPrefix  string        `yaml:"key_prefix,omitempty" mapstructure:"key_prefix"`
}

// HistoryConfig bounds the undo history. Limit 0 means unbounded.
type HistoryConfig struct {
	Limit int `yaml:"limit" mapstructure:"limit"`
}

// LogConfig configures the logrus logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // text, json
}

// ServerConfig configures the bundled mock remote server.
type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// BoardConfig holds all settings read from .boardconfig via Viper.
type BoardConfig struct {
	Remote      RemoteConfig      `yaml:"remote" mapstructure:"remote"`
	OfflineMode bool              `yaml:"offline_mode" mapstructure:"offline_mode"`
	Persistence PersistenceConfig `yaml:"persistence" mapstructure:"persistence"`
	History     HistoryConfig     `yaml:"history" mapstructure:"history"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
}

// Persistence backends.
const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)
