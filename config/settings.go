package config

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Settings holds process configuration. Values come from the environment
// (after .env is loaded) and, when present, config/settings.{yaml,json}.
type Settings struct {
	DBDriver                 string `mapstructure:"DB_DRIVER"`
	DBUser                   string `mapstructure:"DB_USER"`
	DBPassword               string `mapstructure:"DB_PASSWORD"`
	DBHost                   string `mapstructure:"DB_HOST"`
	DBPort                   string `mapstructure:"DB_PORT"`
	DBName                   string `mapstructure:"DB_NAME"`
	DBDSN                    string `mapstructure:"DB_DSN"`
	DBMaxOpenConns           int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns           int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeSeconds int    `mapstructure:"DB_CONN_MAX_LIFETIME_SECONDS"`
	DBConnMaxIdleTimeSeconds int    `mapstructure:"DB_CONN_MAX_IDLE_TIME_SECONDS"`

	TimeZone        string `mapstructure:"TZ"`
	DataDir         string `mapstructure:"DATA_DIR"`
	ClientTablePath string `mapstructure:"CLIENT_TABLE_PATH"`
	AttachmentsRoot string `mapstructure:"ATTACHMENTS_ROOT"`

	RedisAddress  string `mapstructure:"REDIS_ADDRESS"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	LogLevel string `mapstructure:"LOG_LEVEL"`
}

var (
	settingsMu sync.RWMutex
	settings   *Settings
)

var settingKeys = []string{
	"DB_DRIVER", "DB_USER", "DB_PASSWORD", "DB_HOST", "DB_PORT", "DB_NAME", "DB_DSN",
	"DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS", "DB_CONN_MAX_LIFETIME_SECONDS", "DB_CONN_MAX_IDLE_TIME_SECONDS",
	"TZ", "DATA_DIR", "CLIENT_TABLE_PATH", "ATTACHMENTS_ROOT",
	"REDIS_ADDRESS", "REDIS_PASSWORD", "LOG_LEVEL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_PORT", "3306")
	v.SetDefault("DB_MAX_OPEN_CONNS", 50)
	v.SetDefault("DB_MAX_IDLE_CONNS", 25)
	v.SetDefault("DB_CONN_MAX_LIFETIME_SECONDS", 300)
	v.SetDefault("DB_CONN_MAX_IDLE_TIME_SECONDS", 60)
	v.SetDefault("TZ", "America/Chicago")
	v.SetDefault("DATA_DIR", "/data")
	v.SetDefault("LOG_LEVEL", "warn")
}

// LoadSettings re-reads configuration and replaces the process-wide snapshot.
func LoadSettings() (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("settings")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	v.AutomaticEnv()
	for _, key := range settingKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, err
	}
	s.DBDriver = strings.ToLower(strings.TrimSpace(s.DBDriver))
	if s.ClientTablePath == "" {
		s.ClientTablePath = filepath.Join(s.DataDir, "client_table.json")
	}
	if s.AttachmentsRoot == "" {
		s.AttachmentsRoot = filepath.Join(s.DataDir, "attachments")
	}

	settingsMu.Lock()
	settings = &s
	settingsMu.Unlock()
	applyLogLevel(s.LogLevel)
	return &s, nil
}

// GetSettings returns the current snapshot, loading it on first use.
// A broken config file falls back to defaults plus environment.
func GetSettings() *Settings {
	settingsMu.RLock()
	s := settings
	settingsMu.RUnlock()
	if s != nil {
		return s
	}
	s, err := LoadSettings()
	if err != nil {
		logg.WithError(err).Error("failed to load settings; using defaults")
		s = &Settings{
			DBDriver:        "sqlite",
			TimeZone:        "America/Chicago",
			DataDir:         "/data",
			ClientTablePath: filepath.Join("/data", "client_table.json"),
			AttachmentsRoot: filepath.Join("/data", "attachments"),
			LogLevel:        "warn",
		}
		settingsMu.Lock()
		settings = s
		settingsMu.Unlock()
	}
	return s
}

// Location resolves the configured business time zone. Naive timestamps are
// interpreted in this zone.
func (s *Settings) Location() *time.Location {
	if s == nil || s.TimeZone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(s.TimeZone)
	if err != nil {
		return time.Local
	}
	return loc
}
