package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"ammonia-battery/internal/logging"
	"ammonia-battery/internal/model"
)

// EnvPrefix is prepended to every service setting read from the environment,
// e.g. ABATT_PORT or ABATT_DB_PATH.
const EnvPrefix = "ABATT"

// ServerConfig holds the API service settings.
type ServerConfig struct {
	Port      string `mapstructure:"port"`
	Env       string `mapstructure:"env"` // development, production
	StaticDir string `mapstructure:"static_dir"`
	// DBPath is the SQLite run history. Empty disables persistence.
	DBPath      string        `mapstructure:"db_path"`
	SystemsDir  string        `mapstructure:"systems_dir"`
	PoolSize    int           `mapstructure:"pool_size"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
	CORSOrigins []string      `mapstructure:"cors_origins"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	LogFile   string `mapstructure:"log_file"`
}

// Logging returns the logger settings.
func (s ServerConfig) Logging() logging.Config {
	return logging.Config{Level: s.LogLevel, Format: s.LogFormat, OutputFile: s.LogFile}
}

// Production reports whether gin should run in release mode.
func (s ServerConfig) Production() bool { return s.Env == "production" }

func serverDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("env", "development")
	v.SetDefault("static_dir", "./web/dist")
	v.SetDefault("db_path", "results/runs.db")
	v.SetDefault("systems_dir", "configs/systems")
	v.SetDefault("pool_size", 4)
	v.SetDefault("cache_ttl", time.Hour)
	v.SetDefault("cors_origins", []string{})
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("log_file", "")
}

// LoadServer reads the service settings from the environment and, when path
// is set, a YAML file. Environment variables win over the file.
func LoadServer(path string) (*ServerConfig, error) {
	v := viper.New()
	serverDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading server config file: %w", err)
		}
	}

	var s ServerConfig
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unable to decode server config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *ServerConfig) Validate() error {
	if strings.TrimSpace(s.Port) == "" {
		return &model.ConfigurationError{Field: "port", Reason: "is required"}
	}
	if s.Env != "development" && s.Env != "production" {
		return &model.ConfigurationError{Field: "env", Reason: fmt.Sprintf("unknown environment %q (want development|production)", s.Env)}
	}
	if s.PoolSize < 0 {
		return &model.ConfigurationError{Field: "pool_size", Reason: "must be >= 0"}
	}
	if s.CacheTTL < 0 {
		return &model.ConfigurationError{Field: "cache_ttl", Reason: "must be >= 0"}
	}
	if _, err := logging.ParseLevel(s.LogLevel); err != nil {
		return &model.ConfigurationError{Field: "log_level", Reason: err.Error()}
	}
	return nil
}
