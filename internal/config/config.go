package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	History  HistoryConfig  `mapstructure:"history"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`

	// RateLimitRPS throttles mutating endpoints per client IP. Zero disables.
	RateLimitRPS float64 `mapstructure:"rate_limit_rps"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type HistoryConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// SavableMethods is the whitelist of HTTP methods eligible for capture.
	SavableMethods []string `mapstructure:"savable_methods"`

	// ExcludedRoutes lists route patterns (gin full paths) that are never
	// captured, regardless of method.
	ExcludedRoutes []string `mapstructure:"excluded_routes"`

	LogDir     string     `mapstructure:"log_dir"`
	BufferSize int        `mapstructure:"buffer_size"`
	View       ViewConfig `mapstructure:"view"`
}

// ViewConfig shapes the read-side listing only; the capture middleware
// never consults it.
type ViewConfig struct {
	Filter  map[string]string `mapstructure:"filter"`
	OrderBy string            `mapstructure:"order_by"`
	Columns []string          `mapstructure:"columns"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr           string `mapstructure:"addr"`
	Password       string `mapstructure:"password"`
	DB             int    `mapstructure:"db"`
	HistoryListKey string `mapstructure:"history_list_key"`
	HistoryListMax int    `mapstructure:"history_list_max"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")

	// Environment variables support
	// e.g. REQTRAIL_HISTORY_ENABLED
	viper.SetEnvPrefix("reqtrail")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.rate_limit_rps", 0)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("history.enabled", true)
	viper.SetDefault("history.savable_methods", []string{"POST", "PUT", "PATCH", "DELETE"})
	viper.SetDefault("history.excluded_routes", []string{})
	viper.SetDefault("history.log_dir", "./logs")
	viper.SetDefault("history.buffer_size", 1000)
	viper.SetDefault("history.view.order_by", "created_at")
	viper.SetDefault("history.view.columns", []string{"*"})
	viper.SetDefault("redis.history_list_key", "request_history")
	viper.SetDefault("redis.history_list_max", 10000)
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
