package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"msgsort/pkg/categorizer"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Database struct {
		Driver  string `mapstructure:"driver"` // "postgres" or "sqlite"
		Primary struct {
			DSN string `mapstructure:"dsn"`
		} `mapstructure:"primary"`
		SQLite struct {
			Path string `mapstructure:"path"` // relative paths live under ~/.config/msgsort
		} `mapstructure:"sqlite"`
	} `mapstructure:"database"`

	Categorizer struct {
		SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
		DefaultCategory     string  `mapstructure:"default_category"`
		MatchPolicy         string  `mapstructure:"match_policy"` // "substring" or "word"
		// RefreshInterval is how long loaded categories are used before they
		// are read again from the database; 0 reads them for every message.
		RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	} `mapstructure:"categorizer"`

	Telegram struct {
		Token       string `mapstructure:"token"`
		PollTimeout int    `mapstructure:"poll_timeout"` // seconds
		Debug       bool   `mapstructure:"debug"`
	} `mapstructure:"telegram"`

	Server struct {
		Addr string `mapstructure:"addr"`
		Port int    `mapstructure:"port"`
	} `mapstructure:"server"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"` // "text" or "json"
	} `mapstructure:"log"`

	Redis struct {
		Address  string `mapstructure:"address"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Worker struct {
		Concurrency int            `mapstructure:"concurrency"`
		Queues      map[string]int `mapstructure:"queues"`
	} `mapstructure:"worker"`
}

// CategorizerConfig converts the categorizer section for categorizer.New.
func (c *Config) CategorizerConfig() categorizer.Config {
	return categorizer.Config{
		SimilarityThreshold: c.Categorizer.SimilarityThreshold,
		DefaultCategory:     c.Categorizer.DefaultCategory,
		MatchPolicy:         categorizer.MatchPolicy(c.Categorizer.MatchPolicy),
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.primary.dsn", "")
	v.SetDefault("database.sqlite.path", "msgsort.db")
	v.SetDefault("categorizer.similarity_threshold", categorizer.DefaultSimilarityThreshold)
	v.SetDefault("categorizer.default_category", categorizer.DefaultCategoryName)
	v.SetDefault("categorizer.match_policy", string(categorizer.MatchSubstring))
	v.SetDefault("categorizer.refresh_interval", time.Duration(0))
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.poll_timeout", 60)
	v.SetDefault("telegram.debug", false)
	v.SetDefault("server.addr", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("log.level", "INFO")
	v.SetDefault("log.format", "text")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("worker.concurrency", 5)
	v.SetDefault("worker.queues", map[string]int{"messages": 1})
}

// LoadConfig reads .env (if present), then config.yaml from the working
// directory or configFile when given, then the environment. Environment
// variables win over the file; nested keys map to upper case with '_'
// (MSGSORT_SERVER_PORT), and the deployment variables below are bound by name.
func LoadConfig(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("MSGSORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("telegram.token", "TELEGRAM_BOT_TOKEN")
	_ = v.BindEnv("database.primary.dsn", "DATABASE_URL")
	_ = v.BindEnv("redis.address", "REDIS_ADDR")
	_ = v.BindEnv("categorizer.similarity_threshold", "SIMILARITY_THRESHOLD")
	_ = v.BindEnv("categorizer.default_category", "DEFAULT_CATEGORY")
	_ = v.BindEnv("log.level", "LOG_LEVEL")

	if err := v.ReadInConfig(); err != nil {
		// A missing config.yaml is fine; defaults and env vars still apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	return &config, nil
}
