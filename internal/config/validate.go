package config

import (
	"errors"
	"fmt"
	"strings"

	"msgsort/internal/logging"
	"msgsort/pkg/categorizer"
)

const minTelegramTokenLength = 40

// Validate checks the settings every command needs. Transport specific
// settings are checked by ValidateTelegram and ValidateRedis.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres:
		dsn := c.Database.Primary.DSN
		if dsn == "" {
			return errors.New("database.primary.dsn (DATABASE_URL) is required for the postgres driver")
		}
		if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
			return errors.New("database.primary.dsn must start with 'postgres://' or 'postgresql://'")
		}
	case DriverSQLite:
		if c.Database.SQLite.Path == "" {
			return errors.New("database.sqlite.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.Database.Driver)
	}

	if t := c.Categorizer.SimilarityThreshold; t < 0 || t > 1 {
		return fmt.Errorf("categorizer.similarity_threshold must be between 0 and 1, got %v", t)
	}
	if strings.TrimSpace(c.Categorizer.DefaultCategory) == "" {
		return errors.New("categorizer.default_category is required")
	}
	if _, err := categorizer.ParseMatchPolicy(c.Categorizer.MatchPolicy); err != nil {
		return fmt.Errorf("categorizer.match_policy: %w", err)
	}
	if c.Categorizer.RefreshInterval < 0 {
		return errors.New("categorizer.refresh_interval must not be negative")
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if f := strings.ToLower(c.Log.Format); f != "" && f != "text" && f != "json" {
		return fmt.Errorf("log.format must be 'text' or 'json', got %q", c.Log.Format)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	return nil
}

func (c *Config) ValidateTelegram() error {
	if c.Telegram.Token == "" {
		return errors.New("telegram.token (TELEGRAM_BOT_TOKEN) is required")
	}
	if len(c.Telegram.Token) < minTelegramTokenLength {
		return fmt.Errorf("telegram.token looks truncated: want at least %d characters", minTelegramTokenLength)
	}
	if c.Telegram.PollTimeout < 0 {
		return errors.New("telegram.poll_timeout must not be negative")
	}
	return nil
}

// ValidateRedis checks the queue settings used by the worker and by
// asynchronous ingest.
func (c *Config) ValidateRedis() error {
	if c.Redis.Address == "" {
		return errors.New("redis.address (REDIS_ADDR) is required")
	}
	if c.Worker.Concurrency <= 0 {
		return errors.New("worker.concurrency must be a positive integer")
	}
	if len(c.Worker.Queues) == 0 {
		return errors.New("worker.queues must define at least one queue")
	}
	for name, priority := range c.Worker.Queues {
		if name == "" {
			return errors.New("worker.queues contains an empty queue name")
		}
		if priority <= 0 {
			return fmt.Errorf("worker.queues priority for queue '%s' must be positive", name)
		}
	}
	return nil
}
