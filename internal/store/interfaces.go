package store

import (
	"context"

	"github.com/hibiken/asynq"
	"msgsort/internal/models"
)

// --- Job Client ---

type JobClient interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	EnqueueCategorizeMessage(ctx context.Context, msg *models.Message) (string, error)
	Close() error
}

// --- Category Store ---

type CategoryStore interface {
	CreateCategory(ctx context.Context, category *models.Category) error
	GetCategoryByName(ctx context.Context, name string) (*models.Category, error)
	ListCategories(ctx context.Context) ([]*models.Category, error)
	DeleteCategory(ctx context.Context, name string) error

	Ping(ctx context.Context) error
}

// --- Message Store ---

type MessageStore interface {
	CreateMessage(ctx context.Context, msg *models.Message) error
	CountMessages(ctx context.Context) (int64, error)
	// CategoryStats returns message counts and average confidence grouped by
	// category, largest count first.
	CategoryStats(ctx context.Context) ([]models.CategoryStat, error)
}

// Store is implemented by both the PostgreSQL and SQLite backends.
type Store interface {
	CategoryStore
	MessageStore
	Migrate(ctx context.Context) error
	Close()
}
