package primary

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"msgsort/internal/models"
	"msgsort/internal/store"
)

// --- Category Management ---

func (s *StoreImpl) CreateCategory(ctx context.Context, category *models.Category) error {
	query := `
		INSERT INTO categories (name, keywords, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	now := time.Now()
	err := s.db.QueryRow(ctx, query,
		category.Name, category.Keywords, now, now,
	).Scan(&category.ID, &category.CreatedAt, &category.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return fmt.Errorf("category with name '%s' already exists: %w", category.Name, store.ErrDuplicate)
		}
		return fmt.Errorf("failed to insert category: %w", err)
	}
	return nil
}

func (s *StoreImpl) GetCategoryByName(ctx context.Context, name string) (*models.Category, error) {
	query := `SELECT id, name, keywords, created_at, updated_at FROM categories WHERE name = $1`
	c := &models.Category{}
	err := s.db.QueryRow(ctx, query, name).Scan(
		&c.ID, &c.Name, &c.Keywords, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get category by name '%s': %w", name, err)
	}
	return c, nil
}

// ListCategories returns every category in creation order.
func (s *StoreImpl) ListCategories(ctx context.Context) ([]*models.Category, error) {
	query := `SELECT id, name, keywords, created_at, updated_at FROM categories ORDER BY id ASC`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []*models.Category
	for rows.Next() {
		c := &models.Category{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Keywords, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category row: %w", err)
		}
		categories = append(categories, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category rows: %w", err)
	}
	return categories, nil
}

func (s *StoreImpl) DeleteCategory(ctx context.Context, name string) error {
	cmdTag, err := s.db.Exec(ctx, `DELETE FROM categories WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("failed to delete category '%s': %w", name, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
