// Package sqlite is a single-file store backend for local runs and tests.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"
	"msgsort/internal/models"
	"msgsort/internal/store"
)

type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open opens (or creates) the database at path. ":memory:" gives a private
// in-memory database.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite path cannot be empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	// every connection to ":memory:" is a different database
	db.SetMaxOpenConns(1)
	return &Store{db: db}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() {
	_ = s.db.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS categories (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			name       TEXT NOT NULL UNIQUE,
			keywords   TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS messages (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			telegram_chat_id INTEGER NOT NULL,
			telegram_user_id INTEGER NOT NULL,
			username         TEXT,
			chat_type        TEXT NOT NULL,
			message_text     TEXT NOT NULL,
			category         TEXT NOT NULL,
			confidence_score REAL,
			matched_keyword  TEXT,
			created_at       DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_messages_chat_id ON messages(telegram_chat_id);
		CREATE INDEX IF NOT EXISTS idx_messages_category ON messages(category);
	`)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

func (s *Store) CreateCategory(ctx context.Context, category *models.Category) error {
	kws, err := json.Marshal(category.Keywords)
	if err != nil {
		return fmt.Errorf("encoding keywords: %w", err)
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO categories (name, keywords, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		category.Name, string(kws), now, now)
	if err != nil {
		var sqErr sqlite3.Error
		if errors.As(err, &sqErr) && sqErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("category with name '%s' already exists: %w", category.Name, store.ErrDuplicate)
		}
		return fmt.Errorf("inserting category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading category id: %w", err)
	}
	category.ID, category.CreatedAt, category.UpdatedAt = id, now, now
	return nil
}

func (s *Store) GetCategoryByName(ctx context.Context, name string) (*models.Category, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, keywords, created_at, updated_at FROM categories WHERE name = ?`, name)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting category '%s': %w", name, err)
	}
	return c, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]*models.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, keywords, created_at, updated_at FROM categories ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	var out []*models.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) DeleteCategory(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("deleting category '%s': %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCategory(row scanner) (*models.Category, error) {
	var (
		c   models.Category
		kws string
	)
	if err := row.Scan(&c.ID, &c.Name, &kws, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(kws), &c.Keywords); err != nil {
		return nil, fmt.Errorf("decoding keywords of '%s': %w", c.Name, err)
	}
	return &c, nil
}

func (s *Store) CreateMessage(ctx context.Context, msg *models.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (telegram_chat_id, telegram_user_id, username, chat_type, message_text,
			category, confidence_score, matched_keyword, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ChatID, msg.UserID, msg.Username, msg.ChatType, msg.Text,
		msg.Category, msg.ConfidenceScore, msg.MatchedKeyword, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading message id: %w", err)
	}
	msg.ID = id
	return nil
}

func (s *Store) CountMessages(ctx context.Context) (int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&total); err != nil {
		return 0, fmt.Errorf("counting messages: %w", err)
	}
	return total, nil
}

func (s *Store) CategoryStats(ctx context.Context) ([]models.CategoryStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, COUNT(*), AVG(confidence_score)
		FROM messages
		GROUP BY category
		ORDER BY COUNT(*) DESC, category ASC`)
	if err != nil {
		return nil, fmt.Errorf("aggregating messages: %w", err)
	}
	defer rows.Close()

	var out []models.CategoryStat
	for rows.Next() {
		var st models.CategoryStat
		if err := rows.Scan(&st.Category, &st.Count, &st.AvgConfidence); err != nil {
			return nil, fmt.Errorf("scanning stats: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
