package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"msgsort/internal/metrics"
	"msgsort/internal/models"
	"msgsort/internal/store"
	"msgsort/pkg/categorizer"
)

const maxCategoryNameLength = 100

var (
	categoryNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	// ErrReservedCategory is returned when an admin tries to create or delete
	// the default category.
	ErrReservedCategory = errors.New("category name is reserved")
)

// ValidateCategoryName checks the admin-facing naming rule: 1-100 characters
// from letters, digits, '_' and '-'.
func ValidateCategoryName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is empty", categorizer.ErrInvalidCategory)
	}
	if len(name) > maxCategoryNameLength {
		return fmt.Errorf("%w: name longer than %d characters", categorizer.ErrInvalidCategory, maxCategoryNameLength)
	}
	if !categoryNamePattern.MatchString(name) {
		return fmt.Errorf("%w: name %q may only contain letters, digits, '_' and '-'", categorizer.ErrInvalidCategory, name)
	}
	return nil
}

// CategoryService keeps the in-memory registry and the category table in
// step. The table is authoritative: every write goes to the database first
// and reads reload the registry from it once the refresh interval has passed,
// so categories changed by another process are seen here too.
type CategoryService struct {
	mu              sync.Mutex
	store           store.CategoryStore
	registry        *categorizer.Registry
	defaultCategory string
	metrics         *metrics.Recorder

	refreshEvery time.Duration
	lastLoad     time.Time
}

func NewCategoryService(cs store.CategoryStore, reg *categorizer.Registry, defaultCategory string, m *metrics.Recorder) *CategoryService {
	if defaultCategory == "" {
		defaultCategory = categorizer.DefaultCategoryName
	}
	return &CategoryService{store: cs, registry: reg, defaultCategory: categorizer.NormalizeName(defaultCategory), metrics: m}
}

// SetRefreshInterval sets how long a loaded registry is trusted before reads
// reload it from the database. Zero reloads on every read.
func (s *CategoryService) SetRefreshInterval(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshEvery = d
}

// Load replaces the registry contents with the persisted categories and
// returns how many were loaded.
func (s *CategoryService) Load(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.loadLocked(ctx)
	if err != nil {
		return 0, err
	}
	log.WithField("categories", n).Info("Category registry loaded")
	return n, nil
}

func (s *CategoryService) loadLocked(ctx context.Context) (int, error) {
	if s.store == nil {
		return s.registry.Len(), nil
	}
	rows, err := s.store.ListCategories(ctx)
	if err != nil {
		return 0, fmt.Errorf("load categories: %w", err)
	}
	cats := make([]categorizer.Category, 0, len(rows))
	for _, row := range rows {
		cats = append(cats, categorizer.Category{Name: row.Name, Keywords: row.Keywords})
	}
	if err := s.registry.Replace(cats); err != nil {
		return 0, fmt.Errorf("load categories: %w", err)
	}
	s.lastLoad = time.Now()
	s.metrics.SetCategories(len(cats))
	return len(cats), nil
}

// refreshLocked reloads the registry when it is older than the refresh
// interval. Without a store the registry is the only copy and is never stale.
func (s *CategoryService) refreshLocked(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	if !s.lastLoad.IsZero() && time.Since(s.lastLoad) < s.refreshEvery {
		return nil
	}
	n, err := s.loadLocked(ctx)
	if err != nil {
		return err
	}
	log.WithField("categories", n).Debug("Category registry refreshed")
	return nil
}

// syncLocked reloads the registry after a successful write. When the reload
// fails the write is applied to the registry directly and the next read
// reloads.
func (s *CategoryService) syncLocked(ctx context.Context, apply func()) {
	_, err := s.loadLocked(ctx)
	if err == nil {
		return
	}
	log.WithError(err).Warn("Reload after category write failed, patching registry")
	apply()
	s.lastLoad = time.Time{}
	s.metrics.SetCategories(s.registry.Len())
}

// AddCategory validates, persists and registers a new category.
func (s *CategoryService) AddCategory(ctx context.Context, name string, keywords []string) (categorizer.Category, error) {
	name = strings.TrimSpace(name)
	if err := ValidateCategoryName(name); err != nil {
		return categorizer.Category{}, err
	}
	cat, err := categorizer.NewCategory(name, keywords)
	if err != nil {
		return categorizer.Category{}, err
	}
	if cat.Name == s.defaultCategory {
		return categorizer.Category{}, fmt.Errorf("%w: %q", ErrReservedCategory, cat.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store == nil {
		return s.registry.Add(cat.Name, cat.Keywords)
	}
	row := &models.Category{Name: cat.Name, Keywords: cat.Keywords}
	if err := s.store.CreateCategory(ctx, row); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			s.syncLocked(ctx, func() {})
			return categorizer.Category{}, fmt.Errorf("%w: %q", categorizer.ErrDuplicateCategory, cat.Name)
		}
		return categorizer.Category{}, fmt.Errorf("persist category %q: %w", cat.Name, err)
	}
	s.syncLocked(ctx, func() {
		_ = s.registry.Remove(cat.Name)
		_, _ = s.registry.Add(cat.Name, cat.Keywords)
	})
	log.WithFields(log.Fields{"category": cat.Name, "keywords": len(cat.Keywords)}).Info("Category added")
	return cat, nil
}

// DeleteCategory removes a category from the database and the registry.
func (s *CategoryService) DeleteCategory(ctx context.Context, name string) error {
	key := categorizer.NormalizeName(name)
	if key == s.defaultCategory {
		return fmt.Errorf("%w: %q", ErrReservedCategory, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store == nil {
		return s.registry.Remove(key)
	}
	if err := s.store.DeleteCategory(ctx, key); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.syncLocked(ctx, func() { _ = s.registry.Remove(key) })
			return fmt.Errorf("%w: %q", categorizer.ErrCategoryNotFound, key)
		}
		return fmt.Errorf("delete category %q: %w", key, err)
	}
	s.syncLocked(ctx, func() { _ = s.registry.Remove(key) })
	log.WithField("category", key).Info("Category deleted")
	return nil
}

// ListCategories returns the categories in creation order.
func (s *CategoryService) ListCategories(ctx context.Context) ([]categorizer.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.refreshLocked(ctx); err != nil {
		return nil, err
	}
	return s.registry.List(), nil
}

// Snapshot returns the copy to classify against.
func (s *CategoryService) Snapshot(ctx context.Context) (categorizer.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.refreshLocked(ctx); err != nil {
		return nil, err
	}
	return s.registry.Snapshot(), nil
}

func (s *CategoryService) DefaultCategory() string {
	return s.defaultCategory
}

// ImportReport lists the outcome of a bulk import.
type ImportReport struct {
	Added   []string          `json:"added"`
	Skipped map[string]string `json:"skipped,omitempty"`
}

// ImportCategories adds each category in turn. Categories that fail (for
// example because they already exist) are reported and skipped; store
// failures abort the import.
func (s *CategoryService) ImportCategories(ctx context.Context, cats []categorizer.Category) (*ImportReport, error) {
	report := &ImportReport{Added: []string{}, Skipped: map[string]string{}}
	for _, c := range cats {
		stored, err := s.AddCategory(ctx, c.Name, c.Keywords)
		switch {
		case err == nil:
			report.Added = append(report.Added, stored.Name)
		case errors.Is(err, categorizer.ErrDuplicateCategory),
			errors.Is(err, categorizer.ErrInvalidCategory),
			errors.Is(err, ErrReservedCategory):
			report.Skipped[c.Name] = err.Error()
		default:
			return report, err
		}
	}
	return report, nil
}
