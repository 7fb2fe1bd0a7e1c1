package categorizer

import (
	"fmt"
	"strings"
	"sync"
)

// KeywordSeparator separates keywords in admin commands and exports, so it
// cannot appear inside a keyword.
const KeywordSeparator = ","

// Category is a named bucket of normalized keywords.
type Category struct {
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`
}

func (c Category) clone() Category {
	kws := make([]string, len(c.Keywords))
	copy(kws, c.Keywords)
	return Category{Name: c.Name, Keywords: kws}
}

// NewCategory validates and normalizes a category definition. It fails with
// ErrInvalidCategory when the name is blank, a keyword contains
// KeywordSeparator, or no keyword survives normalization.
func NewCategory(name string, keywords []string) (Category, error) {
	key := NormalizeName(name)
	if key == "" {
		return Category{}, fmt.Errorf("%w: name is empty", ErrInvalidCategory)
	}
	for _, kw := range keywords {
		if strings.Contains(kw, KeywordSeparator) {
			return Category{}, fmt.Errorf("%w: keyword %q contains %q", ErrInvalidCategory, strings.TrimSpace(kw), KeywordSeparator)
		}
	}
	kws := NormalizeKeywords(keywords)
	if len(kws) == 0 {
		return Category{}, fmt.Errorf("%w: category %q has no keywords", ErrInvalidCategory, key)
	}
	return Category{Name: key, Keywords: kws}, nil
}

// Snapshot is a read-only copy of the registry contents in insertion order.
type Snapshot []Category

// Registry is the mutable in-memory set of categories. Writers are
// serialized; readers get copies and never see a half-applied mutation.
type Registry struct {
	mu    sync.RWMutex
	items []Category
	index map[string]int
}

func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Add stores a new category and returns the stored (normalized) record.
func (r *Registry) Add(name string, keywords []string) (Category, error) {
	cat, err := NewCategory(name, keywords)
	if err != nil {
		return Category{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.index[cat.Name]; exists {
		return Category{}, fmt.Errorf("%w: %q", ErrDuplicateCategory, cat.Name)
	}
	r.index[cat.Name] = len(r.items)
	r.items = append(r.items, cat)
	return cat.clone(), nil
}

// Remove deletes a category. Removing an unknown name fails, including a
// second removal of the same name.
func (r *Registry) Remove(name string) error {
	key := NormalizeName(name)

	r.mu.Lock()
	defer r.mu.Unlock()
	pos, ok := r.index[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrCategoryNotFound, key)
	}
	r.items = append(r.items[:pos:pos], r.items[pos+1:]...)
	delete(r.index, key)
	for i := pos; i < len(r.items); i++ {
		r.index[r.items[i].Name] = i
	}
	return nil
}

// Get looks a category up by name, case-insensitively.
func (r *Registry) Get(name string) (Category, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pos, ok := r.index[NormalizeName(name)]
	if !ok {
		return Category{}, false
	}
	return r.items[pos].clone(), true
}

// List returns all categories in insertion order.
func (r *Registry) List() []Category {
	return r.Snapshot()
}

// Snapshot returns a deep copy of the registry for matching.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(Snapshot, len(r.items))
	for i, c := range r.items {
		out[i] = c.clone()
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Replace swaps the whole registry contents, typically with categories loaded
// from persistence. Either every category is accepted or nothing changes.
func (r *Registry) Replace(categories []Category) error {
	items := make([]Category, 0, len(categories))
	index := make(map[string]int, len(categories))
	for _, c := range categories {
		cat, err := NewCategory(c.Name, c.Keywords)
		if err != nil {
			return err
		}
		if _, exists := index[cat.Name]; exists {
			return fmt.Errorf("%w: %q", ErrDuplicateCategory, cat.Name)
		}
		index[cat.Name] = len(items)
		items = append(items, cat)
	}

	r.mu.Lock()
	r.items, r.index = items, index
	r.mu.Unlock()
	return nil
}
