package categorizer

import "errors"

var (
	ErrDuplicateCategory = errors.New("categorizer: duplicate category")
	ErrInvalidCategory   = errors.New("categorizer: invalid category")
	ErrCategoryNotFound  = errors.New("categorizer: category not found")
)
