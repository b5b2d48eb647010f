package app

import "errors"

// ErrNotFound and related errors describe validation and runtime failures.
var (
	ErrNotFound              = errors.New("not found")
	ErrOrderMismatch         = errors.New("order does not match segment")
	ErrCatalogCategoryFixed  = errors.New("catalog task category cannot change")
	ErrInvalidSnapshot       = errors.New("invalid snapshot")
	ErrCategoryStageMismatch = errors.New("category belongs to another stage")

	ErrCustomCategoriesDisabled = errors.New("custom categories are disabled")
)
