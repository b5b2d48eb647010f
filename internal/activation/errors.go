package activation

import "errors"

var (
	ErrCascadeUnacknowledged = errors.New("tasks must be acknowledged before delete")
	ErrCategoryNotFound      = errors.New("custom category not found")
	ErrStageNotEmpty         = errors.New("stage is not empty")
	ErrInvalidStageKey       = errors.New("invalid stage key")
)
