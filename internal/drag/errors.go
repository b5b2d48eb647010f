package drag

import "errors"

var (
	ErrTaskNotInSegment = errors.New("task not in segment")
	ErrTaskLocked       = errors.New("task is saving")
	ErrInvalidDrop      = errors.New("invalid drop target")
	ErrNoMove           = errors.New("task cannot move further")
)
