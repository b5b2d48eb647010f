package domain

import "errors"

var (
	ErrInvalidID        = errors.New("invalid id")
	ErrInvalidName      = errors.New("invalid name")
	ErrInvalidStage     = errors.New("invalid stage")
	ErrInvalidDuration  = errors.New("invalid duration")
	ErrInvalidDates     = errors.New("invalid dates")
	ErrInvalidBudget    = errors.New("invalid budget")
	ErrInvalidOrder     = errors.New("invalid order")
	ErrInvalidParentID  = errors.New("invalid parent id")
	ErrInvalidDirection = errors.New("invalid direction")
)
