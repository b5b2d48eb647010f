package domain

import "strings"

// Direction is a single-step move among siblings.
type Direction string

// Direction values.
const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// ParseDirection parses "up" or "down".
func ParseDirection(raw string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(raw))) {
	case DirectionUp:
		return DirectionUp, nil
	case DirectionDown:
		return DirectionDown, nil
	default:
		return "", ErrInvalidDirection
	}
}

// Delta returns -1 for up and +1 for down.
func (d Direction) Delta() int {
	if d == DirectionUp {
		return -1
	}
	return 1
}
