package drag

import (
	"slices"

	"github.com/evanschultz/stageboard/internal/board"
	"github.com/evanschultz/stageboard/internal/domain"
)

// Intent is the outcome of a drop. Implementations are ReorderIntent and MoveIntent.
type Intent interface {
	Task() string
	ApplyTo(board.Layout) board.Layout
	isIntent()
}

// ReorderIntent moves a task inside its segment.
type ReorderIntent struct {
	TaskID     string
	SegmentKey string
	From       int
	To         int
	// Order is the full segment order after the move.
	Order []string
}

// Step is one single-position move, for hosts that persist relative order.
type Step struct {
	TaskID    string
	Direction domain.Direction
}

// Task returns the moved task id.
func (r ReorderIntent) Task() string { return r.TaskID }

// Steps expands the intent into single-position moves.
func (r ReorderIntent) Steps() []Step {
	n := r.To - r.From
	direction := domain.DirectionDown
	if n < 0 {
		n = -n
		direction = domain.DirectionUp
	}
	out := make([]Step, n)
	for idx := range out {
		out[idx] = Step{TaskID: r.TaskID, Direction: direction}
	}
	return out
}

// ApplyTo returns layout with the new segment order.
func (r ReorderIntent) ApplyTo(layout board.Layout) board.Layout {
	next, ok := layout.WithOrder(r.SegmentKey, r.Order)
	if !ok {
		return layout
	}
	return next
}

func (ReorderIntent) isIntent() {}

// MoveIntent re-scopes a manual task to another stage and category.
type MoveIntent struct {
	TaskID     string
	Stage      domain.Stage
	CategoryID string
	// CategoryName is nil when the target has no category.
	CategoryName *string
	From         string
	Target       board.Scope
}

// Task returns the moved task id.
func (m MoveIntent) Task() string { return m.TaskID }

// ApplyTo returns layout with the task appended to the target segment.
func (m MoveIntent) ApplyTo(layout board.Layout) board.Layout {
	next, ok := layout.WithMove(m.TaskID, m.Target)
	if !ok {
		return layout
	}
	return next
}

func (MoveIntent) isIntent() {}

// splice moves the element at from to position to.
func splice(ids []string, from, to int) []string {
	out := slices.Clone(ids)
	id := out[from]
	out = slices.Delete(out, from, from+1)
	return slices.Insert(out, to, id)
}

// newReorder builds the reorder of taskID onto the position of overID in key.
func newReorder(layout board.Layout, key, taskID, overID string) (ReorderIntent, error) {
	ids := layout.Segment(key)
	from := slices.Index(ids, taskID)
	to := slices.Index(ids, overID)
	if from < 0 || to < 0 {
		return ReorderIntent{}, ErrTaskNotInSegment
	}
	if from == to {
		return ReorderIntent{}, ErrNoMove
	}
	return ReorderIntent{
		TaskID:     taskID,
		SegmentKey: key,
		From:       from,
		To:         to,
		Order:      splice(ids, from, to),
	}, nil
}

// newStep builds a single-position reorder of taskID.
func newStep(layout board.Layout, taskID string, direction domain.Direction) (ReorderIntent, error) {
	key, ok := layout.SegmentOf(taskID)
	if !ok {
		return ReorderIntent{}, ErrTaskNotInSegment
	}
	ids := layout.Segment(key)
	from := slices.Index(ids, taskID)
	to := from + direction.Delta()
	if to < 0 || to >= len(ids) {
		return ReorderIntent{}, ErrNoMove
	}
	return ReorderIntent{
		TaskID:     taskID,
		SegmentKey: key,
		From:       from,
		To:         to,
		Order:      splice(ids, from, to),
	}, nil
}

// newMove builds the move of taskID into scope.
func newMove(from string, taskID string, scope board.Scope) MoveIntent {
	move := MoveIntent{
		TaskID:     taskID,
		Stage:      scope.Stage,
		CategoryID: scope.CategoryID,
		From:       from,
		Target:     scope,
	}
	if scope.CategoryID != "" {
		name := scope.CategoryName
		move.CategoryName = &name
	}
	return move
}
