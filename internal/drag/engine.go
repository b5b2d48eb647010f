// Package drag implements the pick-up, hover and drop state machine of task rows and
// the optimistic session that persists drops.
package drag

import (
	"math"

	"github.com/evanschultz/stageboard/internal/board"
)

// DefaultActivationDistance is the pointer travel that turns a press into a drag.
const DefaultActivationDistance = 8

// Phase is the engine state.
type Phase int

// Phase values.
const (
	PhaseIdle Phase = iota
	PhasePending
	PhaseDragging
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseDragging:
		return "dragging"
	default:
		return "idle"
	}
}

// Point is a pointer position in device-independent units.
type Point struct {
	X float64
	Y float64
}

// Config configures an engine.
type Config struct {
	ActivationDistance float64
}

// Engine is the drag state machine. It is not safe for concurrent use; Session guards it.
type Engine struct {
	cfg    Config
	layout func() board.Layout
	locked func(string) bool

	phase   Phase
	source  Source
	origin  Point
	pointer Point
	over    *Target
}

// NewEngine returns an idle engine reading segment order from layout. locked may be nil.
func NewEngine(cfg Config, layout func() board.Layout, locked func(string) bool) *Engine {
	if cfg.ActivationDistance <= 0 {
		cfg.ActivationDistance = DefaultActivationDistance
	}
	if locked == nil {
		locked = func(string) bool { return false }
	}
	return &Engine{cfg: cfg, layout: layout, locked: locked}
}

// Phase returns the current phase.
func (e *Engine) Phase() Phase { return e.phase }

// Source returns the picked-up task while a drag is pending or active.
func (e *Engine) Source() (Source, bool) {
	if e.phase == PhaseIdle {
		return Source{}, false
	}
	return e.source, true
}

// Pointer returns the last tracked pointer position, for overlays.
func (e *Engine) Pointer() Point { return e.pointer }

// Target returns the current drop target.
func (e *Engine) Target() (Target, bool) {
	if e.over == nil {
		return Target{}, false
	}
	return *e.over, true
}

// Start picks up source at point. It is ignored while another drag is active or the task
// is saving.
func (e *Engine) Start(source Source, at Point) bool {
	if e.phase != PhaseIdle || source.TaskID == "" || e.locked(source.TaskID) {
		return false
	}
	e.phase = PhasePending
	e.source = source
	e.origin = at
	e.pointer = at
	e.over = nil
	return true
}

// Move tracks the pointer and recognizes the drag once it travels the activation distance.
func (e *Engine) Move(to Point) Phase {
	if e.phase == PhaseIdle {
		return e.phase
	}
	e.pointer = to
	if e.phase == PhasePending && math.Hypot(to.X-e.origin.X, to.Y-e.origin.Y) >= e.cfg.ActivationDistance {
		e.phase = PhaseDragging
	}
	return e.phase
}

// Over records the target under the pointer and reports whether it is a valid drop.
func (e *Engine) Over(target Target) bool {
	if e.phase != PhaseDragging {
		return false
	}
	t := target
	e.over = &t
	return IsValidDrop(e.source, target.Scope.Stage, target.Scope.CategoryID)
}

// Leave clears the current target.
func (e *Engine) Leave() {
	e.over = nil
}

// Cancel drops the drag with no intent.
func (e *Engine) Cancel() {
	e.reset()
}

// End finishes the drag and returns the resulting intent. A press that never became a
// drag, an invalid target or a drop with no effect yields no intent.
func (e *Engine) End() (Intent, bool) {
	defer e.reset()
	if e.phase != PhaseDragging || e.over == nil {
		return nil, false
	}
	target := *e.over
	if !IsValidDrop(e.source, target.Scope.Stage, target.Scope.CategoryID) {
		return nil, false
	}
	intent, err := Resolve(e.layout(), e.source, target)
	if err != nil {
		return nil, false
	}
	return intent, true
}

func (e *Engine) reset() {
	e.phase = PhaseIdle
	e.source = Source{}
	e.over = nil
}

// Resolve computes the intent of dropping source on target against layout.
func Resolve(layout board.Layout, source Source, target Target) (Intent, error) {
	from, ok := layout.SegmentOf(source.TaskID)
	if !ok {
		return nil, ErrTaskNotInSegment
	}
	if !IsValidDrop(source, target.Scope.Stage, target.Scope.CategoryID) {
		return nil, ErrInvalidDrop
	}
	switch target.Kind {
	case TargetTask:
		over, ok := layout.SegmentOf(target.TaskID)
		if !ok {
			return nil, ErrTaskNotInSegment
		}
		if over == from {
			return newReorder(layout, from, source.TaskID, target.TaskID)
		}
		if !source.Manual {
			return nil, ErrInvalidDrop
		}
		scope, ok := layout.Scope(over)
		if !ok {
			scope = target.Scope
		}
		return newMove(from, source.TaskID, scope), nil
	case TargetCategory, TargetStage:
		if target.Key() == from {
			return nil, ErrNoMove
		}
		if !source.Manual {
			return nil, ErrInvalidDrop
		}
		return newMove(from, source.TaskID, target.Scope), nil
	default:
		return nil, ErrInvalidDrop
	}
}
