package drag

import (
	"context"
	"fmt"
	"sync"

	"github.com/evanschultz/stageboard/internal/board"
	"github.com/evanschultz/stageboard/internal/domain"
	"github.com/evanschultz/stageboard/internal/optimistic"
)

// Committer persists drop intents.
type Committer interface {
	CommitReorder(ctx context.Context, intent ReorderIntent) error
	CommitMove(ctx context.Context, intent MoveIntent) error
}

// Session couples the engine with an optimistic layout and per-task locks. It is safe
// for concurrent use.
type Session struct {
	mu        sync.Mutex
	engine    *Engine
	locks     *Locks
	layout    *optimistic.Value[board.Layout]
	committer Committer
}

// NewSession returns a session over layout.
func NewSession(layout board.Layout, committer Committer, cfg Config) *Session {
	s := &Session{
		locks:     NewLocks(),
		layout:    optimistic.New(layout),
		committer: committer,
	}
	s.engine = NewEngine(cfg, s.layout.Get, s.locks.IsLocked)
	return s
}

// Layout returns the visible layout, including uncommitted drops.
func (s *Session) Layout() board.Layout {
	return s.layout.Get()
}

// Refresh replaces the confirmed layout after a rebuild. Uncommitted drops are
// re-applied on top.
func (s *Session) Refresh(layout board.Layout) {
	s.layout.Reset(layout)
}

// Locks exposes the saving and failure markers.
func (s *Session) Locks() *Locks {
	return s.locks
}

// Phase returns the engine phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Phase()
}

// Source returns the picked-up task.
func (s *Session) Source() (Source, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Source()
}

// Start picks up a task.
func (s *Session) Start(source Source, at Point) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Start(source, at)
}

// Move tracks the pointer.
func (s *Session) Move(to Point) Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Move(to)
}

// Over records the hovered target and reports drop validity.
func (s *Session) Over(target Target) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Over(target)
}

// Cancel abandons the drag.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.Cancel()
}

// Drop ends the drag. When it yields an intent the layout is updated immediately and the
// returned Pending settles it.
func (s *Session) Drop() (*Pending, bool) {
	s.mu.Lock()
	intent, ok := s.engine.End()
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	pending, err := s.Submit(intent)
	if err != nil {
		return nil, false
	}
	return pending, true
}

// Step reorders taskID one position within its segment, as a keyboard move.
func (s *Session) Step(taskID string, direction domain.Direction) (*Pending, error) {
	intent, err := newStep(s.layout.Get(), taskID, direction)
	if err != nil {
		return nil, err
	}
	return s.Submit(intent)
}

// MoveTo re-scopes taskID into scope, as a keyboard move.
func (s *Session) MoveTo(taskID string, scope board.Scope) (*Pending, error) {
	layout := s.layout.Get()
	from, ok := layout.SegmentOf(taskID)
	if !ok {
		return nil, ErrTaskNotInSegment
	}
	if !layout.IsManual(taskID) {
		return nil, ErrInvalidDrop
	}
	if board.SegmentKey(scope.StageID, scope.CategoryID) == from {
		return nil, ErrNoMove
	}
	return s.Submit(newMove(from, taskID, scope))
}

// Submit applies intent optimistically and locks its task.
func (s *Session) Submit(intent Intent) (*Pending, error) {
	taskID := intent.Task()
	if _, ok := s.layout.Get().SegmentOf(taskID); !ok {
		return nil, ErrTaskNotInSegment
	}
	if !s.locks.Lock(taskID) {
		return nil, ErrTaskLocked
	}
	cmd := s.layout.Apply(intent.ApplyTo)
	return &Pending{Intent: intent, session: s, cmd: cmd}, nil
}

// Pending is an applied, unsettled drop.
type Pending struct {
	Intent  Intent
	session *Session
	cmd     *optimistic.Command[board.Layout]
}

// Commit persists the intent. On failure the layout is rolled back and the task is
// marked as failed.
func (p *Pending) Commit(ctx context.Context) error {
	taskID := p.Intent.Task()
	defer p.session.locks.Unlock(taskID)
	err := p.cmd.Commit(ctx, func(ctx context.Context) error {
		return p.persist(ctx)
	})
	if err != nil {
		p.session.locks.MarkFailed(taskID, err)
		return fmt.Errorf("commit drop of %s: %w", taskID, err)
	}
	return nil
}

// Discard rolls the intent back without persisting it.
func (p *Pending) Discard() {
	defer p.session.locks.Unlock(p.Intent.Task())
	_ = p.cmd.Rollback()
}

func (p *Pending) persist(ctx context.Context) error {
	if p.session.committer == nil {
		return nil
	}
	switch intent := p.Intent.(type) {
	case ReorderIntent:
		return p.session.committer.CommitReorder(ctx, intent)
	case MoveIntent:
		return p.session.committer.CommitMove(ctx, intent)
	default:
		return ErrInvalidDrop
	}
}
