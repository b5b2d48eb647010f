package drag

import (
	"slices"
	"sync"
)

// Locks tracks tasks with an in-flight commit and tasks whose last commit failed.
type Locks struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
	failed   map[string]error
}

// NewLocks returns an empty lock set.
func NewLocks() *Locks {
	return &Locks{inFlight: map[string]struct{}{}, failed: map[string]error{}}
}

// Lock marks taskID as saving. It returns false when a commit is already in flight.
func (l *Locks) Lock(taskID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.inFlight[taskID]; busy {
		return false
	}
	l.inFlight[taskID] = struct{}{}
	delete(l.failed, taskID)
	return true
}

// Unlock clears the saving marker of taskID.
func (l *Locks) Unlock(taskID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.inFlight, taskID)
}

// IsLocked reports whether taskID is saving.
func (l *Locks) IsLocked(taskID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, busy := l.inFlight[taskID]
	return busy
}

// Locked returns the saving task ids in lexical order.
func (l *Locks) Locked() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.inFlight))
	for id := range l.inFlight {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// MarkFailed records the commit error of taskID.
func (l *Locks) MarkFailed(taskID string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failed[taskID] = err
}

// Failed returns the last commit error of taskID.
func (l *Locks) Failed(taskID string) (error, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	err, ok := l.failed[taskID]
	return err, ok
}

// ClearFailed forgets the failure marker of taskID.
func (l *Locks) ClearFailed(taskID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.failed, taskID)
}
