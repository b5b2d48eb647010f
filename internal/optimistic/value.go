// Package optimistic applies patches to a value immediately and settles them later by
// committing or rolling back.
package optimistic

import (
	"context"
	"errors"
	"sync"
)

// ErrSettled reports a command that was already committed or rolled back.
var ErrSettled = errors.New("optimistic command already settled")

// Patch derives a new value from the previous one. Patches must not mutate their input.
type Patch[T any] func(T) T

// Value holds a confirmed base and the pending patches layered on top of it. The
// visible value is the base with every pending patch applied in order.
type Value[T any] struct {
	mu      sync.RWMutex
	base    T
	current T
	pending []*Command[T]
}

// New returns a value with no pending patches.
func New[T any](initial T) *Value[T] {
	return &Value[T]{base: initial, current: initial}
}

// Get returns the visible value.
func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.current
}

// Base returns the last confirmed value.
func (v *Value[T]) Base() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.base
}

// Pending returns the number of unsettled commands.
func (v *Value[T]) Pending() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.pending)
}

// Reset replaces the confirmed base, typically after an external refresh, and re-applies
// the pending patches on top of it.
func (v *Value[T]) Reset(next T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.base = next
	v.recompute()
}

// Apply layers patch onto the visible value and returns the command that settles it.
func (v *Value[T]) Apply(patch Patch[T]) *Command[T] {
	v.mu.Lock()
	defer v.mu.Unlock()
	cmd := &Command[T]{value: v, patch: patch}
	v.pending = append(v.pending, cmd)
	v.current = patch(v.current)
	return cmd
}

// recompute folds pending patches over the base. Callers hold mu.
func (v *Value[T]) recompute() {
	current := v.base
	for _, cmd := range v.pending {
		current = cmd.patch(current)
	}
	v.current = current
}

// settle removes cmd from the pending list, folding it into the base when confirmed.
func (v *Value[T]) settle(cmd *Command[T], confirmed bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	idx := -1
	for i, pending := range v.pending {
		if pending == cmd {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrSettled
	}
	v.pending = append(v.pending[:idx:idx], v.pending[idx+1:]...)
	if confirmed {
		v.base = cmd.patch(v.base)
	}
	v.recompute()
	return nil
}

// Command is one applied, unsettled patch.
type Command[T any] struct {
	value *Value[T]
	patch Patch[T]
}

// Commit runs persist and confirms the patch on success. On failure the patch is rolled
// back and the persist error is returned.
func (c *Command[T]) Commit(ctx context.Context, persist func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		if rbErr := c.Rollback(); rbErr != nil {
			return rbErr
		}
		return err
	}
	if err := persist(ctx); err != nil {
		if rbErr := c.Rollback(); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return c.Confirm()
}

// Confirm folds the patch into the confirmed base.
func (c *Command[T]) Confirm() error {
	return c.value.settle(c, true)
}

// Rollback discards the patch.
func (c *Command[T]) Rollback() error {
	return c.value.settle(c, false)
}
