package optimistic

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendPatch(s string) Patch[[]string] {
	return func(in []string) []string {
		return append(slices.Clone(in), s)
	}
}

func TestApplyIsVisibleImmediately(t *testing.T) {
	v := New([]string{"a"})

	cmd := v.Apply(appendPatch("b"))

	assert.Equal(t, []string{"a", "b"}, v.Get())
	assert.Equal(t, []string{"a"}, v.Base())
	assert.Equal(t, 1, v.Pending())

	require.NoError(t, cmd.Confirm())
	assert.Equal(t, []string{"a", "b"}, v.Base())
	assert.Equal(t, 0, v.Pending())
}

func TestCommitFailureRollsBack(t *testing.T) {
	v := New([]string{"a"})
	boom := errors.New("boom")

	err := v.Apply(appendPatch("b")).Commit(context.Background(), func(context.Context) error {
		return boom
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a"}, v.Get())
	assert.Equal(t, 0, v.Pending())
}

func TestRollbackKeepsOtherPendingPatches(t *testing.T) {
	v := New([]string{"a"})
	first := v.Apply(appendPatch("b"))
	second := v.Apply(appendPatch("c"))

	require.NoError(t, first.Rollback())

	assert.Equal(t, []string{"a", "c"}, v.Get())
	require.NoError(t, second.Confirm())
	assert.Equal(t, []string{"a", "c"}, v.Base())
}

func TestSettleTwice(t *testing.T) {
	v := New(0)
	cmd := v.Apply(func(n int) int { return n + 1 })

	require.NoError(t, cmd.Commit(context.Background(), func(context.Context) error { return nil }))

	assert.ErrorIs(t, cmd.Rollback(), ErrSettled)
	assert.Equal(t, 1, v.Get())
}

func TestResetReappliesPending(t *testing.T) {
	v := New(1)
	v.Apply(func(n int) int { return n * 10 })

	v.Reset(2)

	assert.Equal(t, 2, v.Base())
	assert.Equal(t, 20, v.Get())
}

func TestCommitCancelledContext(t *testing.T) {
	v := New(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false

	err := v.Apply(func(n int) int { return n + 1 }).Commit(ctx, func(context.Context) error {
		called = true
		return nil
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
	assert.Equal(t, 1, v.Get())
}
