package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/storybook/internal/review"
)

func newTestRegistry(now *time.Time) *Registry {
	r := NewRegistry()
	r.now = func() time.Time { return *now }
	return r
}

func TestRegistry_GetOrCreate(t *testing.T) {
	r := NewRegistry()

	s, created := r.GetOrCreate("")
	assert.True(t, created)
	assert.NotEmpty(t, s.ID)

	again, created := r.GetOrCreate(s.ID)
	assert.False(t, created)
	assert.Equal(t, s.ID, again.ID)
	assert.Equal(t, s.CreatedAt, again.CreatedAt)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_BeginRejectsSecondRun(t *testing.T) {
	r := NewRegistry()
	s, _ := r.GetOrCreate("a")

	require.NoError(t, r.Begin(s.ID))
	assert.ErrorIs(t, r.Begin(s.ID), ErrRunInProgress)

	snap, ok := r.Get(s.ID)
	require.True(t, ok)
	assert.True(t, snap.Running)

	r.Clear(s.ID)
	assert.NoError(t, r.Begin(s.ID))
}

func TestRegistry_BeginUnknown(t *testing.T) {
	r := NewRegistry()
	assert.ErrorIs(t, r.Begin("missing"), ErrUnknownSession)
}

func TestRegistry_AwaitUnknownSession(t *testing.T) {
	r := NewRegistry()

	_, err := r.Await(context.Background(), "missing", time.Second)
	assert.ErrorIs(t, err, ErrUnknownSession)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_SubmitBeforeAwait(t *testing.T) {
	r := NewRegistry()
	r.GetOrCreate("s1")

	created := r.Submit("s1", review.Decision{Approved: true})
	assert.False(t, created)

	d, err := r.Await(context.Background(), "s1", time.Second)
	require.NoError(t, err)
	assert.True(t, d.Approved)
}

func TestRegistry_SubmitCreatesSession(t *testing.T) {
	r := NewRegistry()

	created := r.Submit("late", review.Decision{Approved: true})
	assert.True(t, created)

	d, err := r.Reviewer("late", time.Second).Await(context.Background())
	require.NoError(t, err)
	assert.True(t, d.Approved)
}

func TestRegistry_SessionIsolation(t *testing.T) {
	r := NewRegistry()
	r.GetOrCreate("a")
	r.GetOrCreate("b")

	var eg errgroup.Group
	var decA, decB review.Decision
	eg.Go(func() error {
		var err error
		decA, err = r.Await(context.Background(), "a", 5*time.Second)
		return err
	})
	eg.Go(func() error {
		var err error
		decB, err = r.Await(context.Background(), "b", 5*time.Second)
		return err
	})

	time.Sleep(20 * time.Millisecond)
	r.Submit("a", review.Decision{Approved: true})
	r.Submit("b", review.Decision{Approved: false, Regenerate: true})

	require.NoError(t, eg.Wait())
	assert.Equal(t, review.Decision{Approved: true}, decA)
	assert.Equal(t, review.Decision{Regenerate: true}, decB)
}

func TestRegistry_ClearDrainsGate(t *testing.T) {
	r := NewRegistry()
	r.GetOrCreate("s")
	require.NoError(t, r.Begin("s"))
	r.Submit("s", review.Decision{Approved: true})

	r.Clear("s")

	_, err := r.Await(context.Background(), "s", 10*time.Millisecond)
	assert.ErrorIs(t, err, review.ErrReviewTimeout)
}

func TestRegistry_Sweep(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := newTestRegistry(&now)

	r.GetOrCreate("old")
	now = now.Add(2 * time.Minute)
	r.GetOrCreate("young")

	// old is 31 minutes old, young is 29
	now = now.Add(29 * time.Minute)
	removed := r.Sweep(30 * time.Minute)

	assert.Equal(t, 1, removed)
	_, ok := r.Get("old")
	assert.False(t, ok)
	_, ok = r.Get("young")
	assert.True(t, ok)
}

func TestRegistry_SweepKeepsRunningSessions(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := newTestRegistry(&now)

	r.GetOrCreate("busy")
	require.NoError(t, r.Begin("busy"))

	now = now.Add(time.Hour)
	assert.Equal(t, 0, r.Sweep(30*time.Minute))

	r.Clear("busy")
	assert.Equal(t, 1, r.Sweep(30*time.Minute))
}
