package review

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestGate_SubmitBeforeAwait(t *testing.T) {
	g := NewGate()
	g.Submit(Decision{Approved: true})

	d, err := g.Await(context.Background(), time.Second)
	require.NoError(t, err)
	assert.True(t, d.Approved)
}

func TestGate_AwaitBeforeSubmit(t *testing.T) {
	g := NewGate()

	var eg errgroup.Group
	var got Decision
	eg.Go(func() error {
		var err error
		got, err = g.Await(context.Background(), 5*time.Second)
		return err
	})

	time.Sleep(20 * time.Millisecond)
	g.Submit(Decision{Regenerate: true})

	require.NoError(t, eg.Wait())
	assert.False(t, got.Approved)
	assert.True(t, got.Regenerate)
}

func TestGate_SecondSubmitOverwrites(t *testing.T) {
	g := NewGate()
	g.Submit(Decision{Approved: false})
	g.Submit(Decision{Approved: true})

	d, err := g.Await(context.Background(), time.Second)
	require.NoError(t, err)
	assert.True(t, d.Approved)

	// Slot is empty after a successful Await
	_, err = g.Await(context.Background(), 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrReviewTimeout)
}

func TestGate_Timeout(t *testing.T) {
	g := NewGate()

	start := time.Now()
	_, err := g.Await(context.Background(), 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrReviewTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestGate_ContextCancel(t *testing.T) {
	g := NewGate()
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := g.Await(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGate_Drain(t *testing.T) {
	g := NewGate()
	g.Submit(Decision{Approved: true})
	g.Drain()

	_, err := g.Await(context.Background(), 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrReviewTimeout)

	// Draining an empty gate is a no-op
	g.Drain()
}

func TestGate_ConcurrentSubmitters(t *testing.T) {
	g := NewGate()

	var eg errgroup.Group
	for i := 0; i < 50; i++ {
		eg.Go(func() error {
			g.Submit(Decision{Approved: true})
			return nil
		})
	}
	require.NoError(t, eg.Wait())

	d, err := g.Await(context.Background(), time.Second)
	require.NoError(t, err)
	assert.True(t, d.Approved)
}

func TestAutoApprove(t *testing.T) {
	d, err := AutoApprove{}.Await(context.Background())
	require.NoError(t, err)
	assert.True(t, d.Approved)
	assert.False(t, d.Regenerate)
}
