// Package review implements the single-slot handoff that carries a human
// review decision into a suspended pipeline run.
package review

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrReviewTimeout is returned by Await when no decision arrives in time
var ErrReviewTimeout = errors.New("review timed out")

// Decision is the reviewer's verdict on a generated story
type Decision struct {
	Approved   bool `json:"approved"`
	Regenerate bool `json:"regenerate"`
}

// Gate holds at most one pending decision. A decision submitted before
// anyone waits stays buffered until the next Await.
type Gate struct {
	mu sync.Mutex // serializes writers
	ch chan Decision
}

// NewGate creates an empty gate
func NewGate() *Gate {
	return &Gate{ch: make(chan Decision, 1)}
}

// Submit deposits a decision, replacing any decision still buffered.
// It never blocks.
func (g *Gate) Submit(d Decision) {
	g.mu.Lock()
	defer g.mu.Unlock()

	select {
	case <-g.ch:
	default:
	}
	g.ch <- d
}

// Await blocks until a decision is available, the timeout elapses or ctx is done.
// A timeout of zero waits without limit.
func (g *Gate) Await(ctx context.Context, timeout time.Duration) (Decision, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case d := <-g.ch:
		return d, nil
	case <-expired:
		return Decision{}, ErrReviewTimeout
	case <-ctx.Done():
		return Decision{}, ctx.Err()
	}
}

// Drain discards a buffered decision, if any
func (g *Gate) Drain() {
	g.mu.Lock()
	defer g.mu.Unlock()

	select {
	case <-g.ch:
	default:
	}
}

// AutoApprove approves every story immediately. Used by runs without a human reviewer.
type AutoApprove struct{}

// Await returns an approval without blocking
func (AutoApprove) Await(context.Context) (Decision, error) {
	return Decision{Approved: true}, nil
}
