package timer

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// Hooks are invoked from the countdown goroutine.
type Hooks struct {
	// Tick is called once per interval with the units left, starting at the full count.
	// Returning false stops the countdown without expiring.
	Tick func(remaining int) bool
	// Expire is called after the last interval elapsed.
	Expire func()
}

// Countdown counts a number of intervals down to zero on its own goroutine.
type Countdown struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Start launches a countdown of ticks intervals. A non-positive ticks value expires immediately.
func Start(clock clockwork.Clock, ticks int, interval time.Duration, hooks Hooks) *Countdown {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Countdown{cancel: cancel, done: make(chan struct{})}
	go c.run(ctx, clock, ticks, interval, hooks)
	return c
}

func (c *Countdown) run(ctx context.Context, clock clockwork.Clock, ticks int, interval time.Duration, hooks Hooks) {
	defer close(c.done)

	for remaining := ticks; remaining > 0; remaining-- {
		if hooks.Tick != nil && !hooks.Tick(remaining) {
			return
		}
		t := clock.NewTimer(interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.Chan():
		}
	}

	select {
	case <-ctx.Done():
		return
	default:
	}
	if hooks.Expire != nil {
		hooks.Expire()
	}
}

// Stop cancels the countdown. It does not wait, so it is safe to call from inside a hook or
// while holding a lock the hooks acquire.
func (c *Countdown) Stop() {
	if c == nil {
		return
	}
	c.cancel()
}

// Done is closed once the countdown goroutine has returned.
func (c *Countdown) Done() <-chan struct{} {
	return c.done
}
