package session

import (
	"context"
	"time"

	"github.com/stemsi/exstem-ems/internal/model"
)

// SubmitFunc receives the result of an attempt the countdown submitted.
type SubmitFunc func(model.Result)

// TickFunc observes every tick with the seconds left.
type TickFunc func(remaining int)

// Run feeds ticks into e until the attempt is submitted or ctx ends.
// onSubmit is called exactly once, and only when a tick caused the
// submission; a manual Submit ends the loop without calling it.
func Run(ctx context.Context, e *Engine, ticks <-chan time.Time, onTick TickFunc, onSubmit SubmitFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.Done():
			return
		case <-ticks:
			if e.Tick() {
				if onSubmit != nil {
					r, _ := e.Result()
					onSubmit(r)
				}
				return
			}
			if onTick != nil {
				onTick(e.Snapshot().RemainingSeconds)
			}
		}
	}
}

// Countdown runs an engine against a wall-clock ticker in its own goroutine.
type Countdown struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// StartCountdown ticks e once per interval until it is submitted, ctx ends
// or Stop is called.
func StartCountdown(ctx context.Context, e *Engine, interval time.Duration, onTick TickFunc, onSubmit SubmitFunc) *Countdown {
	ctx, cancel := context.WithCancel(ctx)
	c := &Countdown{cancel: cancel, done: make(chan struct{})}
	ticker := time.NewTicker(interval)

	go func() {
		defer close(c.done)
		defer ticker.Stop()
		Run(ctx, e, ticker.C, onTick, onSubmit)
	}()
	return c
}

// Stop halts the countdown and waits for its goroutine to exit.
func (c *Countdown) Stop() {
	c.cancel()
	<-c.done
}

// Done is closed when the countdown goroutine has exited.
func (c *Countdown) Done() <-chan struct{} { return c.done }
