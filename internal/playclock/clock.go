/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package playclock abstracts the engine's notion of "now" so a full
// channel-day can be executed instantly in dry-run mode.
package playclock

import (
	"context"
	"sync"
	"time"
)

// Clock is the engine's time source. Real playout reads the system clock at
// defined checkpoints; dry-run advances a simulated timestamp by exactly the
// time each operation reports consuming, so drift stays visible.
type Clock interface {
	// Now returns the current (real or simulated) time.
	Now() time.Time

	// Sleep waits for d, or returns early with ctx.Err() on cancellation.
	// The simulated clock advances instantly.
	Sleep(ctx context.Context, d time.Duration) error

	// Advance moves a simulated clock forward by d. No-op on the real
	// clock, where elapsed wall time is the advance.
	Advance(d time.Duration)

	// SnapTo pins a simulated clock to an exact instant, discarding any
	// sub-second residue from gap filling. No-op on the real clock.
	SnapTo(t time.Time)

	// Simulated reports whether waits and playback should be simulated.
	Simulated() bool
}

// Real is the wall-clock implementation.
type Real struct{}

// NewReal returns the wall-clock Clock.
func NewReal() *Real { return &Real{} }

func (Real) Now() time.Time { return time.Now() }

func (Real) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (Real) Advance(time.Duration) {}

func (Real) SnapTo(time.Time) {}

func (Real) Simulated() bool { return false }

// Simulated is a manually advanced clock for dry runs and tests. It only
// moves forward.
type Simulated struct {
	mu  sync.Mutex
	now time.Time
}

// NewSimulated returns a simulated clock starting at t.
func NewSimulated(t time.Time) *Simulated {
	return &Simulated{now: t}
}

func (c *Simulated) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Simulated) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Advance(d)
	return nil
}

func (c *Simulated) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *Simulated) SnapTo(t time.Time) {
	c.mu.Lock()
	// Forward only; a snap target behind the clock is ignored.
	if !t.Before(c.now) {
		c.now = t
	}
	c.mu.Unlock()
}

func (c *Simulated) Simulated() bool { return true }
