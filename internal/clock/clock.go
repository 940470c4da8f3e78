// Package clock abstracts wall-clock access so countdown and quiescence
// logic can be tested without real delays.
package clock

import "time"

// Clock supplies the current time and ticker construction.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker is a cancellable recurring tick source.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Real is the production Clock backed by the time package.
type Real struct{}

// Now returns the current wall-clock time.
func (Real) Now() time.Time { return time.Now() }

// NewTicker returns a ticker firing every d.
func (Real) NewTicker(d time.Duration) Ticker {
	return &realTicker{ticker: time.NewTicker(d)}
}

type realTicker struct {
	ticker *time.Ticker
}

func (t *realTicker) C() <-chan time.Time { return t.ticker.C }

func (t *realTicker) Stop() { t.ticker.Stop() }
