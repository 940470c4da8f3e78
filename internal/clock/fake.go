package clock

import (
	"sync"
	"time"
)

// Fake is a manually advanced Clock for tests.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

// NewFake returns a Fake clock starting at the given instant.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// NewTicker registers a ticker driven by Advance.
func (f *Fake) NewTicker(d time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTicker{
		clock:    f,
		interval: d,
		next:     f.now.Add(d),
		ch:       make(chan time.Time, 1),
	}
	f.tickers = append(f.tickers, t)
	return t
}

// Advance moves the fake clock forward, firing due tickers in order.
// A ticker whose buffer is full drops the tick; consumers are expected to
// re-read Now on every tick rather than trust the delivered value.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	for {
		var earliest *fakeTicker
		for _, t := range f.tickers {
			if t.stopped {
				continue
			}
			if !t.next.After(target) && (earliest == nil || t.next.Before(earliest.next)) {
				earliest = t
			}
		}
		if earliest == nil {
			break
		}
		f.now = earliest.next
		earliest.next = earliest.next.Add(earliest.interval)
		select {
		case earliest.ch <- f.now:
		default:
		}
	}
	f.now = target
	f.mu.Unlock()
}

type fakeTicker struct {
	clock    *Fake
	interval time.Duration
	next     time.Time
	ch       chan time.Time
	stopped  bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.clock.mu.Lock()
	t.stopped = true
	t.clock.mu.Unlock()
}
