// Package cache holds the operator-visible truth for directory collections
// and implements the optimistic apply/commit/rollback protocol. The backing
// store behind the core API is eventually consistent, so a confirmed
// mutation opens a quiescence window during which remote reads must not
// overwrite local state.
package cache

import (
	"sync"
	"time"

	"github.com/atlas-hq/atlas-console/internal/clock"
	"github.com/atlas-hq/atlas-console/internal/directory/model"
)

// Transform produces a new collection from the current one. It must not
// mutate its input.
type Transform func(model.Collection) model.Collection

// Snapshot is the pre-mutation state retained for rollback.
type Snapshot struct {
	collection model.Collection
	takenAt    time.Time
}

// TakenAt reports when the snapshot was captured.
func (s Snapshot) TakenAt() time.Time { return s.takenAt }

// Event signals that the visible state of a collection changed.
type Event struct {
	Key string
}

type entry struct {
	current     model.Collection
	confirmedAt time.Time
	stale       bool
}

// Store keys collections and serialises access to them. It is the only
// writer of collection state; everything else reads.
type Store struct {
	mu          sync.Mutex
	clk         clock.Clock
	quiescence  time.Duration
	collections map[string]*entry
	subscribers []chan Event
}

// NewStore constructs a Store with the given quiescence window.
func NewStore(clk clock.Clock, quiescence time.Duration) *Store {
	return &Store{
		clk:         clk,
		quiescence:  quiescence,
		collections: make(map[string]*entry),
	}
}

// Read returns the current visible state of a collection, optimistic state
// included. The second return reports whether the key is known.
func (s *Store) Read(key string) (model.Collection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.collections[key]
	if !ok {
		return model.Collection{Key: key}, false
	}
	return e.current.Clone(), true
}

// Stale reports whether the collection was invalidated and awaits a fresh
// remote load.
func (s *Store) Stale(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.collections[key]
	return ok && e.stale
}

// Replace installs a collection loaded from the remote source. Inside the
// quiescence window of a confirmed mutation the load is refused and the
// local truth kept, unless the key was explicitly invalidated. Returns
// whether the replacement was applied.
func (s *Store) Replace(key string, col model.Collection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clk.Now()
	e, ok := s.collections[key]
	if ok && !e.stale && !e.confirmedAt.IsZero() && now.Sub(e.confirmedAt) < s.quiescence {
		return false
	}
	col.Key = key
	t := now
	col.LastConfirmedAt = &t
	s.collections[key] = &entry{current: col.Clone()}
	s.notifyLocked(key)
	return true
}

// ApplyOptimistic stores the transformed collection and returns the
// pre-transform snapshot for later rollback. The transform is pure local
// work and cannot fail.
func (s *Store) ApplyOptimistic(key string, transform Transform) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.collections[key]
	if !ok {
		e = &entry{current: model.Collection{Key: key}}
		s.collections[key] = e
	}
	snap := Snapshot{collection: e.current.Clone(), takenAt: s.clk.Now()}
	e.current = transform(e.current.Clone())
	e.current.Key = key
	s.notifyLocked(key)
	return snap
}

// Commit makes the optimistic state the ground truth and opens the
// quiescence window. The cache deliberately does not refetch here: a naive
// re-read would revert the visible state to stale pre-mutation data.
func (s *Store) Commit(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.collections[key]
	if !ok {
		return
	}
	now := s.clk.Now()
	e.confirmedAt = now
	e.stale = false
	t := now
	e.current.LastConfirmedAt = &t
	s.notifyLocked(key)
}

// Rollback restores the collection to the snapshot. Used only on confirmed
// remote failure. Idempotent: rolling back twice leaves the collection at
// the snapshot, not anything older.
func (s *Store) Rollback(key string, snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.collections[key]
	if !ok {
		e = &entry{}
		s.collections[key] = e
	}
	e.current = snap.collection.Clone()
	e.current.Key = key
	s.notifyLocked(key)
}

// Invalidate marks the collection stale and lifts the quiescence window so
// the next Replace goes through. Used when an entity with a server-assigned
// identity was created and the collection must be re-read.
func (s *Store) Invalidate(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.collections[key]
	if !ok {
		e = &entry{current: model.Collection{Key: key}}
		s.collections[key] = e
	}
	e.stale = true
	e.confirmedAt = time.Time{}
	s.notifyLocked(key)
}

// Subscribe registers an observer channel for collection change events.
// Delivery is best-effort; a slow consumer drops events rather than
// blocking the store.
func (s *Store) Subscribe() <-chan Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Event, 16)
	s.subscribers = append(s.subscribers, ch)
	return ch
}

func (s *Store) notifyLocked(key string) {
	for _, ch := range s.subscribers {
		select {
		case ch <- Event{Key: key}:
		default:
		}
	}
}
