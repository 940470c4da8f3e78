// Package notify queues per-operator feedback messages (toasts). Mutations
// push here the moment they are applied optimistically; the console UI
// drains the queue on its next poll.
package notify

import (
	"sync"
	"time"
)

// Kind classifies a message for presentation.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Message is one queued toast.
type Message struct {
	Kind Kind      `json:"kind"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

const maxQueued = 50

// Center holds the per-operator queues.
type Center struct {
	mu     sync.Mutex
	queues map[string][]Message
	now    func() time.Time
}

// NewCenter constructs an empty Center.
func NewCenter() *Center {
	return &Center{queues: make(map[string][]Message), now: time.Now}
}

// Success queues a success toast for the operator.
func (c *Center) Success(actorID, text string) {
	c.push(actorID, KindSuccess, text)
}

// Error queues an error toast for the operator.
func (c *Center) Error(actorID, text string) {
	c.push(actorID, KindError, text)
}

// Drain returns and clears all queued messages for the operator.
func (c *Center) Drain(actorID string) []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := c.queues[actorID]
	delete(c.queues, actorID)
	return msgs
}

func (c *Center) push(actorID string, kind Kind, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q := append(c.queues[actorID], Message{Kind: kind, Text: text, At: c.now()})
	if len(q) > maxQueued {
		q = q[len(q)-maxQueued:]
	}
	c.queues[actorID] = q
}
