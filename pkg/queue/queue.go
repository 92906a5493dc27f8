package queue

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nurhq/nur/pkg/slack"
)

// Kind tags the kind of event travelling through the queue.
type Kind string

const (
	// KindMessage is a user message accepted by the gateway.
	KindMessage Kind = "message"
	// KindReaction is a reaction added to one of the bot's own messages.
	KindReaction Kind = "reaction"
)

// Message is one queued event. Delivery is at-least-once: consumers must be
// idempotent with respect to redelivery.
type Message struct {
	ID         string      `json:"id"`
	Kind       Kind        `json:"kind"`
	Event      slack.Event `json:"event"`
	EnqueuedAt time.Time   `json:"enqueued_at"`
}

// Publisher is the gateway-facing side of the publish boundary.
type Publisher interface {
	Publish(kind Kind, event slack.Event)
}

// Consumer is the worker-facing side of the publish boundary. Consume blocks
// until a message is available and reports false when the queue is closed or
// the context is cancelled.
type Consumer interface {
	Consume(ctx context.Context) (Message, bool)
}

// InProcQueue is a channel-backed queue implementing both sides of the
// boundary in-process. It has the same interface shape an external broker
// would satisfy.
type InProcQueue struct {
	ch chan Message
}

// NewInProcQueue creates a queue with the given buffer size.
func NewInProcQueue(size int) *InProcQueue {
	if size <= 0 {
		size = 256
	}
	return &InProcQueue{
		ch: make(chan Message, size),
	}
}

// Publish enqueues an event. Blocks when the buffer is full; the gateway has
// already acked the envelope by the time it publishes, so blocking only
// delays intake of further envelopes.
func (q *InProcQueue) Publish(kind Kind, event slack.Event) {
	q.ch <- Message{
		ID:         uuid.New().String(),
		Kind:       kind,
		Event:      event,
		EnqueuedAt: time.Now(),
	}
}

// Consume dequeues the next message.
func (q *InProcQueue) Consume(ctx context.Context) (Message, bool) {
	select {
	case msg, ok := <-q.ch:
		return msg, ok
	case <-ctx.Done():
		return Message{}, false
	}
}

// Close stops the queue; pending messages are still delivered to consumers.
func (q *InProcQueue) Close() {
	close(q.ch)
}

// Len returns the number of messages currently buffered.
func (q *InProcQueue) Len() int {
	return len(q.ch)
}
