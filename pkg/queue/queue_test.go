package queue

import (
	"context"
	"testing"
	"time"

	"github.com/nurhq/nur/pkg/slack"
)

func TestPublishConsume(t *testing.T) {
	q := NewInProcQueue(8)
	ctx := context.Background()

	ev := slack.Event{Type: "message", Text: "What is X?", TS: "1.1", Channel: "C1"}
	q.Publish(KindMessage, ev)

	msg, ok := q.Consume(ctx)
	if !ok {
		t.Fatal("Expected a message")
	}
	if msg.Kind != KindMessage {
		t.Errorf("Kind = %s", msg.Kind)
	}
	if msg.Event.Text != "What is X?" {
		t.Errorf("Event.Text = %q", msg.Event.Text)
	}
	if msg.ID == "" {
		t.Error("Expected a message id")
	}
	if msg.EnqueuedAt.IsZero() {
		t.Error("Expected an enqueue timestamp")
	}
}

func TestConsumeContextCancelled(t *testing.T) {
	q := NewInProcQueue(8)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, ok := q.Consume(ctx); ok {
		t.Error("Expected Consume to report false on cancelled context")
	}
}

func TestCloseDrainsPending(t *testing.T) {
	q := NewInProcQueue(8)
	ctx := context.Background()

	q.Publish(KindMessage, slack.Event{TS: "1.1"})
	q.Publish(KindReaction, slack.Event{TS: "1.2"})
	q.Close()

	// Pending messages survive the close.
	for _, want := range []Kind{KindMessage, KindReaction} {
		msg, ok := q.Consume(ctx)
		if !ok {
			t.Fatal("Expected pending message after close")
		}
		if msg.Kind != want {
			t.Errorf("Kind = %s, want %s", msg.Kind, want)
		}
	}

	if _, ok := q.Consume(ctx); ok {
		t.Error("Expected Consume to report false on drained closed queue")
	}
}

func TestConsumeBlocksUntilPublish(t *testing.T) {
	q := NewInProcQueue(8)
	ctx := context.Background()

	done := make(chan Message, 1)
	go func() {
		msg, _ := q.Consume(ctx)
		done <- msg
	}()

	time.Sleep(10 * time.Millisecond)
	q.Publish(KindMessage, slack.Event{TS: "1.1"})

	select {
	case msg := <-done:
		if msg.Event.TS != "1.1" {
			t.Errorf("Event.TS = %q", msg.Event.TS)
		}
	case <-time.After(time.Second):
		t.Fatal("Consumer never received the message")
	}
}

func TestLen(t *testing.T) {
	q := NewInProcQueue(8)

	if q.Len() != 0 {
		t.Errorf("Len = %d, want 0", q.Len())
	}
	q.Publish(KindMessage, slack.Event{TS: "1.1"})
	q.Publish(KindMessage, slack.Event{TS: "1.2"})
	if q.Len() != 2 {
		t.Errorf("Len = %d, want 2", q.Len())
	}
}
