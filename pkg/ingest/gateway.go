package ingest

import (
	"encoding/json"
	"log"

	"github.com/nurhq/nur/pkg/queue"
	"github.com/nurhq/nur/pkg/slack"
)

// Gateway turns raw Socket Mode envelopes into queued events. It acks every
// envelope before any business logic runs, filters to events it understands,
// and publishes accepted events for asynchronous processing. It never blocks
// on answer generation.
type Gateway struct {
	publisher queue.Publisher
	botUserID string
	seen      *seenCache

	// Dispatch table keyed by event type.
	handlers map[string]func(slack.Event)
}

// NewGateway creates a gateway publishing to the given queue. botUserID
// identifies the bot's own messages for reaction filtering; seenLimit bounds
// the best-effort duplicate cache.
func NewGateway(publisher queue.Publisher, botUserID string, seenLimit int) *Gateway {
	g := &Gateway{
		publisher: publisher,
		botUserID: botUserID,
		seen:      newSeenCache(seenLimit),
	}
	g.handlers = map[string]func(slack.Event){
		slack.EventTypeMessage:       g.handleMessage,
		slack.EventTypeReactionAdded: g.handleReaction,
	}
	return g
}

// HandleEnvelope processes one transport envelope. Acknowledgement is
// unconditional and happens first, so the transport never redelivers due to
// local processing latency. Failures are logged and swallowed; a bad
// envelope must never stop the listener loop.
func (g *Gateway) HandleEnvelope(env slack.Envelope, ack func()) {
	ack()

	if env.Type != slack.EnvelopeTypeEventsAPI {
		return
	}

	var payload slack.EventsAPIPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		log.Printf("Failed to decode events_api payload: %v", err)
		return
	}

	handler, ok := g.handlers[payload.Event.Type]
	if !ok {
		return
	}
	handler(payload.Event)
}

// handleMessage publishes a plain user message. Messages already dispatched
// in this process lifetime are dropped; the durable ledger downstream is the
// real dedup guarantee, this cache only saves queue traffic on transport
// retries.
func (g *Gateway) handleMessage(ev slack.Event) {
	if !ev.IsUserMessage() {
		return
	}
	if ev.ClientMsgID != "" && !g.seen.Add(ev.ClientMsgID) {
		return
	}

	g.publisher.Publish(queue.KindMessage, ev)
}

// handleReaction publishes reactions added to the bot's own messages. No
// dedup: the consumer treats reactions as idempotent to redelivery.
func (g *Gateway) handleReaction(ev slack.Event) {
	if ev.ItemUser != g.botUserID {
		return
	}

	g.publisher.Publish(queue.KindReaction, ev)
}
