package slack

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// EnvelopeHandler processes one Socket Mode envelope. The ack callback sends
// the acknowledgement for the envelope back to Slack; handlers are expected
// to call it before doing any further work.
type EnvelopeHandler func(env Envelope, ack func())

// SocketListener maintains a Socket Mode websocket connection and feeds every
// received envelope to a handler, one at a time. A connection failure ends
// Run with an error; reconnecting is an operational concern, not handled
// here.
type SocketListener struct {
	client  *Client
	handler EnvelopeHandler

	conn    *websocket.Conn
	writeMu sync.Mutex
}

// NewSocketListener creates a listener that dispatches envelopes to handler.
func NewSocketListener(client *Client, handler EnvelopeHandler) *SocketListener {
	return &SocketListener{
		client:  client,
		handler: handler,
	}
}

// Run opens the Socket Mode connection and reads envelopes until the context
// is cancelled or the connection fails.
func (l *SocketListener) Run(ctx context.Context) error {
	wsURL, err := l.client.OpenSocketModeURL(ctx)
	if err != nil {
		return fmt.Errorf("failed to open socket mode connection: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to dial socket mode url: %w", err)
	}
	l.conn = conn
	defer conn.Close()

	// Unblock ReadJSON when the context is cancelled.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("socket mode read failed: %w", err)
		}

		switch env.Type {
		case EnvelopeTypeHello:
			log.Printf("Socket mode connected")

		case EnvelopeTypeDisconnect:
			return fmt.Errorf("socket mode disconnect requested by server: %s", env.Reason)

		default:
			l.dispatch(env)
		}
	}
}

// dispatch hands one envelope to the handler. Handler failures must never
// stop the read loop.
func (l *SocketListener) dispatch(env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Envelope handler panic: %v", r)
		}
	}()

	l.handler(env, func() { l.ack(env.EnvelopeID) })
}

// ack sends the acknowledgement for an envelope.
func (l *SocketListener) ack(envelopeID string) {
	if envelopeID == "" {
		return
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	_ = l.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := l.conn.WriteJSON(Ack{EnvelopeID: envelopeID}); err != nil {
		log.Printf("Failed to ack envelope %s: %v", envelopeID, err)
	}
}
