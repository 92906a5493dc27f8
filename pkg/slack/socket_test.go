package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// socketTestServer serves the connections.open handshake and a websocket
// endpoint driven by the serve func.
func socketTestServer(t *testing.T, serve func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()

	var server *httptest.Server
	mux.HandleFunc("/apps.connections.open", func(w http.ResponseWriter, r *http.Request) {
		wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
		json.NewEncoder(w).Encode(map[string]interface{}{"ok": true, "url": wsURL})
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		serve(conn)
	})

	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestSocketListenerDispatchAndAck(t *testing.T) {
	acks := make(chan Ack, 1)

	server := socketTestServer(t, func(conn *websocket.Conn) {
		conn.WriteJSON(Envelope{Type: EnvelopeTypeHello})
		conn.WriteJSON(Envelope{
			Type:       EnvelopeTypeEventsAPI,
			EnvelopeID: "env-1",
			Payload:    json.RawMessage(`{"type":"event_callback","event":{"type":"message","text":"hi"}}`),
		})

		var ack Ack
		if err := conn.ReadJSON(&ack); err != nil {
			t.Errorf("Failed to read ack: %v", err)
			return
		}
		acks <- ack

		conn.WriteJSON(Envelope{Type: EnvelopeTypeDisconnect, Reason: "test over"})
	})

	client := NewClientWithBaseURL("xoxb-bot", "xapp-app", server.URL)

	envelopes := make(chan Envelope, 1)
	listener := NewSocketListener(client, func(env Envelope, ack func()) {
		ack()
		envelopes <- env
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := listener.Run(ctx)
	if err == nil || !strings.Contains(err.Error(), "disconnect") {
		t.Errorf("Expected disconnect error, got %v", err)
	}

	select {
	case env := <-envelopes:
		if env.EnvelopeID != "env-1" {
			t.Errorf("EnvelopeID = %q", env.EnvelopeID)
		}
	default:
		t.Error("Handler never received the envelope")
	}

	select {
	case ack := <-acks:
		if ack.EnvelopeID != "env-1" {
			t.Errorf("Ack EnvelopeID = %q", ack.EnvelopeID)
		}
	case <-time.After(time.Second):
		t.Error("Server never received the ack")
	}
}

func TestSocketListenerHandlerPanic(t *testing.T) {
	server := socketTestServer(t, func(conn *websocket.Conn) {
		conn.WriteJSON(Envelope{
			Type:       EnvelopeTypeEventsAPI,
			EnvelopeID: "env-1",
			Payload:    json.RawMessage(`{}`),
		})
		conn.WriteJSON(Envelope{Type: EnvelopeTypeDisconnect, Reason: "test over"})
	})

	client := NewClientWithBaseURL("xoxb-bot", "xapp-app", server.URL)

	// A panicking handler must not kill the read loop; the listener still
	// reaches the disconnect frame.
	listener := NewSocketListener(client, func(env Envelope, ack func()) {
		panic(fmt.Sprintf("handler blew up on %s", env.EnvelopeID))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := listener.Run(ctx)
	if err == nil || !strings.Contains(err.Error(), "disconnect") {
		t.Errorf("Expected disconnect error, got %v", err)
	}
}

func TestSocketListenerContextCancelled(t *testing.T) {
	server := socketTestServer(t, func(conn *websocket.Conn) {
		conn.WriteJSON(Envelope{Type: EnvelopeTypeHello})
		// Hold the connection open until the client goes away.
		conn.ReadMessage()
	})

	client := NewClientWithBaseURL("xoxb-bot", "xapp-app", server.URL)
	listener := NewSocketListener(client, func(env Envelope, ack func()) {})

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- listener.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
