package slack

import "encoding/json"

// Envelope represents a Socket Mode envelope delivered over the websocket
// connection. Every envelope carrying an EnvelopeID must be acknowledged.
type Envelope struct {
	Type       string          `json:"type"`
	EnvelopeID string          `json:"envelope_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`

	// Hello / disconnect frames
	Reason string `json:"reason,omitempty"`
}

// Envelope types sent by Slack.
const (
	EnvelopeTypeHello      = "hello"
	EnvelopeTypeDisconnect = "disconnect"
	EnvelopeTypeEventsAPI  = "events_api"
)

// Ack is the response sent back for every received envelope.
type Ack struct {
	EnvelopeID string `json:"envelope_id"`
}

// EventsAPIPayload is the payload of an events_api envelope.
type EventsAPIPayload struct {
	Type  string `json:"type"`
	Event Event  `json:"event"`
}

// Event represents a single event from the Slack Events API.
type Event struct {
	Type        string `json:"type"`
	Subtype     string `json:"subtype,omitempty"`
	ClientMsgID string `json:"client_msg_id,omitempty"`
	Text        string `json:"text,omitempty"`
	TS          string `json:"ts,omitempty"`
	ThreadTS    string `json:"thread_ts,omitempty"`
	Channel     string `json:"channel,omitempty"`
	User        string `json:"user,omitempty"`
	BotID       string `json:"bot_id,omitempty"`

	// reaction_added fields
	Reaction string `json:"reaction,omitempty"`
	ItemUser string `json:"item_user,omitempty"`
}

// Event types handled by the gateway.
const (
	EventTypeMessage       = "message"
	EventTypeReactionAdded = "reaction_added"
)

// IsUserMessage reports whether the event is a plain user message: a message
// event with no subtype (edits, joins, bot echoes all carry a subtype) and not
// authored by a bot.
func (e Event) IsUserMessage() bool {
	return e.Type == EventTypeMessage && e.Subtype == "" && e.BotID == ""
}

// ThreadKey returns the thread identifier for the event: the thread_ts when
// the message is a reply, otherwise its own ts (a top-level message starts its
// own thread).
func (e Event) ThreadKey() string {
	if e.ThreadTS != "" {
		return e.ThreadTS
	}
	return e.TS
}

// IsThreadReply reports whether the event replies to an existing thread
// rather than starting a new one.
func (e Event) IsThreadReply() bool {
	return e.ThreadTS != "" && e.ThreadTS != e.TS
}
