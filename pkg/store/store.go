package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrAlreadyRecorded is returned by Ledger.Record when the
	// (channel, message timestamp) pair was recorded before. Callers treat it
	// as "already handled", never as a failure.
	ErrAlreadyRecorded = errors.New("message already recorded")

	// ErrNotFound is returned when no interaction exists for a thread id.
	ErrNotFound = errors.New("interaction not found")
)

// Comment is one feedback turn appended to an interaction. Comments are
// append-only: once written they are never edited or removed.
type Comment struct {
	ID                string    `json:"id"`
	Text              string    `json:"text"`
	User              string    `json:"user"`
	Timestamp         time.Time `json:"timestamp"`
	AssistantResponse string    `json:"assistant_response"`
}

// Interaction is one answered question and its follow-up feedback, keyed by
// the thread id of the originating message.
type Interaction struct {
	ThreadID          string    `json:"thread_id"`
	QuestionText      string    `json:"question_text"`
	AnswerText        string    `json:"answer_text"`
	ChannelID         string    `json:"channel_id"`
	AssistantThreadID string    `json:"assistant_thread_id"`
	QuestionTS        time.Time `json:"question_ts"`
	AnswerTS          time.Time `json:"answer_ts"`
	Comments          []Comment `json:"comments"`
}

// Ledger is the durable at-most-once-processing guard. Entries are
// write-once: never updated, never deleted.
//
// A ledger entry means the event was attempted; an interaction means it
// succeeded.
type Ledger interface {
	// Exists reports whether the pair was recorded before.
	Exists(ctx context.Context, channelID, messageTS string) (bool, error)

	// Record marks the pair as processed. Returns ErrAlreadyRecorded when
	// the pair is present; uniqueness is enforced by the storage engine, so
	// concurrent racers get exactly one success.
	Record(ctx context.Context, channelID, messageTS string) error
}

// InteractionStore persists question/answer threads.
type InteractionStore interface {
	// Create stores a new interaction keyed by its thread id.
	Create(ctx context.Context, in Interaction) error

	// GetByThreadID returns the interaction for a thread id, or ErrNotFound.
	GetByThreadID(ctx context.Context, threadID string) (*Interaction, error)

	// AppendComment appends a comment to an existing interaction. A missing
	// thread id is a warned no-op, not an error. Safe for concurrent use;
	// concurrent appends to the same thread may interleave but none is lost.
	AppendComment(ctx context.Context, threadID string, c Comment) error

	// List returns all stored interactions, newest first.
	List(ctx context.Context) ([]Interaction, error)
}
