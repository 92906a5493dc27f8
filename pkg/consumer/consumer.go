package consumer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/nurhq/nur/pkg/assistant"
	"github.com/nurhq/nur/pkg/queue"
	"github.com/nurhq/nur/pkg/retrieval"
	"github.com/nurhq/nur/pkg/store"
)

// Poster posts a reply into a channel thread. Satisfied by *slack.Client.
type Poster interface {
	PostMessage(ctx context.Context, channel, text, threadTS string) (string, error)
}

// Consumer drives question and feedback events through retrieval, the
// assistant engine, and the durable stores. It owns all writes to the ledger
// and the interaction store.
//
// Write order is deliberate: the ledger entry goes in before the interaction.
// A crash in between loses the interaction but can never produce a second
// answer for the same message.
type Consumer struct {
	ledger       store.Ledger
	interactions store.InteractionStore
	retriever    retrieval.Retriever
	engine       assistant.Engine
	poster       Poster
}

// New creates a consumer.
func New(
	ledger store.Ledger,
	interactions store.InteractionStore,
	retriever retrieval.Retriever,
	engine assistant.Engine,
	poster Poster,
) *Consumer {
	return &Consumer{
		ledger:       ledger,
		interactions: interactions,
		retriever:    retriever,
		engine:       engine,
		poster:       poster,
	}
}

// Run pulls messages from the queue until the context is cancelled or the
// queue closes. Multiple Run loops may share one queue; the ledger's unique
// constraint resolves races between them.
func (c *Consumer) Run(ctx context.Context, q queue.Consumer) {
	for {
		msg, ok := q.Consume(ctx)
		if !ok {
			return
		}
		c.handle(ctx, msg)
	}
}

// handle routes one queued message. Errors are terminal for the event, never
// for the loop.
func (c *Consumer) handle(ctx context.Context, msg queue.Message) {
	switch msg.Kind {
	case queue.KindMessage:
		ev := msg.Event
		if ev.IsThreadReply() {
			c.ProcessFeedback(ctx, feedbackFromEvent(ev))
		} else {
			c.ProcessQuestion(ctx, questionFromEvent(ev))
		}

	case queue.KindReaction:
		// Reactions are published without dedup; receipt is logged only.
		log.Printf("Reaction %q on message %s in %s by %s",
			msg.Event.Reaction, msg.Event.TS, msg.Event.Channel, msg.Event.User)

	default:
		log.Printf("Unknown queue message kind %q, dropping", msg.Kind)
	}
}

// ProcessQuestion answers a new top-level question. Failures abort the event
// silently: no ledger entry, no interaction, no reply.
func (c *Consumer) ProcessQuestion(ctx context.Context, ev QuestionEvent) {
	if c.alreadyHandled(ctx, ev.Channel, ev.TS) {
		return
	}

	docIDs, err := c.retriever.RetrieveRelevant(ctx, ev.Text)
	if err != nil {
		log.Printf("Question %s/%s: retrieval failed: %v", ev.Channel, ev.TS, err)
		return
	}

	answer, handle, err := c.engine.Ask(ctx, ev.Text, docIDs, "")
	if err != nil {
		log.Printf("Question %s/%s: assistant failed: %v", ev.Channel, ev.TS, err)
		return
	}
	if answer == "" {
		log.Printf("Question %s/%s: empty answer, not replying", ev.Channel, ev.TS)
		return
	}

	// Ledger first: a crash before the interaction write loses the record
	// but prevents a duplicate answer on redelivery.
	if err := c.ledger.Record(ctx, ev.Channel, ev.TS); err != nil {
		if errors.Is(err, store.ErrAlreadyRecorded) {
			log.Printf("Question %s/%s already handled elsewhere, skipping reply", ev.Channel, ev.TS)
		} else {
			log.Printf("Question %s/%s: failed to record dedup entry: %v", ev.Channel, ev.TS, err)
		}
		return
	}

	interaction := store.Interaction{
		ThreadID:          ev.TS,
		QuestionText:      ev.Text,
		AnswerText:        answer,
		ChannelID:         ev.Channel,
		AssistantThreadID: handle,
		QuestionTS:        parseSlackTS(ev.TS),
		AnswerTS:          time.Now(),
	}
	if err := c.interactions.Create(ctx, interaction); err != nil {
		log.Printf("Question %s/%s: failed to store interaction: %v", ev.Channel, ev.TS, err)
		return
	}

	if _, err := c.poster.PostMessage(ctx, ev.Channel, answer, ev.TS); err != nil {
		// Ledger and interaction stay; a persisted record without a
		// delivered reply is an accepted outcome.
		log.Printf("Question %s/%s: failed to post reply: %v", ev.Channel, ev.TS, err)
	}
}

// ProcessFeedback answers a follow-up in an existing thread. Feedback on an
// unknown thread is a silent no-op.
func (c *Consumer) ProcessFeedback(ctx context.Context, ev FeedbackEvent) {
	if c.alreadyHandled(ctx, ev.Channel, ev.TS) {
		return
	}

	interaction, err := c.interactions.GetByThreadID(ctx, ev.ThreadTS)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Printf("Feedback %s/%s: no interaction for thread %s, ignoring", ev.Channel, ev.TS, ev.ThreadTS)
		} else {
			log.Printf("Feedback %s/%s: failed to look up thread %s: %v", ev.Channel, ev.TS, ev.ThreadTS, err)
		}
		return
	}

	// The extended query drives document retrieval only; the engine gets the
	// bare feedback text plus its own memory of the thread.
	extended := extendedContextQuery(ev.Text, interaction)
	docIDs, err := c.retriever.RetrieveRelevant(ctx, extended)
	if err != nil {
		log.Printf("Feedback %s/%s: retrieval failed: %v", ev.Channel, ev.TS, err)
		return
	}

	answer, _, err := c.engine.Ask(ctx, ev.Text, docIDs, interaction.AssistantThreadID)
	if err != nil {
		log.Printf("Feedback %s/%s: assistant failed: %v", ev.Channel, ev.TS, err)
		return
	}
	if answer == "" {
		log.Printf("Feedback %s/%s: empty answer, not replying", ev.Channel, ev.TS)
		return
	}

	if err := c.ledger.Record(ctx, ev.Channel, ev.TS); err != nil {
		if errors.Is(err, store.ErrAlreadyRecorded) {
			log.Printf("Feedback %s/%s already handled elsewhere, skipping reply", ev.Channel, ev.TS)
		} else {
			log.Printf("Feedback %s/%s: failed to record dedup entry: %v", ev.Channel, ev.TS, err)
		}
		return
	}

	comment := store.Comment{
		ID:                uuid.New().String(),
		Text:              ev.Text,
		User:              ev.User,
		Timestamp:         time.Now(),
		AssistantResponse: answer,
	}
	if err := c.interactions.AppendComment(ctx, ev.ThreadTS, comment); err != nil {
		// Best-effort persistence: the comment is lost but the user still
		// gets the answer.
		log.Printf("Feedback %s/%s: failed to append comment: %v", ev.Channel, ev.TS, err)
	}

	if _, err := c.poster.PostMessage(ctx, ev.Channel, answer, ev.ThreadTS); err != nil {
		log.Printf("Feedback %s/%s: failed to post reply: %v", ev.Channel, ev.TS, err)
	}
}

// alreadyHandled is the cheap pre-check before any slow external call. The
// durable unique constraint in Record remains the correctness backstop; a
// failed pre-check never blocks processing.
func (c *Consumer) alreadyHandled(ctx context.Context, channelID, messageTS string) bool {
	exists, err := c.ledger.Exists(ctx, channelID, messageTS)
	if err != nil {
		log.Printf("Dedup pre-check failed for %s/%s: %v", channelID, messageTS, err)
		return false
	}
	if exists {
		log.Printf("Message %s/%s already processed, skipping", channelID, messageTS)
	}
	return exists
}

// extendedContextQuery combines the feedback with the original exchange so
// the retriever sees the whole conversation, not just the follow-up.
func extendedContextQuery(feedbackText string, in *store.Interaction) string {
	return fmt.Sprintf("Follow up: %s, Initial question: %s, Initial answer: %s",
		feedbackText, in.QuestionText, in.AnswerText)
}
