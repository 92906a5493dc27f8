package consumer

import (
	"math"
	"strconv"
	"time"

	"github.com/nurhq/nur/pkg/slack"
)

// QuestionEvent describes a new top-level question. ThreadTS equals TS: the
// message starts its own thread.
type QuestionEvent struct {
	Text     string
	TS       string
	ThreadTS string
	Channel  string
	User     string
}

// FeedbackEvent describes a follow-up message in an existing thread.
// ThreadTS refers to the thread's first message, not this one.
type FeedbackEvent struct {
	Text     string
	TS       string
	ThreadTS string
	Channel  string
	User     string
}

// questionFromEvent builds a QuestionEvent from a raw message event.
func questionFromEvent(ev slack.Event) QuestionEvent {
	return QuestionEvent{
		Text:     ev.Text,
		TS:       ev.TS,
		ThreadTS: ev.ThreadKey(),
		Channel:  ev.Channel,
		User:     ev.User,
	}
}

// feedbackFromEvent builds a FeedbackEvent from a raw message event.
func feedbackFromEvent(ev slack.Event) FeedbackEvent {
	return FeedbackEvent{
		Text:     ev.Text,
		TS:       ev.TS,
		ThreadTS: ev.ThreadTS,
		Channel:  ev.Channel,
		User:     ev.User,
	}
}

// parseSlackTS converts a Slack message timestamp ("1700000000.123456") to a
// time.Time. Returns the zero time for unparsable input.
func parseSlackTS(ts string) time.Time {
	f, err := strconv.ParseFloat(ts, 64)
	if err != nil {
		return time.Time{}
	}

	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9))
}
