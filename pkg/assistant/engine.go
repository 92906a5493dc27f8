package assistant

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Engine answers a query grounded on a set of document ids. The conversation
// handle is an opaque token; passing the handle from a previous call lets the
// engine resume that conversation's memory. An empty answer with a nil error
// is a valid "no answer" signal.
type Engine interface {
	Ask(ctx context.Context, query string, documentIDs []string, conversationHandle string) (answer, handle string, err error)
}

// EngineError wraps a provider-side failure.
type EngineError struct {
	Op  string
	Err error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("assistant engine: %s: %v", e.Op, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// OpenAIEngine implements Engine on the OpenAI Assistants API. The
// conversation handle is the OpenAI thread id; document ids are attached to
// the user message for file search.
type OpenAIEngine struct {
	client       *openai.Client
	assistantID  string
	pollInterval time.Duration
}

// NewOpenAIEngine creates an engine for the given assistant.
func NewOpenAIEngine(apiKey, assistantID string) *OpenAIEngine {
	return &OpenAIEngine{
		client:       openai.NewClient(apiKey),
		assistantID:  assistantID,
		pollInterval: time.Second,
	}
}

// Ask sends the query on a new or existing thread, runs the assistant, and
// waits for the run to finish.
func (e *OpenAIEngine) Ask(ctx context.Context, query string, documentIDs []string, conversationHandle string) (string, string, error) {
	threadID := conversationHandle
	if threadID == "" {
		thread, err := e.client.CreateThread(ctx, openai.ThreadRequest{})
		if err != nil {
			return "", "", &EngineError{Op: "create thread", Err: err}
		}
		threadID = thread.ID
	}

	msgReq := openai.MessageRequest{
		Role:        string(openai.ThreadMessageRoleUser),
		Content:     query,
		Attachments: buildAttachments(documentIDs),
	}
	if _, err := e.client.CreateMessage(ctx, threadID, msgReq); err != nil {
		return "", threadID, &EngineError{Op: "create message", Err: err}
	}

	run, err := e.client.CreateRun(ctx, threadID, openai.RunRequest{
		AssistantID: e.assistantID,
	})
	if err != nil {
		return "", threadID, &EngineError{Op: "create run", Err: err}
	}

	if err := e.waitForRun(ctx, threadID, run.ID); err != nil {
		return "", threadID, err
	}

	answer, err := e.latestAssistantMessage(ctx, threadID, run.ID)
	if err != nil {
		return "", threadID, err
	}

	return answer, threadID, nil
}

// waitForRun polls the run until it reaches a terminal status.
func (e *OpenAIEngine) waitForRun(ctx context.Context, threadID, runID string) error {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		run, err := e.client.RetrieveRun(ctx, threadID, runID)
		if err != nil {
			return &EngineError{Op: "retrieve run", Err: err}
		}

		switch run.Status {
		case openai.RunStatusCompleted:
			return nil
		case openai.RunStatusFailed, openai.RunStatusCancelled, openai.RunStatusExpired, openai.RunStatusIncomplete:
			return &EngineError{Op: "run " + string(run.Status), Err: fmt.Errorf("run %s ended with status %s", runID, run.Status)}
		case openai.RunStatusRequiresAction:
			return &EngineError{Op: "run requires action", Err: fmt.Errorf("run %s requires unsupported tool action", runID)}
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return &EngineError{Op: "wait for run", Err: ctx.Err()}
		}
	}
}

// latestAssistantMessage fetches the assistant's reply for a run. Returns an
// empty string when the assistant produced no text.
func (e *OpenAIEngine) latestAssistantMessage(ctx context.Context, threadID, runID string) (string, error) {
	limit := 10
	order := "desc"
	list, err := e.client.ListMessage(ctx, threadID, &limit, &order, nil, nil, &runID)
	if err != nil {
		return "", &EngineError{Op: "list messages", Err: err}
	}

	return extractAnswer(list), nil
}

// buildAttachments maps document ids to message attachments for file search.
func buildAttachments(documentIDs []string) []openai.ThreadAttachment {
	if len(documentIDs) == 0 {
		return nil
	}

	attachments := make([]openai.ThreadAttachment, 0, len(documentIDs))
	for _, id := range documentIDs {
		if id == "" {
			continue
		}
		attachments = append(attachments, openai.ThreadAttachment{
			FileID: id,
			Tools: []openai.ThreadAttachmentTool{
				{Type: string(openai.AssistantToolTypeFileSearch)},
			},
		})
	}

	return attachments
}

// extractAnswer returns the text of the newest assistant message in the list.
func extractAnswer(list openai.MessagesList) string {
	for _, msg := range list.Messages {
		if msg.Role != string(openai.ThreadMessageRoleAssistant) {
			continue
		}
		for _, content := range msg.Content {
			if content.Text != nil {
				return content.Text.Value
			}
		}
	}

	return ""
}
