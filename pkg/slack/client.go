package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultAPIURL = "https://slack.com/api"

// Client is a minimal Slack Web API client covering the calls the bot needs.
type Client struct {
	baseURL    string
	botToken   string
	appToken   string
	httpClient *http.Client
}

// NewClient creates a new Slack Web API client. botToken authenticates Web
// API calls, appToken authenticates the Socket Mode handshake.
func NewClient(botToken, appToken string) *Client {
	return &Client{
		baseURL:  defaultAPIURL,
		botToken: botToken,
		appToken: appToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewClientWithBaseURL creates a client against a non-default API endpoint.
// Used in tests against a local HTTP server.
func NewClientWithBaseURL(botToken, appToken, baseURL string) *Client {
	c := NewClient(botToken, appToken)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// apiResponse is the common envelope of every Web API response.
type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// postMessageRequest is the body of a chat.postMessage call.
type postMessageRequest struct {
	Channel  string `json:"channel"`
	Text     string `json:"text"`
	ThreadTS string `json:"thread_ts,omitempty"`
}

// postMessageResponse is the response of a chat.postMessage call.
type postMessageResponse struct {
	apiResponse
	TS string `json:"ts"`
}

// connectionsOpenResponse is the response of an apps.connections.open call.
type connectionsOpenResponse struct {
	apiResponse
	URL string `json:"url"`
}

// PostMessage posts text to a channel, threaded under threadTS, and returns
// the platform message id (ts) of the posted message.
func (c *Client) PostMessage(ctx context.Context, channel, text, threadTS string) (string, error) {
	req := postMessageRequest{
		Channel:  channel,
		Text:     text,
		ThreadTS: threadTS,
	}

	var resp postMessageResponse
	if err := c.callJSON(ctx, "chat.postMessage", c.botToken, req, &resp); err != nil {
		return "", err
	}
	if !resp.OK {
		return "", fmt.Errorf("chat.postMessage failed: %s", resp.Error)
	}

	return resp.TS, nil
}

// OpenSocketModeURL requests a fresh Socket Mode websocket URL.
func (c *Client) OpenSocketModeURL(ctx context.Context) (string, error) {
	var resp connectionsOpenResponse
	if err := c.callJSON(ctx, "apps.connections.open", c.appToken, nil, &resp); err != nil {
		return "", err
	}
	if !resp.OK {
		return "", fmt.Errorf("apps.connections.open failed: %s", resp.Error)
	}
	if _, err := url.Parse(resp.URL); err != nil {
		return "", fmt.Errorf("invalid socket mode url: %w", err)
	}

	return resp.URL, nil
}

// AuthTest verifies the bot token and returns the bot's own user id.
func (c *Client) AuthTest(ctx context.Context) (string, error) {
	var resp struct {
		apiResponse
		UserID string `json:"user_id"`
	}
	if err := c.callJSON(ctx, "auth.test", c.botToken, nil, &resp); err != nil {
		return "", err
	}
	if !resp.OK {
		return "", fmt.Errorf("auth.test failed: %s", resp.Error)
	}

	return resp.UserID, nil
}

// callJSON performs a POST to a Web API method and decodes the response.
func (c *Client) callJSON(ctx context.Context, method, token string, reqBody, out interface{}) error {
	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/"+method, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(data))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
