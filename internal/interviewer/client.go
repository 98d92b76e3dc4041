// Package interviewer wraps the remote conversational interview service.
// The service holds a stateful thread; the engine passes the thread id back
// on every call and otherwise treats it as opaque.
package interviewer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prepflow/prepflow/internal/interview"
)

const defaultTimeout = 45 * time.Second

// Client communicates with the remote interview service.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an interview client with the given API key and base URL.
func NewClient(apiKey, baseURL string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// Start opens a new conversation thread and returns the first question.
func (c *Client) Start(ctx context.Context, ictx interview.Context) (TurnResponse, error) {
	return c.turn(ctx, request{
		Action:           "start",
		Messages:         []Message{},
		InterviewContext: ictx,
	})
}

// Respond submits the candidate's answer and returns the next turn. When the
// response signals completion the caller should follow with End.
func (c *Client) Respond(ctx context.Context, threadID, answer string, messages []Message, ictx interview.Context) (TurnResponse, error) {
	return c.turn(ctx, request{
		Action:           "respond",
		ThreadID:         threadID,
		Message:          answer,
		Messages:         messages,
		InterviewContext: ictx,
	})
}

// End closes the thread and returns the service's final evaluation of the
// messages exchanged so far.
func (c *Client) End(ctx context.Context, threadID string, messages []Message, ictx interview.Context) (Evaluation, error) {
	raw, err := c.do(ctx, request{
		Action:           "end",
		ThreadID:         threadID,
		Messages:         messages,
		InterviewContext: ictx,
	})
	if err != nil {
		return Evaluation{}, err
	}

	eval := Evaluation{Raw: raw}
	// Evaluation shape is service-defined; recognized fields are best-effort.
	if err := json.Unmarshal(raw, &eval); err != nil {
		return Evaluation{}, fmt.Errorf("decoding evaluation: %w", err)
	}
	return eval, nil
}

func (c *Client) turn(ctx context.Context, req request) (TurnResponse, error) {
	raw, err := c.do(ctx, req)
	if err != nil {
		return TurnResponse{}, err
	}

	var turn TurnResponse
	if err := json.Unmarshal(raw, &turn); err != nil {
		return TurnResponse{}, fmt.Errorf("decoding %s response: %w", req.Action, err)
	}
	if turn.ThreadID == "" {
		return TurnResponse{}, fmt.Errorf("%s response missing threadId", req.Action)
	}

	// Question text sometimes arrives wrapped in a structured envelope;
	// unwrap is best-effort with the raw text as fallback.
	turn.Question = UnwrapQuestion(turn.Question)
	return turn, nil
}

func (c *Client) do(ctx context.Context, req request) (json.RawMessage, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s request: %w", req.Action, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/interview", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("executing %s request: %w", req.Action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", req.Action, err)
	}
	return raw, nil
}
