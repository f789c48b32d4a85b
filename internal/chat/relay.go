// Package chat talks to the conversational agent API: Relay forwards the
// stream and user messages, Session consumes the stream for one conversation.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// ErrNotConfigured is returned by NewRelay when a setting is missing.
var ErrNotConfigured = errors.New("chat relay not configured")

// StatusError is an upstream non-2xx answer.
type StatusError struct {
	Action string
	Code   int
}

func (e *StatusError) Error() string {
	if e.Action == ActionSend {
		return "error sending message"
	}
	return fmt.Sprintf("connection error: %d", e.Code)
}

const (
	ActionConnect = "connect"
	ActionSend    = "send"
)

// Upstream opens a conversation stream and posts user messages. Relay and
// ProxyClient both implement it.
type Upstream interface {
	Connect(ctx context.Context, reservationID string) (io.ReadCloser, error)
	Send(ctx context.Context, reservationID, content string) error
}

type Config struct {
	BaseURL     string
	AgentID     string
	BearerToken string
	// HTTPClient defaults to a client without timeout; streams are bounded by
	// the request context instead.
	HTTPClient *http.Client
}

// Relay calls the agent API directly with the server-side bearer token.
type Relay struct {
	cfg    Config
	client *http.Client
}

var _ Upstream = (*Relay)(nil)

func NewRelay(cfg Config) (*Relay, error) {
	if cfg.BaseURL == "" || cfg.AgentID == "" || cfg.BearerToken == "" {
		return nil, ErrNotConfigured
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &Relay{cfg: cfg, client: client}, nil
}

// Endpoint is the conversation URL for a reservation.
func (r *Relay) Endpoint(reservationID string) string {
	return fmt.Sprintf("%s/%s?end_user_id=%s", r.cfg.BaseURL, r.cfg.AgentID, url.QueryEscape("reservation_"+reservationID))
}

// Connect opens the event stream. The caller owns the returned body.
func (r *Relay) Connect(ctx context.Context, reservationID string) (io.ReadCloser, error) {
	resp, err := r.post(ctx, reservationID, map[string]any{}, "text/event-stream")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &StatusError{Action: ActionConnect, Code: resp.StatusCode}
	}
	return resp.Body, nil
}

// Send posts a user message into the conversation.
func (r *Relay) Send(ctx context.Context, reservationID, content string) error {
	resp, err := r.post(ctx, reservationID, map[string]any{"type": "user_message", "content": content}, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Action: ActionSend, Code: resp.StatusCode}
	}
	return nil
}

func (r *Relay) post(ctx context.Context, reservationID string, body any, accept string) (*http.Response, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.Endpoint(reservationID), bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.cfg.BearerToken)
	req.Header.Set("Content-Type", "application/json")
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agent request: %w", err)
	}
	return resp, nil
}
