package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ProxyClient reaches the agent through this service's relay endpoint, so
// clients never hold the bearer token.
type ProxyClient struct {
	endpoint string
	client   *http.Client
}

var _ Upstream = (*ProxyClient)(nil)

// NewProxyClient targets baseURL + "/leaping-ai-proxy".
func NewProxyClient(baseURL string, client *http.Client) *ProxyClient {
	if client == nil {
		client = &http.Client{}
	}
	return &ProxyClient{endpoint: strings.TrimRight(baseURL, "/") + "/leaping-ai-proxy", client: client}
}

type proxyRequest struct {
	ReservationID string `json:"reservationId"`
	Action        string `json:"action"`
	Content       string `json:"content,omitempty"`
}

func (p *ProxyClient) Connect(ctx context.Context, reservationID string) (io.ReadCloser, error) {
	resp, err := p.do(ctx, proxyRequest{ReservationID: reservationID, Action: ActionConnect})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, relayError(resp)
	}
	return resp.Body, nil
}

func (p *ProxyClient) Send(ctx context.Context, reservationID, content string) error {
	resp, err := p.do(ctx, proxyRequest{ReservationID: reservationID, Action: ActionSend, Content: content})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return relayError(resp)
	}
	return nil
}

func (p *ProxyClient) do(ctx context.Context, in proxyRequest) (*http.Response, error) {
	b, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal relay request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("build relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("relay request: %w", err)
	}
	return resp, nil
}

func relayError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err == nil && body.Error != "" {
		return fmt.Errorf("relay: %s (%d)", body.Error, resp.StatusCode)
	}
	return fmt.Errorf("relay: status %d", resp.StatusCode)
}
