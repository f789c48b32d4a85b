package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/QiangXu1564/order-reserve-aid/internal/chat"
)

type fakeUpstream struct {
	stream     string
	connectErr error
	sendErr    error

	sentTo, sent string
}

func (f *fakeUpstream) Connect(ctx context.Context, reservationID string) (io.ReadCloser, error) {
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	return io.NopCloser(strings.NewReader(f.stream)), nil
}

func (f *fakeUpstream) Send(ctx context.Context, reservationID, content string) error {
	f.sentTo, f.sent = reservationID, content
	return f.sendErr
}

func relayAPI(t *testing.T, up chat.Upstream) *testAPI {
	return newTestAPI(t, func(cfg *HandlerConfig) { cfg.Relay = up })
}

func TestRelay_Connect(t *testing.T) {
	stream := "data: {\"type\":\"chat_message\",\"sender\":\"bot\",\"content\":\"Hola\"}\n\ndata: [DONE]\n\n"
	api := relayAPI(t, &fakeUpstream{stream: stream})

	rec := api.do(http.MethodPost, "/leaping-ai-proxy", map[string]any{"reservationId": "r1", "action": "connect"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, stream, rec.Body.String())
	assert.True(t, rec.Flushed)
}

func TestRelay_ConnectError(t *testing.T) {
	api := relayAPI(t, &fakeUpstream{connectErr: &chat.StatusError{Action: chat.ActionConnect, Code: 401}})

	rec := api.do(http.MethodPost, "/leaping-ai-proxy", map[string]any{"reservationId": "r1", "action": "connect"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "connection error: 401", decode(t, rec)["error"])
}

func TestRelay_Send(t *testing.T) {
	up := &fakeUpstream{}
	api := relayAPI(t, up)

	rec := api.do(http.MethodPost, "/leaping-ai-proxy", map[string]any{"reservationId": "r1", "action": "send", "content": "Mesa para 4"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
	assert.Equal(t, "r1", up.sentTo)
	assert.Equal(t, "Mesa para 4", up.sent)

	up.sendErr = errors.New("502")
	rec = api.do(http.MethodPost, "/leaping-ai-proxy", map[string]any{"reservationId": "r1", "action": "send", "content": "hi"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "error sending message", decode(t, rec)["error"])
}

func TestRelay_InvalidAction(t *testing.T) {
	api := relayAPI(t, &fakeUpstream{})

	rec := api.do(http.MethodPost, "/leaping-ai-proxy", map[string]any{"reservationId": "r1", "action": "dance"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid action", decode(t, rec)["error"])
}

func TestRelay_NotConfigured(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodPost, "/leaping-ai-proxy", map[string]any{"reservationId": "r1", "action": "connect"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Server configuration error", decode(t, rec)["error"])
}
