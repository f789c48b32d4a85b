package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/QiangXu1564/order-reserve-aid/internal/changefeed"
)

func event(t *testing.T, table string, typ changefeed.EventType) changefeed.Event {
	t.Helper()
	ev, err := changefeed.NewEvent(table, typ, map[string]string{"id": "x"}, nil, time.Now())
	require.NoError(t, err)
	return ev
}

func TestHub_FiltersByTableAndEvent(t *testing.T) {
	h := NewHub(nil)
	all := h.Subscribe(changefeed.TableOrders)
	inserts := h.Subscribe(changefeed.TableOrders, changefeed.Insert)
	other := h.Subscribe(changefeed.TableReservations)

	require.NoError(t, h.Notify(context.Background(), event(t, changefeed.TableOrders, changefeed.Update)))
	require.NoError(t, h.Notify(context.Background(), event(t, changefeed.TableOrders, changefeed.Insert)))

	assert.Len(t, all.C, 2)
	assert.Len(t, inserts.C, 1)
	assert.Len(t, other.C, 0)

	var got changefeed.Event
	require.NoError(t, json.Unmarshal(<-inserts.C, &got))
	assert.Equal(t, changefeed.Insert, got.Type)
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub(nil)
	h.buffer = 1
	sub := h.Subscribe(changefeed.TableApprovals)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			_ = h.Notify(context.Background(), event(t, changefeed.TableApprovals, changefeed.Insert))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Notify blocked on a full subscriber")
	}
	assert.Len(t, sub.C, 1)
}

func TestHub_UnsubscribeClosesOnce(t *testing.T) {
	h := NewHub(nil)
	sub := h.Subscribe(changefeed.TableOrders)
	assert.Equal(t, 1, h.Len())

	h.Unsubscribe(sub)
	h.Unsubscribe(sub)
	_, open := <-sub.C
	assert.False(t, open)
	assert.Equal(t, 0, h.Len())

	require.NoError(t, h.Notify(context.Background(), event(t, changefeed.TableOrders, changefeed.Insert)))
}

func TestHandler_StreamsEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHub(nil)
	r := gin.New()
	r.GET("/realtime", h.Handler)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/realtime?table=orders&event=INSERT"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return h.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, h.Notify(context.Background(), event(t, changefeed.TableOrders, changefeed.Delete)))
	require.NoError(t, h.Notify(context.Background(), event(t, changefeed.TableOrders, changefeed.Insert)))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var got changefeed.Event
	require.NoError(t, json.Unmarshal(msg, &got))
	assert.Equal(t, changefeed.Insert, got.Type)

	conn.Close()
	require.Eventually(t, func() bool { return h.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHandler_RejectsBadQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHub(nil)
	r := gin.New()
	r.GET("/realtime", h.Handler)

	for _, q := range []string{"", "?table=users", "?table=orders&event=TRUNCATE"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/realtime"+q, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}
