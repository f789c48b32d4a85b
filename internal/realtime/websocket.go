package realtime

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/QiangXu1564/order-reserve-aid/internal/changefeed"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is open on every route
	},
}

var knownTables = map[string]bool{
	changefeed.TableOrders:       true,
	changefeed.TableReservations: true,
	changefeed.TableApprovals:    true,
}

// Handler upgrades GET /realtime?table=<t>[&event=INSERT...] to a websocket
// that streams matching change events as JSON text frames.
func (h *Hub) Handler(c *gin.Context) {
	table := c.Query("table")
	if !knownTables[table] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown or missing table"})
		return
	}
	var events []changefeed.EventType
	for _, e := range c.QueryArray("event") {
		et := changefeed.EventType(e)
		if !et.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown event type: " + e})
			return
		}
		events = append(events, et)
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sub := h.Subscribe(table, events...)
	h.logger.Info("realtime subscriber connected", zap.String("table", table))
	go h.writePump(conn, sub)
	h.readPump(conn, sub)
}

// readPump only watches for close and pongs; client frames are ignored.
func (h *Hub) readPump(conn *websocket.Conn, sub *Subscription) {
	defer func() {
		h.Unsubscribe(sub)
		conn.Close()
	}()

	conn.SetReadLimit(4 * 1024)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Info("realtime subscriber gone", zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writePump(conn *websocket.Conn, sub *Subscription) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg, ok := <-sub.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
