package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/QiangXu1564/order-reserve-aid/internal/chat"
	"github.com/QiangXu1564/order-reserve-aid/internal/metrics"
	"github.com/QiangXu1564/order-reserve-aid/internal/validation"
)

type relayRequest struct {
	ReservationID string `json:"reservationId"`
	Action        string `json:"action"`
	Content       string `json:"content"`
}

// relay serves POST /leaping-ai-proxy.
func (h *Handlers) relay(c *gin.Context) {
	var req relayRequest
	if err := validation.DecodeJSON(c, &req); err != nil {
		failRequest(c, err, nil)
		return
	}
	if h.cfg.Relay == nil {
		h.logger.Error("chat relay is not configured")
		fail(c, http.StatusInternalServerError, "Server configuration error", nil)
		return
	}

	switch req.Action {
	case chat.ActionConnect:
		h.relayStream(c, req.ReservationID)
	case chat.ActionSend:
		if err := h.cfg.Relay.Send(c.Request.Context(), req.ReservationID, req.Content); err != nil {
			metrics.RecordRelay(chat.ActionSend, "error")
			h.logger.Warn("relay send failed", zap.String("reservation_id", req.ReservationID), zap.Error(err))
			fail(c, http.StatusInternalServerError, "error sending message", nil)
			return
		}
		metrics.RecordRelay(chat.ActionSend, "ok")
		c.JSON(http.StatusOK, gin.H{"success": true})
	default:
		fail(c, http.StatusBadRequest, "Invalid action", nil)
	}
}

// relayStream copies the agent's event stream to the client as it arrives.
func (h *Handlers) relayStream(c *gin.Context, reservationID string) {
	ctx := c.Request.Context()
	log := h.logger.With(zap.String("reservation_id", reservationID))

	body, err := h.cfg.Relay.Connect(ctx, reservationID)
	if err != nil {
		metrics.RecordRelay(chat.ActionConnect, "error")
		log.Warn("relay connect failed", zap.Error(err))
		msg := "connection error"
		var se *chat.StatusError
		if errors.As(err, &se) {
			msg = se.Error()
		}
		fail(c, http.StatusInternalServerError, msg, nil)
		return
	}
	defer body.Close()
	metrics.RecordRelay(chat.ActionConnect, "ok")

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()

	buf := make([]byte, 4096)
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			if _, werr := c.Writer.Write(buf[:n]); werr != nil {
				log.Debug("relay client went away", zap.Error(werr))
				return
			}
			if !h.cfg.BufferStreams {
				c.Writer.Flush()
			}
		}
		if rerr != nil {
			if !errors.Is(rerr, io.EOF) && ctx.Err() == nil {
				log.Warn("relay stream ended with error", zap.Error(rerr))
			}
			return
		}
	}
}
