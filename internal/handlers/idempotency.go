package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/QiangXu1564/order-reserve-aid/internal/idempotency"
)

const (
	idempotencyHeader = "Idempotency-Key"
	jsonContentType   = "application/json; charset=utf-8"
)

// result is what a creation step wants sent back.
type result struct {
	status  int
	body    gin.H
	orderID string
}

// scopedKey ties a client key to the route it was first sent to, so the same
// key on another create route never replays a differently shaped body.
func scopedKey(route, key string) string {
	return route + " " + key
}

// once runs create at most once per Idempotency-Key and route. Without the header, or
// without a recorder, create simply runs. Validation must already be done:
// a 5xx result marks the key FAILED, anything else stores the response for
// replay.
func (h *Handlers) once(c *gin.Context, create func(ctx context.Context) result) {
	ctx := c.Request.Context()
	key := c.GetHeader(idempotencyHeader)
	if key == "" || h.cfg.Idempotency == nil {
		res := create(ctx)
		c.JSON(res.status, res.body)
		return
	}
	store := h.cfg.Idempotency
	log := h.logger.With(zap.String("idempotency_key", key), zap.String("route", c.FullPath()))
	key = scopedKey(c.FullPath(), key)

	created, err := store.Claim(ctx, key)
	if err != nil {
		log.Error("idempotency claim failed", zap.Error(err))
		fail(c, http.StatusInternalServerError, "idempotency_check_failed", nil)
		return
	}
	if !created {
		h.replay(c, key)
		return
	}

	res := create(ctx)
	body, err := json.Marshal(res.body)
	if err != nil {
		if merr := store.Fail(ctx, key, fmt.Sprintf("encode_response: %v", err)); merr != nil {
			log.Warn("record idempotency failure", zap.Error(merr))
		}
		fail(c, http.StatusInternalServerError, "encode_response_failed", nil)
		return
	}

	if res.status >= http.StatusInternalServerError {
		if merr := store.Fail(ctx, key, fmt.Sprintf("create_failed: %d", res.status)); merr != nil {
			log.Warn("record idempotency failure", zap.Error(merr))
		}
	} else if merr := store.Complete(ctx, key, res.orderID, string(body), res.status); merr != nil {
		log.Warn("record idempotency response", zap.Error(merr))
	}
	c.Data(res.status, jsonContentType, body)
}

// replay answers a repeated key from its stored record.
func (h *Handlers) replay(c *gin.Context, key string) {
	rec, err := h.cfg.Idempotency.Get(c.Request.Context(), key)
	if err != nil {
		h.logger.Error("idempotency lookup failed", zap.String("idempotency_key", key), zap.Error(err))
		fail(c, http.StatusInternalServerError, "idempotency_check_failed", nil)
		return
	}
	if rec == nil {
		// expired between the claim and the lookup
		fail(c, http.StatusConflict, "idempotency_key_expired", nil)
		return
	}

	switch rec.Status {
	case idempotency.StatusDone:
		if rec.ResponseBody != "" && json.Valid([]byte(rec.ResponseBody)) {
			c.Data(rec.ResponseStatus, jsonContentType, []byte(rec.ResponseBody))
			return
		}
		c.JSON(http.StatusOK, gin.H{"order_id": rec.OrderID})
	case idempotency.StatusInProgress:
		c.JSON(http.StatusAccepted, gin.H{"message": "request already in progress", "order_id": rec.OrderID})
	case idempotency.StatusFailed:
		fail(c, http.StatusInternalServerError, "previous_attempt_failed", gin.H{"order_id": rec.OrderID})
	default:
		fail(c, http.StatusInternalServerError, "unknown_idempotency_status", nil)
	}
}
