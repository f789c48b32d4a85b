// Package handlers exposes the back-office HTTP API on a gin engine.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/QiangXu1564/order-reserve-aid/internal/approvals"
	"github.com/QiangXu1564/order-reserve-aid/internal/chat"
	"github.com/QiangXu1564/order-reserve-aid/internal/idempotency"
	"github.com/QiangXu1564/order-reserve-aid/internal/middleware"
	"github.com/QiangXu1564/order-reserve-aid/internal/orders"
	"github.com/QiangXu1564/order-reserve-aid/internal/realtime"
	"github.com/QiangXu1564/order-reserve-aid/internal/reservations"
	"github.com/QiangXu1564/order-reserve-aid/internal/validation"
)

// HandlerConfig groups dependencies for the API handlers.
type HandlerConfig struct {
	Orders       orders.Repository
	Reservations reservations.Repository
	Approvals    approvals.Repository
	Checker      *reservations.Checker

	// Idempotency is optional; without it the Idempotency-Key header is ignored.
	Idempotency idempotency.Recorder
	// Relay is nil when the agent API is not configured.
	Relay chat.Upstream
	// Hub serves GET /realtime when set.
	Hub *realtime.Hub
	// Limiter guards the public creation routes and the relay when set.
	Limiter *middleware.RateLimiter

	// BufferStreams disables per-read flushing for writers that cannot
	// flush, such as the API Gateway adapter.
	BufferStreams bool

	Logger *zap.Logger
	Now    func() time.Time
}

// Handlers serves every route registered by Register.
type Handlers struct {
	cfg       HandlerConfig
	validator *validatorv10.Validate
	logger    *zap.Logger
	now       func() time.Time
}

func New(cfg HandlerConfig) *Handlers {
	h := &Handlers{
		cfg:       cfg,
		validator: validation.New(),
		logger:    cfg.Logger,
		now:       cfg.Now,
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

// location is the restaurant timezone.
func (h *Handlers) location() *time.Location {
	if h.cfg.Checker != nil {
		return h.cfg.Checker.Location()
	}
	return time.UTC
}

// Register mounts the API on r. Known paths answer 405 for other methods.
func (h *Handlers) Register(r *gin.Engine) {
	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		fail(c, http.StatusMethodNotAllowed, "Method not allowed", nil)
	})

	limited := []gin.HandlerFunc{}
	if h.cfg.Limiter != nil {
		limited = append(limited, h.cfg.Limiter.Handler())
	}
	with := func(hf gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, limited...), hf)
	}

	r.GET("/orders", h.listOrders)
	r.GET("/orders/:id", h.getOrder)
	r.POST("/orders", with(h.createOrder)...)
	r.PATCH("/orders/:id", h.updateOrder)
	r.DELETE("/orders/:id", h.deleteOrder)
	r.POST("/create-order", with(h.createOrderPublic)...)
	r.POST("/pedidos", with(h.createPedido)...)

	r.POST("/reservas", with(h.createReserva)...)
	r.GET("/reservations", h.listReservations)
	r.GET("/reservations/:id", h.getReservation)
	r.PATCH("/reservations/:id", h.updateReservation)
	r.POST("/check-reservation-availability", h.checkAvailability)

	r.POST("/request-reservation-approval", with(h.requestApproval)...)
	r.POST("/check-approval-status", h.checkApprovalStatus)
	r.GET("/reservation-approvals", h.listApprovals)
	r.PATCH("/reservation-approvals/:id", h.respondApproval)

	r.POST("/leaping-ai-proxy", with(h.relay)...)

	if h.cfg.Hub != nil {
		r.GET("/realtime", h.cfg.Hub.Handler)
	}
}

// fail writes an error body. extra carries the route's null placeholders.
func fail(c *gin.Context, status int, msg string, extra gin.H) {
	body := gin.H{"error": msg, "success": false}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(status, body)
}

// failRequest writes a validation failure, or 500 for anything else.
func failRequest(c *gin.Context, err error, extra gin.H) {
	var re *validation.RequestError
	if errors.As(err, &re) {
		fail(c, re.Status, re.Message, extra)
		return
	}
	fail(c, http.StatusInternalServerError, err.Error(), extra)
}

// statusFilter reads repeated ?status= values. ok is false when one is
// not accepted by valid.
func statusFilter[S ~string](c *gin.Context, valid func(S) bool) ([]S, bool) {
	var out []S
	for _, raw := range c.QueryArray("status") {
		s := S(raw)
		if !valid(s) {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// nonNil keeps empty lists encoded as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
