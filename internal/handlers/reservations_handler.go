package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/QiangXu1564/order-reserve-aid/internal/reservations"
	"github.com/QiangXu1564/order-reserve-aid/internal/validation"
)

func (h *Handlers) createReserva(c *gin.Context) {
	var req validation.ReservaRequest
	if err := validation.DecodeJSON(c, &req); err != nil {
		failRequest(c, err, nil)
		return
	}
	in, err := validation.NormalizeReserva(h.validator, req)
	if err != nil {
		failRequest(c, err, nil)
		return
	}

	r := reservations.New(in.CustomerName, in.CustomerPhone, in.NumberOfPeople, in.At, reservations.StatusPending, h.now())
	created, err := h.cfg.Reservations.Create(c.Request.Context(), r)
	if err != nil {
		h.logger.Error("create reservation", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to create reservation", nil)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "reservation": created})
}

func (h *Handlers) listReservations(c *gin.Context) {
	statuses, ok := statusFilter(c, reservations.Status.Valid)
	if !ok {
		fail(c, http.StatusBadRequest, "Invalid status value", nil)
		return
	}
	list, err := h.cfg.Reservations.List(c.Request.Context(), statuses...)
	if err != nil {
		h.logger.Error("list reservations", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to fetch reservations", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reservations": nonNil(list)})
}

func (h *Handlers) getReservation(c *gin.Context) {
	r, err := h.cfg.Reservations.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("get reservation", zap.String("id", c.Param("id")), zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to fetch reservation", nil)
		return
	}
	if r == nil {
		fail(c, http.StatusNotFound, "Reservation not found", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reservation": r})
}

func (h *Handlers) updateReservation(c *gin.Context) {
	var req validation.StatusRequest
	if err := validation.BindAndValidate(c, &req, h.validator); err != nil {
		failRequest(c, err, nil)
		return
	}
	status := reservations.Status(req.Status)
	if !status.Valid() {
		fail(c, http.StatusBadRequest, "Invalid status value", nil)
		return
	}

	id := c.Param("id")
	r, err := h.cfg.Reservations.UpdateStatus(c.Request.Context(), id, status)
	if errors.Is(err, reservations.ErrNotFound) {
		fail(c, http.StatusNotFound, "Reservation not found", nil)
		return
	}
	if err != nil {
		h.logger.Error("update reservation", zap.String("id", id), zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to update reservation", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "reservation": r, "message": "Reservation updated successfully"})
}

// checkAvailability answers with {available, reason|message}; errors use the
// same shape.
func (h *Handlers) checkAvailability(c *gin.Context) {
	unavailable := func(status int, reason string) {
		c.JSON(status, gin.H{"available": false, "reason": reason})
	}

	var req validation.AvailabilityRequest
	if err := validation.DecodeJSON(c, &req); err != nil {
		unavailable(http.StatusBadRequest, err.Error())
		return
	}
	in, err := validation.NormalizeAvailability(req)
	if err != nil {
		unavailable(http.StatusBadRequest, err.Error())
		return
	}
	if h.cfg.Checker == nil {
		unavailable(http.StatusInternalServerError, "Error checking availability")
		return
	}

	res, err := h.cfg.Checker.Check(c.Request.Context(), in.Date, in.Time, in.NumberOfPeople)
	if errors.Is(err, reservations.ErrBadSlot) {
		unavailable(http.StatusBadRequest, "Invalid date or time")
		return
	}
	if err != nil {
		h.logger.Error("check availability", zap.Error(err))
		unavailable(http.StatusInternalServerError, "Error checking availability")
		return
	}
	h.logger.Debug("availability checked",
		zap.String("date", in.Date),
		zap.String("time", in.Time),
		zap.Int("people", in.NumberOfPeople),
		zap.Int("reserved", res.Reserved),
		zap.Bool("available", res.Available),
	)
	c.JSON(http.StatusOK, res)
}
