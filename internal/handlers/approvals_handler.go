package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/QiangXu1564/order-reserve-aid/internal/approvals"
	"github.com/QiangXu1564/order-reserve-aid/internal/reservations"
	"github.com/QiangXu1564/order-reserve-aid/internal/validation"
)

// requestApproval serves POST /request-reservation-approval. Errors carry
// approvalId: null.
func (h *Handlers) requestApproval(c *gin.Context) {
	nullID := gin.H{"approvalId": nil}

	var req validation.ApprovalRequest
	if err := validation.DecodeJSON(c, &req); err != nil {
		failRequest(c, err, nullID)
		return
	}
	in, err := validation.NormalizeApproval(h.validator, req, h.now().In(h.location()))
	if err != nil {
		failRequest(c, err, nullID)
		return
	}

	a := approvals.New(in.CustomerName, in.CustomerPhone, in.Date, in.Time, in.NumberOfPeople, in.ConversationID, h.now())
	created, err := h.cfg.Approvals.Create(c.Request.Context(), a)
	if err != nil {
		h.logger.Error("create approval", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to create approval request", nullID)
		return
	}
	h.logger.Info("approval requested", zap.String("approval_id", created.ID), zap.Int("people", created.NumberOfPeople))
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"approvalId": created.ID,
		"message":    "Approval request created. Please wait for staff confirmation.",
	})
}

// checkApprovalStatus serves POST /check-approval-status. Errors carry
// status: "error".
func (h *Handlers) checkApprovalStatus(c *gin.Context) {
	errStatus := gin.H{"status": "error"}

	var req validation.ApprovalStatusRequest
	if err := validation.BindAndValidate(c, &req, h.validator); err != nil {
		failRequest(c, err, errStatus)
		return
	}
	a, err := h.cfg.Approvals.Get(c.Request.Context(), req.ApprovalID)
	if err != nil {
		h.logger.Error("get approval", zap.String("id", req.ApprovalID), zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to fetch approval status", errStatus)
		return
	}
	if a == nil {
		fail(c, http.StatusNotFound, "Approval request not found", errStatus)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      a.Status,
		"workerNotes": a.WorkerNotes,
		"respondedAt": a.RespondedAt,
	})
}

func (h *Handlers) listApprovals(c *gin.Context) {
	statuses, ok := statusFilter(c, approvals.Status.Valid)
	if !ok {
		fail(c, http.StatusBadRequest, "Invalid status value", nil)
		return
	}
	list, err := h.cfg.Approvals.List(c.Request.Context(), statuses...)
	if err != nil {
		h.logger.Error("list approvals", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to fetch approvals", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"approvals": nonNil(list)})
}

// respondApproval records the staff decision. Approving also books a
// confirmed reservation; the two writes are independent and the first is
// not undone when the second fails.
func (h *Handlers) respondApproval(c *gin.Context) {
	var req validation.StatusRequest
	if err := validation.BindAndValidate(c, &req, h.validator); err != nil {
		failRequest(c, err, nil)
		return
	}
	status := approvals.Status(req.Status)
	if status != approvals.StatusApproved && status != approvals.StatusRejected {
		fail(c, http.StatusBadRequest, "Invalid status value", nil)
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")
	now := h.now()
	a, err := h.cfg.Approvals.Respond(ctx, id, status, req.WorkerNotes, now)
	if errors.Is(err, approvals.ErrNotFound) {
		fail(c, http.StatusNotFound, "Approval request not found", nil)
		return
	}
	if err != nil {
		h.logger.Error("respond approval", zap.String("id", id), zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to update approval", nil)
		return
	}
	if status == approvals.StatusRejected {
		c.JSON(http.StatusOK, gin.H{"success": true, "approval": a})
		return
	}

	at, err := a.ScheduledAt(h.location())
	if err == nil {
		r := reservations.New(a.CustomerName, a.CustomerPhone, a.NumberOfPeople, at, reservations.StatusConfirmed, now)
		var created *reservations.Reservation
		if created, err = h.cfg.Reservations.Create(ctx, r); err == nil {
			c.JSON(http.StatusOK, gin.H{"success": true, "approval": a, "reservation": created})
			return
		}
	}
	h.logger.Error("create reservation for approval", zap.String("approval_id", a.ID), zap.Error(err))
	fail(c, http.StatusInternalServerError, "Approval updated but failed to create reservation", gin.H{"approval": a})
}
