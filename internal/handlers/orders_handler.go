package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/QiangXu1564/order-reserve-aid/internal/orders"
	"github.com/QiangXu1564/order-reserve-aid/internal/validation"
)

func (h *Handlers) listOrders(c *gin.Context) {
	statuses, ok := statusFilter(c, orders.Status.Valid)
	if !ok {
		fail(c, http.StatusBadRequest, "Invalid status value", nil)
		return
	}
	list, err := h.cfg.Orders.List(c.Request.Context(), statuses...)
	if err != nil {
		h.logger.Error("list orders", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to fetch orders", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": nonNil(list)})
}

func (h *Handlers) getOrder(c *gin.Context) {
	o, err := h.cfg.Orders.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("get order", zap.String("id", c.Param("id")), zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to fetch order", nil)
		return
	}
	if o == nil {
		fail(c, http.StatusNotFound, "Order not found", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}

// bindOrder reads and validates the camelCase order body.
func (h *Handlers) bindOrder(c *gin.Context) (validation.OrderInput, error) {
	var req validation.OrderRequest
	if err := validation.DecodeJSON(c, &req); err != nil {
		return validation.OrderInput{}, err
	}
	return validation.NormalizeOrder(h.validator, req)
}

// insertOrder stores a new pending order.
func (h *Handlers) insertOrder(ctx context.Context, name, phone string, products []string) (*orders.Order, error) {
	o, err := h.cfg.Orders.Create(ctx, orders.New(name, phone, products, h.now()))
	if err != nil {
		h.logger.Error("create order", zap.Error(err))
		return nil, err
	}
	h.logger.Info("order created", zap.String("order_id", o.ID), zap.Int("products", len(o.Products)))
	return o, nil
}

// createOrder serves the dashboard's POST /orders.
func (h *Handlers) createOrder(c *gin.Context) {
	in, err := h.bindOrder(c)
	if err != nil {
		failRequest(c, err, nil)
		return
	}
	h.once(c, func(ctx context.Context) result {
		o, err := h.insertOrder(ctx, in.CustomerName, in.CustomerPhone, in.Products)
		if err != nil {
			return result{status: http.StatusInternalServerError, body: gin.H{"error": "Failed to create order", "success": false}}
		}
		return result{
			status:  http.StatusCreated,
			body:    gin.H{"success": true, "order": o, "message": "Order created successfully"},
			orderID: o.ID,
		}
	})
}

// createOrderPublic serves POST /create-order, used by the agent. Errors
// carry orderId: null.
func (h *Handlers) createOrderPublic(c *gin.Context) {
	nullID := gin.H{"orderId": nil}
	in, err := h.bindOrder(c)
	if err != nil {
		failRequest(c, err, nullID)
		return
	}
	h.once(c, func(ctx context.Context) result {
		o, err := h.insertOrder(ctx, in.CustomerName, in.CustomerPhone, in.Products)
		if err != nil {
			return result{status: http.StatusInternalServerError, body: gin.H{"error": "Failed to create order", "success": false, "orderId": nil}}
		}
		return result{
			status: http.StatusOK,
			body: gin.H{
				"success": true,
				"orderId": o.ID,
				"message": "Order created successfully. Your order is being prepared.",
			},
			orderID: o.ID,
		}
	})
}

// createPedido serves the snake_case POST /pedidos.
func (h *Handlers) createPedido(c *gin.Context) {
	var req validation.PedidoRequest
	if err := validation.DecodeJSON(c, &req); err != nil {
		failRequest(c, err, nil)
		return
	}
	in, err := validation.NormalizePedido(h.validator, req)
	if err != nil {
		failRequest(c, err, nil)
		return
	}
	h.once(c, func(ctx context.Context) result {
		o, err := h.insertOrder(ctx, in.CustomerName, in.CustomerPhone, in.Products)
		if err != nil {
			return result{status: http.StatusInternalServerError, body: gin.H{"error": "Failed to create order", "success": false}}
		}
		return result{status: http.StatusCreated, body: gin.H{"success": true, "order": o}, orderID: o.ID}
	})
}

func (h *Handlers) updateOrder(c *gin.Context) {
	var req validation.StatusRequest
	if err := validation.BindAndValidate(c, &req, h.validator); err != nil {
		failRequest(c, err, nil)
		return
	}
	status := orders.Status(req.Status)
	if !status.Valid() {
		fail(c, http.StatusBadRequest, "Invalid status value", nil)
		return
	}

	id := c.Param("id")
	o, err := h.cfg.Orders.UpdateStatus(c.Request.Context(), id, status)
	if errors.Is(err, orders.ErrNotFound) {
		fail(c, http.StatusNotFound, "Order not found", nil)
		return
	}
	if err != nil {
		h.logger.Error("update order", zap.String("id", id), zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to update order", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "order": o, "message": "Order updated successfully"})
}

func (h *Handlers) deleteOrder(c *gin.Context) {
	id := c.Param("id")
	if err := h.cfg.Orders.Delete(c.Request.Context(), id); err != nil {
		h.logger.Error("delete order", zap.String("id", id), zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to delete order", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Order deleted successfully"})
}
