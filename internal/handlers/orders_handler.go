package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/go-orderlines/internal/details"
	"github.com/imrishuroy/go-orderlines/internal/gateway"
	"github.com/imrishuroy/go-orderlines/internal/idempotency"
	"github.com/imrishuroy/go-orderlines/internal/orders"
	"github.com/imrishuroy/go-orderlines/internal/service"
	"github.com/imrishuroy/go-orderlines/internal/validation"
)

// IdempotencyKeyHeader names the header that makes POST /orders replayable.
const IdempotencyKeyHeader = "Idempotency-Key"

// OrderService is the command and query surface behind the routes.
type OrderService interface {
	ListOrders(ctx context.Context) ([]orders.Order, error)
	ListOrdersByAccount(ctx context.Context, accountID int64) ([]orders.Order, error)
	GetLineItems(ctx context.Context, orderNumber int64) ([]orders.OrderLineItem, error)
	CreateOrder(ctx context.Context, o orders.Order) (*orders.Order, error)
	UpdateOrder(ctx context.Context, orderNumber int64, o orders.Order) (*orders.Order, error)
	DeleteOrder(ctx context.Context, orderNumber int64) (*orders.Order, error)
	CreateLineItem(ctx context.Context, orderNumber int64, li orders.OrderLineItem) (*orders.OrderLineItem, error)
	UpdateLineItem(ctx context.Context, orderNumber, lineID int64, li orders.OrderLineItem) (*orders.OrderLineItem, error)
	DeleteLineItem(ctx context.Context, orderNumber, lineID int64) (*orders.OrderLineItem, error)
}

type DetailService interface {
	GetOrderDetails(ctx context.Context, accountID int64) ([]details.OrderDetail, error)
}

type IdempotencyStore interface {
	Begin(ctx context.Context, key, requestHash string) (*idempotency.Record, error)
	MarkDone(ctx context.Context, key string, orderNumber int64, responseBody string, responseStatus int) error
	MarkFailed(ctx context.Context, key, note string) error
}

// HandlerConfig groups dependencies for the orders handler.
type HandlerConfig struct {
	Orders  OrderService
	Details DetailService
	// Idempotency is optional; without it Idempotency-Key is ignored.
	Idempotency IdempotencyStore
}

type ordersHandler struct {
	orders      OrderService
	details     DetailService
	idempotency IdempotencyStore
	v           *validatorv10.Validate
}

// RegisterOrdersRoutes registers routes for order API.
//
// GET /orders/:id reads :id as an account id and returns order details;
// every other :id is an order number.
func RegisterOrdersRoutes(r *gin.Engine, cfg HandlerConfig) {
	h := &ordersHandler{
		orders:      cfg.Orders,
		details:     cfg.Details,
		idempotency: cfg.Idempotency,
		v:           validation.New(),
	}

	g := r.Group("/orders")
	g.GET("", h.listOrders)
	g.POST("", h.createOrder)
	g.GET("/:id", h.orderDetails)
	g.PUT("/:id", h.updateOrder)
	g.DELETE("/:id", h.deleteOrder)
	g.GET("/:id/lines", h.listLineItems)
	g.POST("/:id/lines", h.createLineItem)
	g.PUT("/:id/lines/:lineId", h.updateLineItem)
	g.DELETE("/:id/lines/:lineId", h.deleteLineItem)
}

func (h *ordersHandler) listOrders(c *gin.Context) {
	ctx := c.Request.Context()

	var (
		list []orders.Order
		err  error
	)
	if raw := c.Query("accountId"); raw != "" {
		accountID, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_account_id"})
			return
		}
		list, err = h.orders.ListOrdersByAccount(ctx, accountID)
	} else {
		list, err = h.orders.ListOrders(ctx)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	if len(list) == 0 {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, newOrderResponses(list))
}

func (h *ordersHandler) createOrder(c *gin.Context) {
	ctx := c.Request.Context()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request_body", "msg": err.Error()})
		return
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))

	var req validation.OrderRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		// BindAndValidate already wrote a 400
		return
	}

	key := c.GetHeader(IdempotencyKeyHeader)
	if key == "" || h.idempotency == nil {
		created, err := h.orders.CreateOrder(ctx, req.ToOrder())
		if err != nil {
			writeError(c, err)
			return
		}
		c.Header("Location", fmt.Sprintf("/orders/%d", created.OrderNumber))
		c.JSON(http.StatusCreated, newOrderResponse(*created))
		return
	}

	rec, err := h.idempotency.Begin(ctx, key, idempotency.HashRequest(body))
	switch {
	case errors.Is(err, idempotency.ErrKeyReused):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "idempotency_key_reused"})
		return
	case err != nil:
		slog.ErrorContext(ctx, "idempotency check failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "idempotency_check_failed"})
		return
	case rec != nil:
		replay(c, rec)
		return
	}

	created, err := h.orders.CreateOrder(ctx, req.ToOrder())
	if err != nil {
		if merr := h.idempotency.MarkFailed(ctx, key, err.Error()); merr != nil {
			slog.ErrorContext(ctx, "mark idempotency key failed", "error", merr)
		}
		writeError(c, err)
		return
	}

	responseBody, err := json.Marshal(newOrderResponse(*created))
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.idempotency.MarkDone(ctx, key, created.OrderNumber, string(responseBody), http.StatusCreated); err != nil {
		slog.ErrorContext(ctx, "mark idempotency key done", "error", err)
	}

	c.Header("Location", fmt.Sprintf("/orders/%d", created.OrderNumber))
	c.Data(http.StatusCreated, "application/json; charset=utf-8", responseBody)
}

// replay answers a request whose key has been seen before.
func replay(c *gin.Context, rec *idempotency.Record) {
	switch rec.Status {
	case idempotency.StatusDone:
		c.Header("Idempotent-Replayed", "true")
		if rec.OrderNumber != 0 {
			c.Header("Location", fmt.Sprintf("/orders/%d", rec.OrderNumber))
		}
		c.Data(rec.ResponseStatus, "application/json; charset=utf-8", []byte(rec.ResponseBody))
	case idempotency.StatusInProgress:
		c.JSON(http.StatusAccepted, gin.H{"message": "request already in progress"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unknown_idempotency_status"})
	}
}

func (h *ordersHandler) orderDetails(c *gin.Context) {
	accountID, ok := pathID(c, "id")
	if !ok {
		return
	}
	list, err := h.details.GetOrderDetails(c.Request.Context(), accountID)
	if err != nil {
		writeError(c, err)
		return
	}
	if len(list) == 0 {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *ordersHandler) updateOrder(c *gin.Context) {
	orderNumber, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req validation.OrderRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}
	updated, err := h.orders.UpdateOrder(c.Request.Context(), orderNumber, req.ToOrder())
	if err != nil {
		writeError(c, err)
		return
	}
	if updated == nil {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, newOrderResponse(*updated))
}

func (h *ordersHandler) deleteOrder(c *gin.Context) {
	orderNumber, ok := pathID(c, "id")
	if !ok {
		return
	}
	deleted, err := h.orders.DeleteOrder(c.Request.Context(), orderNumber)
	if err != nil {
		writeError(c, err)
		return
	}
	if deleted == nil {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, newOrderResponse(*deleted))
}

func (h *ordersHandler) listLineItems(c *gin.Context) {
	orderNumber, ok := pathID(c, "id")
	if !ok {
		return
	}
	items, err := h.orders.GetLineItems(c.Request.Context(), orderNumber)
	if err != nil {
		writeError(c, err)
		return
	}
	if len(items) == 0 {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, newLineItemResponses(items))
}

func (h *ordersHandler) createLineItem(c *gin.Context) {
	orderNumber, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req validation.LineItemRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}
	created, err := h.orders.CreateLineItem(c.Request.Context(), orderNumber, req.ToLineItem())
	if err != nil {
		writeError(c, err)
		return
	}
	if created == nil {
		notFound(c)
		return
	}
	c.Header("Location", fmt.Sprintf("/orders/%d/lines/%d", orderNumber, created.ID))
	c.JSON(http.StatusCreated, newLineItemResponse(*created))
}

func (h *ordersHandler) updateLineItem(c *gin.Context) {
	orderNumber, ok := pathID(c, "id")
	if !ok {
		return
	}
	lineID, ok := pathID(c, "lineId")
	if !ok {
		return
	}
	var req validation.LineItemRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}
	updated, err := h.orders.UpdateLineItem(c.Request.Context(), orderNumber, lineID, req.ToLineItem())
	if err != nil {
		writeError(c, err)
		return
	}
	if updated == nil {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, newLineItemResponse(*updated))
}

func (h *ordersHandler) deleteLineItem(c *gin.Context) {
	orderNumber, ok := pathID(c, "id")
	if !ok {
		return
	}
	lineID, ok := pathID(c, "lineId")
	if !ok {
		return
	}
	deleted, err := h.orders.DeleteLineItem(c.Request.Context(), orderNumber, lineID)
	if err != nil {
		writeError(c, err)
		return
	}
	if deleted == nil {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, newLineItemResponse(*deleted))
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_" + name, "msg": err.Error()})
		return 0, false
	}
	return id, true
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
}

// writeError maps service errors to a status code. Anything unrecognised is a 500.
func writeError(c *gin.Context, err error) {
	ctx := c.Request.Context()
	switch {
	case errors.Is(err, service.ErrInvalidOrder):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_order", "msg": err.Error()})
	case errors.Is(err, gateway.ErrUnavailable):
		slog.WarnContext(ctx, "collaborator unavailable", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "collaborator_unavailable"})
	default:
		slog.ErrorContext(ctx, "request failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
