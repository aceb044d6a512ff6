package lifecycle

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/quantfork/tradeflow/pkg/response"
	"github.com/shopspring/decimal"
)

// GinHandlers contains HTTP handlers for order lifecycle endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for order endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

type createOrderRequest struct {
	TokenAddress string          `json:"token_address" binding:"required"`
	Amount       decimal.Decimal `json:"amount"`
	Price        decimal.Decimal `json:"price"`
	OrderType    string          `json:"order_type" binding:"required"`
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// CreateOrderHandler handles POST requests to create new orders
func (h *GinHandlers) CreateOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		order, err := h.service.CreateOrder(c.Request.Context(), req.TokenAddress, req.Amount, req.Price, req.OrderType)
		if err != nil {
			if errors.Is(err, ErrInvalidOrder) {
				response.BadRequest(c, err.Error())
				return
			}
			response.InternalError(c, err.Error())
			return
		}

		response.Success(c, order)
	}
}

// CancelOrderHandler handles DELETE requests to cancel active orders
// URL parameter: order_id
func (h *GinHandlers) CancelOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID := c.Param("order_id")
		if orderID == "" {
			response.BadRequest(c, "Order ID is required")
			return
		}

		if err := h.service.CancelOrder(c.Request.Context(), orderID); err != nil {
			switch {
			case errors.Is(err, ErrOrderNotFound):
				response.NotFound(c, "Order not found")
			case errors.Is(err, ErrInvalidTransition):
				response.Conflict(c, err.Error())
			default:
				response.InternalError(c, err.Error())
			}
			return
		}

		response.Success(c, gin.H{"order_id": orderID, "status": "CANCELLED"})
	}
}

// ActiveOrdersHandler handles GET requests for the active-order snapshot
func (h *GinHandlers) ActiveOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		response.Success(c, h.service.GetActiveOrders())
	}
}

// UpdateOrderStatusHandler handles PATCH requests to update order status
// URL parameter: order_id
func (h *GinHandlers) UpdateOrderStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID := c.Param("order_id")

		var req updateStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		if err := h.service.UpdateOrderStatus(c.Request.Context(), orderID, req.Status); err != nil {
			switch {
			case errors.Is(err, ErrOrderNotFound):
				response.NotFound(c, "Order not found")
			case errors.Is(err, ErrInvalidTransition):
				response.Conflict(c, err.Error())
			default:
				response.InternalError(c, err.Error())
			}
			return
		}

		response.Success(c, gin.H{"order_id": orderID, "status": req.Status})
	}
}
