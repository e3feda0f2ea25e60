package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"jobber/orders/internal/models"
	"jobber/orders/internal/repositories"
	services "jobber/orders/internal/service"
)

// OrderHandler serves the order routes.
type OrderHandler struct {
	orderService *services.OrderService
}

func NewOrderHandler(orderService *services.OrderService) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
	}
}

func (h *OrderHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/order-health", h.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1/order")
	api.POST("", h.CreateOrder)
	api.GET("/:order_id", h.GetOrder)
	api.GET("/buyer/:buyer_id", h.GetBuyerOrders)
	api.GET("/seller/:seller_id", h.GetSellerOrders)
	api.PUT("/deliver/:order_id", h.DeliverOrder)
	api.PUT("/approve/:order_id", h.ApproveOrder)
	api.PUT("/cancel/:order_id", h.CancelOrder)
}

func (h *OrderHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (h *OrderHandler) CreateOrder(c echo.Context) error {
	var req models.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	order, err := h.orderService.CreateOrder(c.Request().Context(), req)
	if errors.Is(err, services.ErrInvalidOrder) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create order")
	}

	return c.JSON(http.StatusCreated, map[string]any{"message": "Order created successfully", "order": order})
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	order, err := h.orderService.GetOrderByID(c.Request().Context(), c.Param("order_id"))
	if err != nil {
		return orderError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"message": "Order by order id", "order": order})
}

func (h *OrderHandler) GetBuyerOrders(c echo.Context) error {
	orders, err := h.orderService.GetOrdersByBuyer(c.Request().Context(), c.Param("buyer_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to get orders")
	}
	return c.JSON(http.StatusOK, map[string]any{"message": "Buyer orders", "orders": orders})
}

func (h *OrderHandler) GetSellerOrders(c echo.Context) error {
	orders, err := h.orderService.GetOrdersBySeller(c.Request().Context(), c.Param("seller_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to get orders")
	}
	return c.JSON(http.StatusOK, map[string]any{"message": "Seller orders", "orders": orders})
}

func (h *OrderHandler) DeliverOrder(c echo.Context) error {
	order, err := h.orderService.DeliverOrder(c.Request().Context(), c.Param("order_id"))
	if err != nil {
		return orderError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"message": "Order delivered", "order": order})
}

func (h *OrderHandler) ApproveOrder(c echo.Context) error {
	order, err := h.orderService.ApproveOrder(c.Request().Context(), c.Param("order_id"))
	if err != nil {
		return orderError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"message": "Order approved", "order": order})
}

func (h *OrderHandler) CancelOrder(c echo.Context) error {
	order, err := h.orderService.CancelOrder(c.Request().Context(), c.Param("order_id"))
	if err != nil {
		return orderError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"message": "Order cancelled", "order": order})
}

func orderError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrOrderNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Order not found")
	case errors.Is(err, repositories.ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to update order")
	}
}
