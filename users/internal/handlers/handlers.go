package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"jobber/pkg/deadletter"
	"jobber/users/internal/models"
	"jobber/users/internal/repositories"
	services "jobber/users/internal/service"
)

// ConsumerStatus reports consumers that stopped for good.
type ConsumerStatus interface {
	FailedConsumers() []string
}

// UserHandler serves the users service HTTP routes.
type UserHandler struct {
	buyerService  *services.BuyerService
	sellerService *services.SellerService
	deadLetters   *deadletter.Store
	consumers     ConsumerStatus
}

// NewUserHandler builds the handler. deadLetters may be nil when the retry
// failure policy is off.
func NewUserHandler(buyerService *services.BuyerService, sellerService *services.SellerService, deadLetters *deadletter.Store, consumers ConsumerStatus) *UserHandler {
	return &UserHandler{
		buyerService:  buyerService,
		sellerService: sellerService,
		deadLetters:   deadLetters,
		consumers:     consumers,
	}
}

func (h *UserHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/user-health", h.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	api.GET("/buyer/email/:email", h.GetBuyerByEmail)
	api.GET("/buyer/:username", h.GetBuyerByUsername)
	api.GET("/seller/id/:id", h.GetSellerByID)
	api.POST("/seller/create", h.CreateSeller)
	api.GET("/dead-letters", h.ListDeadLetters)
}

// Health answers 503 once a consumer has given up reconnecting.
func (h *UserHandler) Health(c echo.Context) error {
	if failed := h.consumers.FailedConsumers(); len(failed) > 0 {
		return c.JSON(http.StatusServiceUnavailable, map[string]any{
			"status":          "degraded",
			"failedConsumers": failed,
			"time":            time.Now().Format(time.RFC3339),
		})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (h *UserHandler) GetBuyerByEmail(c echo.Context) error {
	buyer, err := h.buyerService.GetByEmail(c.Request().Context(), c.Param("email"))
	if errors.Is(err, repositories.ErrBuyerNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Buyer not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to get buyer")
	}
	return c.JSON(http.StatusOK, map[string]any{"message": "Buyer profile", "buyer": buyer})
}

func (h *UserHandler) GetBuyerByUsername(c echo.Context) error {
	buyer, err := h.buyerService.GetByUsername(c.Request().Context(), c.Param("username"))
	if errors.Is(err, repositories.ErrBuyerNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Buyer not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to get buyer")
	}
	return c.JSON(http.StatusOK, map[string]any{"message": "Buyer profile", "buyer": buyer})
}

func (h *UserHandler) GetSellerByID(c echo.Context) error {
	seller, err := h.sellerService.GetByID(c.Request().Context(), c.Param("id"))
	if errors.Is(err, repositories.ErrSellerNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Seller not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to get seller")
	}
	return c.JSON(http.StatusOK, map[string]any{"message": "Seller profile", "seller": seller})
}

func (h *UserHandler) CreateSeller(c echo.Context) error {
	var req models.CreateSellerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	seller := &models.Seller{
		FullName:       req.FullName,
		Username:       req.Username,
		Email:          req.Email,
		ProfilePicture: req.ProfilePicture,
		Description:    req.Description,
		Country:        req.Country,
		ResponseTime:   req.ResponseTime,
	}
	err := h.sellerService.CreateSeller(c.Request().Context(), seller)
	switch {
	case errors.Is(err, services.ErrInvalidSeller):
		return echo.NewHTTPError(http.StatusBadRequest, strings.TrimPrefix(err.Error(), services.ErrInvalidSeller.Error()+": "))
	case errors.Is(err, repositories.ErrSellerExists):
		return echo.NewHTTPError(http.StatusBadRequest, "You already have a seller account")
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create seller")
	}

	return c.JSON(http.StatusCreated, map[string]any{"message": "Seller created successfully", "seller": seller})
}

// ListDeadLetters returns the newest dead-lettered messages (?limit=N).
func (h *UserHandler) ListDeadLetters(c echo.Context) error {
	if h.deadLetters == nil {
		return echo.NewHTTPError(http.StatusNotFound, "Dead-letter store is not enabled")
	}

	limit := int64(50)
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid limit")
		}
		limit = n
	}

	entries, err := h.deadLetters.List(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to list dead letters")
	}
	return c.JSON(http.StatusOK, entries)
}
