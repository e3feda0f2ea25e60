package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"jobber/auth/internal/models"
	"jobber/auth/internal/repositories"
	services "jobber/auth/internal/service"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/auth-health", h.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1/auth")
	api.POST("/signup", h.SignUp)
	api.POST("/verify-email", h.VerifyEmail)
}

func (h *AuthHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (h *AuthHandler) SignUp(c echo.Context) error {
	var req models.SignupRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	user, token, err := h.authService.SignUp(c.Request().Context(), &req)
	switch {
	case errors.Is(err, services.ErrInvalidSignup):
		return echo.NewHTTPError(http.StatusBadRequest, strings.TrimPrefix(err.Error(), services.ErrInvalidSignup.Error()+": "))
	case errors.Is(err, repositories.ErrUserExists):
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid credentials. Email or Username")
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create user")
	}

	return c.JSON(http.StatusCreated, map[string]any{
		"message": "User created successfully",
		"user":    user,
		"token":   token,
	})
}

func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	var req models.VerifyEmailRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	user, err := h.authService.VerifyEmail(c.Request().Context(), req.Token)
	if errors.Is(err, services.ErrInvalidToken) {
		return echo.NewHTTPError(http.StatusBadRequest, "Verification token is either invalid or is already used")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to verify email")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"message": "Email verified successfully",
		"user":    user,
	})
}
