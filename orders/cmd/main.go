package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"jobber/orders/internal/handlers"
	"jobber/orders/internal/repositories"
	services "jobber/orders/internal/service"
	"jobber/pkg/config"
	"jobber/pkg/db"
	"jobber/pkg/logging"
	"jobber/pkg/messaging"
)

func main() {
	cfg, err := config.Load("orders")
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	logger := logging.New(cfg.ServiceName, cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	logger.Info("Connecting to database...")
	database, err := db.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := repositories.Migrate(ctx, database); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}
	logger.Info("Database connected successfully")

	// RabbitMQ
	factory := messaging.NewFactory(cfg)
	mqConn := messaging.NewConnection(factory.DefaultConnectionConfig(), logger)
	if err := mqConn.Connect(); err != nil {
		logger.WithError(err).Warn("RabbitMQ is not reachable yet, publishers will retry on demand")
	}

	queueManager := messaging.NewQueueManager(mqConn, logger)
	sellerPub := queueManager.GetOrCreatePublisher("seller-update", factory.SellerUpdatePublisher())
	buyerPub := queueManager.GetOrCreatePublisher("purchased-gigs", factory.PurchasedGigsPublisher())
	emailPub := queueManager.GetOrCreatePublisher("order-email", factory.OrderEmailPublisher())

	orderRepo := repositories.NewOrderRepository(database)
	orderService := services.NewOrderService(orderRepo, sellerPub, buyerPub, emailPub, cfg.ClientURL, logger)

	// HTTP
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.WithFields(logrus.Fields{
				"uri":     v.URI,
				"method":  v.Method,
				"status":  v.Status,
				"latency": v.Latency,
				"error":   v.Error,
			}).Info("HTTP request")
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{cfg.ClientURL},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
	}))

	handlers.NewOrderHandler(orderService).RegisterRoutes(e)

	go func() {
		if err := e.Start(":" + cfg.ServerPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("HTTP server shutdown error")
	}
	queueManager.Close()

	logger.Info("Server stopped gracefully")
}
