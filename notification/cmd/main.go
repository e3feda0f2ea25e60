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
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"jobber/notification/internal/handlers"
	"jobber/notification/internal/mailer"
	services "jobber/notification/internal/service"
	"jobber/notification/internal/templates"
	"jobber/pkg/config"
	"jobber/pkg/deadletter"
	"jobber/pkg/logging"
	"jobber/pkg/messaging"
)

func main() {
	cfg, err := config.Load("notification")
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	logger := logging.New(cfg.ServiceName, cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	renderer, err := templates.New()
	if err != nil {
		logger.Fatalf("Failed to load email templates: %v", err)
	}

	var transport mailer.Mailer
	if cfg.Mail.SMTPHost == "" {
		logger.Warn("SMTP_HOST is not set, emails are only logged")
		transport = mailer.NewLogMailer(logger)
	} else {
		smtpMailer, err := mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     cfg.Mail.SMTPHost,
			Port:     cfg.Mail.SMTPPort,
			Username: cfg.Mail.SenderEmail,
			Password: cfg.Mail.SenderSecret,
			From:     cfg.Mail.SenderEmail,
		})
		if err != nil {
			logger.Fatalf("Failed to configure SMTP: %v", err)
		}
		transport = smtpMailer
	}
	// shared relays throttle bursts
	transport = mailer.RateLimited(transport, rate.Limit(5), 10)

	var sink messaging.DeadLetterSink
	if cfg.Consumer.FailurePolicy == config.FailurePolicyRetry {
		store, err := deadletter.Connect(ctx, cfg.DeadLetter.RedisAddr, cfg.DeadLetter.Key)
		if err != nil {
			logger.Fatalf("Failed to connect to dead-letter store: %v", err)
		}
		defer store.Close()
		sink = store
	}

	// RabbitMQ
	factory := messaging.NewFactory(cfg)
	mqConn := messaging.NewConnection(factory.DefaultConnectionConfig(), logger)
	if err := mqConn.Connect(); err != nil {
		logger.WithError(err).Warn("RabbitMQ is not reachable yet, consumers will keep retrying")
	}

	queueManager := messaging.NewQueueManager(mqConn, logger)
	emailService := services.NewEmailService(renderer, transport, cfg.ClientURL, logger)
	handlers.NewConsumerHandler(emailService).RegisterConsumers(queueManager, factory, sink)
	queueManager.StartAllConsumers(ctx)

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
	handlers.RegisterRoutes(e, queueManager)

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

	cancel()
	queueManager.Close()

	logger.Info("Server stopped gracefully")
}
