package handlers_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobber/notification/internal/handlers"
	"jobber/notification/internal/mailer"
	services "jobber/notification/internal/service"
	"jobber/notification/internal/templates"
	"jobber/pkg/config"
	"jobber/pkg/messaging"
	"jobber/pkg/messaging/messagingtest"
	"jobber/pkg/metrics"
)

const settleTimeout = 2 * time.Second

type failingMailer struct{}

func (failingMailer) Send(context.Context, mailer.Mail) error { return errors.New("relay down") }

type notificationService struct {
	broker *messagingtest.Broker
	hook   *test.Hook
}

func startNotificationService(t *testing.T, m mailer.Mailer) *notificationService {
	t.Helper()

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	renderer, err := templates.New()
	require.NoError(t, err)

	broker := messagingtest.NewBroker()
	factory := messaging.NewFactory(&config.Config{
		ServiceName: "notification",
		Consumer: config.ConsumerConfig{
			PrefetchCount:  10,
			Concurrency:    1,
			HandlerTimeout: time.Second,
			ReconnectDelay: 10 * time.Millisecond,
		},
	})
	conn := messaging.NewConnection(messaging.ConnectionConfig{Dialer: broker.Dial}, logger)
	qm := messaging.NewQueueManager(conn, logger)

	emailService := services.NewEmailService(renderer, m, "http://localhost:3000", logger)
	handlers.NewConsumerHandler(emailService).RegisterConsumers(qm, factory, nil)
	qm.StartAllConsumers(context.Background())
	t.Cleanup(qm.Close)

	for _, b := range []struct{ queue, key string }{
		{messaging.AuthEmailQueue, messaging.AuthEmailKey},
		{messaging.OrderEmailQueue, messaging.OrderEmailKey},
	} {
		require.Eventually(t, func() bool {
			return broker.HasBinding(b.queue, messaging.EmailNotificationExchange, b.key)
		}, settleTimeout, time.Millisecond, "queue %s never bound", b.queue)
	}
	return &notificationService{broker: broker, hook: hook}
}

func (s *notificationService) send(t *testing.T, key, body string) messagingtest.Settlement {
	t.Helper()

	n := len(s.broker.Settlements())
	require.NoError(t, s.broker.Publish(messaging.EmailNotificationExchange, key, []byte(body)))
	settled := s.broker.WaitSettlements(n+1, settleTimeout)
	require.Len(t, settled, n+1, "message was never settled")
	return settled[n]
}

func TestVerifyEmailIsSent(t *testing.T) {
	logMailer := mailer.NewLogMailer(logrus.New())
	s := startNotificationService(t, logMailer)
	before := testutil.ToFloat64(metrics.EmailsSent.WithLabelValues("verifyEmail", "ok"))

	settled := s.send(t, messaging.AuthEmailKey,
		`{"receiverEmail":"manny@test.com","verifyLink":"http://localhost:3000/confirm_email?v_token=abc","template":"verifyEmail","username":"Manny"}`)
	assert.Equal(t, "ack", settled.Action)

	sent := logMailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "manny@test.com", sent[0].To)
	assert.Equal(t, "Verify your email", sent[0].Subject)
	assert.Contains(t, sent[0].HTML, "Hi Manny,")
	assert.Contains(t, sent[0].HTML, "v_token=abc")
	assert.Contains(t, sent[0].HTML, `href="http://localhost:3000"`)

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.EmailsSent.WithLabelValues("verifyEmail", "ok")))
}

func TestOrderPlacedAlsoSendsReceipt(t *testing.T) {
	logMailer := mailer.NewLogMailer(logrus.New())
	s := startNotificationService(t, logMailer)

	settled := s.send(t, messaging.OrderEmailKey,
		`{"receiverEmail":"eve@test.com","template":"orderPlaced","orderId":"o-1","buyerUsername":"Bo","sellerUsername":"Eve","title":"Logo","amount":20,"serviceFee":"1.5","total":21.5}`)
	assert.Equal(t, "ack", settled.Action)

	sent := logMailer.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "You have a new order", sent[0].Subject)
	assert.Contains(t, sent[0].HTML, "Bo placed an order")
	assert.Equal(t, "Your order receipt", sent[1].Subject)
	assert.Contains(t, sent[1].HTML, "<strong>21.5</strong>")
	for _, m := range sent {
		assert.Equal(t, "eve@test.com", m.To)
	}
}

func TestEmailOutcomes(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		body     string
		action   string
		warnings int
	}{
		{"unknown template", messaging.AuthEmailKey, `{"receiverEmail":"a@test.com","template":"newsletter"}`, "ack", 1},
		{"missing template", messaging.AuthEmailKey, `{"receiverEmail":"a@test.com"}`, "nack", 0},
		{"missing receiver", messaging.OrderEmailKey, `{"template":"orderDelivered"}`, "nack", 0},
		{"not json", messaging.OrderEmailKey, `<xml/>`, "nack", 0},
		{"subject with line break", messaging.OrderEmailKey, `{"receiverEmail":"a@test.com","template":"orderDelivered","subject":"x\r\nBcc: evil@test.com"}`, "nack", 0},
		{"receiver with line break", messaging.AuthEmailKey, `{"receiverEmail":"a@test.com\nBcc: evil@test.com","template":"verifyEmail"}`, "nack", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logMailer := mailer.NewLogMailer(logrus.New())
			s := startNotificationService(t, logMailer)

			settled := s.send(t, tt.key, tt.body)
			assert.Equal(t, tt.action, settled.Action)
			assert.False(t, settled.Requeue)
			assert.Empty(t, logMailer.Sent())

			warnings := 0
			for _, e := range s.hook.AllEntries() {
				if e.Level == logrus.WarnLevel {
					warnings++
				}
			}
			assert.Equal(t, tt.warnings, warnings)
		})
	}
}

func TestMailerFailureDropsMessage(t *testing.T) {
	s := startNotificationService(t, failingMailer{})
	before := testutil.ToFloat64(metrics.EmailsSent.WithLabelValues("otpEmail", "error"))

	settled := s.send(t, messaging.AuthEmailKey, `{"receiverEmail":"a@test.com","template":"otpEmail","otp":123456}`)
	assert.Equal(t, "nack", settled.Action)
	assert.False(t, settled.Requeue)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.EmailsSent.WithLabelValues("otpEmail", "error")))
}
