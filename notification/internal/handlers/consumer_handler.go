package handlers

import (
	"context"

	services "jobber/notification/internal/service"
	"jobber/pkg/contracts"
	"jobber/pkg/messaging"
)

type ConsumerHandler struct {
	emailService *services.EmailService
}

func NewConsumerHandler(emailService *services.EmailService) *ConsumerHandler {
	return &ConsumerHandler{emailService: emailService}
}

// RegisterConsumers adds the auth-email and order-email consumers.
func (h *ConsumerHandler) RegisterConsumers(m *messaging.QueueManager, factory *messaging.Factory, sink messaging.DeadLetterSink) {
	m.RegisterConsumer("auth-email", factory.AuthEmailConsumer(sink), messaging.RouterFunc(h.HandleAuthEmail))
	m.RegisterConsumer("order-email", factory.OrderEmailConsumer(sink), messaging.RouterFunc(h.HandleOrderEmail))
}

func (h *ConsumerHandler) HandleAuthEmail(ctx context.Context, body []byte) error {
	msg, err := contracts.DecodeEmailMessage(body)
	if err != nil {
		return err
	}
	return h.emailService.SendAuthEmail(ctx, msg)
}

func (h *ConsumerHandler) HandleOrderEmail(ctx context.Context, body []byte) error {
	msg, err := contracts.DecodeEmailMessage(body)
	if err != nil {
		return err
	}
	return h.emailService.SendOrderEmail(ctx, msg)
}
