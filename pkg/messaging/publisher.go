package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"jobber/pkg/metrics"
)

type PublisherConfig struct {
	Exchange string
	// Kind defaults to Direct.
	Kind       ExchangeKind
	RoutingKey string
	// Description is logged after every successful publish.
	Description string
}

type Publisher struct {
	conn   *Connection
	config PublisherConfig
	logger logrus.FieldLogger
}

// NewPublisher binds a publisher to one exchange and routing key.
func NewPublisher(conn *Connection, config PublisherConfig, logger logrus.FieldLogger) *Publisher {
	if config.Kind == "" {
		config.Kind = Direct
	}
	return &Publisher{
		conn:   conn,
		config: config,
		logger: logger.WithFields(logrus.Fields{
			"exchange":    config.Exchange,
			"routing_key": config.RoutingKey,
		}),
	}
}

func (p *Publisher) Config() PublisherConfig { return p.config }

// Publish marshals payload to JSON and publishes it.
func (p *Publisher) Publish(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal message for %s: %w", p.config.Exchange, err)
	}
	return p.PublishRaw(ctx, body)
}

// PublishRaw declares the exchange (idempotent) and publishes body with the
// configured routing key. No publisher confirm is awaited: a nil error means
// the broker client accepted the frame, not that a queue received it.
func (p *Publisher) PublishRaw(ctx context.Context, body []byte) error {
	err := p.publish(ctx, body)
	metrics.IncPublished(p.config.Exchange, err)
	if err != nil {
		p.logger.WithError(err).Error("Failed to publish message")
		return err
	}

	if p.config.Description != "" {
		p.logger.Info(p.config.Description)
	}
	return nil
}

func (p *Publisher) publish(ctx context.Context, body []byte) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}

	if err := ch.ExchangeDeclare(
		p.config.Exchange,
		string(p.config.Kind),
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	); err != nil {
		return fmt.Errorf("declare exchange %s: %w", p.config.Exchange, err)
	}

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		MessageId:    uuid.New().String(),
		Timestamp:    time.Now(),
		DeliveryMode: amqp.Persistent,
	}

	if err := ch.PublishWithContext(
		ctx,
		p.config.Exchange,
		p.config.RoutingKey,
		false, // mandatory
		false, // immediate
		publishing,
	); err != nil {
		return fmt.Errorf("publish to %s: %w", p.config.Exchange, err)
	}
	return nil
}
