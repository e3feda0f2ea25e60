package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"jobber/pkg/deadletter"
	"jobber/pkg/metrics"
)

var errDeliveriesClosed = errors.New("delivery channel closed")

const deadLetterTimeout = 5 * time.Second

type ConsumerConfig struct {
	Topology    Topology
	ConsumerTag string
	// PrefetchCount bounds unacknowledged deliveries the broker pushes to
	// this consumer. Zero leaves the broker unbounded.
	PrefetchCount int
	// Concurrency bounds in-process handler executions. 1 keeps the queue
	// order.
	Concurrency    int
	HandlerTimeout time.Duration
	ReconnectDelay time.Duration
	// MaxReconnects is the number of consecutive failed consume sessions
	// after which Start gives up. Zero retries forever.
	MaxReconnects int
	// Retry enables retry-then-dead-letter; nil drops failed messages.
	Retry *RetryPolicy
}

type Consumer struct {
	conn   *Connection
	config ConsumerConfig
	router Router
	logger logrus.FieldLogger

	mutex  sync.Mutex
	cancel context.CancelFunc
}

func NewConsumer(conn *Connection, config ConsumerConfig, router Router, logger logrus.FieldLogger) *Consumer {
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	if config.HandlerTimeout <= 0 {
		config.HandlerTimeout = 30 * time.Second
	}
	if config.ReconnectDelay <= 0 {
		config.ReconnectDelay = 5 * time.Second
	}
	if config.ConsumerTag == "" {
		config.ConsumerTag = config.Topology.Queue + "-" + uuid.NewString()[:8]
	}
	return &Consumer{
		conn:   conn,
		config: config,
		router: router,
		logger: logger.WithFields(logrus.Fields{
			"exchange": config.Topology.Exchange,
			"queue":    config.Topology.Queue,
		}),
	}
}

func (c *Consumer) Config() ConsumerConfig { return c.config }

// Start consumes until ctx is cancelled or Stop is called. When the delivery
// stream ends (channel or connection lost) the topology is declared again
// after ReconnectDelay.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.mutex.Lock()
	c.cancel = cancel
	c.mutex.Unlock()
	defer cancel()

	failures := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		started, err := c.consume(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if started {
			failures = 0
		}
		failures++
		if c.config.MaxReconnects > 0 && failures > c.config.MaxReconnects {
			return fmt.Errorf("consumer %s: giving up after %d attempts: %w",
				c.config.Topology.Queue, failures, err)
		}

		c.logger.WithError(err).WithField("retry_in", c.config.ReconnectDelay.String()).
			Error("Consumer error, restarting")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.config.ReconnectDelay):
		}
	}
}

func (c *Consumer) Stop() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
}

// Setup declares exchange, queue and binding (in that order) and applies the
// prefetch bound. Every step is idempotent on the broker.
func (c *Consumer) Setup() (Channel, error) {
	t := c.config.Topology

	ch, err := c.conn.Channel()
	if err != nil {
		return nil, err
	}

	if err := ch.ExchangeDeclare(
		t.Exchange,
		string(t.Kind),
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", t.Exchange, err)
	}

	q, err := ch.QueueDeclare(
		t.Queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("declare queue %s: %w", t.Queue, err)
	}

	if err := ch.QueueBind(q.Name, t.BindingKey(), t.Exchange, false, nil); err != nil {
		return nil, fmt.Errorf("bind %s to %s: %w", q.Name, t.Exchange, err)
	}

	if c.config.PrefetchCount > 0 {
		if err := ch.Qos(c.config.PrefetchCount, 0, false); err != nil {
			return nil, fmt.Errorf("qos: %w", err)
		}
	}

	return ch, nil
}

// consume runs one session. started reports whether deliveries were flowing
// before the session ended.
func (c *Consumer) consume(ctx context.Context) (started bool, err error) {
	ch, err := c.Setup()
	if err != nil {
		return false, err
	}

	msgs, err := ch.Consume(
		c.config.Topology.Queue,
		c.config.ConsumerTag,
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		return false, fmt.Errorf("consume %s: %w", c.config.Topology.Queue, err)
	}

	c.logger.WithField("prefetch", c.config.PrefetchCount).Info("Started consuming")

	var handlers errgroup.Group
	handlers.SetLimit(c.config.Concurrency)
	defer func() {
		_ = handlers.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			if err := ch.Cancel(c.config.ConsumerTag, false); err != nil {
				c.logger.WithError(err).Debug("consumer cancel")
			}
			return true, nil
		case d, ok := <-msgs:
			if !ok {
				return true, errDeliveriesClosed
			}
			handlers.Go(func() error {
				c.handleDelivery(ctx, d)
				return nil
			})
		}
	}
}

// handleDelivery routes one delivery and settles it.
func (c *Consumer) handleDelivery(ctx context.Context, d amqp.Delivery) {
	start := time.Now()

	err := c.route(ctx, d.Body)
	outcome := c.settle(ctx, d, err)

	queue := c.config.Topology.Queue
	metrics.HandlerDuration.WithLabelValues(queue).Observe(time.Since(start).Seconds())
	metrics.IncConsumed(queue, outcome)
}

// route runs one handler attempt with its own HandlerTimeout. The context is
// detached from ctx so that in-flight messages finish during shutdown.
func (c *Consumer) route(ctx context.Context, body []byte) error {
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.config.HandlerTimeout)
	defer cancel()
	return c.router.Route(hctx, body)
}

func (c *Consumer) settle(ctx context.Context, d amqp.Delivery, err error) string {
	log := c.logger.WithField("delivery_tag", d.DeliveryTag)
	if d.MessageId != "" {
		log = log.WithField("message_id", d.MessageId)
	}

	switch {
	case err == nil:
		c.ack(log, d)
		return metrics.OutcomeAck

	case errors.Is(err, ErrMalformedMessage):
		log.WithError(err).Error("Discarding malformed message")
		c.nack(log, d)
		return metrics.OutcomeMalformed

	case errors.Is(err, ErrUnknownMessageType):
		log.WithError(err).Warn("No handler registered for message type")
		c.ack(log, d)
		return metrics.OutcomeUnknown
	}

	if c.config.Retry == nil {
		log.WithError(err).Error("Handler failed, dropping message")
		c.nack(log, d)
		return metrics.OutcomeDropped
	}

	return c.retryOrDeadLetter(ctx, log, d, err)
}

func (c *Consumer) retryOrDeadLetter(ctx context.Context, log logrus.FieldLogger, d amqp.Delivery, firstErr error) string {
	policy := c.config.Retry
	attempts, err := policy.retry(context.WithoutCancel(ctx), c.config.Topology.Queue, func() error {
		return c.route(ctx, d.Body)
	})
	if err == nil {
		log.WithField("retries", attempts).Info("Handler succeeded after retry")
		c.ack(log, d)
		return metrics.OutcomeAck
	}
	if attempts == 0 {
		err = firstErr
	}

	if policy.DeadLetter == nil {
		log.WithError(err).Error("Handler failed after retries, dropping message")
		c.nack(log, d)
		return metrics.OutcomeDropped
	}

	entry := deadletter.Entry{
		Queue:      c.config.Topology.Queue,
		Exchange:   d.Exchange,
		RoutingKey: d.RoutingKey,
		Attempts:   attempts + 1,
		Error:      err.Error(),
		Payload:    d.Body,
	}
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deadLetterTimeout)
	defer cancel()
	if pushErr := policy.DeadLetter.Push(pushCtx, entry); pushErr != nil {
		log.WithError(pushErr).Error("Dead-letter write failed, dropping message")
		c.nack(log, d)
		return metrics.OutcomeDropped
	}

	log.WithError(err).WithField("attempts", entry.Attempts).Error("Handler failed after retries, message dead-lettered")
	c.ack(log, d)
	return metrics.OutcomeDeadLettered
}

func (c *Consumer) ack(log logrus.FieldLogger, d amqp.Delivery) {
	if err := d.Ack(false); err != nil {
		log.WithError(err).Error("Failed to ack message")
	}
}

// nack discards the message: requeue is always false.
func (c *Consumer) nack(log logrus.FieldLogger, d amqp.Delivery) {
	if err := d.Nack(false, false); err != nil {
		log.WithError(err).Error("Failed to nack message")
	}
}
