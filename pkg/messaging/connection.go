package messaging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"
)

var (
	ErrNotConnected = errors.New("not connected to RabbitMQ")
	ErrShutdown     = errors.New("connection is shutting down")
)

type ConnectionConfig struct {
	URL string
	// Dialer defaults to DialAMQP.
	Dialer Dialer
}

// Connection owns the single broker connection and channel of a service
// process. Every publisher and consumer shares the channel. The connection is
// dialed lazily: when it is absent or has died, the next Channel call dials
// again. There is no background reconnect goroutine.
type Connection struct {
	config ConnectionConfig
	logger logrus.FieldLogger

	mutex      sync.Mutex
	conn       Conn
	channel    Channel
	closed     bool
	signalOnce sync.Once
}

func NewConnection(config ConnectionConfig, logger logrus.FieldLogger) *Connection {
	if config.Dialer == nil {
		config.Dialer = DialAMQP
	}
	return &Connection{
		config: config,
		logger: logger.WithField("component", "rabbitmq-connection"),
	}
}

// Connect eagerly opens the connection and channel.
func (c *Connection) Connect() error {
	_, err := c.Channel()
	return err
}

// Channel returns the shared channel, dialing first when needed. A failed
// dial is logged and returned; callers retry on their next operation.
func (c *Connection) Channel() (Channel, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return nil, ErrShutdown
	}

	if c.channel != nil && !c.channel.IsClosed() && c.conn != nil && !c.conn.IsClosed() {
		return c.channel, nil
	}

	if c.conn == nil || c.conn.IsClosed() {
		conn, err := c.config.Dialer(c.config.URL)
		if err != nil {
			c.logger.WithError(err).Error("Failed to connect to RabbitMQ")
			return nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
		}
		c.conn = conn
		c.channel = nil
	}

	ch, err := c.conn.Channel()
	if err != nil {
		c.logger.WithError(err).Error("Failed to open RabbitMQ channel")
		return nil, fmt.Errorf("%w: open channel: %v", ErrNotConnected, err)
	}
	c.channel = ch

	c.logger.Info("Connected to RabbitMQ")
	return ch, nil
}

func (c *Connection) IsConnected() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return !c.closed && c.conn != nil && !c.conn.IsClosed() &&
		c.channel != nil && !c.channel.IsClosed()
}

// CloseOnSignal closes the connection once, the first time the process
// receives SIGINT or SIGTERM (or the given signals). It returns immediately.
func (c *Connection) CloseOnSignal(ctx context.Context, signals ...os.Signal) {
	if len(signals) == 0 {
		signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	c.signalOnce.Do(func() {
		sigCtx, stop := signal.NotifyContext(ctx, signals...)
		go func() {
			defer stop()
			<-sigCtx.Done()
			if ctx.Err() == nil {
				c.logger.Info("Termination signal received, closing RabbitMQ connection")
			}
			c.Close()
		}()
	})
}

// Close tears down channel then connection. Errors from the close calls
// themselves are logged at debug level and otherwise ignored.
func (c *Connection) Close() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return
	}
	c.closed = true

	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			c.logger.WithError(err).Debug("channel close")
		}
		c.channel = nil
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.WithError(err).Debug("connection close")
		}
		c.conn = nil
	}
}
