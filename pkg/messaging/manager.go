package messaging

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/sirupsen/logrus"
)

// QueueManager owns the publishers and consumers of one service process, all
// sharing a single Connection.
type QueueManager struct {
	conn       *Connection
	logger     logrus.FieldLogger
	publishers map[string]*Publisher
	consumers  map[string]*Consumer
	// failed holds the consumers whose Start gave up, by key.
	failed map[string]error
	mutex  sync.RWMutex
	wg     sync.WaitGroup
}

func NewQueueManager(conn *Connection, logger logrus.FieldLogger) *QueueManager {
	return &QueueManager{
		conn:       conn,
		logger:     logger,
		publishers: make(map[string]*Publisher),
		consumers:  make(map[string]*Consumer),
		failed:     make(map[string]error),
	}
}

func (m *QueueManager) Connection() *Connection { return m.conn }

func (m *QueueManager) GetOrCreatePublisher(key string, config PublisherConfig) *Publisher {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if pub, exists := m.publishers[key]; exists {
		return pub
	}

	pub := NewPublisher(m.conn, config, m.logger)
	m.publishers[key] = pub
	return pub
}

// RegisterConsumer creates a consumer for config and router under key.
// Registering the same key again always replaces the earlier consumer and
// stops it if it is running.
func (m *QueueManager) RegisterConsumer(key string, config ConsumerConfig, router Router) *Consumer {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if old, exists := m.consumers[key]; exists {
		old.Stop()
	}
	delete(m.failed, key)

	c := NewConsumer(m.conn, config, router, m.logger)
	m.consumers[key] = c
	return c
}

// StartAllConsumers runs every registered consumer in its own goroutine.
func (m *QueueManager) StartAllConsumers(ctx context.Context) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	for key, consumer := range m.consumers {
		m.wg.Add(1)
		go func(k string, c *Consumer) {
			defer m.wg.Done()
			if err := c.Start(ctx); err != nil {
				m.logger.WithError(err).WithField("consumer", k).Error("Consumer stopped with error")
				m.mutex.Lock()
				if m.consumers[k] == c {
					m.failed[k] = err
				}
				m.mutex.Unlock()
			}
		}(key, consumer)
	}
}

// FailedConsumers returns the sorted keys of consumers that gave up after
// MaxReconnects. They do not restart on their own.
func (m *QueueManager) FailedConsumers() []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return slices.Sorted(maps.Keys(m.failed))
}

// StopAllConsumers stops every consumer and waits until in-flight handlers
// have settled their deliveries.
func (m *QueueManager) StopAllConsumers() {
	m.mutex.RLock()
	for _, consumer := range m.consumers {
		consumer.Stop()
	}
	m.mutex.RUnlock()

	m.wg.Wait()
}

func (m *QueueManager) Close() {
	m.StopAllConsumers()
	m.conn.Close()
}
