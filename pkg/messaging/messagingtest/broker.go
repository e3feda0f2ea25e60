// Package messagingtest provides an in-memory broker that satisfies the
// messaging Dialer/Conn/Channel interfaces. It routes direct and fanout
// exchanges, records acks and nacks, and requeues on nack(requeue=true) and on
// channel loss, which is enough to observe delivery semantics in tests.
package messagingtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"jobber/pkg/messaging"
)

// Settlement records how a delivery was finished by a consumer.
type Settlement struct {
	Queue   string
	Tag     uint64
	Action  string // "ack", "nack" or "reject"
	Requeue bool
	Body    []byte
}

type binding struct {
	queue    string
	exchange string
	key      string
}

type queue struct {
	name    string
	backlog []amqp.Delivery
	out     chan amqp.Delivery
	owner   *Channel
	tag     string
}

type pending struct {
	queue    string
	body     []byte
	exchange string
	key      string
	channel  *Channel
}

type Broker struct {
	mu          sync.Mutex
	exchanges   map[string]string
	bindings    []binding
	queues      map[string]*queue
	pending     map[uint64]pending
	settlements []Settlement
	nextTag     uint64
	dialErr     error
	dials       int
	qos         []int
	channels    []*Channel
	conns       []*Conn
}

func NewBroker() *Broker {
	return &Broker{
		exchanges: make(map[string]string),
		queues:    make(map[string]*queue),
		pending:   make(map[uint64]pending),
	}
}

// Dial is a messaging.Dialer backed by the broker.
func (b *Broker) Dial(string) (messaging.Conn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.dials++
	if b.dialErr != nil {
		return nil, b.dialErr
	}
	c := &Conn{b: b}
	b.conns = append(b.conns, c)
	return c, nil
}

// FailDial makes subsequent dials fail with err (nil restores dialing).
func (b *Broker) FailDial(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dialErr = err
}

func (b *Broker) Dials() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dials
}

// ExchangeKind returns the declared kind of name, or "".
func (b *Broker) ExchangeKind(name string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exchanges[name]
}

// HasBinding reports whether queue is bound to exchange with key.
func (b *Broker) HasBinding(queueName, exchange, key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, bd := range b.bindings {
		if bd.queue == queueName && bd.exchange == exchange && bd.key == key {
			return true
		}
	}
	return false
}

// Prefetch returns every prefetch count passed to Qos, in order.
func (b *Broker) Prefetch() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]int(nil), b.qos...)
}

// Tap declares exchange, an observation queue and the binding between them
// so tests can read what gets published with Drain.
func (b *Broker) Tap(queueName, exchange string, kind messaging.ExchangeKind, key string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.exchanges[exchange]; !ok {
		b.exchanges[exchange] = string(kind)
	}
	if _, ok := b.queues[queueName]; !ok {
		b.queues[queueName] = &queue{name: queueName}
	}
	if kind == messaging.Fanout {
		key = ""
	}
	b.bindings = append(b.bindings, binding{queue: queueName, exchange: exchange, key: key})
}

// Drain removes and returns the bodies waiting in a queue that has no
// consumer attached.
func (b *Broker) Drain(queueName string) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queues[queueName]
	if !ok {
		return nil
	}
	bodies := make([][]byte, 0, len(q.backlog))
	for _, d := range q.backlog {
		bodies = append(bodies, d.Body)
		delete(b.pending, d.DeliveryTag)
	}
	q.backlog = nil
	return bodies
}

// Depth returns the number of messages waiting in a queue (not delivered
// to a consumer yet).
func (b *Broker) Depth(queueName string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if q, ok := b.queues[queueName]; ok {
		return len(q.backlog)
	}
	return 0
}

// Publish routes body through exchange as if a remote service had sent it.
func (b *Broker) Publish(exchange, key string, body []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.routeLocked(exchange, key, body)
}

func (b *Broker) Settlements() []Settlement {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Settlement(nil), b.settlements...)
}

// WaitSettlements polls until at least n settlements were recorded or the
// timeout expires, and returns what was recorded.
func (b *Broker) WaitSettlements(n int, timeout time.Duration) []Settlement {
	deadline := time.Now().Add(timeout)
	for {
		s := b.Settlements()
		if len(s) >= n || time.Now().After(deadline) {
			return s
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// CloseChannels closes every open channel, as the broker does after a
// channel-level exception. Unacknowledged deliveries are requeued.
func (b *Broker) CloseChannels() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.channels {
		ch.closeLocked()
	}
}

func (b *Broker) routeLocked(exchange, key string, body []byte) error {
	if exchange == "" {
		q, ok := b.queues[key]
		if !ok {
			return nil
		}
		b.deliverLocked(q, exchange, key, body, false)
		return nil
	}

	kind, ok := b.exchanges[exchange]
	if !ok {
		return &amqp.Error{Code: amqp.NotFound, Reason: fmt.Sprintf("NOT_FOUND - no exchange '%s'", exchange)}
	}
	for _, bd := range b.bindings {
		if bd.exchange != exchange {
			continue
		}
		if kind == amqp.ExchangeFanout || bd.key == key {
			b.deliverLocked(b.queues[bd.queue], exchange, key, body, false)
		}
	}
	return nil
}

func (b *Broker) deliverLocked(q *queue, exchange, key string, body []byte, redelivered bool) {
	b.nextTag++
	tag := b.nextTag
	d := amqp.Delivery{
		Acknowledger: b,
		ContentType:  "application/json",
		DeliveryTag:  tag,
		Redelivered:  redelivered,
		Exchange:     exchange,
		RoutingKey:   key,
		Body:         append([]byte(nil), body...),
	}

	p := pending{queue: q.name, body: d.Body, exchange: exchange, key: key}
	if q.out != nil {
		d.ConsumerTag = q.tag
		p.channel = q.owner
		q.out <- d
	} else {
		q.backlog = append(q.backlog, d)
	}
	b.pending[tag] = p
}

// detachLocked disconnects the consumer of q. Deliveries still buffered for
// it go back to the backlog so they are not handed out twice.
func (b *Broker) detachLocked(q *queue) {
	for {
		select {
		case d := <-q.out:
			d.ConsumerTag = ""
			p := b.pending[d.DeliveryTag]
			p.channel = nil
			b.pending[d.DeliveryTag] = p
			q.backlog = append(q.backlog, d)
			continue
		default:
		}
		break
	}
	close(q.out)
	q.out = nil
	q.owner = nil
}

func (b *Broker) settle(tag uint64, action string, requeue bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.pending[tag]
	if !ok {
		return fmt.Errorf("messagingtest: unknown delivery tag %d", tag)
	}
	delete(b.pending, tag)
	b.settlements = append(b.settlements, Settlement{
		Queue:   p.queue,
		Tag:     tag,
		Action:  action,
		Requeue: requeue,
		Body:    p.body,
	})

	if requeue {
		if q, ok := b.queues[p.queue]; ok {
			b.deliverLocked(q, p.exchange, p.key, p.body, true)
		}
	}
	return nil
}

// Ack implements amqp.Acknowledger.
func (b *Broker) Ack(tag uint64, _ bool) error { return b.settle(tag, "ack", false) }

// Nack implements amqp.Acknowledger.
func (b *Broker) Nack(tag uint64, _ bool, requeue bool) error {
	return b.settle(tag, "nack", requeue)
}

// Reject implements amqp.Acknowledger.
func (b *Broker) Reject(tag uint64, requeue bool) error {
	return b.settle(tag, "reject", requeue)
}

// Conn is an in-memory messaging.Conn.
type Conn struct {
	b      *Broker
	closed bool
}

func (c *Conn) Channel() (messaging.Channel, error) {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()

	if c.closed {
		return nil, amqp.ErrClosed
	}
	ch := &Channel{b: c.b, conn: c}
	c.b.channels = append(c.b.channels, ch)
	return ch, nil
}

func (c *Conn) IsClosed() bool {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	return c.closed
}

func (c *Conn) Close() error {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()

	if c.closed {
		return amqp.ErrClosed
	}
	c.closed = true
	for _, ch := range c.b.channels {
		if ch.conn == c {
			ch.closeLocked()
		}
	}
	return nil
}

// Channel is an in-memory messaging.Channel.
type Channel struct {
	b      *Broker
	conn   *Conn
	closed bool
}

func (ch *Channel) ExchangeDeclare(name, kind string, _, _, _, _ bool, _ amqp.Table) error {
	ch.b.mu.Lock()
	defer ch.b.mu.Unlock()

	if ch.closed {
		return amqp.ErrClosed
	}
	if existing, ok := ch.b.exchanges[name]; ok && existing != kind {
		ch.closeLocked()
		return &amqp.Error{
			Code:   amqp.PreconditionFailed,
			Reason: fmt.Sprintf("PRECONDITION_FAILED - inequivalent arg 'type' for exchange '%s': received '%s' but current is '%s'", name, kind, existing),
		}
	}
	ch.b.exchanges[name] = kind
	return nil
}

func (ch *Channel) QueueDeclare(name string, _, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	ch.b.mu.Lock()
	defer ch.b.mu.Unlock()

	if ch.closed {
		return amqp.Queue{}, amqp.ErrClosed
	}
	q, ok := ch.b.queues[name]
	if !ok {
		q = &queue{name: name}
		ch.b.queues[name] = q
	}
	return amqp.Queue{Name: name, Messages: len(q.backlog)}, nil
}

func (ch *Channel) QueueBind(name, key, exchange string, _ bool, _ amqp.Table) error {
	ch.b.mu.Lock()
	defer ch.b.mu.Unlock()

	if ch.closed {
		return amqp.ErrClosed
	}
	if _, ok := ch.b.exchanges[exchange]; !ok {
		ch.closeLocked()
		return &amqp.Error{Code: amqp.NotFound, Reason: fmt.Sprintf("NOT_FOUND - no exchange '%s'", exchange)}
	}
	if _, ok := ch.b.queues[name]; !ok {
		ch.closeLocked()
		return &amqp.Error{Code: amqp.NotFound, Reason: fmt.Sprintf("NOT_FOUND - no queue '%s'", name)}
	}
	for _, bd := range ch.b.bindings {
		if bd.queue == name && bd.exchange == exchange && bd.key == key {
			return nil
		}
	}
	ch.b.bindings = append(ch.b.bindings, binding{queue: name, exchange: exchange, key: key})
	return nil
}

func (ch *Channel) Qos(prefetchCount, _ int, _ bool) error {
	ch.b.mu.Lock()
	defer ch.b.mu.Unlock()

	if ch.closed {
		return amqp.ErrClosed
	}
	ch.b.qos = append(ch.b.qos, prefetchCount)
	return nil
}

func (ch *Channel) Consume(queueName, consumer string, _, _, _, _ bool, _ amqp.Table) (<-chan amqp.Delivery, error) {
	ch.b.mu.Lock()
	defer ch.b.mu.Unlock()

	if ch.closed {
		return nil, amqp.ErrClosed
	}
	q, ok := ch.b.queues[queueName]
	if !ok {
		ch.closeLocked()
		return nil, &amqp.Error{Code: amqp.NotFound, Reason: fmt.Sprintf("NOT_FOUND - no queue '%s'", queueName)}
	}

	out := make(chan amqp.Delivery, 1024)
	q.out = out
	q.owner = ch
	q.tag = consumer
	for _, d := range q.backlog {
		d.ConsumerTag = consumer
		p := ch.b.pending[d.DeliveryTag]
		p.channel = ch
		ch.b.pending[d.DeliveryTag] = p
		out <- d
	}
	q.backlog = nil
	return out, nil
}

func (ch *Channel) Cancel(consumer string, _ bool) error {
	ch.b.mu.Lock()
	defer ch.b.mu.Unlock()

	for _, q := range ch.b.queues {
		if q.owner == ch && q.tag == consumer && q.out != nil {
			ch.b.detachLocked(q)
		}
	}
	return nil
}

func (ch *Channel) PublishWithContext(ctx context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ch.b.mu.Lock()
	defer ch.b.mu.Unlock()

	if ch.closed {
		return amqp.ErrClosed
	}
	if err := ch.b.routeLocked(exchange, key, msg.Body); err != nil {
		ch.closeLocked()
		return err
	}
	return nil
}

func (ch *Channel) IsClosed() bool {
	ch.b.mu.Lock()
	defer ch.b.mu.Unlock()
	return ch.closed
}

func (ch *Channel) Close() error {
	ch.b.mu.Lock()
	defer ch.b.mu.Unlock()

	if ch.closed {
		return amqp.ErrClosed
	}
	ch.closeLocked()
	return nil
}

func (ch *Channel) closeLocked() {
	if ch.closed {
		return
	}
	ch.closed = true

	for _, q := range ch.b.queues {
		if q.owner == ch && q.out != nil {
			ch.b.detachLocked(q)
		}
	}

	// the broker requeues whatever this channel left unacknowledged
	for tag, p := range ch.b.pending {
		if p.channel != ch {
			continue
		}
		delete(ch.b.pending, tag)
		if q, ok := ch.b.queues[p.queue]; ok {
			ch.b.deliverLocked(q, p.exchange, p.key, p.body, true)
		}
	}
}
