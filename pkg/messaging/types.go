package messaging

import (
	"context"
	"errors"

	amqp "github.com/rabbitmq/amqp091-go"
)

type ExchangeKind string

const (
	Direct ExchangeKind = amqp.ExchangeDirect
	Fanout ExchangeKind = amqp.ExchangeFanout
)

// Topology names everything a consumer declares before it starts pulling:
// exchange (with its kind), queue and the binding between them.
type Topology struct {
	Exchange   string
	Kind       ExchangeKind
	RoutingKey string
	Queue      string
}

// BindingKey is the routing key used for the queue binding. Fanout
// exchanges ignore it, so it is always empty for them.
func (t Topology) BindingKey() string {
	if t.Kind == Fanout {
		return ""
	}
	return t.RoutingKey
}

var (
	// ErrMalformedMessage marks a body that cannot be decoded into an
	// envelope. Such messages are discarded without requeue.
	ErrMalformedMessage = errors.New("malformed message")
	// ErrUnknownMessageType marks an envelope whose type has no handler.
	// Such messages are acknowledged and logged.
	ErrUnknownMessageType = errors.New("unknown message type")
)

// Router decodes a delivery body and hands it to the handler registered for
// its type. Decode failures wrap ErrMalformedMessage, unregistered types wrap
// ErrUnknownMessageType, anything else is the handler's own failure.
type Router interface {
	Route(ctx context.Context, body []byte) error
}

// RouterFunc adapts a function to Router.
type RouterFunc func(ctx context.Context, body []byte) error

func (f RouterFunc) Route(ctx context.Context, body []byte) error { return f(ctx, body) }
