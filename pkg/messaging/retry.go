package messaging

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"jobber/pkg/deadletter"
	"jobber/pkg/metrics"
)

// DeadLetterSink stores messages the retry policy gave up on.
type DeadLetterSink interface {
	Push(ctx context.Context, e deadletter.Entry) error
}

// RetryPolicy replaces the default drop-on-first-failure behaviour: the
// handler is re-run with exponential backoff and, once MaxRetries further
// attempts have failed, the message is written to the dead-letter sink and
// acknowledged. A nil *RetryPolicy on a consumer means drop.
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	DeadLetter      DeadLetterSink
}

// retry re-runs route until it succeeds or the attempts run out. It returns
// the number of attempts made (excluding the first, which the caller already
// made) and the last error.
func (p *RetryPolicy) retry(ctx context.Context, queue string, route func() error) (int, error) {
	if p.MaxRetries <= 0 {
		return 0, errors.New("retry policy allows no retries")
	}

	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}

	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		metrics.HandlerRetries.WithLabelValues(queue).Inc()
		err := route()
		if errors.Is(err, ErrMalformedMessage) || errors.Is(err, ErrUnknownMessageType) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(p.MaxRetries)),
	)
	return attempts, err
}
