package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	gomail "github.com/wneessen/go-mail"
	"golang.org/x/time/rate"
)

// ErrInvalidHeader is returned for a recipient or subject that would break
// out of its header line.
var ErrInvalidHeader = errors.New("invalid mail header")

// Mail is one rendered message ready for the transport.
type Mail struct {
	To      string
	Subject string
	HTML    string
}

type Mailer interface {
	Send(ctx context.Context, m Mail) error
}

// CheckHeaders rejects line breaks in the fields that end up in headers.
func CheckHeaders(m Mail) error {
	if strings.ContainsAny(m.To, "\r\n") {
		return fmt.Errorf("%w: recipient contains a line break", ErrInvalidHeader)
	}
	if strings.ContainsAny(m.Subject, "\r\n") {
		return fmt.Errorf("%w: subject contains a line break", ErrInvalidHeader)
	}
	return nil
}

// SMTPConfig holds the transport settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer delivers mail through an SMTP relay, with PLAIN auth when a
// username is set and STARTTLS when the relay offers it.
type SMTPMailer struct {
	from string
	// send is the client's DialAndSendWithContext; tests replace it
	send func(ctx context.Context, msg *gomail.Msg) error
}

func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTPMailer{
		from: cfg.From,
		send: func(ctx context.Context, msg *gomail.Msg) error {
			return client.DialAndSendWithContext(ctx, msg)
		},
	}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, mail Mail) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := m.message(mail)
	if err != nil {
		return err
	}
	if err := m.send(ctx, msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", mail.To, err)
	}
	return nil
}

// message builds the MIME message. Header values are encoded by go-mail, so
// non-ASCII subjects survive.
func (m *SMTPMailer) message(mail Mail) (*gomail.Msg, error) {
	if err := CheckHeaders(mail); err != nil {
		return nil, err
	}

	msg := gomail.NewMsg()
	if err := msg.FromFormat("Jobber App", m.from); err != nil {
		return nil, fmt.Errorf("from address %q: %w", m.from, err)
	}
	if err := msg.To(mail.To); err != nil {
		return nil, fmt.Errorf("%w: recipient %q: %v", ErrInvalidHeader, mail.To, err)
	}
	msg.Subject(mail.Subject)
	msg.SetDate()
	msg.SetMessageID()
	msg.SetBodyString(gomail.TypeTextHTML, mail.HTML)
	return msg, nil
}

// LogMailer only logs what it would send. It stands in for SMTP in local
// setups without a relay.
type LogMailer struct {
	logger logrus.FieldLogger

	mu   sync.Mutex
	sent []Mail
}

func NewLogMailer(logger logrus.FieldLogger) *LogMailer {
	return &LogMailer{logger: logger.WithField("component", "log-mailer")}
}

func (m *LogMailer) Send(_ context.Context, mail Mail) error {
	m.mu.Lock()
	m.sent = append(m.sent, mail)
	m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"to":      mail.To,
		"subject": mail.Subject,
	}).Info("Email sent successfully")
	return nil
}

// Sent returns a copy of everything sent so far.
func (m *LogMailer) Sent() []Mail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Mail(nil), m.sent...)
}

type rateLimited struct {
	next    Mailer
	limiter *rate.Limiter
}

// RateLimited wraps next so that at most limit mails per second (with the
// given burst) reach it. Send blocks until a token is free or ctx ends.
func RateLimited(next Mailer, limit rate.Limit, burst int) Mailer {
	return &rateLimited{next: next, limiter: rate.NewLimiter(limit, burst)}
}

func (r *rateLimited) Send(ctx context.Context, mail Mail) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("mail rate limit: %w", err)
	}
	return r.next.Send(ctx, mail)
}
