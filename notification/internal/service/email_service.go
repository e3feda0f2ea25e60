package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"jobber/notification/internal/mailer"
	"jobber/notification/internal/templates"
	"jobber/pkg/contracts"
	"jobber/pkg/messaging"
	"jobber/pkg/metrics"
)

const (
	authAppIcon  = "https://i.ibb.co/rR9tGcrZ/jobber3057-logowik-com.webp"
	orderAppIcon = "https://i.ibb.co/Kyp2m0t/cover.png"
)

type EmailService struct {
	renderer *templates.Renderer
	mailer   mailer.Mailer
	appLink  string
	logger   logrus.FieldLogger
}

func NewEmailService(renderer *templates.Renderer, m mailer.Mailer, appLink string, logger logrus.FieldLogger) *EmailService {
	return &EmailService{
		renderer: renderer,
		mailer:   m,
		appLink:  appLink,
		logger:   logger.WithField("component", "email-service"),
	}
}

// SendAuthEmail sends an account email (verification, password reset, otp).
func (s *EmailService) SendAuthEmail(ctx context.Context, msg *contracts.EmailMessage) error {
	locals := contracts.EmailLocals{
		AppLink:    s.appLink,
		AppIcon:    authAppIcon,
		Username:   msg.Username,
		VerifyLink: msg.VerifyLink,
		ResetLink:  msg.ResetLink,
		OTP:        msg.OTP,
	}
	return s.send(ctx, msg, locals, msg.Template)
}

// SendOrderEmail sends an order email. A placed order also sends the
// receipt to the same receiver.
func (s *EmailService) SendOrderEmail(ctx context.Context, msg *contracts.EmailMessage) error {
	locals := msg.EmailLocals
	locals.AppLink = s.appLink
	locals.AppIcon = orderAppIcon

	names := []string{msg.Template}
	if msg.Template == contracts.TemplateOrderPlaced {
		names = append(names, contracts.TemplateOrderReceipt)
	}
	return s.send(ctx, msg, locals, names...)
}

func (s *EmailService) send(ctx context.Context, msg *contracts.EmailMessage, locals contracts.EmailLocals, names ...string) error {
	// an unknown template is a message nobody here can handle
	if !s.renderer.Has(msg.Template) {
		return fmt.Errorf("%w: template %q", messaging.ErrUnknownMessageType, msg.Template)
	}

	for _, name := range names {
		subject, html, err := s.renderer.Render(name, locals)
		if err != nil {
			return err
		}

		mail := mailer.Mail{To: msg.ReceiverEmail, Subject: subject, HTML: html}
		// subject and receiver come off the wire
		if err := mailer.CheckHeaders(mail); err != nil {
			return fmt.Errorf("%w: %v", messaging.ErrMalformedMessage, err)
		}

		err = s.mailer.Send(ctx, mail)
		metrics.IncEmailSent(name, err)
		if err != nil {
			return fmt.Errorf("send %s email: %w", name, err)
		}

		s.logger.WithFields(logrus.Fields{
			"template": name,
			"receiver": msg.ReceiverEmail,
		}).Info("Email sent")
	}
	return nil
}
