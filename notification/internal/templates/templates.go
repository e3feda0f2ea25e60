// Package templates renders the notification emails embedded in the binary.
package templates

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"

	"jobber/pkg/contracts"
)

//go:embed emails/*.html
var files embed.FS

var ErrUnknownTemplate = errors.New("unknown email template")

// subjects lists every template the renderer knows, with its default
// subject line. A message may override the subject through its locals.
var subjects = map[string]string{
	contracts.TemplateVerifyEmail:            "Verify your email",
	contracts.TemplateForgotPassword:         "Reset your password",
	contracts.TemplateResetPasswordSuccess:   "Your password was reset",
	contracts.TemplateOTPEmail:               "Your login code",
	contracts.TemplateOrderPlaced:            "You have a new order",
	contracts.TemplateOrderReceipt:           "Your order receipt",
	contracts.TemplateOffer:                  "You received a custom offer",
	contracts.TemplateOrderExtension:         "Order extension request",
	contracts.TemplateOrderExtensionApproval: "Order extension update",
	contracts.TemplateOrderDelivered:         "Your order was delivered",
}

type Renderer struct {
	templates map[string]*template.Template
}

// New parses every template once. It fails if a known template is missing.
func New() (*Renderer, error) {
	r := &Renderer{templates: make(map[string]*template.Template, len(subjects))}
	for name := range subjects {
		t, err := template.ParseFS(files, "emails/layout.html", "emails/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.templates[name] = t
	}
	return r, nil
}

// Has reports whether name is a known template.
func (r *Renderer) Has(name string) bool {
	_, ok := r.templates[name]
	return ok
}

// Render returns the subject and HTML body for template name.
func (r *Renderer) Render(name string, locals contracts.EmailLocals) (string, string, error) {
	t, ok := r.templates[name]
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", locals); err != nil {
		return "", "", fmt.Errorf("render %s: %w", name, err)
	}

	subject := subjects[name]
	if locals.Subject != "" {
		subject = locals.Subject
	}
	return subject, buf.String(), nil
}
