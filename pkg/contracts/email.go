package contracts

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Email templates. Auth templates travel with the auth-email routing key,
// order templates with order-email.
const (
	TemplateVerifyEmail          = "verifyEmail"
	TemplateForgotPassword       = "forgotPassword"
	TemplateResetPasswordSuccess = "resetPasswordSuccess"
	TemplateOTPEmail             = "otpEmail"

	TemplateOrderPlaced            = "orderPlaced"
	TemplateOrderReceipt           = "orderReceipt"
	TemplateOffer                  = "offer"
	TemplateOrderExtension         = "orderExtension"
	TemplateOrderExtensionApproval = "orderExtensionApproval"
	TemplateOrderDelivered         = "orderDelivered"
)

// Text decodes from a JSON string or number. Order emails carry amounts and
// day counts either way.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*t = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("expected string or number, got %s", b)
		}
		*t = Text(n.String())
	}
	return nil
}

// EmailLocals are the values a template may reference.
type EmailLocals struct {
	AppLink        string `json:"appLink,omitempty"`
	AppIcon        string `json:"appIcon,omitempty"`
	Username       string `json:"username,omitempty"`
	VerifyLink     string `json:"verifyLink,omitempty"`
	ResetLink      string `json:"resetLink,omitempty"`
	OTP            Text   `json:"otp,omitempty"`
	Sender         string `json:"sender,omitempty"`
	OfferLink      string `json:"offerLink,omitempty"`
	Amount         Text   `json:"amount,omitempty"`
	BuyerUsername  string `json:"buyerUsername,omitempty"`
	SellerUsername string `json:"sellerUsername,omitempty"`
	Title          string `json:"title,omitempty"`
	Description    string `json:"description,omitempty"`
	DeliveryDays   Text   `json:"deliveryDays,omitempty"`
	OrderID        string `json:"orderId,omitempty"`
	OrderDue       string `json:"orderDue,omitempty"`
	Requirements   string `json:"requirements,omitempty"`
	OrderURL       string `json:"orderUrl,omitempty"`
	OriginalDate   string `json:"originalDate,omitempty"`
	NewDate        string `json:"newDate,omitempty"`
	Reason         string `json:"reason,omitempty"`
	Subject        string `json:"subject,omitempty"`
	Header         string `json:"header,omitempty"`
	Type           string `json:"type,omitempty"`
	Message        string `json:"message,omitempty"`
	ServiceFee     Text   `json:"serviceFee,omitempty"`
	Total          Text   `json:"total,omitempty"`
}

// EmailMessage is a message on the jobber-email-notification exchange. The
// template name is its discriminator.
type EmailMessage struct {
	ReceiverEmail string `json:"receiverEmail"`
	Template      string `json:"template"`
	EmailLocals
}

func (m *EmailMessage) MessageType() string { return m.Template }

func NewVerifyEmail(receiverEmail, username, verifyLink string) *EmailMessage {
	return &EmailMessage{
		ReceiverEmail: receiverEmail,
		Template:      TemplateVerifyEmail,
		EmailLocals: EmailLocals{
			Username:   username,
			VerifyLink: verifyLink,
		},
	}
}

// DecodeEmailMessage checks that the body names a template and a receiver.
// Whether the template exists is up to the renderer.
func DecodeEmailMessage(body []byte) (*EmailMessage, error) {
	if _, err := discriminator(body, "template"); err != nil {
		return nil, err
	}

	var m EmailMessage
	if err := decode(body, &m); err != nil {
		return nil, err
	}
	if err := checkRequired(m.Template, "receiverEmail", m.ReceiverEmail); err != nil {
		return nil, err
	}
	return &m, nil
}
