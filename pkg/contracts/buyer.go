package contracts

import (
	"time"

	"jobber/pkg/messaging"
)

const (
	TypeAuth                = "auth"
	TypeUpdatePurchasedGigs = "update-purchased-gigs"
)

// Purchased gigs actions.
const (
	ActionPurchased = "purchased"
	ActionCancelled = "cancelled"
)

// BuyerMessage is a message on the jobber-buyer-update exchange.
type BuyerMessage interface {
	Message
	buyerMessage()
}

// BuyerCreated is sent by the auth service after signup.
type BuyerCreated struct {
	Type           string     `json:"type"`
	Username       string     `json:"username"`
	Email          string     `json:"email"`
	ProfilePicture string     `json:"profilePicture"`
	Country        string     `json:"country"`
	CreatedAt      *time.Time `json:"createdAt,omitempty"`
}

// PurchasedGigsUpdate adds (purchased) or removes (cancelled) a gig from a
// buyer's purchased gigs.
type PurchasedGigsUpdate struct {
	Type           string `json:"type"`
	BuyerID        string `json:"buyerId"`
	PurchasedGigID string `json:"purchasedGigId"`
	Action         string `json:"action"`
}

func (*BuyerCreated) MessageType() string        { return TypeAuth }
func (*PurchasedGigsUpdate) MessageType() string { return TypeUpdatePurchasedGigs }
func (*BuyerCreated) buyerMessage()              {}
func (*PurchasedGigsUpdate) buyerMessage()       {}

func NewBuyerCreated(username, email, profilePicture, country string, createdAt time.Time) *BuyerCreated {
	return &BuyerCreated{
		Type:           TypeAuth,
		Username:       username,
		Email:          email,
		ProfilePicture: profilePicture,
		Country:        country,
		CreatedAt:      &createdAt,
	}
}

func DecodeBuyerMessage(body []byte) (BuyerMessage, error) {
	t, err := discriminator(body, "type")
	if err != nil {
		return nil, err
	}

	switch t {
	case TypeAuth:
		var m BuyerCreated
		if err := decode(body, &m); err != nil {
			return nil, err
		}
		if err := checkRequired(t, "email", m.Email, "username", m.Username); err != nil {
			return nil, err
		}
		return &m, nil

	case TypeUpdatePurchasedGigs:
		var m PurchasedGigsUpdate
		if err := decode(body, &m); err != nil {
			return nil, err
		}
		if err := checkRequired(t, "buyerId", m.BuyerID, "purchasedGigId", m.PurchasedGigID); err != nil {
			return nil, err
		}
		if m.Action != ActionPurchased && m.Action != ActionCancelled {
			return nil, malformed("%s: unknown action %q", t, m.Action)
		}
		return &m, nil
	}
	return nil, unknownType(messaging.BuyerUpdateExchange, t)
}
