package contracts

import (
	"encoding/json"
	"time"

	"jobber/pkg/messaging"
)

const (
	TypeBuyerReview = "buyer-review"
	TypeUpdateGig   = "update-gig"
)

// ReviewMessage is a message on the jobber-review fanout exchange.
type ReviewMessage interface {
	Message
	reviewMessage()
}

type BuyerReview struct {
	Type             string     `json:"type"`
	GigID            string     `json:"gigId"`
	SellerID         string     `json:"sellerId"`
	ReviewerID       string     `json:"reviewerId"`
	ReviewerImage    string     `json:"reviewerImage,omitempty"`
	ReviewerUsername string     `json:"reviewerUsername,omitempty"`
	Country          string     `json:"country,omitempty"`
	Review           string     `json:"review"`
	Rating           int        `json:"rating"`
	OrderID          string     `json:"orderId,omitempty"`
	ReviewType       string     `json:"reviewType,omitempty"`
	CreatedAt        *time.Time `json:"createdAt,omitempty"`

	// Raw is the body as received, forwarded untouched to the gig service.
	Raw json.RawMessage `json:"-"`
}

func (*BuyerReview) MessageType() string { return TypeBuyerReview }
func (*BuyerReview) reviewMessage()      {}

// GigReviewUpdate tells the gig service to refresh a gig's rating.
type GigReviewUpdate struct {
	Type      string          `json:"type"`
	GigReview json.RawMessage `json:"gigReview"`
}

func NewGigReviewUpdate(review *BuyerReview) *GigReviewUpdate {
	raw := review.Raw
	if len(raw) == 0 {
		raw, _ = json.Marshal(review)
	}
	return &GigReviewUpdate{Type: TypeUpdateGig, GigReview: raw}
}

func DecodeReviewMessage(body []byte) (ReviewMessage, error) {
	t, err := discriminator(body, "type")
	if err != nil {
		return nil, err
	}

	switch t {
	case TypeBuyerReview:
		var m BuyerReview
		if err := decode(body, &m); err != nil {
			return nil, err
		}
		if err := checkRequired(t, "sellerId", m.SellerID); err != nil {
			return nil, err
		}
		m.Raw = append(json.RawMessage(nil), body...)
		return &m, nil
	}
	return nil, unknownType(messaging.ReviewExchange, t)
}
