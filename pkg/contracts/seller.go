package contracts

import (
	"time"

	"jobber/pkg/messaging"
)

const (
	TypeCreateOrder    = "create-order"
	TypeUpdateGigCount = "update-gig-count"
	TypeApproveOrder   = "approve-order"
	TypeCancelOrder    = "cancel-order"
)

// SellerMessage is a message on the jobber-seller-update exchange.
type SellerMessage interface {
	Message
	sellerMessage()
}

type OrderCreated struct {
	Type        string `json:"type"`
	SellerID    string `json:"sellerId"`
	OngoingJobs int    `json:"ongoingJobs"`
}

type GigCountUpdate struct {
	Type        string `json:"type"`
	GigSellerID string `json:"gigSellerId"`
	Count       int    `json:"count"`
}

// OrderApproved carries deltas for the job counters and earnings, plus the
// delivery date that replaces the seller's recent delivery.
type OrderApproved struct {
	Type           string     `json:"type"`
	SellerID       string     `json:"sellerId"`
	OngoingJobs    int        `json:"ongoingJobs"`
	CompletedJobs  int        `json:"completedJobs"`
	TotalEarnings  float64    `json:"totalEarnings"`
	RecentDelivery *time.Time `json:"recentDelivery,omitempty"`
}

type OrderCancelled struct {
	Type     string `json:"type"`
	SellerID string `json:"sellerId"`
}

func (*OrderCreated) MessageType() string   { return TypeCreateOrder }
func (*GigCountUpdate) MessageType() string { return TypeUpdateGigCount }
func (*OrderApproved) MessageType() string  { return TypeApproveOrder }
func (*OrderCancelled) MessageType() string { return TypeCancelOrder }
func (*OrderCreated) sellerMessage()        {}
func (*GigCountUpdate) sellerMessage()      {}
func (*OrderApproved) sellerMessage()       {}
func (*OrderCancelled) sellerMessage()      {}

func DecodeSellerMessage(body []byte) (SellerMessage, error) {
	t, err := discriminator(body, "type")
	if err != nil {
		return nil, err
	}

	var m SellerMessage
	switch t {
	case TypeCreateOrder:
		m = &OrderCreated{}
	case TypeUpdateGigCount:
		m = &GigCountUpdate{}
	case TypeApproveOrder:
		m = &OrderApproved{}
	case TypeCancelOrder:
		m = &OrderCancelled{}
	default:
		return nil, unknownType(messaging.SellerUpdateExchange, t)
	}
	if err := decode(body, m); err != nil {
		return nil, err
	}

	switch v := m.(type) {
	case *OrderCreated:
		err = checkRequired(t, "sellerId", v.SellerID)
	case *GigCountUpdate:
		err = checkRequired(t, "gigSellerId", v.GigSellerID)
	case *OrderApproved:
		err = checkRequired(t, "sellerId", v.SellerID)
	case *OrderCancelled:
		err = checkRequired(t, "sellerId", v.SellerID)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}
