package contracts

import (
	"jobber/pkg/messaging"
)

const (
	TypeGetSellers     = "get-sellers"
	TypeReceiveSellers = "receiveSellers"
)

// GigSeedMessage is a request arriving on the jobber-seed-gig exchange.
type GigSeedMessage interface {
	Message
	gigSeedMessage()
}

// GetSellers asks for Count random sellers to build seed gigs from.
type GetSellers struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

func (*GetSellers) MessageType() string { return TypeGetSellers }
func (*GetSellers) gigSeedMessage()     {}

// ReceiveSellers is the reply to GetSellers.
type ReceiveSellers struct {
	Type    string `json:"type"`
	Sellers any    `json:"sellers"`
	Count   int    `json:"count"`
}

func NewReceiveSellers(sellers any, count int) *ReceiveSellers {
	return &ReceiveSellers{Type: TypeReceiveSellers, Sellers: sellers, Count: count}
}

func DecodeGigSeedMessage(body []byte) (GigSeedMessage, error) {
	t, err := discriminator(body, "type")
	if err != nil {
		return nil, err
	}

	switch t {
	case TypeGetSellers:
		var m GetSellers
		if err := decode(body, &m); err != nil {
			return nil, err
		}
		if m.Count <= 0 {
			return nil, malformed("%s: count must be positive, got %d", t, m.Count)
		}
		return &m, nil
	}
	return nil, unknownType(messaging.GigSeedExchange, t)
}
