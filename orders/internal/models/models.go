package models

import (
	"time"
)

type OrderStatus string

const (
	OrderStatusInProgress OrderStatus = "in-progress"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

type Order struct {
	ID             string      `json:"orderId"`
	GigID          string      `json:"gigId"`
	SellerID       string      `json:"sellerId"`
	SellerUsername string      `json:"sellerUsername"`
	SellerEmail    string      `json:"sellerEmail"`
	BuyerID        string      `json:"buyerId"`
	BuyerUsername  string      `json:"buyerUsername"`
	BuyerEmail     string      `json:"buyerEmail"`
	Title          string      `json:"gigTitle"`
	Price          float64     `json:"price"`
	ServiceFee     float64     `json:"serviceFee"`
	Requirements   string      `json:"requirements"`
	Status         OrderStatus `json:"status"`
	DeliveryDays   int         `json:"deliveryDays"`
	DueDate        time.Time   `json:"dueDate"`
	DeliveredAt    *time.Time  `json:"deliveredAt,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// Total is what the buyer pays.
func (o *Order) Total() float64 {
	return o.Price + o.ServiceFee
}

type CreateOrderRequest struct {
	GigID          string  `json:"gigId"`
	SellerID       string  `json:"sellerId"`
	SellerUsername string  `json:"sellerUsername"`
	SellerEmail    string  `json:"sellerEmail"`
	BuyerID        string  `json:"buyerId"`
	BuyerUsername  string  `json:"buyerUsername"`
	BuyerEmail     string  `json:"buyerEmail"`
	Title          string  `json:"gigTitle"`
	Price          float64 `json:"price"`
	ServiceFee     float64 `json:"serviceFee"`
	Requirements   string  `json:"requirements"`
	DeliveryDays   int     `json:"deliveryDays"`
}
