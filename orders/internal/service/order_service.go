package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"jobber/orders/internal/models"
	"jobber/orders/internal/repositories"
	"jobber/pkg/contracts"
)

var ErrInvalidOrder = errors.New("invalid order")

// Publisher sends one message to a fixed exchange and routing key.
type Publisher interface {
	Publish(ctx context.Context, payload any) error
}

// OrderService stores orders and tells the users and notification services
// about every status change. Publish failures are logged; the stored order
// stays the source of truth.
type OrderService struct {
	orders        *repositories.OrderRepository
	sellerUpdates Publisher
	buyerUpdates  Publisher
	orderEmails   Publisher
	clientURL     string
	logger        logrus.FieldLogger
}

func NewOrderService(
	orders *repositories.OrderRepository,
	sellerUpdates Publisher,
	buyerUpdates Publisher,
	orderEmails Publisher,
	clientURL string,
	logger logrus.FieldLogger,
) *OrderService {
	return &OrderService{
		orders:        orders,
		sellerUpdates: sellerUpdates,
		buyerUpdates:  buyerUpdates,
		orderEmails:   orderEmails,
		clientURL:     clientURL,
		logger:        logger.WithField("component", "order-service"),
	}
}

// CreateOrder stores a new in-progress order, bumps the seller's ongoing
// jobs, records the purchase on the buyer and emails the seller.
func (s *OrderService) CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.Order, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	order := &models.Order{
		GigID:          req.GigID,
		SellerID:       req.SellerID,
		SellerUsername: req.SellerUsername,
		SellerEmail:    req.SellerEmail,
		BuyerID:        req.BuyerID,
		BuyerUsername:  req.BuyerUsername,
		BuyerEmail:     req.BuyerEmail,
		Title:          req.Title,
		Price:          req.Price,
		ServiceFee:     req.ServiceFee,
		Requirements:   req.Requirements,
		Status:         models.OrderStatusInProgress,
		DeliveryDays:   req.DeliveryDays,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to save order: %w", err)
	}

	s.publish(ctx, s.sellerUpdates, order, &contracts.OrderCreated{
		Type:        contracts.TypeCreateOrder,
		SellerID:    order.SellerID,
		OngoingJobs: 1,
	})
	s.publish(ctx, s.buyerUpdates, order, &contracts.PurchasedGigsUpdate{
		Type:           contracts.TypeUpdatePurchasedGigs,
		BuyerID:        order.BuyerID,
		PurchasedGigID: order.GigID,
		Action:         contracts.ActionPurchased,
	})
	s.publish(ctx, s.orderEmails, order, s.email(order, order.SellerEmail, contracts.TemplateOrderPlaced))

	s.logger.WithFields(logrus.Fields{
		"order_id":  order.ID,
		"seller_id": order.SellerID,
		"buyer_id":  order.BuyerID,
	}).Info("Order created")
	return order, nil
}

// DeliverOrder marks an in-progress order delivered and emails the buyer.
func (s *OrderService) DeliverOrder(ctx context.Context, id string) (*models.Order, error) {
	order, err := s.transition(ctx, id, models.OrderStatusDelivered, models.OrderStatusInProgress)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, s.orderEmails, order, s.email(order, order.BuyerEmail, contracts.TemplateOrderDelivered))
	return order, nil
}

// ApproveOrder completes a delivered order. The seller's ongoing jobs drop by
// one, completed jobs and earnings go up.
func (s *OrderService) ApproveOrder(ctx context.Context, id string) (*models.Order, error) {
	order, err := s.transition(ctx, id, models.OrderStatusCompleted, models.OrderStatusDelivered)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, s.sellerUpdates, order, &contracts.OrderApproved{
		Type:           contracts.TypeApproveOrder,
		SellerID:       order.SellerID,
		OngoingJobs:    -1,
		CompletedJobs:  1,
		TotalEarnings:  order.Price,
		RecentDelivery: order.DeliveredAt,
	})
	return order, nil
}

// CancelOrder cancels an order that has not been completed, gives the
// seller back the ongoing job and removes the gig from the buyer's purchases.
func (s *OrderService) CancelOrder(ctx context.Context, id string) (*models.Order, error) {
	order, err := s.transition(ctx, id, models.OrderStatusCancelled,
		models.OrderStatusInProgress, models.OrderStatusDelivered)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, s.sellerUpdates, order, &contracts.OrderCancelled{
		Type:     contracts.TypeCancelOrder,
		SellerID: order.SellerID,
	})
	// create-order carries a signed delta, so -1 undoes the +1 from CreateOrder
	s.publish(ctx, s.sellerUpdates, order, &contracts.OrderCreated{
		Type:        contracts.TypeCreateOrder,
		SellerID:    order.SellerID,
		OngoingJobs: -1,
	})
	s.publish(ctx, s.buyerUpdates, order, &contracts.PurchasedGigsUpdate{
		Type:           contracts.TypeUpdatePurchasedGigs,
		BuyerID:        order.BuyerID,
		PurchasedGigID: order.GigID,
		Action:         contracts.ActionCancelled,
	})
	return order, nil
}

func (s *OrderService) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	return s.orders.GetByID(ctx, id)
}

func (s *OrderService) GetOrdersByBuyer(ctx context.Context, buyerID string) ([]models.Order, error) {
	return s.orders.GetByBuyerID(ctx, buyerID)
}

func (s *OrderService) GetOrdersBySeller(ctx context.Context, sellerID string) ([]models.Order, error) {
	return s.orders.GetBySellerID(ctx, sellerID)
}

func (s *OrderService) transition(ctx context.Context, id string, to models.OrderStatus, from ...models.OrderStatus) (*models.Order, error) {
	if err := s.orders.UpdateStatus(ctx, id, to, from...); err != nil {
		return nil, err
	}
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"status":   order.Status,
	}).Info("Order status changed")
	return order, nil
}

func (s *OrderService) publish(ctx context.Context, pub Publisher, order *models.Order, msg contracts.Message) {
	if err := pub.Publish(ctx, msg); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"order_id": order.ID,
			"type":     msg.MessageType(),
		}).Error("Failed to publish order update")
	}
}

func (s *OrderService) email(order *models.Order, receiver, template string) *contracts.EmailMessage {
	return &contracts.EmailMessage{
		ReceiverEmail: receiver,
		Template:      template,
		EmailLocals: contracts.EmailLocals{
			OrderID:        order.ID,
			BuyerUsername:  order.BuyerUsername,
			SellerUsername: order.SellerUsername,
			Title:          order.Title,
			Amount:         money(order.Price),
			ServiceFee:     money(order.ServiceFee),
			Total:          money(order.Total()),
			DeliveryDays:   contracts.Text(strconv.Itoa(order.DeliveryDays)),
			OrderDue:       order.DueDate.Format(time.DateOnly),
			Requirements:   order.Requirements,
			OrderURL:       s.clientURL + "/orders/" + order.ID + "/activities",
		},
	}
}

func money(v float64) contracts.Text {
	return contracts.Text(strconv.FormatFloat(v, 'f', -1, 64))
}

func validate(req models.CreateOrderRequest) error {
	switch {
	case req.GigID == "" || req.SellerID == "" || req.BuyerID == "":
		return fmt.Errorf("%w: gigId, sellerId and buyerId are required", ErrInvalidOrder)
	case req.Title == "":
		return fmt.Errorf("%w: gigTitle is required", ErrInvalidOrder)
	case req.Price <= 0:
		return fmt.Errorf("%w: price must be positive", ErrInvalidOrder)
	case req.ServiceFee < 0:
		return fmt.Errorf("%w: serviceFee must not be negative", ErrInvalidOrder)
	case req.DeliveryDays <= 0:
		return fmt.Errorf("%w: deliveryDays must be positive", ErrInvalidOrder)
	}
	for _, addr := range []string{req.SellerEmail, req.BuyerEmail} {
		if _, err := mail.ParseAddress(addr); err != nil {
			return fmt.Errorf("%w: invalid email %q", ErrInvalidOrder, addr)
		}
	}
	return nil
}
