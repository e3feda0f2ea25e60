package handlers

import (
	"context"
	"fmt"

	"jobber/pkg/contracts"
	"jobber/pkg/messaging"
	services "jobber/users/internal/service"
)

// ConsumerHandler routes the users service queues to the buyer and seller
// services.
type ConsumerHandler struct {
	buyerService  *services.BuyerService
	sellerService *services.SellerService
}

func NewConsumerHandler(buyerService *services.BuyerService, sellerService *services.SellerService) *ConsumerHandler {
	return &ConsumerHandler{
		buyerService:  buyerService,
		sellerService: sellerService,
	}
}

// RegisterConsumers adds the four users service consumers to the manager.
func (h *ConsumerHandler) RegisterConsumers(m *messaging.QueueManager, factory *messaging.Factory, sink messaging.DeadLetterSink) {
	m.RegisterConsumer("buyer-update", factory.BuyerUpdateConsumer(sink), messaging.RouterFunc(h.HandleBuyerMessage))
	m.RegisterConsumer("seller-update", factory.SellerUpdateConsumer(sink), messaging.RouterFunc(h.HandleSellerMessage))
	m.RegisterConsumer("seller-review", factory.ReviewConsumer(sink), messaging.RouterFunc(h.HandleReviewMessage))
	m.RegisterConsumer("gig-seed", factory.GigSeedConsumer(sink), messaging.RouterFunc(h.HandleGigSeedMessage))
}

// HandleBuyerMessage handles jobber-buyer-update deliveries.
func (h *ConsumerHandler) HandleBuyerMessage(ctx context.Context, body []byte) error {
	msg, err := contracts.DecodeBuyerMessage(body)
	if err != nil {
		return err
	}

	switch m := msg.(type) {
	case *contracts.BuyerCreated:
		return h.buyerService.CreateBuyer(ctx, m)
	case *contracts.PurchasedGigsUpdate:
		return h.buyerService.UpdatePurchasedGigs(ctx, m)
	}
	return unhandled(msg)
}

// HandleSellerMessage handles jobber-seller-update deliveries.
func (h *ConsumerHandler) HandleSellerMessage(ctx context.Context, body []byte) error {
	msg, err := contracts.DecodeSellerMessage(body)
	if err != nil {
		return err
	}

	switch m := msg.(type) {
	case *contracts.OrderCreated:
		return h.sellerService.CreateOrder(ctx, m)
	case *contracts.GigCountUpdate:
		return h.sellerService.UpdateGigCount(ctx, m)
	case *contracts.OrderApproved:
		return h.sellerService.ApproveOrder(ctx, m)
	case *contracts.OrderCancelled:
		return h.sellerService.CancelOrder(ctx, m)
	}
	return unhandled(msg)
}

// HandleReviewMessage handles jobber-review deliveries.
func (h *ConsumerHandler) HandleReviewMessage(ctx context.Context, body []byte) error {
	msg, err := contracts.DecodeReviewMessage(body)
	if err != nil {
		return err
	}

	switch m := msg.(type) {
	case *contracts.BuyerReview:
		return h.sellerService.AddReview(ctx, m)
	}
	return unhandled(msg)
}

// HandleGigSeedMessage handles get-sellers requests from the gig service.
func (h *ConsumerHandler) HandleGigSeedMessage(ctx context.Context, body []byte) error {
	msg, err := contracts.DecodeGigSeedMessage(body)
	if err != nil {
		return err
	}

	switch m := msg.(type) {
	case *contracts.GetSellers:
		return h.sellerService.SendRandomSellers(ctx, m)
	}
	return unhandled(msg)
}

func unhandled(msg contracts.Message) error {
	return fmt.Errorf("%w: %q", messaging.ErrUnknownMessageType, msg.MessageType())
}
