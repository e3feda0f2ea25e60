package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/sirupsen/logrus"

	"jobber/pkg/contracts"
	"jobber/users/internal/models"
	"jobber/users/internal/repositories"
)

// Publisher sends one message to a fixed exchange and routing key.
type Publisher interface {
	Publish(ctx context.Context, payload any) error
}

type SellerService struct {
	sellers       *repositories.SellerRepository
	buyers        *repositories.BuyerRepository
	gigUpdates    Publisher
	sellerReplies Publisher
	logger        logrus.FieldLogger
}

func NewSellerService(
	sellers *repositories.SellerRepository,
	buyers *repositories.BuyerRepository,
	gigUpdates Publisher,
	sellerReplies Publisher,
	logger logrus.FieldLogger,
) *SellerService {
	return &SellerService{
		sellers:       sellers,
		buyers:        buyers,
		gigUpdates:    gigUpdates,
		sellerReplies: sellerReplies,
		logger:        logger.WithField("component", "seller-service"),
	}
}

// ErrInvalidSeller wraps seller profile validation failures.
var ErrInvalidSeller = errors.New("invalid seller")

// CreateSeller stores a seller profile and flags the buyer with the same
// email as a seller.
func (s *SellerService) CreateSeller(ctx context.Context, seller *models.Seller) error {
	if err := validateSeller(seller); err != nil {
		return err
	}
	if err := s.sellers.Create(ctx, seller); err != nil {
		return err
	}
	if err := s.buyers.MarkAsSeller(ctx, seller.Email); err != nil {
		if !errors.Is(err, repositories.ErrBuyerNotFound) {
			return err
		}
		s.logger.WithField("email", seller.Email).Warn("Seller has no buyer profile")
	}
	return nil
}

func validateSeller(seller *models.Seller) error {
	switch {
	case strings.TrimSpace(seller.FullName) == "":
		return fmt.Errorf("%w: full name is required", ErrInvalidSeller)
	case strings.TrimSpace(seller.Username) == "":
		return fmt.Errorf("%w: username is required", ErrInvalidSeller)
	case seller.ResponseTime < 0:
		return fmt.Errorf("%w: response time must not be negative", ErrInvalidSeller)
	}
	if _, err := mail.ParseAddress(seller.Email); err != nil {
		return fmt.Errorf("%w: invalid email", ErrInvalidSeller)
	}
	return nil
}

func (s *SellerService) GetByID(ctx context.Context, id string) (*models.Seller, error) {
	return s.sellers.GetByID(ctx, id)
}

func (s *SellerService) CreateOrder(ctx context.Context, msg *contracts.OrderCreated) error {
	return s.sellers.IncrementOngoingJobs(ctx, msg.SellerID, msg.OngoingJobs)
}

func (s *SellerService) UpdateGigCount(ctx context.Context, msg *contracts.GigCountUpdate) error {
	return s.sellers.IncrementTotalGigs(ctx, msg.GigSellerID, msg.Count)
}

func (s *SellerService) ApproveOrder(ctx context.Context, msg *contracts.OrderApproved) error {
	return s.sellers.ApproveOrder(ctx, msg.SellerID, models.ApprovedOrder{
		OngoingJobs:    msg.OngoingJobs,
		CompletedJobs:  msg.CompletedJobs,
		TotalEarnings:  msg.TotalEarnings,
		RecentDelivery: msg.RecentDelivery,
	})
}

func (s *SellerService) CancelOrder(ctx context.Context, msg *contracts.OrderCancelled) error {
	return s.sellers.IncrementCancelledJobs(ctx, msg.SellerID)
}

// AddReview folds the rating into the seller's aggregates and forwards the
// review to the gig service. Only the local update decides the outcome; a
// failed forward is logged and the aggregate is not rolled back.
func (s *SellerService) AddReview(ctx context.Context, msg *contracts.BuyerReview) error {
	if err := s.sellers.AddRating(ctx, msg.SellerID, msg.Rating); err != nil {
		return err
	}

	if err := s.gigUpdates.Publish(ctx, contracts.NewGigReviewUpdate(msg)); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"seller_id": msg.SellerID,
			"gig_id":    msg.GigID,
		}).Error("Failed to forward review to gig service")
	}
	return nil
}

// SendRandomSellers answers a gig-seed request. The reply is the only effect
// of the request, so a failed publish fails the handler.
func (s *SellerService) SendRandomSellers(ctx context.Context, msg *contracts.GetSellers) error {
	sellers, err := s.sellers.Random(ctx, msg.Count)
	if err != nil {
		return err
	}

	if err := s.sellerReplies.Publish(ctx, contracts.NewReceiveSellers(sellers, msg.Count)); err != nil {
		return fmt.Errorf("reply with %d sellers: %w", len(sellers), err)
	}
	return nil
}
