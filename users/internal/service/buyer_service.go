package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"jobber/pkg/contracts"
	"jobber/users/internal/models"
	"jobber/users/internal/repositories"
)

var ErrUnknownAction = errors.New("unknown purchased gigs action")

type BuyerService struct {
	buyers *repositories.BuyerRepository
	logger logrus.FieldLogger
}

func NewBuyerService(buyers *repositories.BuyerRepository, logger logrus.FieldLogger) *BuyerService {
	return &BuyerService{
		buyers: buyers,
		logger: logger.WithField("component", "buyer-service"),
	}
}

// CreateBuyer stores the buyer announced by the auth service. A buyer that
// already exists (same email) is left untouched.
func (s *BuyerService) CreateBuyer(ctx context.Context, msg *contracts.BuyerCreated) error {
	buyer := &models.Buyer{
		Username:       msg.Username,
		Email:          msg.Email,
		ProfilePicture: msg.ProfilePicture,
		Country:        msg.Country,
		IsSeller:       false,
		PurchasedGigs:  []string{},
	}
	if msg.CreatedAt != nil {
		buyer.CreatedAt = msg.CreatedAt.UTC()
	}

	created, err := s.buyers.Create(ctx, buyer)
	if err != nil {
		return err
	}

	log := s.logger.WithFields(logrus.Fields{"email": buyer.Email, "username": buyer.Username})
	if !created {
		log.Info("Buyer already exists, skipping")
		return nil
	}
	log.WithField("buyer_id", buyer.ID).Info("Buyer created")
	return nil
}

func (s *BuyerService) UpdatePurchasedGigs(ctx context.Context, msg *contracts.PurchasedGigsUpdate) error {
	var err error
	switch msg.Action {
	case contracts.ActionPurchased:
		err = s.buyers.AddPurchasedGig(ctx, msg.BuyerID, msg.PurchasedGigID)
	case contracts.ActionCancelled:
		err = s.buyers.RemovePurchasedGig(ctx, msg.BuyerID, msg.PurchasedGigID)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, msg.Action)
	}
	if err != nil {
		return fmt.Errorf("buyer %s: %w", msg.BuyerID, err)
	}

	s.logger.WithFields(logrus.Fields{
		"buyer_id": msg.BuyerID,
		"gig_id":   msg.PurchasedGigID,
		"action":   msg.Action,
	}).Debug("Purchased gigs updated")
	return nil
}

func (s *BuyerService) GetByEmail(ctx context.Context, email string) (*models.Buyer, error) {
	return s.buyers.GetByEmail(ctx, email)
}

func (s *BuyerService) GetByUsername(ctx context.Context, username string) (*models.Buyer, error) {
	return s.buyers.GetByUsername(ctx, username)
}
