package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"jobber/auth/internal/models"
	"jobber/auth/internal/repositories"
	"jobber/pkg/contracts"
)

var (
	ErrInvalidSignup = errors.New("invalid signup")
	ErrInvalidToken  = errors.New("invalid verification token")
)

// Publisher sends one message to a fixed exchange and routing key.
type Publisher interface {
	Publish(ctx context.Context, payload any) error
}

type AuthService struct {
	users      *repositories.AuthRepository
	buyerPub   Publisher
	emailPub   Publisher
	clientURL  string
	jwtSecret  []byte
	logger     logrus.FieldLogger
	bcryptCost int
}

func NewAuthService(
	users *repositories.AuthRepository,
	buyerPub Publisher,
	emailPub Publisher,
	clientURL string,
	jwtSecret string,
	logger logrus.FieldLogger,
) *AuthService {
	return &AuthService{
		users:      users,
		buyerPub:   buyerPub,
		emailPub:   emailPub,
		clientURL:  strings.TrimRight(clientURL, "/"),
		jwtSecret:  []byte(jwtSecret),
		logger:     logger.WithField("component", "auth-service"),
		bcryptCost: bcrypt.DefaultCost,
	}
}

// SignUp stores a new user, announces it to the users service and asks the
// notification service for a verification email. The two announcements are
// best effort: a publish failure is logged and the signup still succeeds.
func (s *AuthService) SignUp(ctx context.Context, req *models.SignupRequest) (*models.AuthUser, string, error) {
	if err := s.validate(req); err != nil {
		return nil, "", err
	}

	// a Caser keeps state, so one per call
	username := cases.Title(language.Und).String(strings.TrimSpace(req.Username))
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if _, err := s.users.GetByUsernameOrEmail(ctx, username, email); err == nil {
		return nil, "", repositories.ErrUserExists
	} else if !errors.Is(err, repositories.ErrUserNotFound) {
		return nil, "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}
	token, err := verificationToken()
	if err != nil {
		return nil, "", err
	}

	user := &models.AuthUser{
		Username:               username,
		Email:                  email,
		Password:               string(hash),
		ProfilePicture:         req.ProfilePicture,
		Country:                req.Country,
		EmailVerificationToken: token,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", err
	}

	log := s.logger.WithFields(logrus.Fields{"user_id": user.ID, "username": user.Username})

	buyer := contracts.NewBuyerCreated(user.Username, user.Email, user.ProfilePicture, user.Country, user.CreatedAt)
	if err := s.buyerPub.Publish(ctx, buyer); err != nil {
		log.WithError(err).Error("Failed to send buyer details to users service")
	}

	verifyLink := s.clientURL + "/confirm_email?v_token=" + token
	if err := s.emailPub.Publish(ctx, contracts.NewVerifyEmail(user.Email, user.Username, verifyLink)); err != nil {
		log.WithError(err).Error("Failed to request verification email")
	}

	jwtToken, err := s.signToken(user)
	if err != nil {
		return nil, "", err
	}
	log.Info("User signed up")
	return user, jwtToken, nil
}

// VerifyEmail marks the owner of token as verified and returns the user.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (*models.AuthUser, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	user, err := s.users.GetByVerificationToken(ctx, token)
	if errors.Is(err, repositories.ErrUserNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}

	if err := s.users.MarkEmailVerified(ctx, user.ID); err != nil {
		return nil, err
	}
	user.EmailVerified = true
	user.EmailVerificationToken = ""
	return user, nil
}

func (s *AuthService) validate(req *models.SignupRequest) error {
	username := strings.TrimSpace(req.Username)
	switch {
	case len(username) < 4 || len(username) > 12:
		return fmt.Errorf("%w: username must be 4 to 12 characters", ErrInvalidSignup)
	case len(req.Password) < 4 || len(req.Password) > 12:
		return fmt.Errorf("%w: password must be 4 to 12 characters", ErrInvalidSignup)
	case strings.TrimSpace(req.Country) == "":
		return fmt.Errorf("%w: country is required", ErrInvalidSignup)
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return fmt.Errorf("%w: invalid email", ErrInvalidSignup)
	}
	return nil
}

func (s *AuthService) signToken(user *models.AuthUser) (string, error) {
	claims := jwt.MapClaims{
		"id":       user.ID,
		"email":    user.Email,
		"username": user.Username,
		"iat":      time.Now().Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func verificationToken() (string, error) {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("verification token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
