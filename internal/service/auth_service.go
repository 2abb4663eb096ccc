package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"parkspot/internal/db"
	"parkspot/internal/repository"
)

const pinTTL = 10 * time.Minute

type AuthService interface {
	Register(ctx context.Context, name, email, password, phone string) (*db.User, error)
	Login(ctx context.Context, email, password string) (string, error)
	SendVerificationPin(ctx context.Context, user *db.User) error
	VerifyEmailPin(ctx context.Context, email, pin string) (bool, error)
}

type authService struct {
	repo   repository.UserStore
	sender *SenderService
}

func NewAuthService(repo repository.UserStore, sender *SenderService) AuthService {
	return &authService{repo: repo, sender: sender}
}

// Register creates an unverified user account and sends a verification pin to
// the given email (and phone, when present).
func (s *authService) Register(ctx context.Context, name, email, password, phone string) (*db.User, error) {
	if email == "" || password == "" {
		return nil, errors.New("email and password cannot be empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &db.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Phone:        phone,
		Role:         db.RoleUser,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	if err := s.SendVerificationPin(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", errors.New("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", errors.New("invalid credentials")
	}
	if user.EmailVerifiedAt == nil {
		return "", errors.New("email not verified")
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return "", errors.New("JWT_SECRET not set")
	}

	claims := jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"role":    user.Role,
		"exp":     time.Now().Add(time.Hour * 24).Unix(),
	}
	if user.FacilityID != nil {
		claims["facility_id"] = *user.FacilityID
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// SendVerificationPin issues a fresh 6-digit pin valid for ten minutes,
// replacing any earlier one, and dispatches it.
func (s *authService) SendVerificationPin(ctx context.Context, user *db.User) error {
	pin, err := generatePin()
	if err != nil {
		return fmt.Errorf("could not generate verification pin: %w", err)
	}
	if err := s.repo.UpsertVerificationPin(ctx, user.ID, pin, time.Now().Add(pinTTL)); err != nil {
		return err
	}

	s.sender.SendVerificationEmail(user.Email, user.Name, pin)
	if user.Phone != "" {
		s.sender.SendVerificationSMS(user.Phone, pin)
	}
	return nil
}

// VerifyEmailPin consumes the pin and marks the account verified when it
// matches and has not expired.
func (s *authService) VerifyEmailPin(ctx context.Context, email, pin string) (bool, error) {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	if user == nil {
		return false, nil
	}

	ok, err := s.repo.ConsumeVerificationPin(ctx, user.ID, pin, time.Now())
	if err != nil || !ok {
		return false, err
	}
	if err := s.repo.MarkEmailVerified(ctx, user.ID, time.Now()); err != nil {
		return false, err
	}
	return true, nil
}

func generatePin() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
