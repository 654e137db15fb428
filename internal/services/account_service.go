package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/honeynil/ShopBotLedger/internal/config"
	"github.com/honeynil/ShopBotLedger/internal/infrastructure/auth"
	"github.com/honeynil/ShopBotLedger/internal/infrastructure/redis"
	"github.com/honeynil/ShopBotLedger/internal/models"
	"github.com/honeynil/ShopBotLedger/internal/repository"
	pkgerrors "github.com/honeynil/ShopBotLedger/pkg/errors"
)

const minPasswordLength = 6

// AccountService gates the ledger behind a completed registration and issues
// admin API tokens.
type AccountService struct {
	users             repository.UserRepository
	coins             *CoinService
	redisClient       redis.RedisClient
	tokens            *auth.TokenService
	adminID           int64
	adminPasswordHash string
	signupBonus       int64
}

func NewAccountService(
	users repository.UserRepository,
	coins *CoinService,
	redisClient redis.RedisClient,
	tokens *auth.TokenService,
	adminID int64,
	adminPasswordHash string,
	economy config.Economy,
) *AccountService {
	return &AccountService{
		users:             users,
		coins:             coins,
		redisClient:       redisClient,
		tokens:            tokens,
		adminID:           adminID,
		adminPasswordHash: adminPasswordHash,
		signupBonus:       economy.SignupBonus,
	}
}

func (s *AccountService) IsAdmin(userID int64) bool {
	return userID == s.adminID
}

func (s *AccountService) Touch(ctx context.Context, userID int64, displayName string) error {
	return s.users.Touch(ctx, userID, displayName)
}

func (s *AccountService) IsRegistered(ctx context.Context, userID int64) (bool, error) {
	return s.users.IsRegistered(ctx, userID)
}

func (s *AccountService) EmailTaken(ctx context.Context, email string) (bool, error) {
	_, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, pkgerrors.ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func ValidateEmail(email string) error {
	email = normalizeEmail(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@"):], ".") {
		return pkgerrors.ErrInvalidEmail
	}
	return nil
}

func ValidatePassword(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: at least %d characters", pkgerrors.ErrWeakPassword, minPasswordLength)
	}
	return nil
}

// Register completes the account of userID and pays the signup bonus once.
func (s *AccountService) Register(ctx context.Context, userID int64, email, password string) error {
	if err := ValidateEmail(email); err != nil {
		return err
	}
	if err := ValidatePassword(password); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("failed to hash password", "user_id", userID, "error", err)
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.users.CompleteRegistration(ctx, userID, normalizeEmail(email), string(hash)); err != nil {
		return err
	}

	if s.signupBonus > 0 {
		if _, err := s.coins.AddCoins(ctx, userID, s.signupBonus, models.ReasonSignupBonus); err != nil {
			slog.Error("failed to credit signup bonus", "user_id", userID, "error", err)
		}
	}
	slog.Info("user registered", "user_id", userID)
	return nil
}

// Login reports whether email/password belong to the account of userID.
func (s *AccountService) Login(ctx context.Context, userID int64, email, password string) (bool, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, pkgerrors.ErrUserNotFound) || errors.Is(err, pkgerrors.ErrInvalidEmail) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if user.ID != userID || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		slog.Warn("login rejected", "user_id", userID)
		return false, nil
	}
	return true, nil
}

func (s *AccountService) SetAvatar(ctx context.Context, userID int64, avatar string) error {
	return s.users.SetAvatar(ctx, userID, avatar)
}

// AdminLogin issues a bearer token and stores it as the only valid one.
func (s *AccountService) AdminLogin(ctx context.Context, password string) (string, error) {
	if s.adminPasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(s.adminPasswordHash), []byte(password)) != nil {
		return "", pkgerrors.ErrInvalidCredentials
	}
	token, err := s.tokens.Generate(s.adminID)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	if err := s.redisClient.Set(ctx, auth.AdminTokenKey(s.adminID), token, s.tokens.TTL()); err != nil {
		slog.Error("failed to store admin token", "admin_id", s.adminID, "error", err)
		return "", fmt.Errorf("failed to store token: %w", err)
	}
	slog.Info("admin logged in", "admin_id", s.adminID)
	return token, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
