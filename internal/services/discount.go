package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/honeynil/ShopBotLedger/internal/config"
	"github.com/honeynil/ShopBotLedger/internal/models"
	"github.com/honeynil/ShopBotLedger/internal/repository"
	pkgerrors "github.com/honeynil/ShopBotLedger/pkg/errors"
)

type DiscountService struct {
	codes   repository.DiscountRepository
	economy config.Economy
	now     func() time.Time
	newCode func() string
}

func NewDiscountService(codes repository.DiscountRepository, economy config.Economy) *DiscountService {
	return &DiscountService{
		codes:   codes,
		economy: economy,
		now:     time.Now,
		newCode: func() string { return randomCode(DiscountPrefix, 8) },
	}
}

// GenerateCode issues a code for userID valid for the configured window.
// percent <= 0 falls back to the default discount.
func (s *DiscountService) GenerateCode(ctx context.Context, userID int64, percent int) (*models.DiscountCode, error) {
	if percent <= 0 {
		percent = s.economy.DiscountPercent
	}
	if percent >= 100 {
		return nil, pkgerrors.ErrInvalidInput
	}

	var err error
	for attempt := 0; attempt < 2; attempt++ {
		code := &models.DiscountCode{
			Code:      s.newCode(),
			UserID:    userID,
			Percent:   percent,
			ExpiresAt: s.now().Add(s.economy.DiscountTTL),
		}
		err = s.codes.Create(ctx, code)
		if err == nil {
			slog.Info("discount code issued", "user_id", userID, "percent", percent, "expires_at", code.ExpiresAt)
			return code, nil
		}
		if !errors.Is(err, pkgerrors.ErrConflict) {
			return nil, err
		}
	}
	return nil, pkgerrors.Persistence("generate discount code", err)
}

// ValidateCode checks ownership, the used flag and expiry without mutating.
func (s *DiscountService) ValidateCode(ctx context.Context, userID int64, code string) (*models.DiscountCode, bool, error) {
	dc, err := s.codes.Get(ctx, code)
	if errors.Is(err, pkgerrors.ErrCodeNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if dc.UserID != userID || dc.Used || !s.now().Before(dc.ExpiresAt) {
		return dc, false, nil
	}
	return dc, true, nil
}

// UseCode marks code used. Only the owner can use it, once, before expiry.
func (s *DiscountService) UseCode(ctx context.Context, userID int64, code string) (bool, error) {
	ok, err := s.codes.Use(ctx, userID, code, s.now())
	if err != nil {
		return false, err
	}
	if ok {
		slog.Info("discount code used", "user_id", userID)
	}
	return ok, nil
}

// ReleaseCode makes a used code redeemable again. It is the compensation for
// an order that failed after the code was claimed.
func (s *DiscountService) ReleaseCode(ctx context.Context, userID int64, code string) error {
	if err := s.codes.Release(ctx, userID, code); err != nil {
		return err
	}
	slog.Info("discount code released", "user_id", userID)
	return nil
}
