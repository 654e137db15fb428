package service

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/honeynil/ShopBotLedger/internal/config"
	"github.com/honeynil/ShopBotLedger/internal/models"
	"github.com/honeynil/ShopBotLedger/internal/repository"
)

type ReferralService struct {
	referrals repository.ReferralRepository
	users     repository.UserRepository
	coins     *CoinService
	wallets   *WalletService
	economy   config.Economy
}

func NewReferralService(referrals repository.ReferralRepository, users repository.UserRepository, coins *CoinService, wallets *WalletService, economy config.Economy) *ReferralService {
	return &ReferralService{referrals: referrals, users: users, coins: coins, wallets: wallets, economy: economy}
}

// AddReferral records referrer -> referred. It reports false without any
// mutation for self-referrals, unregistered referred users and repeats.
func (s *ReferralService) AddReferral(ctx context.Context, referrerID, referredID int64) (bool, error) {
	ctx, span := startSpan(ctx, "AddReferral", attribute.Int64("referrer_id", referrerID), attribute.Int64("referred_id", referredID))
	defer span.End()

	if referrerID == referredID {
		return false, nil
	}
	registered, err := s.users.IsRegistered(ctx, referredID)
	if err != nil {
		failSpan(span, err, "registration check failed")
		return false, err
	}
	if !registered {
		return false, nil
	}

	inserted, err := s.referrals.Insert(ctx, referrerID, referredID)
	if err != nil {
		failSpan(span, err, "insert failed")
		return false, err
	}
	if !inserted {
		slog.Info("referral already recorded", "referrer_id", referrerID, "referred_id", referredID)
		return false, nil
	}

	if _, err := s.coins.AddCoins(ctx, referrerID, s.economy.ReferralBonus, models.ReasonReferralBonus); err != nil {
		slog.Error("failed to credit referral bonus", "referrer_id", referrerID, "error", err)
	}
	s.thresholdBonus(ctx, referrerID)
	return true, nil
}

// thresholdBonus pays the one-time wallet bonus. The referral_bonuses insert
// is the claim token, so later referrals past the threshold never pay again.
func (s *ReferralService) thresholdBonus(ctx context.Context, referrerID int64) {
	count, err := s.referrals.Count(ctx, referrerID)
	if err != nil {
		slog.Error("failed to count referrals", "referrer_id", referrerID, "error", err)
		return
	}
	if count < s.economy.ReferralThreshold {
		return
	}
	claimed, err := s.referrals.ClaimThresholdBonus(ctx, referrerID)
	if err != nil {
		slog.Error("failed to claim referral threshold bonus", "referrer_id", referrerID, "error", err)
		return
	}
	if !claimed {
		return
	}
	if _, err := s.wallets.Deposit(ctx, referrerID, s.economy.ReferralWalletBonus); err != nil {
		slog.Error("failed to credit referral wallet bonus", "referrer_id", referrerID, "error", err)
		return
	}
	slog.Info("referral threshold bonus paid", "referrer_id", referrerID, "referrals", count, "bonus", s.economy.ReferralWalletBonus)
}

func (s *ReferralService) ReferralCount(ctx context.Context, referrerID int64) (int, error) {
	return s.referrals.Count(ctx, referrerID)
}
