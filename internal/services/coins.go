package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/honeynil/ShopBotLedger/internal/config"
	"github.com/honeynil/ShopBotLedger/internal/infrastructure/observability"
	"github.com/honeynil/ShopBotLedger/internal/models"
	"github.com/honeynil/ShopBotLedger/internal/repository"
	pkgerrors "github.com/honeynil/ShopBotLedger/pkg/errors"
)

// CoinService owns the reward-coin ledger. Every movement is audited in the
// transactions table; the audit row is best effort.
type CoinService struct {
	coins   repository.CoinRepository
	txs     repository.TransactionRepository
	economy config.Economy
	now     func() time.Time
}

func NewCoinService(coins repository.CoinRepository, txs repository.TransactionRepository, economy config.Economy) *CoinService {
	return &CoinService{coins: coins, txs: txs, economy: economy, now: time.Now}
}

func (s *CoinService) AddCoins(ctx context.Context, userID, amount int64, reason models.CoinReason) (int64, error) {
	ctx, span := startSpan(ctx, "AddCoins",
		attribute.Int64("user_id", userID),
		attribute.Int64("amount", amount),
		attribute.String("reason", string(reason)),
	)
	defer span.End()

	if amount <= 0 {
		failSpan(span, pkgerrors.ErrInvalidAmount, "non-positive amount")
		return 0, pkgerrors.ErrInvalidAmount
	}

	balance, err := s.coins.Credit(ctx, userID, amount)
	if err != nil {
		failSpan(span, err, "credit failed")
		return 0, err
	}

	s.audit(ctx, userID, amount, models.TypeCredit, reason)
	observability.CoinsCredited.WithLabelValues(string(reason)).Add(float64(amount))
	slog.Info("coins credited", "user_id", userID, "amount", amount, "reason", reason, "balance", balance)
	return balance, nil
}

func (s *CoinService) GetCoins(ctx context.Context, userID int64) (int64, error) {
	cb, err := s.coins.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	return cb.Balance, nil
}

func (s *CoinService) CanClaimDaily(ctx context.Context, userID int64) (bool, error) {
	cb, err := s.coins.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	return cb.LastDailyClaim == nil || !s.now().Before(cb.LastDailyClaim.Add(s.economy.DailyWindow)), nil
}

// ClaimDaily credits the daily reward at most once per window. The store
// update is the eligibility test, so concurrent claims cannot both pass.
func (s *CoinService) ClaimDaily(ctx context.Context, userID int64) (bool, error) {
	now := s.now()
	ok, err := s.coins.ClaimDaily(ctx, userID, s.economy.DailyReward, now, now.Add(-s.economy.DailyWindow))
	if err != nil || !ok {
		return false, err
	}

	s.audit(ctx, userID, s.economy.DailyReward, models.TypeCredit, models.ReasonDailyLogin)
	observability.CoinsCredited.WithLabelValues(string(models.ReasonDailyLogin)).Add(float64(s.economy.DailyReward))
	slog.Info("daily reward claimed", "user_id", userID, "amount", s.economy.DailyReward)
	return true, nil
}

// debit takes amount coins only if the balance covers it.
func (s *CoinService) debit(ctx context.Context, userID, amount int64, reason models.CoinReason) (bool, error) {
	balance, ok, err := s.coins.Debit(ctx, userID, amount)
	if err != nil || !ok {
		return false, err
	}
	s.audit(ctx, userID, amount, models.TypeDebit, reason)
	slog.Info("coins debited", "user_id", userID, "amount", amount, "reason", reason, "balance", balance)
	return true, nil
}

func (s *CoinService) audit(ctx context.Context, userID, amount int64, typ models.TransactionType, reason models.CoinReason) {
	tx := &models.Transaction{
		UserID: userID,
		Kind:   models.KindCoins,
		Type:   typ,
		Amount: decimal.NewFromInt(amount),
		Reason: string(reason),
		Status: models.StatusCompleted,
	}
	if _, err := s.txs.Create(ctx, tx); err != nil {
		slog.Warn("failed to record coin transaction", "user_id", userID, "reason", reason, "error", err)
	}
}
