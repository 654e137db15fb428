package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/honeynil/ShopBotLedger/internal/config"
	"github.com/honeynil/ShopBotLedger/internal/models"
	"github.com/honeynil/ShopBotLedger/internal/repository"
	pkgerrors "github.com/honeynil/ShopBotLedger/pkg/errors"
)

const defaultHistoryLimit = 20

type WalletService struct {
	wallets repository.WalletRepository
	txs     repository.TransactionRepository
	coins   *CoinService
	economy config.Economy
}

func NewWalletService(wallets repository.WalletRepository, txs repository.TransactionRepository, coins *CoinService, economy config.Economy) *WalletService {
	return &WalletService{wallets: wallets, txs: txs, coins: coins, economy: economy}
}

func (s *WalletService) GetWallet(ctx context.Context, userID int64) (*models.Wallet, error) {
	return s.wallets.Get(ctx, userID)
}

func (s *WalletService) Deposit(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, pkgerrors.ErrInvalidAmount
	}
	balance, err := s.wallets.Credit(ctx, userID, amount)
	if err != nil {
		return decimal.Zero, err
	}
	s.audit(ctx, userID, amount, models.TypeDeposit, "deposit")
	slog.Info("wallet deposit", "user_id", userID, "amount", amount, "balance", balance)
	return balance, nil
}

// Withdraw validates before touching the store. ok is false when the wallet
// does not cover amount.
func (s *WalletService) Withdraw(ctx context.Context, userID int64, amount decimal.Decimal, address string) (_ *models.Transaction, ok bool, err error) {
	ctx, span := startSpan(ctx, "Withdraw", attribute.Int64("user_id", userID), attribute.String("amount", amount.String()))
	defer span.End()

	address = strings.TrimSpace(address)
	if amount.LessThan(s.economy.MinWithdraw) {
		failSpan(span, pkgerrors.ErrBelowMinimum, "below minimum")
		return nil, false, pkgerrors.ErrBelowMinimum
	}
	if !ValidAddress(address, s.economy.WalletNetworks) {
		failSpan(span, pkgerrors.ErrInvalidAddress, "invalid address")
		return nil, false, pkgerrors.ErrInvalidAddress
	}

	tx, ok, err := s.wallets.Withdraw(ctx, userID, amount, address)
	if err != nil {
		failSpan(span, err, "withdraw failed")
		return nil, false, err
	}
	if !ok {
		slog.Info("withdrawal rejected: insufficient balance", "user_id", userID, "amount", amount)
		return nil, false, nil
	}

	if s.economy.WithdrawalRebate > 0 {
		if _, err := s.coins.AddCoins(ctx, userID, s.economy.WithdrawalRebate, models.ReasonWithdrawalRebate); err != nil {
			slog.Warn("failed to credit withdrawal rebate", "user_id", userID, "error", err)
		}
	}
	return tx, true, nil
}

// Convert turns whole exchange units of coins into wallet balance. The coin
// debit is conditional; if the wallet credit then fails the coins are
// refunded. ok is false when the balance does not cover the units.
func (s *WalletService) Convert(ctx context.Context, userID, coins int64) (_ *models.ConversionResult, ok bool, err error) {
	ctx, span := startSpan(ctx, "Convert", attribute.Int64("user_id", userID), attribute.Int64("coins", coins))
	defer span.End()

	if coins < s.economy.MinConvert || s.economy.ConvertUnit <= 0 {
		failSpan(span, pkgerrors.ErrBelowMinimum, "below minimum")
		return nil, false, pkgerrors.ErrBelowMinimum
	}
	units := coins / s.economy.ConvertUnit
	debit := units * s.economy.ConvertUnit
	crypto := s.economy.CryptoPerUnit.Mul(decimal.NewFromInt(units))

	ok, err = s.coins.debit(ctx, userID, debit, models.ReasonConversion)
	if err != nil {
		failSpan(span, err, "coin debit failed")
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	if _, err = s.wallets.Credit(ctx, userID, crypto); err != nil {
		failSpan(span, err, "wallet credit failed")
		slog.Error("conversion wallet credit failed, refunding coins", "user_id", userID, "coins", debit, "error", err)
		if _, refundErr := s.coins.AddCoins(ctx, userID, debit, models.ReasonConversionRefund); refundErr != nil {
			slog.Error("conversion refund failed", "user_id", userID, "coins", debit, "error", refundErr)
		}
		return nil, false, err
	}

	s.audit(ctx, userID, crypto, models.TypeConvert, string(models.ReasonConversion))
	slog.Info("coins converted", "user_id", userID, "coins", debit, "crypto", crypto)
	return &models.ConversionResult{CoinsDebited: debit, CryptoCredited: crypto}, true, nil
}

func (s *WalletService) ListTransactions(ctx context.Context, userID int64, limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return s.txs.ListByUser(ctx, userID, limit)
}

func (s *WalletService) audit(ctx context.Context, userID int64, amount decimal.Decimal, typ models.TransactionType, reason string) {
	tx := &models.Transaction{
		UserID: userID,
		Kind:   models.KindWallet,
		Type:   typ,
		Amount: amount,
		Reason: reason,
		Status: models.StatusCompleted,
	}
	if _, err := s.txs.Create(ctx, tx); err != nil {
		slog.Warn("failed to record wallet transaction", "user_id", userID, "type", typ, "error", err)
	}
}
