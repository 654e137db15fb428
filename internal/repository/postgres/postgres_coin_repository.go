package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/honeynil/ShopBotLedger/internal/models"
	pkgerrors "github.com/honeynil/ShopBotLedger/pkg/errors"
)

const coinTracer = "coin-repository"

type PostgresCoinRepository struct {
	db *sql.DB
}

func NewPostgresCoinRepository(db *sql.DB) *PostgresCoinRepository {
	return &PostgresCoinRepository{db: db}
}

func (r *PostgresCoinRepository) Credit(ctx context.Context, userID, amount int64) (_ int64, err error) {
	ctx, done := instrument(ctx, coinTracer, "CreditCoins", attribute.Int64("user_id", userID), attribute.Int64("amount", amount))
	defer done(&err)

	if amount <= 0 {
		return 0, pkgerrors.ErrInvalidAmount
	}

	query := `
		INSERT INTO user_coins (user_id, balance)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET balance = user_coins.balance + EXCLUDED.balance
		RETURNING balance
	`
	var balance int64
	if err = r.db.QueryRowContext(ctx, query, userID, amount).Scan(&balance); err != nil {
		slog.Error("failed to credit coins", "method", "Credit", "user_id", userID, "amount", amount, "error", err)
		return 0, pkgerrors.Persistence("credit coins", err)
	}
	return balance, nil
}

func (r *PostgresCoinRepository) Debit(ctx context.Context, userID, amount int64) (_ int64, _ bool, err error) {
	ctx, done := instrument(ctx, coinTracer, "DebitCoins", attribute.Int64("user_id", userID), attribute.Int64("amount", amount))
	defer done(&err)

	if amount <= 0 {
		return 0, false, pkgerrors.ErrInvalidAmount
	}

	query := `
		UPDATE user_coins
		SET balance = balance - $2
		WHERE user_id = $1 AND balance >= $2
		RETURNING balance
	`
	var balance int64
	err = r.db.QueryRowContext(ctx, query, userID, amount).Scan(&balance)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, false, nil
	case err != nil:
		slog.Error("failed to debit coins", "method", "Debit", "user_id", userID, "amount", amount, "error", err)
		return 0, false, pkgerrors.Persistence("debit coins", err)
	}
	return balance, true, nil
}

func (r *PostgresCoinRepository) Get(ctx context.Context, userID int64) (_ *models.CoinBalance, err error) {
	ctx, done := instrument(ctx, coinTracer, "GetCoins", attribute.Int64("user_id", userID))
	defer done(&err)

	cb := models.CoinBalance{UserID: userID}
	var lastDaily, lastSpin sql.NullTime
	query := `SELECT balance, last_daily_claim, last_spin FROM user_coins WHERE user_id = $1`
	err = r.db.QueryRowContext(ctx, query, userID).Scan(&cb.Balance, &lastDaily, &lastSpin)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return &cb, nil
	case err != nil:
		return nil, pkgerrors.Persistence("get coins", err)
	}
	if lastDaily.Valid {
		cb.LastDailyClaim = &lastDaily.Time
	}
	if lastSpin.Valid {
		cb.LastSpin = &lastSpin.Time
	}
	return &cb, nil
}

func (r *PostgresCoinRepository) ClaimDaily(ctx context.Context, userID, reward int64, now, cutoff time.Time) (_ bool, err error) {
	ctx, done := instrument(ctx, coinTracer, "ClaimDaily", attribute.Int64("user_id", userID))
	defer done(&err)

	// The WHERE of the conflict branch is the eligibility test; a skipped
	// update returns no row.
	query := `
		INSERT INTO user_coins (user_id, balance, last_daily_claim)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			balance = user_coins.balance + EXCLUDED.balance,
			last_daily_claim = EXCLUDED.last_daily_claim
		WHERE user_coins.last_daily_claim IS NULL OR user_coins.last_daily_claim <= $4
		RETURNING balance
	`
	var balance int64
	err = r.db.QueryRowContext(ctx, query, userID, reward, now, cutoff).Scan(&balance)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		slog.Error("failed to claim daily coins", "method", "ClaimDaily", "user_id", userID, "error", err)
		return false, pkgerrors.Persistence("claim daily", err)
	}
	return true, nil
}

func (r *PostgresCoinRepository) ClaimSpin(ctx context.Context, userID int64, now, cutoff time.Time) (_ bool, err error) {
	ctx, done := instrument(ctx, coinTracer, "ClaimSpin", attribute.Int64("user_id", userID))
	defer done(&err)

	query := `
		INSERT INTO user_coins (user_id, balance, last_spin)
		VALUES ($1, 0, $2)
		ON CONFLICT (user_id) DO UPDATE SET last_spin = EXCLUDED.last_spin
		WHERE user_coins.last_spin IS NULL OR user_coins.last_spin <= $3
		RETURNING user_id
	`
	var id int64
	err = r.db.QueryRowContext(ctx, query, userID, now, cutoff).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		slog.Error("failed to claim spin", "method", "ClaimSpin", "user_id", userID, "error", err)
		return false, pkgerrors.Persistence("claim spin", err)
	}
	return true, nil
}
