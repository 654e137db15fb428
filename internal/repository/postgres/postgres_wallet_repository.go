package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/honeynil/ShopBotLedger/internal/models"
	pkgerrors "github.com/honeynil/ShopBotLedger/pkg/errors"
)

const walletTracer = "wallet-repository"

type PostgresWalletRepository struct {
	db *sql.DB
}

func NewPostgresWalletRepository(db *sql.DB) *PostgresWalletRepository {
	return &PostgresWalletRepository{db: db}
}

func (r *PostgresWalletRepository) Get(ctx context.Context, userID int64) (_ *models.Wallet, err error) {
	ctx, done := instrument(ctx, walletTracer, "GetWallet", attribute.Int64("user_id", userID))
	defer done(&err)

	w := models.Wallet{UserID: userID, Balance: decimal.Zero}
	err = r.db.QueryRowContext(ctx, `SELECT balance FROM wallets WHERE user_id = $1`, userID).Scan(&w.Balance)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return &w, nil
	case err != nil:
		return nil, pkgerrors.Persistence("get wallet", err)
	}
	return &w, nil
}

func (r *PostgresWalletRepository) Credit(ctx context.Context, userID int64, amount decimal.Decimal) (_ decimal.Decimal, err error) {
	ctx, done := instrument(ctx, walletTracer, "CreditWallet", attribute.Int64("user_id", userID), attribute.String("amount", amount.String()))
	defer done(&err)

	if !amount.IsPositive() {
		return decimal.Zero, pkgerrors.ErrInvalidAmount
	}

	query := `
		INSERT INTO wallets (user_id, balance)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET balance = wallets.balance + EXCLUDED.balance
		RETURNING balance
	`
	var balance decimal.Decimal
	if err = r.db.QueryRowContext(ctx, query, userID, amount).Scan(&balance); err != nil {
		slog.Error("failed to credit wallet", "method", "Credit", "user_id", userID, "amount", amount, "error", err)
		return decimal.Zero, pkgerrors.Persistence("credit wallet", err)
	}
	return balance, nil
}

func (r *PostgresWalletRepository) Withdraw(ctx context.Context, userID int64, amount decimal.Decimal, address string) (_ *models.Transaction, _ bool, err error) {
	ctx, done := instrument(ctx, walletTracer, "Withdraw", attribute.Int64("user_id", userID), attribute.String("amount", amount.String()))
	defer done(&err)

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Error("failed to begin transaction", "method", "Withdraw", "error", err)
		return nil, false, pkgerrors.Persistence("begin withdraw", err)
	}
	rollback := func(cause error) error {
		if rbErr := dbTx.Rollback(); rbErr != nil {
			slog.Error("rollback failed", "method", "Withdraw", "error", rbErr)
			return fmt.Errorf("rollback failed: %v; original error: %w", rbErr, cause)
		}
		return cause
	}

	debit := `
		UPDATE wallets
		SET balance = balance - $2
		WHERE user_id = $1 AND balance >= $2
	`
	res, err := dbTx.ExecContext(ctx, debit, userID, amount)
	if err != nil {
		return nil, false, pkgerrors.Persistence("debit wallet", rollback(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, pkgerrors.Persistence("debit wallet", rollback(err))
	}
	if n == 0 {
		if rbErr := rollback(nil); rbErr != nil {
			return nil, false, pkgerrors.Persistence("debit wallet", rbErr)
		}
		return nil, false, nil
	}

	tx := &models.Transaction{
		UserID:  userID,
		Kind:    models.KindWallet,
		Type:    models.TypeWithdraw,
		Amount:  amount,
		Address: address,
		Status:  models.StatusPending,
	}
	insert := `INSERT INTO transactions (user_id, kind, type, amount, reason, address, status) VALUES ($1, $2, $3, $4, '', $5, $6) RETURNING id, created_at`
	err = dbTx.QueryRowContext(ctx, insert, tx.UserID, tx.Kind, tx.Type, tx.Amount, tx.Address, tx.Status).Scan(&tx.ID, &tx.CreatedAt)
	if err != nil {
		return nil, false, pkgerrors.Persistence("record withdraw", rollback(err))
	}

	if err = dbTx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "method", "Withdraw", "error", err)
		return nil, false, pkgerrors.Persistence("commit withdraw", err)
	}

	slog.Info("withdrawal requested", "method", "Withdraw", "user_id", userID, "amount", amount, "transaction_id", tx.ID)
	return tx, true, nil
}
