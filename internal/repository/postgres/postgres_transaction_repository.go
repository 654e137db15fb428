package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/honeynil/ShopBotLedger/internal/models"
	pkgerrors "github.com/honeynil/ShopBotLedger/pkg/errors"
)

const transactionTracer = "transaction-repository"

type PostgresTransactionRepository struct {
	db *sql.DB
}

func NewPostgresTransactionRepository(db *sql.DB) *PostgresTransactionRepository {
	return &PostgresTransactionRepository{db: db}
}

func validateTransaction(tx *models.Transaction) error {
	if tx == nil {
		return fmt.Errorf("%w: transaction is nil", pkgerrors.ErrInvalidInput)
	}
	if tx.Kind != models.KindCoins && tx.Kind != models.KindWallet {
		return fmt.Errorf("%w: invalid transaction kind %q", pkgerrors.ErrInvalidInput, tx.Kind)
	}
	switch tx.Type {
	case models.TypeCredit, models.TypeDebit, models.TypeDeposit, models.TypeWithdraw, models.TypeConvert, models.TypeBonus:
	default:
		return fmt.Errorf("%w: invalid transaction type %q", pkgerrors.ErrInvalidInput, tx.Type)
	}
	if tx.Status != models.StatusPending && tx.Status != models.StatusCompleted && tx.Status != models.StatusFailed {
		return fmt.Errorf("%w: invalid transaction status %q", pkgerrors.ErrInvalidInput, tx.Status)
	}
	if !tx.Amount.IsPositive() {
		return pkgerrors.ErrInvalidAmount
	}
	return nil
}

func (r *PostgresTransactionRepository) Create(ctx context.Context, tx *models.Transaction) (_ int64, err error) {
	if err = validateTransaction(tx); err != nil {
		slog.Error("invalid transaction", "method", "Create", "error", err)
		return 0, err
	}

	ctx, done := instrument(ctx, transactionTracer, "CreateTransaction",
		attribute.Int64("user_id", tx.UserID),
		attribute.String("kind", string(tx.Kind)),
		attribute.String("type", string(tx.Type)),
		attribute.String("status", string(tx.Status)),
	)
	defer done(&err)

	query := `INSERT INTO transactions (user_id, kind, type, amount, reason, address, status) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at`
	var txID int64
	var createdAt time.Time
	err = r.db.QueryRowContext(ctx, query, tx.UserID, tx.Kind, tx.Type, tx.Amount, tx.Reason, tx.Address, tx.Status).Scan(&txID, &createdAt)
	if err != nil {
		slog.Error("failed to create transaction", "method", "Create", "user_id", tx.UserID, "type", tx.Type, "error", err)
		return 0, pkgerrors.Persistence("create transaction", err)
	}

	tx.ID = txID
	tx.CreatedAt = createdAt
	slog.Info("transaction created", "method", "Create", "id", tx.ID, "user_id", tx.UserID, "kind", tx.Kind, "type", tx.Type, "status", tx.Status)
	return txID, nil
}

func (r *PostgresTransactionRepository) GetByID(ctx context.Context, id int64) (_ *models.Transaction, err error) {
	ctx, done := instrument(ctx, transactionTracer, "GetTransactionByID", attribute.Int64("transaction_id", id))
	defer done(&err)

	var tx models.Transaction
	query := `SELECT id, user_id, kind, type, amount, reason, address, status, created_at FROM transactions WHERE id = $1`
	err = r.db.QueryRowContext(ctx, query, id).Scan(&tx.ID, &tx.UserID, &tx.Kind, &tx.Type, &tx.Amount, &tx.Reason, &tx.Address, &tx.Status, &tx.CreatedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		slog.Error("transaction not found", "method", "GetByID", "transaction_id", id)
		return nil, fmt.Errorf("%w: transaction not found", pkgerrors.ErrNotFound)
	}
	if err != nil {
		slog.Error("failed to get transaction by id", "method", "GetByID", "transaction_id", id, "error", err)
		return nil, pkgerrors.Persistence("get transaction", err)
	}

	return &tx, nil
}

func (r *PostgresTransactionRepository) ListByUser(ctx context.Context, userID int64, limit int) (_ []models.Transaction, err error) {
	ctx, done := instrument(ctx, transactionTracer, "ListTransactionsByUser", attribute.Int64("user_id", userID))
	defer done(&err)

	query := `
		SELECT id, user_id, kind, type, amount, reason, address, status, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		slog.Error("failed to list transactions", "method", "ListByUser", "user_id", userID, "error", err)
		return nil, pkgerrors.Persistence("list transactions", err)
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		var tx models.Transaction
		if err = rows.Scan(&tx.ID, &tx.UserID, &tx.Kind, &tx.Type, &tx.Amount, &tx.Reason, &tx.Address, &tx.Status, &tx.CreatedAt); err != nil {
			return nil, pkgerrors.Persistence("scan transaction", err)
		}
		txs = append(txs, tx)
	}
	if err = rows.Err(); err != nil {
		return nil, pkgerrors.Persistence("list transactions", err)
	}
	return txs, nil
}
