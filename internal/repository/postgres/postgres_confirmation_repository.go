package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/honeynil/ShopBotLedger/internal/models"
	pkgerrors "github.com/honeynil/ShopBotLedger/pkg/errors"
)

const confirmationTracer = "confirmation-repository"

type PostgresConfirmationRepository struct {
	db *sql.DB
}

func NewPostgresConfirmationRepository(db *sql.DB) *PostgresConfirmationRepository {
	return &PostgresConfirmationRepository{db: db}
}

func (r *PostgresConfirmationRepository) Create(ctx context.Context, c *models.Confirmation) (err error) {
	ctx, done := instrument(ctx, confirmationTracer, "CreateConfirmation", attribute.Int64("order_id", c.OrderID))
	defer done(&err)

	// Re-scheduling an order keeps the original entry.
	query := `
		INSERT INTO confirmations (order_id, payment_ref, due_at, status)
		VALUES ($1, $2, $3, 'scheduled')
		ON CONFLICT (order_id) DO UPDATE SET order_id = confirmations.order_id
		RETURNING id, due_at, status, created_at
	`
	err = r.db.QueryRowContext(ctx, query, c.OrderID, c.PaymentRef, c.DueAt).Scan(&c.ID, &c.DueAt, &c.Status, &c.CreatedAt)
	if err != nil {
		slog.Error("failed to create confirmation", "method", "Create", "order_id", c.OrderID, "error", err)
		return pkgerrors.Persistence("create confirmation", err)
	}
	return nil
}

func (r *PostgresConfirmationRepository) ListScheduled(ctx context.Context) (_ []models.Confirmation, err error) {
	ctx, done := instrument(ctx, confirmationTracer, "ListScheduledConfirmations")
	defer done(&err)

	return r.list(ctx, `SELECT id, order_id, payment_ref, due_at, status, created_at FROM confirmations WHERE status = 'scheduled' ORDER BY due_at`)
}

func (r *PostgresConfirmationRepository) ListDue(ctx context.Context, now time.Time) (_ []models.Confirmation, err error) {
	ctx, done := instrument(ctx, confirmationTracer, "ListDueConfirmations")
	defer done(&err)

	return r.list(ctx, `SELECT id, order_id, payment_ref, due_at, status, created_at FROM confirmations WHERE status = 'scheduled' AND due_at <= $1 ORDER BY due_at`, now)
}

func (r *PostgresConfirmationRepository) list(ctx context.Context, query string, args ...any) ([]models.Confirmation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, pkgerrors.Persistence("list confirmations", err)
	}
	defer rows.Close()

	var out []models.Confirmation
	for rows.Next() {
		var c models.Confirmation
		if err := rows.Scan(&c.ID, &c.OrderID, &c.PaymentRef, &c.DueAt, &c.Status, &c.CreatedAt); err != nil {
			return nil, pkgerrors.Persistence("scan confirmation", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.Persistence("list confirmations", err)
	}
	return out, nil
}

func (r *PostgresConfirmationRepository) Claim(ctx context.Context, id int64) (_ bool, err error) {
	ctx, done := instrument(ctx, confirmationTracer, "ClaimConfirmation", attribute.Int64("confirmation_id", id))
	defer done(&err)

	res, err := r.db.ExecContext(ctx, `UPDATE confirmations SET status = 'fired' WHERE id = $1 AND status = 'scheduled'`, id)
	if err != nil {
		return false, pkgerrors.Persistence("claim confirmation", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, pkgerrors.Persistence("claim confirmation", err)
	}
	return n == 1, nil
}

func (r *PostgresConfirmationRepository) Release(ctx context.Context, id int64) (err error) {
	ctx, done := instrument(ctx, confirmationTracer, "ReleaseConfirmation", attribute.Int64("confirmation_id", id))
	defer done(&err)

	if _, err = r.db.ExecContext(ctx, `UPDATE confirmations SET status = 'scheduled' WHERE id = $1 AND status = 'fired'`, id); err != nil {
		return pkgerrors.Persistence("release confirmation", err)
	}
	return nil
}
