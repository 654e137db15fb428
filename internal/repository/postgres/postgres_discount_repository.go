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

const discountTracer = "discount-repository"

type PostgresDiscountRepository struct {
	db *sql.DB
}

func NewPostgresDiscountRepository(db *sql.DB) *PostgresDiscountRepository {
	return &PostgresDiscountRepository{db: db}
}

func (r *PostgresDiscountRepository) Create(ctx context.Context, code *models.DiscountCode) (err error) {
	ctx, done := instrument(ctx, discountTracer, "CreateDiscountCode", attribute.Int64("user_id", code.UserID))
	defer done(&err)

	query := `INSERT INTO discount_codes (code, user_id, percent, expires_at) VALUES ($1, $2, $3, $4)`
	if _, err = r.db.ExecContext(ctx, query, code.Code, code.UserID, code.Percent, code.ExpiresAt); err != nil {
		if uniqueConstraint(err) != "" {
			return pkgerrors.ErrAlreadyProcessed
		}
		slog.Error("failed to create discount code", "method", "Create", "user_id", code.UserID, "error", err)
		return pkgerrors.Persistence("create discount code", err)
	}
	return nil
}

func (r *PostgresDiscountRepository) Get(ctx context.Context, code string) (_ *models.DiscountCode, err error) {
	ctx, done := instrument(ctx, discountTracer, "GetDiscountCode")
	defer done(&err)

	var dc models.DiscountCode
	var usedAt sql.NullTime
	query := `SELECT code, user_id, percent, expires_at, used, used_at FROM discount_codes WHERE code = $1`
	err = r.db.QueryRowContext(ctx, query, code).Scan(&dc.Code, &dc.UserID, &dc.Percent, &dc.ExpiresAt, &dc.Used, &usedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, pkgerrors.ErrCodeNotFound
	case err != nil:
		return nil, pkgerrors.Persistence("get discount code", err)
	}
	if usedAt.Valid {
		dc.UsedAt = &usedAt.Time
	}
	return &dc, nil
}

func (r *PostgresDiscountRepository) Use(ctx context.Context, userID int64, code string, now time.Time) (_ bool, err error) {
	ctx, done := instrument(ctx, discountTracer, "UseDiscountCode", attribute.Int64("user_id", userID))
	defer done(&err)

	query := `
		UPDATE discount_codes
		SET used = TRUE, used_at = $3
		WHERE code = $1 AND user_id = $2 AND NOT used AND expires_at > $3
	`
	res, err := r.db.ExecContext(ctx, query, code, userID, now)
	if err != nil {
		slog.Error("failed to use discount code", "method", "Use", "user_id", userID, "error", err)
		return false, pkgerrors.Persistence("use discount code", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, pkgerrors.Persistence("use discount code", err)
	}
	return n == 1, nil
}

func (r *PostgresDiscountRepository) Release(ctx context.Context, userID int64, code string) (err error) {
	ctx, done := instrument(ctx, discountTracer, "ReleaseDiscountCode", attribute.Int64("user_id", userID))
	defer done(&err)

	query := `UPDATE discount_codes SET used = FALSE, used_at = NULL WHERE code = $1 AND user_id = $2 AND used`
	if _, err = r.db.ExecContext(ctx, query, code, userID); err != nil {
		slog.Error("failed to release discount code", "method", "Release", "user_id", userID, "error", err)
		return pkgerrors.Persistence("release discount code", err)
	}
	return nil
}
