package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	pkgerrors "github.com/honeynil/ShopBotLedger/pkg/errors"
)

const referralTracer = "referral-repository"

type PostgresReferralRepository struct {
	db *sql.DB
}

func NewPostgresReferralRepository(db *sql.DB) *PostgresReferralRepository {
	return &PostgresReferralRepository{db: db}
}

func (r *PostgresReferralRepository) Insert(ctx context.Context, referrerID, referredID int64) (_ bool, err error) {
	ctx, done := instrument(ctx, referralTracer, "InsertReferral",
		attribute.Int64("referrer_id", referrerID),
		attribute.Int64("referred_id", referredID),
	)
	defer done(&err)

	// referred_id is unique on its own, so any second edge to the same user
	// lands in DO NOTHING.
	query := `
		INSERT INTO referrals (referrer_id, referred_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query, referrerID, referredID)
	if err != nil {
		slog.Error("failed to insert referral", "method", "Insert", "referrer_id", referrerID, "referred_id", referredID, "error", err)
		return false, pkgerrors.Persistence("insert referral", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, pkgerrors.Persistence("insert referral", err)
	}
	return n == 1, nil
}

func (r *PostgresReferralRepository) Count(ctx context.Context, referrerID int64) (_ int, err error) {
	ctx, done := instrument(ctx, referralTracer, "CountReferrals", attribute.Int64("referrer_id", referrerID))
	defer done(&err)

	var count int
	if err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM referrals WHERE referrer_id = $1`, referrerID).Scan(&count); err != nil {
		return 0, pkgerrors.Persistence("count referrals", err)
	}
	return count, nil
}

func (r *PostgresReferralRepository) ClaimThresholdBonus(ctx context.Context, referrerID int64) (_ bool, err error) {
	ctx, done := instrument(ctx, referralTracer, "ClaimReferralBonus", attribute.Int64("referrer_id", referrerID))
	defer done(&err)

	res, err := r.db.ExecContext(ctx, `INSERT INTO referral_bonuses (referrer_id) VALUES ($1) ON CONFLICT DO NOTHING`, referrerID)
	if err != nil {
		return false, pkgerrors.Persistence("claim referral bonus", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, pkgerrors.Persistence("claim referral bonus", err)
	}
	return n == 1, nil
}
