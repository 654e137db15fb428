package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/honeynil/ShopBotLedger/internal/models"
	pkgerrors "github.com/honeynil/ShopBotLedger/pkg/errors"
)

const orderTracer = "order-repository"

const orderColumns = `id, user_id, display_name, product_key, product_name, price, discount_percent,
	tracking_code, payment_ref, status, COALESCE(license_code, ''), COALESCE(confirmed_by, ''), created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var o models.Order
	err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.DisplayName,
		&o.ProductKey,
		&o.ProductName,
		&o.Price,
		&o.DiscountPercent,
		&o.TrackingCode,
		&o.PaymentRef,
		&o.Status,
		&o.LicenseCode,
		&o.ConfirmedBy,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

type PostgresOrderRepository struct {
	db *sql.DB
}

func NewPostgresOrderRepository(db *sql.DB) *PostgresOrderRepository {
	return &PostgresOrderRepository{db: db}
}

func (r *PostgresOrderRepository) Create(ctx context.Context, o *models.Order) (err error) {
	ctx, done := instrument(ctx, orderTracer, "CreateOrder",
		attribute.Int64("user_id", o.UserID),
		attribute.String("product_key", o.ProductKey),
	)
	defer done(&err)

	query := `
		INSERT INTO orders (user_id, display_name, product_key, product_name, price, discount_percent, tracking_code, payment_ref, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending')
		RETURNING id, status, created_at, updated_at
	`
	err = r.db.QueryRowContext(ctx, query,
		o.UserID,
		o.DisplayName,
		o.ProductKey,
		o.ProductName,
		o.Price,
		o.DiscountPercent,
		o.TrackingCode,
		o.PaymentRef,
	).Scan(&o.ID, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		switch uniqueConstraint(err) {
		case "":
			slog.Error("failed to create order", "method", "Create", "user_id", o.UserID, "error", err)
			return pkgerrors.Persistence("create order", err)
		case "orders_payment_ref_key":
			return pkgerrors.ErrDuplicatePaymentRef
		default:
			return pkgerrors.ErrDuplicateTrackingCode
		}
	}

	slog.Info("order created", "method", "Create", "order_id", o.ID, "user_id", o.UserID, "tracking_code", o.TrackingCode)
	return nil
}

func (r *PostgresOrderRepository) GetByID(ctx context.Context, id int64) (_ *models.Order, err error) {
	ctx, done := instrument(ctx, orderTracer, "GetOrderByID", attribute.Int64("order_id", id))
	defer done(&err)

	o, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, pkgerrors.ErrOrderNotFound
	case err != nil:
		slog.Error("failed to get order", "method", "GetByID", "order_id", id, "error", err)
		return nil, pkgerrors.Persistence("get order", err)
	}
	return o, nil
}

func (r *PostgresOrderRepository) GetByPaymentRef(ctx context.Context, ref string) (_ *models.Order, err error) {
	ctx, done := instrument(ctx, orderTracer, "GetOrderByPaymentRef")
	defer done(&err)

	o, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE payment_ref = $1`, ref))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, pkgerrors.ErrOrderNotFound
	case err != nil:
		slog.Error("failed to get order by payment ref", "method", "GetByPaymentRef", "error", err)
		return nil, pkgerrors.Persistence("get order by payment ref", err)
	}
	return o, nil
}

func (r *PostgresOrderRepository) ListByUser(ctx context.Context, userID int64) (_ []models.Order, err error) {
	ctx, done := instrument(ctx, orderTracer, "ListOrdersByUser", attribute.Int64("user_id", userID))
	defer done(&err)

	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

func (r *PostgresOrderRepository) ListRecent(ctx context.Context, limit int) (_ []models.Order, err error) {
	ctx, done := instrument(ctx, orderTracer, "ListRecentOrders")
	defer done(&err)

	return r.list(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC LIMIT $1`, limit)
}

func (r *PostgresOrderRepository) ListByStatus(ctx context.Context, status models.OrderStatus, limit int) (_ []models.Order, err error) {
	ctx, done := instrument(ctx, orderTracer, "ListOrdersByStatus", attribute.String("status", string(status)))
	defer done(&err)

	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE status = $1 ORDER BY created_at LIMIT $2`, status, limit)
}

func (r *PostgresOrderRepository) list(ctx context.Context, query string, args ...any) ([]models.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, pkgerrors.Persistence("list orders", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, pkgerrors.Persistence("scan order", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.Persistence("list orders", err)
	}
	return orders, nil
}

func (r *PostgresOrderRepository) Transition(ctx context.Context, id int64, status models.OrderStatus, licenseCode string, source models.TransitionSource) (_ *models.Order, _ bool, err error) {
	ctx, done := instrument(ctx, orderTracer, "TransitionOrder",
		attribute.Int64("order_id", id),
		attribute.String("status", string(status)),
		attribute.String("source", string(source)),
	)
	defer done(&err)

	query := `
		UPDATE orders
		SET status = $2,
			license_code = COALESCE(NULLIF($3::text, ''), license_code),
			confirmed_by = $4,
			updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + orderColumns
	o, err := scanOrder(r.db.QueryRowContext(ctx, query, id, status, licenseCode, source))
	if err == nil {
		slog.Info("order transitioned", "method", "Transition", "order_id", id, "status", status, "source", source)
		return o, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		slog.Error("failed to transition order", "method", "Transition", "order_id", id, "error", err)
		return nil, false, pkgerrors.Persistence("transition order", err)
	}

	// Nothing updated: either unknown or already terminal.
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	slog.Info("order transition skipped", "method", "Transition", "order_id", id, "current_status", current.Status, "requested", status)
	return current, false, nil
}

func (r *PostgresOrderRepository) Delete(ctx context.Context, id int64) (err error) {
	ctx, done := instrument(ctx, orderTracer, "DeleteOrder", attribute.Int64("order_id", id))
	defer done(&err)

	res, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return pkgerrors.Persistence("delete order", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return pkgerrors.Persistence("delete order", err)
	}
	if n == 0 {
		return pkgerrors.ErrOrderNotFound
	}
	slog.Info("order deleted", "method", "Delete", "order_id", id)
	return nil
}
