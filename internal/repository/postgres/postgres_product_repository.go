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

const productTracer = "product-repository"

type PostgresProductRepository struct {
	db *sql.DB
}

func NewPostgresProductRepository(db *sql.DB) *PostgresProductRepository {
	return &PostgresProductRepository{db: db}
}

func (r *PostgresProductRepository) List(ctx context.Context, activeOnly bool) (_ []models.Product, err error) {
	ctx, done := instrument(ctx, productTracer, "ListProducts")
	defer done(&err)

	query := `SELECT key, name, price, card_number, stock, active FROM products WHERE active OR NOT $1 ORDER BY price, key`
	rows, err := r.db.QueryContext(ctx, query, activeOnly)
	if err != nil {
		return nil, pkgerrors.Persistence("list products", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		if err = rows.Scan(&p.Key, &p.Name, &p.Price, &p.CardNumber, &p.Stock, &p.Active); err != nil {
			return nil, pkgerrors.Persistence("scan product", err)
		}
		products = append(products, p)
	}
	if err = rows.Err(); err != nil {
		return nil, pkgerrors.Persistence("list products", err)
	}
	return products, nil
}

func (r *PostgresProductRepository) Get(ctx context.Context, key string) (_ *models.Product, err error) {
	ctx, done := instrument(ctx, productTracer, "GetProduct", attribute.String("product_key", key))
	defer done(&err)

	query := `SELECT key, name, price, card_number, stock, active FROM products WHERE key = $1`
	var p models.Product
	err = r.db.QueryRowContext(ctx, query, key).Scan(&p.Key, &p.Name, &p.Price, &p.CardNumber, &p.Stock, &p.Active)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, pkgerrors.ErrProductNotFound
	case err != nil:
		return nil, pkgerrors.Persistence("get product", err)
	}
	return &p, nil
}

func (r *PostgresProductRepository) Upsert(ctx context.Context, p *models.Product) (err error) {
	ctx, done := instrument(ctx, productTracer, "UpsertProduct", attribute.String("product_key", p.Key))
	defer done(&err)

	query := `
		INSERT INTO products (key, name, price, card_number, stock, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (key) DO UPDATE SET
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			card_number = EXCLUDED.card_number,
			stock = EXCLUDED.stock,
			active = EXCLUDED.active
	`
	if _, err = r.db.ExecContext(ctx, query, p.Key, p.Name, p.Price, p.CardNumber, p.Stock, p.Active); err != nil {
		slog.Error("failed to upsert product", "method", "Upsert", "product_key", p.Key, "error", err)
		return pkgerrors.Persistence("upsert product", err)
	}
	slog.Info("product saved", "method", "Upsert", "product_key", p.Key, "price", p.Price, "stock", p.Stock)
	return nil
}

func (r *PostgresProductRepository) Reserve(ctx context.Context, key string) (_ bool, err error) {
	ctx, done := instrument(ctx, productTracer, "ReserveProduct", attribute.String("product_key", key))
	defer done(&err)

	query := `
		UPDATE products
		SET stock = CASE WHEN stock = -1 THEN -1 ELSE stock - 1 END
		WHERE key = $1 AND active AND (stock = -1 OR stock > 0)
	`
	res, err := r.db.ExecContext(ctx, query, key)
	if err != nil {
		return false, pkgerrors.Persistence("reserve product", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, pkgerrors.Persistence("reserve product", err)
	}
	return n == 1, nil
}

func (r *PostgresProductRepository) Release(ctx context.Context, key string) (err error) {
	ctx, done := instrument(ctx, productTracer, "ReleaseProduct", attribute.String("product_key", key))
	defer done(&err)

	if _, err = r.db.ExecContext(ctx, `UPDATE products SET stock = stock + 1 WHERE key = $1 AND stock <> -1`, key); err != nil {
		return pkgerrors.Persistence("release product", err)
	}
	return nil
}
