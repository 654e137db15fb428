package repository

import (
	"context"

	"github.com/honeynil/ShopBotLedger/internal/models"
)

type ProductRepository interface {
	List(ctx context.Context, activeOnly bool) ([]models.Product, error)
	Get(ctx context.Context, key string) (*models.Product, error)
	Upsert(ctx context.Context, p *models.Product) error
	// Reserve takes one unit of stock; false when the product is sold out.
	Reserve(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}
