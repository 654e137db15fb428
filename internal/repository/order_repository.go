package repository

import (
	"context"

	"github.com/honeynil/ShopBotLedger/internal/models"
)

type OrderRepository interface {
	Create(ctx context.Context, o *models.Order) error
	GetByID(ctx context.Context, id int64) (*models.Order, error)
	GetByPaymentRef(ctx context.Context, ref string) (*models.Order, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Order, error)
	ListRecent(ctx context.Context, limit int) ([]models.Order, error)
	ListByStatus(ctx context.Context, status models.OrderStatus, limit int) ([]models.Order, error)
	// Transition moves a pending order to status. It reports false, without
	// error, when the order exists but is no longer pending.
	Transition(ctx context.Context, id int64, status models.OrderStatus, licenseCode string, source models.TransitionSource) (*models.Order, bool, error)
	Delete(ctx context.Context, id int64) error
}
