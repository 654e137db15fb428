package repository

import (
	"context"

	"github.com/honeynil/ShopBotLedger/internal/models"
)

type TransactionRepository interface {
	Create(ctx context.Context, tx *models.Transaction) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Transaction, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]models.Transaction, error)
}
