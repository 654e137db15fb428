package repository

import (
	"context"

	"github.com/honeynil/ShopBotLedger/internal/models"
)

type UserRepository interface {
	// Touch creates the user row on first contact and refreshes the display name.
	Touch(ctx context.Context, id int64, displayName string) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	CompleteRegistration(ctx context.Context, id int64, email, passwordHash string) error
	SetAvatar(ctx context.Context, id int64, avatar string) error
	IsRegistered(ctx context.Context, id int64) (bool, error)
}
