package repository

import (
	"context"

	"github.com/ezbirr/p2p-exchange/internal/models"
)

type UserRepository interface {
	// Create persists the user and the given audit entry in one
	// transaction. Unique telegram handles are enforced by the store.
	Create(ctx context.Context, user *models.User, entry *models.LogEntry) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
}
