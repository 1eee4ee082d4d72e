package repository

import (
	"context"

	"github.com/ezbirr/p2p-exchange/internal/models"
)

// ListingFilter narrows List results. Direction is optional; Status is
// always applied.
type ListingFilter struct {
	Direction models.ListingDirection
	Status    models.ListingStatus
	Limit     int
	Offset    int
}

type ListingRepository interface {
	Create(ctx context.Context, listing *models.Listing, entry *models.LogEntry) error
	GetByID(ctx context.Context, id int64) (*models.Listing, error)
	// Update applies only the non-nil fields of upd, together with the
	// audit entry, in one transaction.
	Update(ctx context.Context, id int64, upd *models.ListingUpdate, entry *models.LogEntry) error
	// List returns a page ordered most-recent-first plus the total count
	// ignoring pagination bounds.
	List(ctx context.Context, filter ListingFilter) ([]models.Listing, int, error)
}
