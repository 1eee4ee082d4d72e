package repository

import (
	"context"

	"github.com/ezbirr/p2p-exchange/internal/models"
)

type DealRepository interface {
	// Create persists the deal and its audit entry in one transaction.
	// Returns ErrTradeCodeTaken when the generated trade code collides
	// with a persisted one; the caller re-rolls and retries.
	Create(ctx context.Context, deal *models.Deal, entry *models.LogEntry) error
	GetByTradeCode(ctx context.Context, tradeCode string) (*models.Deal, error)
	// UpdateStatus moves the deal to the target status if its current
	// status is one of from, and appends the audit entry atomically.
	// Returns ErrInvalidState when the deal is in none of the from
	// statuses at update time.
	UpdateStatus(ctx context.Context, dealID int64, from []models.DealStatus, to models.DealStatus, entry *models.LogEntry) error
	// ListByStatus returns a page ordered most-recent-first plus the
	// total count ignoring pagination bounds.
	ListByStatus(ctx context.Context, status models.DealStatus, limit, offset int) ([]models.Deal, int, error)
}
