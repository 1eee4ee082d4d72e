package repository

import (
	"context"

	"github.com/ezbirr/p2p-exchange/internal/models"
)

type LogRepository interface {
	Append(ctx context.Context, entry *models.LogEntry) error
	ListByDeal(ctx context.Context, dealID int64) ([]models.LogEntry, error)
}
