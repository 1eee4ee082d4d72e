package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ezbirr/p2p-exchange/internal/infrastructure/observability"
	"github.com/ezbirr/p2p-exchange/internal/models"
	pkgerrors "github.com/ezbirr/p2p-exchange/pkg/errors"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type PostgresDealRepository struct {
	db *sql.DB
}

func NewPostgresDealRepository(db *sql.DB) *PostgresDealRepository {
	return &PostgresDealRepository{db: db}
}

// Create inserts the deal and its audit entry in one transaction. A
// unique-violation on deals.trade_code surfaces as ErrTradeCodeTaken so
// the caller can re-roll the code.
func (r *PostgresDealRepository) Create(ctx context.Context, deal *models.Deal, entry *models.LogEntry) error {
	var err error
	tracer := otel.Tracer("deal-repository")
	ctx, span := tracer.Start(ctx, "CreateDeal")
	defer span.End()

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.RepositoryCalls.WithLabelValues("CreateDeal", status).Inc()
		observability.RepositoryDuration.WithLabelValues("CreateDeal").Observe(time.Since(start).Seconds())
	}()

	span.SetAttributes(
		attribute.Int64("listing_id", deal.ListingID),
		attribute.Int64("buyer_id", deal.BuyerID),
		attribute.Int64("seller_id", deal.SellerID),
		attribute.String("trade_code", deal.TradeCode),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	query := `INSERT INTO deals (listing_id, buyer_id, seller_id, usdt_amount, etb_amount, trade_code, escrow_wallet, payment_method, commission_amount, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, status, created_at, updated_at`
	err = tx.QueryRowContext(ctx, query,
		deal.ListingID,
		deal.BuyerID,
		deal.SellerID,
		deal.UsdtAmount,
		deal.EtbAmount,
		deal.TradeCode,
		deal.EscrowWallet,
		deal.PaymentMethod,
		deal.CommissionAmount,
		deal.ExpiresAt,
	).Scan(&deal.ID, &deal.Status, &deal.CreatedAt, &deal.UpdatedAt)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			err = fmt.Errorf("rollback failed: %v; original error: %w", rbErr, err)
			return err
		}
		var pqErr *pq.Error
		if stderrors.As(err, &pqErr) && pqErr.Code == "23505" {
			err = pkgerrors.ErrTradeCodeTaken
			return err
		}
		err = fmt.Errorf("failed to create deal: %w", err)
		return err
	}

	entry.DealID = &deal.ID
	if err = appendLog(ctx, tx, entry); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			err = fmt.Errorf("rollback failed: %v; original error: %w", rbErr, err)
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("failed to commit transaction: %w", err)
		return err
	}

	slog.Info("deal created", "method", "Create", "deal_id", deal.ID, "trade_code", deal.TradeCode, "listing_id", deal.ListingID)
	return nil
}

func (r *PostgresDealRepository) GetByTradeCode(ctx context.Context, tradeCode string) (*models.Deal, error) {
	var err error
	tracer := otel.Tracer("deal-repository")
	ctx, span := tracer.Start(ctx, "GetDealByTradeCode")
	span.SetAttributes(attribute.String("trade_code", tradeCode))
	defer span.End()

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.RepositoryCalls.WithLabelValues("GetDealByTradeCode", status).Inc()
		observability.RepositoryDuration.WithLabelValues("GetDealByTradeCode").Observe(time.Since(start).Seconds())
	}()

	query := `SELECT id, listing_id, buyer_id, seller_id, usdt_amount, etb_amount, trade_code, escrow_wallet, status, payment_method, commission_amount, expires_at, created_at, updated_at
		FROM deals WHERE trade_code = $1`
	deal, scanErr := scanDeal(r.db.QueryRowContext(ctx, query, tradeCode))
	if stderrors.Is(scanErr, sql.ErrNoRows) {
		err = pkgerrors.ErrDealNotFound
		return nil, err
	}
	if scanErr != nil {
		err = fmt.Errorf("failed to get deal by trade code: %w", scanErr)
		return nil, err
	}
	return deal, nil
}

// UpdateStatus advances the deal to the target status only if its
// current status is one of from, appending the audit entry in the same
// transaction. The conditional WHERE clause is what makes concurrent
// transitions on the same deal lose cleanly instead of double-applying.
func (r *PostgresDealRepository) UpdateStatus(ctx context.Context, dealID int64, from []models.DealStatus, to models.DealStatus, entry *models.LogEntry) error {
	var err error
	tracer := otel.Tracer("deal-repository")
	ctx, span := tracer.Start(ctx, "UpdateDealStatus")
	span.SetAttributes(
		attribute.Int64("deal_id", dealID),
		attribute.String("to_status", string(to)),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.RepositoryCalls.WithLabelValues("UpdateDealStatus", status).Inc()
		observability.RepositoryDuration.WithLabelValues("UpdateDealStatus").Observe(time.Since(start).Seconds())
	}()

	fromStatuses := make([]string, len(from))
	for i, s := range from {
		fromStatuses[i] = string(s)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	query := `UPDATE deals SET status = $1, updated_at = NOW() WHERE id = $2 AND status = ANY($3)`
	res, execErr := tx.ExecContext(ctx, query, to, dealID, pq.Array(fromStatuses))
	if execErr != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			err = fmt.Errorf("rollback failed: %v; original error: %w", rbErr, execErr)
			return err
		}
		err = fmt.Errorf("failed to update deal status: %w", execErr)
		return err
	}
	affected, raErr := res.RowsAffected()
	if raErr == nil && affected == 0 {
		if rbErr := tx.Rollback(); rbErr != nil {
			err = fmt.Errorf("rollback failed: %w", rbErr)
			return err
		}
		err = pkgerrors.ErrInvalidState
		return err
	}

	if err = appendLog(ctx, tx, entry); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			err = fmt.Errorf("rollback failed: %v; original error: %w", rbErr, err)
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("failed to commit transaction: %w", err)
		return err
	}

	slog.Info("deal status updated", "method", "UpdateStatus", "deal_id", dealID, "status", to)
	return nil
}

func (r *PostgresDealRepository) ListByStatus(ctx context.Context, status models.DealStatus, limit, offset int) ([]models.Deal, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM deals WHERE status = $1`, status).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count deals: %w", err)
	}

	query := `SELECT id, listing_id, buyer_id, seller_id, usdt_amount, etb_amount, trade_code, escrow_wallet, status, payment_method, commission_amount, expires_at, created_at, updated_at
		FROM deals WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, query, status, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list deals: %w", err)
	}
	defer rows.Close()

	var deals []models.Deal
	for rows.Next() {
		deal, err := scanDeal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan deal: %w", err)
		}
		deals = append(deals, *deal)
	}
	return deals, total, rows.Err()
}

func scanDeal(row rowScanner) (*models.Deal, error) {
	var deal models.Deal
	err := row.Scan(
		&deal.ID,
		&deal.ListingID,
		&deal.BuyerID,
		&deal.SellerID,
		&deal.UsdtAmount,
		&deal.EtbAmount,
		&deal.TradeCode,
		&deal.EscrowWallet,
		&deal.Status,
		&deal.PaymentMethod,
		&deal.CommissionAmount,
		&deal.ExpiresAt,
		&deal.CreatedAt,
		&deal.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &deal, nil
}
