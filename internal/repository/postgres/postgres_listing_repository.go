package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/ezbirr/p2p-exchange/internal/models"
	repo "github.com/ezbirr/p2p-exchange/internal/repository"
	pkgerrors "github.com/ezbirr/p2p-exchange/pkg/errors"
)

type PostgresListingRepository struct {
	db *sql.DB
}

func NewPostgresListingRepository(db *sql.DB) *PostgresListingRepository {
	return &PostgresListingRepository{db: db}
}

func (r *PostgresListingRepository) Create(ctx context.Context, listing *models.Listing, entry *models.LogEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	query := `INSERT INTO listings (user_id, type, amount, rate, payment_method, contact, min_amount, max_amount, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, status, created_at, updated_at`
	err = tx.QueryRowContext(ctx, query,
		listing.UserID,
		listing.Direction,
		listing.Amount,
		listing.Rate,
		listing.PaymentMethod,
		listing.Contact,
		listing.MinAmount,
		listing.MaxAmount,
		nullStr(listing.Description),
	).Scan(&listing.ID, &listing.Status, &listing.CreatedAt, &listing.UpdatedAt)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v; original error: %w", rbErr, err)
		}
		return fmt.Errorf("failed to create listing: %w", err)
	}

	if err := appendLog(ctx, tx, entry); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v; original error: %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *PostgresListingRepository) GetByID(ctx context.Context, id int64) (*models.Listing, error) {
	query := `SELECT id, user_id, type, amount, rate, payment_method, contact, min_amount, max_amount, description, status, created_at, updated_at
		FROM listings WHERE id = $1`

	listing, err := scanListing(r.db.QueryRowContext(ctx, query, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrListingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listing by id: %w", err)
	}
	return listing, nil
}

// Update applies only the non-nil fields of upd. Omitted fields keep
// their stored values.
func (r *PostgresListingRepository) Update(ctx context.Context, id int64, upd *models.ListingUpdate, entry *models.LogEntry) error {
	set := []string{"updated_at = NOW()"}
	args := []any{}
	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if upd.Amount != nil {
		add("amount", *upd.Amount)
	}
	if upd.Rate != nil {
		add("rate", *upd.Rate)
	}
	if upd.PaymentMethod != nil {
		add("payment_method", *upd.PaymentMethod)
	}
	if upd.Contact != nil {
		add("contact", *upd.Contact)
	}
	if upd.Status != nil {
		add("status", *upd.Status)
	}
	if upd.MinAmount != nil {
		add("min_amount", *upd.MinAmount)
	}
	if upd.MaxAmount != nil {
		add("max_amount", *upd.MaxAmount)
	}
	if upd.Description != nil {
		add("description", *upd.Description)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE listings SET %s WHERE id = $%d", strings.Join(set, ", "), len(args))
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v; original error: %w", rbErr, err)
		}
		return fmt.Errorf("failed to update listing: %w", err)
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %w", rbErr)
		}
		return pkgerrors.ErrListingNotFound
	}

	if err := appendLog(ctx, tx, entry); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v; original error: %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *PostgresListingRepository) List(ctx context.Context, filter repo.ListingFilter) ([]models.Listing, int, error) {
	where := "status = $1"
	args := []any{filter.Status}
	if filter.Direction != "" {
		args = append(args, filter.Direction)
		where += fmt.Sprintf(" AND type = $%d", len(args))
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM listings WHERE " + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count listings: %w", err)
	}

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT id, user_id, type, amount, rate, payment_method, contact, min_amount, max_amount, description, status, created_at, updated_at
		FROM listings WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list listings: %w", err)
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan listing: %w", err)
		}
		listings = append(listings, *listing)
	}
	return listings, total, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (*models.Listing, error) {
	var listing models.Listing
	var minAmount, maxAmount sql.NullFloat64
	var description sql.NullString
	err := row.Scan(
		&listing.ID,
		&listing.UserID,
		&listing.Direction,
		&listing.Amount,
		&listing.Rate,
		&listing.PaymentMethod,
		&listing.Contact,
		&minAmount,
		&maxAmount,
		&description,
		&listing.Status,
		&listing.CreatedAt,
		&listing.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if minAmount.Valid {
		listing.MinAmount = &minAmount.Float64
	}
	if maxAmount.Valid {
		listing.MaxAmount = &maxAmount.Float64
	}
	listing.Description = description.String
	return &listing, nil
}
