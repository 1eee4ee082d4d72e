package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"github.com/ezbirr/p2p-exchange/internal/models"
	pkgerrors "github.com/ezbirr/p2p-exchange/pkg/errors"
	"github.com/lib/pq"
)

type PostgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) Create(ctx context.Context, user *models.User, entry *models.LogEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	query := `INSERT INTO users (name, telegram_username, telegram_id, type)
		VALUES ($1, $2, $3, $4)
		RETURNING id, verified, created_at, updated_at`
	err = tx.QueryRowContext(ctx, query,
		user.Name,
		nullStr(user.TelegramUsername),
		nullStr(user.TelegramID),
		user.Role,
	).Scan(&user.ID, &user.Verified, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v; original error: %w", rbErr, err)
		}
		var pqErr *pq.Error
		if stderrors.As(err, &pqErr) && pqErr.Code == "23505" {
			return pkgerrors.ErrDuplicateIdentity
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	entry.UserID = &user.ID
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

func (r *PostgresUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT id, name, telegram_username, telegram_id, type, verified, created_at, updated_at
		FROM users WHERE id = $1`

	var user models.User
	var tgUsername, tgID sql.NullString
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Name,
		&tgUsername,
		&tgID,
		&user.Role,
		&user.Verified,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	user.TelegramUsername = tgUsername.String
	user.TelegramID = tgID.String
	return &user, nil
}
