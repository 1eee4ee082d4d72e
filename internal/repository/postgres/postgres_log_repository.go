package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ezbirr/p2p-exchange/internal/models"
)

type PostgresLogRepository struct {
	db *sql.DB
}

func NewPostgresLogRepository(db *sql.DB) *PostgresLogRepository {
	return &PostgresLogRepository{db: db}
}

func (r *PostgresLogRepository) Append(ctx context.Context, entry *models.LogEntry) error {
	return appendLog(ctx, r.db, entry)
}

func (r *PostgresLogRepository) ListByDeal(ctx context.Context, dealID int64) ([]models.LogEntry, error) {
	query := `SELECT id, deal_id, user_id, action, notes, ip_address, user_agent, timestamp
		FROM logs WHERE deal_id = $1 ORDER BY timestamp`
	rows, err := r.db.QueryContext(ctx, query, dealID)
	if err != nil {
		return nil, fmt.Errorf("failed to list logs: %w", err)
	}
	defer rows.Close()

	var entries []models.LogEntry
	for rows.Next() {
		var e models.LogEntry
		var notes, ip, ua sql.NullString
		if err := rows.Scan(&e.ID, &e.DealID, &e.UserID, &e.Action, &notes, &ip, &ua, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}
		e.Notes, e.IPAddress, e.UserAgent = notes.String, ip.String, ua.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// execer covers *sql.DB and *sql.Tx so repositories can append an audit
// entry inside the transaction that carries the state change.
type execer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func appendLog(ctx context.Context, q execer, entry *models.LogEntry) error {
	query := `INSERT INTO logs (deal_id, user_id, action, notes, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, timestamp`
	err := q.QueryRowContext(ctx, query,
		entry.DealID,
		entry.UserID,
		entry.Action,
		nullStr(entry.Notes),
		nullStr(entry.IPAddress),
		nullStr(entry.UserAgent),
	).Scan(&entry.ID, &entry.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to append log entry: %w", err)
	}
	return nil
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
