package repository

import (
	"database/sql"
	"fmt"
)

// InitMigration creates the schema. Uniqueness of telegram handles and
// trade codes is enforced here rather than by application-level
// check-then-act.
func InitMigration(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id SERIAL PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			telegram_username VARCHAR(50) UNIQUE,
			telegram_id VARCHAR(20) UNIQUE,
			type VARCHAR(10) NOT NULL DEFAULT 'both',
			verified BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS listings (
			id SERIAL PRIMARY KEY,
			user_id INTEGER NOT NULL REFERENCES users (id),
			type VARCHAR(10) NOT NULL,
			amount DECIMAL(10,2) NOT NULL,
			rate DECIMAL(10,2) NOT NULL,
			payment_method VARCHAR(100) NOT NULL,
			contact VARCHAR(200) NOT NULL,
			min_amount DECIMAL(10,2),
			max_amount DECIMAL(10,2),
			description TEXT,
			status VARCHAR(20) NOT NULL DEFAULT 'active',
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_listings_status_type ON listings (status, type, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS deals (
			id SERIAL PRIMARY KEY,
			listing_id INTEGER NOT NULL REFERENCES listings (id),
			buyer_id INTEGER NOT NULL REFERENCES users (id),
			seller_id INTEGER NOT NULL REFERENCES users (id),
			usdt_amount DECIMAL(10,2) NOT NULL,
			etb_amount DECIMAL(10,2) NOT NULL,
			trade_code VARCHAR(20) NOT NULL UNIQUE,
			escrow_wallet VARCHAR(100) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			payment_method VARCHAR(100) NOT NULL,
			commission_amount DECIMAL(10,2) NOT NULL DEFAULT 0,
			expires_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_deals_status ON deals (status, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS logs (
			id SERIAL PRIMARY KEY,
			deal_id INTEGER REFERENCES deals (id),
			user_id INTEGER REFERENCES users (id),
			action VARCHAR(50) NOT NULL,
			notes TEXT,
			ip_address VARCHAR(45),
			user_agent TEXT,
			timestamp TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_logs_deal ON logs (deal_id, timestamp)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query %s: %w", query, err)
		}
	}
	return nil
}
