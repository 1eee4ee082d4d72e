package models

import "time"

// Audit action tags. One entry is appended per state-changing operation.
const (
	ActionUserCreated      = "user_created"
	ActionListingCreated   = "listing_created"
	ActionListingUpdated   = "listing_updated"
	ActionDealCreated      = "deal_created"
	ActionPaymentConfirmed = "payment_confirmed"
	ActionFundsReleased    = "funds_released"
)

// LogEntry is an append-only audit record. Rows are never updated or
// deleted once written.
type LogEntry struct {
	ID        int64     `json:"id"`
	DealID    *int64    `json:"deal_id,omitempty"`
	UserID    *int64    `json:"user_id,omitempty"`
	Action    string    `json:"action"`
	Notes     string    `json:"notes,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// RequestMeta is the origin metadata attached to audit entries.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}
