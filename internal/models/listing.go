package models

import "time"

type ListingDirection string

const (
	DirectionBuy  ListingDirection = "buy"
	DirectionSell ListingDirection = "sell"
)

type ListingStatus string

const (
	ListingActive    ListingStatus = "active"
	ListingInactive  ListingStatus = "inactive"
	ListingCompleted ListingStatus = "completed"
	ListingCancelled ListingStatus = "cancelled"
)

type Listing struct {
	ID            int64            `json:"id"`
	UserID        int64            `json:"user_id"`
	Direction     ListingDirection `json:"type"`
	Amount        float64          `json:"amount"`
	Rate          float64          `json:"rate"`
	PaymentMethod string           `json:"payment_method"`
	Contact       string           `json:"contact"`
	MinAmount     *float64         `json:"min_amount,omitempty"`
	MaxAmount     *float64         `json:"max_amount,omitempty"`
	Description   string           `json:"description,omitempty"`
	Status        ListingStatus    `json:"status"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// ListingUpdate carries a sparse update: nil fields are left untouched.
type ListingUpdate struct {
	Amount        *float64       `json:"amount,omitempty"`
	Rate          *float64       `json:"rate,omitempty"`
	PaymentMethod *string        `json:"payment_method,omitempty"`
	Contact       *string        `json:"contact,omitempty"`
	Status        *ListingStatus `json:"status,omitempty"`
	MinAmount     *float64       `json:"min_amount,omitempty"`
	MaxAmount     *float64       `json:"max_amount,omitempty"`
	Description   *string        `json:"description,omitempty"`
}
