package models

import "time"

type UserRole string

const (
	RoleBuyer  UserRole = "buyer"
	RoleSeller UserRole = "seller"
	RoleBoth   UserRole = "both"
)

type User struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	TelegramUsername string    `json:"telegram_username,omitempty"`
	TelegramID       string    `json:"telegram_id,omitempty"`
	Role             UserRole  `json:"type"`
	Verified         bool      `json:"verified"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
