package errors

import "errors"

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrListingNotFound   = errors.New("listing not found")
	ErrDealNotFound      = errors.New("deal not found")
	ErrDuplicateIdentity = errors.New("user already exists")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidState      = errors.New("deal cannot be modified in current status")
	ErrForbidden         = errors.New("forbidden")
	ErrTradeCodeTaken    = errors.New("trade code already taken")
	ErrInternal          = errors.New("internal error")
)
