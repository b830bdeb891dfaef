package models

import "errors"

// Failure kinds surfaced by the protocol. Every precondition violation is a
// synchronous, atomic rejection; callers retry with corrected input.
var (
	ErrInvalidAddress        = errors.New("invalid address")
	ErrArraySizeMismatch     = errors.New("array size mismatch")
	ErrBatchSizeOutOfBounds  = errors.New("batch size out of bounds")
	ErrInvalidDateRange      = errors.New("invalid date range")
	ErrStatusMismatch        = errors.New("status mismatch")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrSignatureMismatch     = errors.New("signature mismatch")
	ErrSettlementOverflow    = errors.New("settlement overflow")
	ErrAlreadyListed         = errors.New("already listed")
	ErrNotListed             = errors.New("not listed")
	ErrPaused                = errors.New("paused")
	ErrNotFound              = errors.New("not found")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrCapacityExceeded      = errors.New("ticket capacity exceeded")
)
