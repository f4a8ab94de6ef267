package domain

import "errors"

var (
	ErrInvalidID                = errors.New("invalid id")
	ErrInvalidDate              = errors.New("invalid date")
	ErrInvalidLimit             = errors.New("limit must be between 1 and 200")
	ErrInvalidCursor            = errors.New("invalid cursor")
	ErrInvalidAction            = errors.New("action must be dismiss or retry_sync")
	ErrNoteTooLong              = errors.New("note must be at most 500 characters")
	ErrInvalidAmount            = errors.New("amount must be positive with at most two decimal places")
	ErrInvalidCheckoutMode      = errors.New("mode must be full or deposit")
	ErrInvalidRule              = errors.New("rule start must be before end")
	ErrSlotConflict             = errors.New("slot conflict")
	ErrBookingNotFound          = errors.New("booking not found")
	ErrServiceNotFound          = errors.New("service not found")
	ErrTenantNotFound           = errors.New("tenant not found")
	ErrAccountNotFound          = errors.New("calendar account not found")
	ErrConflictNotFound         = errors.New("conflict not found")
	ErrWaitlistEntryNotFound    = errors.New("waitlist entry not found")
	ErrEntryNotNotified         = errors.New("waitlist entry has not been notified")
	ErrIntegrationNotConfigured = errors.New("calendar integration not configured")
	ErrSignatureInvalid         = errors.New("webhook signature invalid")
)
