package domain

import "time"

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// PaymentEvent is one inbound provider webhook delivery, recorded before any
// state transition. (Provider, ProviderEventID) is unique: replaying the same
// delivery is a no-op after the first successful apply.
type PaymentEvent struct {
	ID              string
	Provider        string
	ProviderEventID string
	BookingID       string
	ProviderRef     string
	AmountCents     int64
	Status          PaymentStatus
	ReceivedAt      time.Time
}

// Payment is the current payment state for a booking. At most one paid row may
// exist per (booking, provider, provider reference) tuple.
type Payment struct {
	ID          string
	BookingID   string
	Provider    string
	ProviderRef string
	Status      PaymentStatus
	AmountCents int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type CheckoutMode string

const (
	CheckoutModeFull    CheckoutMode = "full"
	CheckoutModeDeposit CheckoutMode = "deposit"
)
