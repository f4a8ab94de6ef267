package postgres

import (
	"context"
	"fmt"

	"github.com/bernardodieta/bookingApp-sub001/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PaymentRepository struct {
	querier
}

func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{querier{pool: pool}}
}

func (r *PaymentRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

// InsertEventIfAbsent records the webhook delivery. Returns false when the
// (provider, event id) pair was already recorded; concurrent duplicate
// deliveries have exactly one winner.
func (r *PaymentRepository) InsertEventIfAbsent(ctx context.Context, e domain.PaymentEvent) (bool, error) {
	const stmt = `
INSERT INTO payment_events (id, provider, provider_event_id, booking_id, provider_ref, amount_cents, status, received_at)
VALUES ($1, $2, $3, NULLIF($4, '')::uuid, $5, $6, $7, $8)
ON CONFLICT (provider, provider_event_id) DO NOTHING`

	tag, err := r.exec(ctx, stmt, e.ID, e.Provider, e.ProviderEventID, e.BookingID,
		e.ProviderRef, e.AmountCents, e.Status, e.ReceivedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("record payment event: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PaymentRepository) BookingExists(ctx context.Context, bookingID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM bookings WHERE id = $1)`

	var exists bool
	if err := r.queryRow(ctx, query, bookingID).Scan(&exists); err != nil {
		if isInvalidUUID(err) {
			return false, nil
		}
		return false, fmt.Errorf("check booking: %w", err)
	}
	return exists, nil
}

func (r *PaymentRepository) GetPaymentForUpdate(ctx context.Context, bookingID, provider, providerRef string) (*domain.Payment, error) {
	const query = `
SELECT id, booking_id, provider, provider_ref, status, amount_cents, created_at, updated_at
FROM payments
WHERE booking_id = $1 AND provider = $2 AND provider_ref = $3
FOR UPDATE`

	var p domain.Payment
	var status string
	err := r.queryRow(ctx, query, bookingID, provider, providerRef).
		Scan(&p.ID, &p.BookingID, &p.Provider, &p.ProviderRef, &status, &p.AmountCents, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	p.Status = domain.PaymentStatus(status)
	return &p, nil
}

func (r *PaymentRepository) CreatePayment(ctx context.Context, p domain.Payment) error {
	const stmt = `
INSERT INTO payments (id, booking_id, provider, provider_ref, status, amount_cents, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`

	_, err := r.exec(ctx, stmt, p.ID, p.BookingID, p.Provider, p.ProviderRef,
		p.Status, p.AmountCents, p.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrBookingNotFound
		}
		if isUniqueViolation(err) {
			// A concurrent apply for the same tuple won; the caller re-reads.
			return nil
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

func (r *PaymentRepository) UpdatePaymentStatus(ctx context.Context, id string, status domain.PaymentStatus, amountCents int64) error {
	const stmt = `UPDATE payments SET status = $2, amount_cents = $3, updated_at = NOW() WHERE id = $1`

	tag, err := r.exec(ctx, stmt, id, status, amountCents)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBookingNotFound
	}
	return nil
}

func (r *PaymentRepository) GetPaymentByBooking(ctx context.Context, bookingID string) (*domain.Payment, error) {
	const query = `
SELECT id, booking_id, provider, provider_ref, status, amount_cents, created_at, updated_at
FROM payments
WHERE booking_id = $1
ORDER BY created_at DESC
LIMIT 1`

	var p domain.Payment
	var status string
	err := r.queryRow(ctx, query, bookingID).
		Scan(&p.ID, &p.BookingID, &p.Provider, &p.ProviderRef, &status, &p.AmountCents, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment by booking: %w", err)
	}
	p.Status = domain.PaymentStatus(status)
	return &p, nil
}
