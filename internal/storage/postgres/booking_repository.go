package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/bernardodieta/bookingApp-sub001/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BookingRepository struct {
	querier
}

func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{querier{pool: pool}}
}

func (r *BookingRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

// LockStaffDay serializes all overlap-sensitive booking mutations for one
// staff member and date through a transaction-scoped advisory lock.
func (r *BookingRepository) LockStaffDay(ctx context.Context, staffID string, day time.Time) error {
	key := staffID + ":" + day.UTC().Format("2006-01-02")
	if _, err := r.exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return fmt.Errorf("lock staff day: %w", err)
	}
	return nil
}

func (r *BookingRepository) GetService(ctx context.Context, tenantID, serviceID string) (domain.Service, error) {
	const query = `
SELECT id, tenant_id, name, duration_minutes, price_cents
FROM services
WHERE id = $1 AND tenant_id = $2`

	var s domain.Service
	err := r.queryRow(ctx, query, serviceID, tenantID).
		Scan(&s.ID, &s.TenantID, &s.Name, &s.DurationMinutes, &s.PriceCents)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Service{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Service{}, domain.ErrServiceNotFound
		}
		return domain.Service{}, fmt.Errorf("get service: %w", err)
	}
	return s, nil
}

func (r *BookingRepository) GetTenantSettings(ctx context.Context, tenantID string) (domain.TenantSettings, error) {
	const query = `
SELECT tenant_id, timezone, slot_buffer_minutes, new_booking_status, external_calendar_authoritative
FROM tenant_settings
WHERE tenant_id = $1`

	var t domain.TenantSettings
	var status string
	err := r.queryRow(ctx, query, tenantID).
		Scan(&t.TenantID, &t.Timezone, &t.SlotBufferMinutes, &status, &t.ExternalCalendarAuthoritative)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.TenantSettings{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.TenantSettings{}, domain.ErrTenantNotFound
		}
		return domain.TenantSettings{}, fmt.Errorf("get tenant settings: %w", err)
	}
	t.NewBookingStatus = domain.BookingStatus(status)
	return t, nil
}

func (r *BookingRepository) ListBlockingBookings(ctx context.Context, staffID string, from, to time.Time) ([]domain.Booking, error) {
	const query = `
SELECT id, tenant_id, service_id, staff_id, customer_id, start_at, end_at, status, external_ref, COALESCE(account_id::text, ''), created_at
FROM bookings
WHERE staff_id = $1
  AND status IN ('pending', 'confirmed', 'rescheduled')
  AND start_at < $3 AND end_at > $2
ORDER BY start_at ASC`

	rows, err := r.query(ctx, query, staffID, from, to)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list blocking bookings: %w", err)
	}
	defer rows.Close()
	return scanBookings(rows)
}

func (r *BookingRepository) ExistsOverlapping(ctx context.Context, staffID string, start, end time.Time) (bool, error) {
	const query = `
SELECT EXISTS (
	SELECT 1 FROM bookings
	WHERE staff_id = $1
	  AND status IN ('pending', 'confirmed', 'rescheduled')
	  AND start_at < $3 AND end_at > $2
)`

	var exists bool
	if err := r.queryRow(ctx, query, staffID, start, end).Scan(&exists); err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("check overlap: %w", err)
	}
	return exists, nil
}

func (r *BookingRepository) CreateBooking(ctx context.Context, b domain.Booking) error {
	const stmt = `
INSERT INTO bookings (id, tenant_id, service_id, staff_id, customer_id, start_at, end_at, status, external_ref, account_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, '')::uuid, $11)`

	_, err := r.exec(ctx, stmt,
		b.ID, b.TenantID, b.ServiceID, b.StaffID, b.CustomerID,
		b.StartAt, b.EndAt, b.Status, b.ExternalRef, b.AccountID, b.CreatedAt,
	)
	if err != nil {
		if isExclusionViolation(err) {
			return domain.ErrSlotConflict
		}
		if isForeignKeyViolation(err) {
			return domain.ErrServiceNotFound
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create booking: %w", err)
	}
	return nil
}

func (r *BookingRepository) GetBooking(ctx context.Context, id string) (domain.Booking, error) {
	const query = `
SELECT id, tenant_id, service_id, staff_id, customer_id, start_at, end_at, status, external_ref, COALESCE(account_id::text, ''), created_at
FROM bookings
WHERE id = $1`

	b, err := scanBooking(r.queryRow(ctx, query, id))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Booking{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Booking{}, domain.ErrBookingNotFound
		}
		return domain.Booking{}, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

func (r *BookingRepository) GetBookingForUpdate(ctx context.Context, id string) (domain.Booking, error) {
	const query = `
SELECT id, tenant_id, service_id, staff_id, customer_id, start_at, end_at, status, external_ref, COALESCE(account_id::text, ''), created_at
FROM bookings
WHERE id = $1
FOR UPDATE`

	b, err := scanBooking(r.queryRow(ctx, query, id))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Booking{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Booking{}, domain.ErrBookingNotFound
		}
		return domain.Booking{}, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

func (r *BookingRepository) UpdateBookingStatus(ctx context.Context, id string, status domain.BookingStatus) error {
	const stmt = `UPDATE bookings SET status = $2 WHERE id = $1`

	tag, err := r.exec(ctx, stmt, id, status)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("update booking status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBookingNotFound
	}
	return nil
}

func (r *BookingRepository) ListByCustomer(ctx context.Context, tenantID, customerID string) ([]domain.Booking, error) {
	const query = `
SELECT id, tenant_id, service_id, staff_id, customer_id, start_at, end_at, status, external_ref, COALESCE(account_id::text, ''), created_at
FROM bookings
WHERE tenant_id = $1 AND customer_id = $2
ORDER BY start_at DESC`

	rows, err := r.query(ctx, query, tenantID, customerID)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list customer bookings: %w", err)
	}
	defer rows.Close()
	return scanBookings(rows)
}

func scanBooking(row pgx.Row) (domain.Booking, error) {
	var b domain.Booking
	var status string
	err := row.Scan(&b.ID, &b.TenantID, &b.ServiceID, &b.StaffID, &b.CustomerID,
		&b.StartAt, &b.EndAt, &status, &b.ExternalRef, &b.AccountID, &b.CreatedAt)
	if err != nil {
		return domain.Booking{}, err
	}
	b.Status = domain.BookingStatus(status)
	return b, nil
}

func scanBookings(rows pgx.Rows) ([]domain.Booking, error) {
	var out []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		out = append(out, b)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate bookings: %w", rows.Err())
	}
	return out, nil
}
