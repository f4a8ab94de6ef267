package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/bernardodieta/bookingApp-sub001/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CalendarRepository struct {
	querier
}

func NewCalendarRepository(pool *pgxpool.Pool) *CalendarRepository {
	return &CalendarRepository{querier{pool: pool}}
}

func (r *CalendarRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

// GetAccountForUpdate row-locks the account, serializing concurrent syncs
// (webhook-triggered and polled) for the same account.
func (r *CalendarRepository) GetAccountForUpdate(ctx context.Context, id string) (domain.CalendarAccount, error) {
	const query = `
SELECT id, tenant_id, staff_id, provider, sync_cursor, last_sync_at, health, created_at
FROM calendar_accounts
WHERE id = $1
FOR UPDATE`

	return r.scanAccount(r.queryRow(ctx, query, id))
}

func (r *CalendarRepository) GetAccount(ctx context.Context, id string) (domain.CalendarAccount, error) {
	const query = `
SELECT id, tenant_id, staff_id, provider, sync_cursor, last_sync_at, health, created_at
FROM calendar_accounts
WHERE id = $1`

	return r.scanAccount(r.queryRow(ctx, query, id))
}

func (r *CalendarRepository) scanAccount(row pgx.Row) (domain.CalendarAccount, error) {
	var a domain.CalendarAccount
	var provider, health string
	err := row.Scan(&a.ID, &a.TenantID, &a.StaffID, &provider, &a.SyncCursor,
		&a.LastSyncAt, &health, &a.CreatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.CalendarAccount{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.CalendarAccount{}, domain.ErrAccountNotFound
		}
		return domain.CalendarAccount{}, fmt.Errorf("get account: %w", err)
	}
	a.Provider = domain.CalendarProvider(provider)
	a.Health = domain.AccountHealth(health)
	return a, nil
}

func (r *CalendarRepository) ListAccountIDs(ctx context.Context) ([]string, error) {
	const query = `SELECT id FROM calendar_accounts ORDER BY created_at ASC`

	rows, err := r.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan account id: %w", err)
		}
		ids = append(ids, id)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate accounts: %w", rows.Err())
	}
	return ids, nil
}

// UpdateAccountSync advances the cursor and health. Must run in the same
// transaction as the conflict upserts produced from the synced page.
func (r *CalendarRepository) UpdateAccountSync(ctx context.Context, id, cursor string, health domain.AccountHealth, syncedAt time.Time) error {
	const stmt = `
UPDATE calendar_accounts
SET sync_cursor = $2, health = $3, last_sync_at = $4
WHERE id = $1`

	tag, err := r.exec(ctx, stmt, id, cursor, health, syncedAt)
	if err != nil {
		return fmt.Errorf("update account sync: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *CalendarRepository) SetAccountHealth(ctx context.Context, id string, health domain.AccountHealth) error {
	const stmt = `UPDATE calendar_accounts SET health = $2 WHERE id = $1`

	tag, err := r.exec(ctx, stmt, id, health)
	if err != nil {
		return fmt.Errorf("set account health: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *CalendarRepository) FindBookingByExternalRef(ctx context.Context, accountID, ref string) (*domain.Booking, error) {
	const query = `
SELECT id, tenant_id, service_id, staff_id, customer_id, start_at, end_at, status, external_ref, COALESCE(account_id::text, ''), created_at
FROM bookings
WHERE account_id = $1 AND external_ref = $2`

	b, err := scanBooking(r.queryRow(ctx, query, accountID, ref))
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find booking by external ref: %w", err)
	}
	return &b, nil
}

func (r *CalendarRepository) FindOverlappingBooking(ctx context.Context, staffID string, window domain.TimeWindow) (*domain.Booking, error) {
	const query = `
SELECT id, tenant_id, service_id, staff_id, customer_id, start_at, end_at, status, external_ref, COALESCE(account_id::text, ''), created_at
FROM bookings
WHERE staff_id = $1
  AND status IN ('pending', 'confirmed', 'rescheduled')
  AND start_at < $3 AND end_at > $2
ORDER BY start_at ASC
LIMIT 1`

	b, err := scanBooking(r.queryRow(ctx, query, staffID, window.Start, window.End))
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find overlapping booking: %w", err)
	}
	return &b, nil
}

func (r *CalendarRepository) LinkBooking(ctx context.Context, bookingID, accountID, ref string) error {
	const stmt = `UPDATE bookings SET external_ref = $2, account_id = $3 WHERE id = $1`

	tag, err := r.exec(ctx, stmt, bookingID, ref, accountID)
	if err != nil {
		return fmt.Errorf("link booking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBookingNotFound
	}
	return nil
}

// ListLinkedBookings returns blocking bookings already linked to events from
// this account, used to detect events that disappeared from the feed.
func (r *CalendarRepository) ListLinkedBookings(ctx context.Context, accountID string) ([]domain.Booking, error) {
	const query = `
SELECT id, tenant_id, service_id, staff_id, customer_id, start_at, end_at, status, external_ref, COALESCE(account_id::text, ''), created_at
FROM bookings
WHERE account_id = $1 AND external_ref <> ''
  AND status IN ('pending', 'confirmed', 'rescheduled')
ORDER BY start_at ASC`

	rows, err := r.query(ctx, query, accountID)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list linked bookings: %w", err)
	}
	defer rows.Close()
	return scanBookings(rows)
}

// UpsertConflict creates a conflict, or refreshes the still-unresolved one
// for the same (account, external ref). Resolved conflicts stay untouched.
func (r *CalendarRepository) UpsertConflict(ctx context.Context, c domain.CalendarConflict) (domain.CalendarConflict, error) {
	const stmt = `
INSERT INTO calendar_conflicts (id, tenant_id, account_id, external_ref, booking_id, kind, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
ON CONFLICT (account_id, external_ref) WHERE NOT resolved
DO UPDATE SET kind = EXCLUDED.kind, booking_id = EXCLUDED.booking_id, updated_at = EXCLUDED.updated_at
RETURNING id, created_at, updated_at`

	err := r.queryRow(ctx, stmt, c.ID, c.TenantID, c.AccountID, c.ExternalRef,
		c.BookingID, c.Kind, c.CreatedAt).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.CalendarConflict{}, domain.ErrInvalidID
		}
		return domain.CalendarConflict{}, fmt.Errorf("upsert conflict: %w", err)
	}
	return c, nil
}

func (r *CalendarRepository) GetConflict(ctx context.Context, id string) (domain.CalendarConflict, error) {
	const query = `
SELECT id, tenant_id, account_id, external_ref, booking_id, kind, resolved,
       resolution_action, resolution_note, resolved_by, resolved_at, created_at, updated_at
FROM calendar_conflicts
WHERE id = $1`

	c, err := scanConflict(r.queryRow(ctx, query, id))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.CalendarConflict{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.CalendarConflict{}, domain.ErrConflictNotFound
		}
		return domain.CalendarConflict{}, fmt.Errorf("get conflict: %w", err)
	}
	return c, nil
}

func (r *CalendarRepository) GetConflictForUpdate(ctx context.Context, id string) (domain.CalendarConflict, error) {
	const query = `
SELECT id, tenant_id, account_id, external_ref, booking_id, kind, resolved,
       resolution_action, resolution_note, resolved_by, resolved_at, created_at, updated_at
FROM calendar_conflicts
WHERE id = $1
FOR UPDATE`

	c, err := scanConflict(r.queryRow(ctx, query, id))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.CalendarConflict{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.CalendarConflict{}, domain.ErrConflictNotFound
		}
		return domain.CalendarConflict{}, fmt.Errorf("get conflict: %w", err)
	}
	return c, nil
}

// ListConflicts pages newest-first. A zero before/beforeID means first page.
func (r *CalendarRepository) ListConflicts(ctx context.Context, tenantID string, before time.Time, beforeID string, limit int) ([]domain.CalendarConflict, error) {
	const query = `
SELECT id, tenant_id, account_id, external_ref, booking_id, kind, resolved,
       resolution_action, resolution_note, resolved_by, resolved_at, created_at, updated_at
FROM calendar_conflicts
WHERE tenant_id = $1
  AND ($2::timestamptz IS NULL OR (created_at, id) < ($2, $3::uuid))
ORDER BY created_at DESC, id DESC
LIMIT $4`

	var beforeArg any
	var beforeIDArg any
	if !before.IsZero() {
		beforeArg = before
		beforeIDArg = beforeID
	}

	rows, err := r.query(ctx, query, tenantID, beforeArg, beforeIDArg, limit)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list conflicts: %w", err)
	}
	defer rows.Close()

	var out []domain.CalendarConflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conflict: %w", err)
		}
		out = append(out, c)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate conflicts: %w", rows.Err())
	}
	return out, nil
}

func (r *CalendarRepository) MarkConflictResolved(ctx context.Context, id string, action domain.ResolutionAction, note, resolvedBy string, at time.Time) error {
	const stmt = `
UPDATE calendar_conflicts
SET resolved = TRUE, resolution_action = $2, resolution_note = $3, resolved_by = $4, resolved_at = $5, updated_at = $5
WHERE id = $1 AND NOT resolved`

	tag, err := r.exec(ctx, stmt, id, action, note, resolvedBy, at)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("resolve conflict: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConflictNotFound
	}
	return nil
}

func (r *CalendarRepository) CountUnresolvedSince(ctx context.Context, since time.Time) (int, error) {
	const query = `
SELECT COUNT(*)
FROM calendar_conflicts
WHERE NOT resolved AND created_at >= $1`

	var count int
	if err := r.queryRow(ctx, query, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unresolved: %w", err)
	}
	return count, nil
}

func scanConflict(row pgx.Row) (domain.CalendarConflict, error) {
	var c domain.CalendarConflict
	var kind, action string
	err := row.Scan(&c.ID, &c.TenantID, &c.AccountID, &c.ExternalRef, &c.BookingID,
		&kind, &c.Resolved, &action, &c.Note, &c.ResolvedBy, &c.ResolvedAt,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return domain.CalendarConflict{}, err
	}
	c.Kind = domain.ConflictKind(kind)
	c.Action = domain.ResolutionAction(action)
	return c, nil
}
