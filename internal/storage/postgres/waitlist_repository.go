package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/bernardodieta/bookingApp-sub001/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type WaitlistRepository struct {
	querier
}

func NewWaitlistRepository(pool *pgxpool.Pool) *WaitlistRepository {
	return &WaitlistRepository{querier{pool: pool}}
}

func (r *WaitlistRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

// LockStaffDay shares the reservation critical section so a promotion can
// never race a direct reservation for the same freed window.
func (r *WaitlistRepository) LockStaffDay(ctx context.Context, staffID string, day time.Time) error {
	key := staffID + ":" + day.UTC().Format("2006-01-02")
	if _, err := r.exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return fmt.Errorf("lock staff day: %w", err)
	}
	return nil
}

func (r *WaitlistRepository) CreateEntry(ctx context.Context, e domain.WaitlistEntry) error {
	const stmt = `
INSERT INTO waitlist_entries (id, tenant_id, service_id, staff_id, customer_id, preferred_start_at, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.exec(ctx, stmt, e.ID, e.TenantID, e.ServiceID, e.StaffID, e.CustomerID,
		e.PreferredStartAt, e.Status, e.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrServiceNotFound
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create waitlist entry: %w", err)
	}
	return nil
}

func (r *WaitlistRepository) GetEntry(ctx context.Context, id string) (domain.WaitlistEntry, error) {
	const query = `
SELECT id, tenant_id, service_id, staff_id, customer_id, preferred_start_at, status, created_at
FROM waitlist_entries
WHERE id = $1`

	e, err := scanWaitlistEntry(r.queryRow(ctx, query, id))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.WaitlistEntry{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.WaitlistEntry{}, domain.ErrWaitlistEntryNotFound
		}
		return domain.WaitlistEntry{}, fmt.Errorf("get waitlist entry: %w", err)
	}
	return e, nil
}

// CountWaitingBefore returns how many waiting entries in the same scope were
// created strictly before createdAt. Queue position is this count plus one.
func (r *WaitlistRepository) CountWaitingBefore(ctx context.Context, tenantID, serviceID, staffID string, createdAt time.Time) (int, error) {
	const query = `
SELECT COUNT(*)
FROM waitlist_entries
WHERE tenant_id = $1 AND service_id = $2 AND staff_id = $3
  AND status = 'waiting' AND created_at < $4`

	var count int
	if err := r.queryRow(ctx, query, tenantID, serviceID, staffID, createdAt).Scan(&count); err != nil {
		if isInvalidUUID(err) {
			return 0, domain.ErrInvalidID
		}
		return 0, fmt.Errorf("count waiting: %w", err)
	}
	return count, nil
}

// FirstWaitingCompatible returns the FIFO head waiting entry whose preferred
// start falls inside the freed window, locked for the promotion.
func (r *WaitlistRepository) FirstWaitingCompatible(ctx context.Context, staffID string, window domain.TimeWindow) (*domain.WaitlistEntry, error) {
	const query = `
SELECT id, tenant_id, service_id, staff_id, customer_id, preferred_start_at, status, created_at
FROM waitlist_entries
WHERE staff_id = $1 AND status = 'waiting'
  AND preferred_start_at >= $2 AND preferred_start_at < $3
ORDER BY created_at ASC
LIMIT 1
FOR UPDATE SKIP LOCKED`

	e, err := scanWaitlistEntry(r.queryRow(ctx, query, staffID, window.Start, window.End))
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find compatible entry: %w", err)
	}
	return &e, nil
}

func (r *WaitlistRepository) UpdateEntryStatus(ctx context.Context, id string, status domain.WaitlistStatus) error {
	const stmt = `UPDATE waitlist_entries SET status = $2 WHERE id = $1`

	tag, err := r.exec(ctx, stmt, id, status)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("update entry status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrWaitlistEntryNotFound
	}
	return nil
}

func (r *WaitlistRepository) ListByCustomer(ctx context.Context, tenantID, customerID string) ([]domain.WaitlistEntry, error) {
	const query = `
SELECT id, tenant_id, service_id, staff_id, customer_id, preferred_start_at, status, created_at
FROM waitlist_entries
WHERE tenant_id = $1 AND customer_id = $2
ORDER BY created_at DESC`

	rows, err := r.query(ctx, query, tenantID, customerID)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list customer waitlist: %w", err)
	}
	defer rows.Close()

	var out []domain.WaitlistEntry
	for rows.Next() {
		e, err := scanWaitlistEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan waitlist entry: %w", err)
		}
		out = append(out, e)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate waitlist entries: %w", rows.Err())
	}
	return out, nil
}

func scanWaitlistEntry(row pgx.Row) (domain.WaitlistEntry, error) {
	var e domain.WaitlistEntry
	var status string
	err := row.Scan(&e.ID, &e.TenantID, &e.ServiceID, &e.StaffID, &e.CustomerID,
		&e.PreferredStartAt, &status, &e.CreatedAt)
	if err != nil {
		return domain.WaitlistEntry{}, err
	}
	e.Status = domain.WaitlistStatus(status)
	return e, nil
}
