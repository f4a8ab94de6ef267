package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/bernardodieta/bookingApp-sub001/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AvailabilityRepository struct {
	querier
}

func NewAvailabilityRepository(pool *pgxpool.Pool) *AvailabilityRepository {
	return &AvailabilityRepository{querier{pool: pool}}
}

func (r *AvailabilityRepository) ListActiveRules(ctx context.Context, tenantID, staffID string, weekday time.Weekday) ([]domain.AvailabilityRule, error) {
	const query = `
SELECT id, tenant_id, staff_id, weekday, start_minute, end_minute, active, created_at
FROM availability_rules
WHERE tenant_id = $1 AND staff_id = $2 AND weekday = $3 AND active
ORDER BY start_minute ASC`

	rows, err := r.query(ctx, query, tenantID, staffID, int(weekday))
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list active rules: %w", err)
	}
	defer rows.Close()

	var rules []domain.AvailabilityRule
	for rows.Next() {
		var rule domain.AvailabilityRule
		var weekday int
		if err := rows.Scan(&rule.ID, &rule.TenantID, &rule.StaffID, &weekday,
			&rule.StartMinute, &rule.EndMinute, &rule.Active, &rule.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rule.Weekday = time.Weekday(weekday)
		rules = append(rules, rule)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate rules: %w", rows.Err())
	}
	return rules, nil
}

func (r *AvailabilityRepository) ListRules(ctx context.Context, tenantID, staffID string) ([]domain.AvailabilityRule, error) {
	const query = `
SELECT id, tenant_id, staff_id, weekday, start_minute, end_minute, active, created_at
FROM availability_rules
WHERE tenant_id = $1 AND staff_id = $2
ORDER BY weekday ASC, start_minute ASC`

	rows, err := r.query(ctx, query, tenantID, staffID)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var rules []domain.AvailabilityRule
	for rows.Next() {
		var rule domain.AvailabilityRule
		var weekday int
		if err := rows.Scan(&rule.ID, &rule.TenantID, &rule.StaffID, &weekday,
			&rule.StartMinute, &rule.EndMinute, &rule.Active, &rule.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rule.Weekday = time.Weekday(weekday)
		rules = append(rules, rule)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate rules: %w", rows.Err())
	}
	return rules, nil
}

func (r *AvailabilityRepository) CreateRule(ctx context.Context, rule domain.AvailabilityRule) error {
	const stmt = `
INSERT INTO availability_rules (id, tenant_id, staff_id, weekday, start_minute, end_minute, active, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.exec(ctx, stmt, rule.ID, rule.TenantID, rule.StaffID, int(rule.Weekday),
		rule.StartMinute, rule.EndMinute, rule.Active, rule.CreatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create rule: %w", err)
	}
	return nil
}
