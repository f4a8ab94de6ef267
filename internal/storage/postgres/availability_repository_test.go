package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/bernardodieta/bookingApp-sub001/internal/domain"
	"github.com/bernardodieta/bookingApp-sub001/internal/testutil"
	"github.com/google/uuid"
)

func TestAvailabilityRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewAvailabilityRepository(pool)
	testutil.ApplyMigrations(t, context.Background(), pool)

	tenantID := uuid.NewString()
	staffID := uuid.NewString()

	seed := func(ctx context.Context) {
		testutil.TruncateAll(t, ctx, pool)
		testutil.InsertTenantSettings(t, ctx, pool, domain.TenantSettings{
			TenantID:         tenantID,
			Timezone:         "UTC",
			NewBookingStatus: domain.BookingStatusConfirmed,
		})
	}

	rule := func(weekday time.Weekday, startMinute, endMinute int, active bool) domain.AvailabilityRule {
		return domain.AvailabilityRule{
			ID:          uuid.NewString(),
			TenantID:    tenantID,
			StaffID:     staffID,
			Weekday:     weekday,
			StartMinute: startMinute,
			EndMinute:   endMinute,
			Active:      active,
			CreatedAt:   time.Now().UTC(),
		}
	}

	t.Run("ListActiveRules filters by weekday and active flag", func(t *testing.T) {
		ctx := context.Background()
		seed(ctx)

		for _, r := range []domain.AvailabilityRule{
			rule(time.Monday, 540, 720, true),
			rule(time.Monday, 480, 510, true),
			rule(time.Monday, 840, 1020, false),
			rule(time.Tuesday, 540, 720, true),
		} {
			if err := repo.CreateRule(ctx, r); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		}

		rules, err := repo.ListActiveRules(ctx, tenantID, staffID, time.Monday)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(rules) != 2 {
			t.Fatalf("expected 2 active Monday rules, got %d", len(rules))
		}
		if rules[0].StartMinute != 480 || rules[1].StartMinute != 540 {
			t.Fatalf("expected rules ordered by start minute, got %d then %d", rules[0].StartMinute, rules[1].StartMinute)
		}
	})

	t.Run("ListRules includes inactive rules", func(t *testing.T) {
		ctx := context.Background()
		seed(ctx)

		if err := repo.CreateRule(ctx, rule(time.Friday, 540, 720, false)); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		rules, err := repo.ListRules(ctx, tenantID, staffID)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(rules) != 1 || rules[0].Active {
			t.Fatalf("expected one inactive rule, got %+v", rules)
		}
		if rules[0].Weekday != time.Friday {
			t.Fatalf("expected Friday, got %v", rules[0].Weekday)
		}
	})

	t.Run("listing rejects malformed tenant ids", func(t *testing.T) {
		ctx := context.Background()
		seed(ctx)

		if _, err := repo.ListRules(ctx, "not-a-uuid", staffID); err != domain.ErrInvalidID {
			t.Fatalf("expected ErrInvalidID, got %v", err)
		}
	})
}
