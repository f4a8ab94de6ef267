package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/bernardodieta/bookingApp-sub001/internal/domain"
	"github.com/bernardodieta/bookingApp-sub001/internal/testutil"
	"github.com/google/uuid"
)

func TestCalendarRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewCalendarRepository(pool)
	testutil.ApplyMigrations(t, context.Background(), pool)

	tenantID := uuid.NewString()
	staffID := uuid.NewString()

	seedAccount := func(ctx context.Context) string {
		testutil.TruncateAll(t, ctx, pool)
		testutil.InsertTenantSettings(t, ctx, pool, domain.TenantSettings{
			TenantID:         tenantID,
			Timezone:         "UTC",
			NewBookingStatus: domain.BookingStatusConfirmed,
		})
		return testutil.InsertCalendarAccount(t, ctx, pool, domain.CalendarAccount{
			TenantID: tenantID,
			StaffID:  staffID,
			Provider: domain.ProviderGoogle,
			Health:   domain.AccountHealthy,
		})
	}

	newConflict := func(accountID, ref string, kind domain.ConflictKind, at time.Time) domain.CalendarConflict {
		return domain.CalendarConflict{
			ID:          uuid.NewString(),
			TenantID:    tenantID,
			AccountID:   accountID,
			ExternalRef: ref,
			Kind:        kind,
			CreatedAt:   at,
		}
	}

	t.Run("UpsertConflict refreshes the open row instead of duplicating", func(t *testing.T) {
		ctx := context.Background()
		accountID := seedAccount(ctx)
		base := time.Now().UTC().Truncate(time.Millisecond)

		first, err := repo.UpsertConflict(ctx, newConflict(accountID, "evt-1", domain.ConflictDoubleBooked, base))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		second, err := repo.UpsertConflict(ctx, newConflict(accountID, "evt-1", domain.ConflictStaleExternal, base.Add(time.Minute)))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if second.ID != first.ID {
			t.Fatalf("expected upsert to reuse conflict %s, got %s", first.ID, second.ID)
		}

		got, err := repo.GetConflict(ctx, first.ID)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got.Kind != domain.ConflictStaleExternal {
			t.Fatalf("expected kind refreshed to stale_external, got %s", got.Kind)
		}
	})

	t.Run("resolved conflicts do not absorb new upserts", func(t *testing.T) {
		ctx := context.Background()
		accountID := seedAccount(ctx)
		base := time.Now().UTC().Truncate(time.Millisecond)

		first, err := repo.UpsertConflict(ctx, newConflict(accountID, "evt-1", domain.ConflictDoubleBooked, base))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := repo.MarkConflictResolved(ctx, first.ID, domain.ResolutionDismiss, "", "admin", base); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		second, err := repo.UpsertConflict(ctx, newConflict(accountID, "evt-1", domain.ConflictDoubleBooked, base.Add(time.Minute)))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if second.ID == first.ID {
			t.Fatalf("expected a fresh conflict row after resolution")
		}
	})

	t.Run("MarkConflictResolved is first-writer-wins", func(t *testing.T) {
		ctx := context.Background()
		accountID := seedAccount(ctx)
		now := time.Now().UTC().Truncate(time.Millisecond)

		c, err := repo.UpsertConflict(ctx, newConflict(accountID, "evt-1", domain.ConflictOrphanInternal, now))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := repo.MarkConflictResolved(ctx, c.ID, domain.ResolutionRetrySync, "poke sync", "admin", now); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := repo.MarkConflictResolved(ctx, c.ID, domain.ResolutionDismiss, "", "other", now); err != domain.ErrConflictNotFound {
			t.Fatalf("expected ErrConflictNotFound on second resolve, got %v", err)
		}

		got, err := repo.GetConflict(ctx, c.ID)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got.Action != domain.ResolutionRetrySync || got.ResolvedBy != "admin" {
			t.Fatalf("expected first resolution retained, got action=%s by=%s", got.Action, got.ResolvedBy)
		}
	})

	t.Run("ListConflicts pages newest-first by keyset", func(t *testing.T) {
		ctx := context.Background()
		accountID := seedAccount(ctx)
		base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

		for i := 0; i < 5; i++ {
			_, err := repo.UpsertConflict(ctx, newConflict(accountID, "evt-"+string(rune('a'+i)),
				domain.ConflictOrphanExternal, base.Add(time.Duration(i)*time.Minute)))
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		}

		page, err := repo.ListConflicts(ctx, tenantID, time.Time{}, "", 3)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(page) != 3 {
			t.Fatalf("expected 3 conflicts, got %d", len(page))
		}
		if !page[0].CreatedAt.After(page[2].CreatedAt) {
			t.Fatalf("expected newest first, got %v then %v", page[0].CreatedAt, page[2].CreatedAt)
		}

		last := page[2]
		rest, err := repo.ListConflicts(ctx, tenantID, last.CreatedAt, last.ID, 3)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(rest) != 2 {
			t.Fatalf("expected 2 remaining conflicts, got %d", len(rest))
		}
		if rest[0].CreatedAt.After(last.CreatedAt) {
			t.Fatalf("second page leaked rows from the first")
		}
	})

	t.Run("CountUnresolvedSince ignores resolved and old rows", func(t *testing.T) {
		ctx := context.Background()
		accountID := seedAccount(ctx)
		now := time.Now().UTC().Truncate(time.Millisecond)

		if _, err := repo.UpsertConflict(ctx, newConflict(accountID, "evt-old", domain.ConflictDoubleBooked, now.Add(-10*24*time.Hour))); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		recent, err := repo.UpsertConflict(ctx, newConflict(accountID, "evt-new", domain.ConflictDoubleBooked, now))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		done, err := repo.UpsertConflict(ctx, newConflict(accountID, "evt-done", domain.ConflictDoubleBooked, now))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := repo.MarkConflictResolved(ctx, done.ID, domain.ResolutionDismiss, "", "admin", now); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		count, err := repo.CountUnresolvedSince(ctx, now.Add(-7*24*time.Hour))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if count != 1 {
			t.Fatalf("expected 1 unresolved conflict (%s), got %d", recent.ID, count)
		}
	})

	t.Run("UpdateAccountSync stores cursor and health", func(t *testing.T) {
		ctx := context.Background()
		accountID := seedAccount(ctx)
		now := time.Now().UTC().Truncate(time.Millisecond)

		if err := repo.UpdateAccountSync(ctx, accountID, "cursor-42", domain.AccountHealthy, now); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		got, err := repo.GetAccount(ctx, accountID)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got.SyncCursor != "cursor-42" || got.Health != domain.AccountHealthy {
			t.Fatalf("expected cursor-42/healthy, got %s/%s", got.SyncCursor, got.Health)
		}
		if got.LastSyncAt == nil || !got.LastSyncAt.Equal(now) {
			t.Fatalf("expected last sync %v, got %v", now, got.LastSyncAt)
		}
	})

	t.Run("GetAccount maps missing and malformed ids", func(t *testing.T) {
		ctx := context.Background()
		seedAccount(ctx)

		if _, err := repo.GetAccount(ctx, uuid.NewString()); err != domain.ErrAccountNotFound {
			t.Fatalf("expected ErrAccountNotFound, got %v", err)
		}
		if _, err := repo.GetAccount(ctx, "not-a-uuid"); err != domain.ErrInvalidID {
			t.Fatalf("expected ErrInvalidID, got %v", err)
		}
	})
}
