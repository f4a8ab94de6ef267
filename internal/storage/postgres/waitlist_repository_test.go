package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/bernardodieta/bookingApp-sub001/internal/domain"
	"github.com/bernardodieta/bookingApp-sub001/internal/testutil"
	"github.com/google/uuid"
)

func TestWaitlistRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewWaitlistRepository(pool)
	testutil.ApplyMigrations(t, context.Background(), pool)

	tenantID := uuid.NewString()
	staffID := uuid.NewString()

	seed := func(ctx context.Context) string {
		testutil.TruncateAll(t, ctx, pool)
		testutil.InsertTenantSettings(t, ctx, pool, domain.TenantSettings{
			TenantID:         tenantID,
			Timezone:         "UTC",
			NewBookingStatus: domain.BookingStatusConfirmed,
		})
		return testutil.InsertService(t, ctx, pool, tenantID, "Cut", 30, 5000)
	}

	entry := func(serviceID, customerID string, preferred, created time.Time) domain.WaitlistEntry {
		return domain.WaitlistEntry{
			TenantID:         tenantID,
			ServiceID:        serviceID,
			StaffID:          staffID,
			CustomerID:       customerID,
			PreferredStartAt: preferred,
			Status:           domain.WaitlistStatusWaiting,
			CreatedAt:        created,
		}
	}

	t.Run("CountWaitingBefore orders the queue by join time", func(t *testing.T) {
		ctx := context.Background()
		serviceID := seed(ctx)
		preferred := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
		base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

		testutil.InsertWaitlistEntry(t, ctx, pool, entry(serviceID, uuid.NewString(), preferred, base))
		testutil.InsertWaitlistEntry(t, ctx, pool, entry(serviceID, uuid.NewString(), preferred, base.Add(time.Minute)))

		// Booked entries left the queue.
		bookedID := testutil.InsertWaitlistEntry(t, ctx, pool, entry(serviceID, uuid.NewString(), preferred, base.Add(2*time.Minute)))
		if err := repo.UpdateEntryStatus(ctx, bookedID, domain.WaitlistStatusBooked); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		count, err := repo.CountWaitingBefore(ctx, tenantID, serviceID, staffID, base.Add(5*time.Minute))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if count != 2 {
			t.Fatalf("expected 2 waiting ahead, got %d", count)
		}
	})

	t.Run("FirstWaitingCompatible picks the oldest entry in the window", func(t *testing.T) {
		ctx := context.Background()
		serviceID := seed(ctx)
		base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
		window := domain.TimeWindow{
			Start: time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC),
			End:   time.Date(2025, 3, 10, 11, 0, 0, 0, time.UTC),
		}

		// Preference outside the freed window: never a candidate.
		testutil.InsertWaitlistEntry(t, ctx, pool, entry(serviceID, uuid.NewString(), window.End.Add(time.Hour), base))

		oldest := uuid.NewString()
		oldestID := testutil.InsertWaitlistEntry(t, ctx, pool, entry(serviceID, oldest, window.Start.Add(15*time.Minute), base.Add(time.Minute)))
		testutil.InsertWaitlistEntry(t, ctx, pool, entry(serviceID, uuid.NewString(), window.Start, base.Add(2*time.Minute)))

		got, err := repo.FirstWaitingCompatible(ctx, staffID, window)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got == nil || got.ID != oldestID {
			t.Fatalf("expected entry %s for customer %s, got %+v", oldestID, oldest, got)
		}
	})

	t.Run("FirstWaitingCompatible returns nil when nobody qualifies", func(t *testing.T) {
		ctx := context.Background()
		serviceID := seed(ctx)
		window := domain.TimeWindow{
			Start: time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC),
			End:   time.Date(2025, 3, 10, 11, 0, 0, 0, time.UTC),
		}

		notifiedID := testutil.InsertWaitlistEntry(t, ctx, pool, entry(serviceID, uuid.NewString(), window.Start, time.Now().UTC()))
		if err := repo.UpdateEntryStatus(ctx, notifiedID, domain.WaitlistStatusNotified); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		got, err := repo.FirstWaitingCompatible(ctx, staffID, window)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got != nil {
			t.Fatalf("expected no candidate, got %+v", got)
		}
	})

	t.Run("GetEntry maps missing and malformed ids", func(t *testing.T) {
		ctx := context.Background()
		seed(ctx)

		if _, err := repo.GetEntry(ctx, uuid.NewString()); err != domain.ErrWaitlistEntryNotFound {
			t.Fatalf("expected ErrWaitlistEntryNotFound, got %v", err)
		}
		if _, err := repo.GetEntry(ctx, "not-a-uuid"); err != domain.ErrInvalidID {
			t.Fatalf("expected ErrInvalidID, got %v", err)
		}
	})

	t.Run("ListByCustomer returns only that customer's entries", func(t *testing.T) {
		ctx := context.Background()
		serviceID := seed(ctx)
		customerID := uuid.NewString()
		preferred := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

		testutil.InsertWaitlistEntry(t, ctx, pool, entry(serviceID, customerID, preferred, time.Now().UTC()))
		testutil.InsertWaitlistEntry(t, ctx, pool, entry(serviceID, uuid.NewString(), preferred, time.Now().UTC()))

		entries, err := repo.ListByCustomer(ctx, tenantID, customerID)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(entries) != 1 || entries[0].CustomerID != customerID {
			t.Fatalf("expected one entry for %s, got %+v", customerID, entries)
		}
	})
}
