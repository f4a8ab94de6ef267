package app

import (
	"context"
	"testing"
	"time"

	"github.com/bernardodieta/bookingApp-sub001/internal/clock"
	"github.com/bernardodieta/bookingApp-sub001/internal/domain"
)

func TestWaitlistService_Estimate(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 10, 7, 0, 0, 0, time.UTC)
	at := func(day, h, m int) time.Time {
		return time.Date(2025, 3, day, h, m, 0, 0, time.UTC)
	}

	t.Run("position is FIFO by join time", func(t *testing.T) {
		repo := newFakeWaitlistRepo(
			domain.WaitlistEntry{ID: "e-1", TenantID: "t", ServiceID: "s", StaffID: "st", Status: domain.WaitlistStatusWaiting, PreferredStartAt: at(10, 10, 0), CreatedAt: now},
			domain.WaitlistEntry{ID: "e-2", TenantID: "t", ServiceID: "s", StaffID: "st", Status: domain.WaitlistStatusWaiting, PreferredStartAt: at(10, 10, 0), CreatedAt: now.Add(time.Minute)},
			domain.WaitlistEntry{ID: "e-3", TenantID: "t", ServiceID: "s", StaffID: "st", Status: domain.WaitlistStatusWaiting, PreferredStartAt: at(10, 10, 0), CreatedAt: now.Add(2 * time.Minute)},
		)
		svc := NewWaitlistService(repo, &fakeSlotSource{}, nil, &fakeNotifier{}, clock.NewFixed(now))

		for i, want := range []int{1, 2, 3} {
			est, err := svc.Estimate(context.Background(), repo.entries[i].ID)
			if err != nil {
				t.Fatalf("estimate %d: %v", i, err)
			}
			if est.QueuePosition != want {
				t.Fatalf("entry %d: expected position %d, got %d", i, want, est.QueuePosition)
			}
		}
	})

	t.Run("first slot at or after preference becomes the estimate", func(t *testing.T) {
		repo := newFakeWaitlistRepo(
			domain.WaitlistEntry{ID: "e-1", TenantID: "t", ServiceID: "s", StaffID: "st", Status: domain.WaitlistStatusWaiting, PreferredStartAt: at(10, 10, 0), CreatedAt: now},
		)
		slots := &fakeSlotSource{slots: []domain.TimeWindow{
			{Start: at(10, 9, 0), End: at(10, 9, 30)},
			{Start: at(10, 11, 0), End: at(10, 11, 30)},
		}}
		svc := NewWaitlistService(repo, slots, nil, &fakeNotifier{}, clock.NewFixed(now))

		est, err := svc.Estimate(context.Background(), "e-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if est.EstimatedStartAt == nil || !est.EstimatedStartAt.Equal(at(10, 11, 0)) {
			t.Fatalf("expected estimate 11:00, got %v", est.EstimatedStartAt)
		}
	})

	t.Run("no slot in horizon leaves estimate empty", func(t *testing.T) {
		repo := newFakeWaitlistRepo(
			domain.WaitlistEntry{ID: "e-1", TenantID: "t", ServiceID: "s", StaffID: "st", Status: domain.WaitlistStatusWaiting, PreferredStartAt: at(10, 10, 0), CreatedAt: now},
		)
		svc := NewWaitlistService(repo, &fakeSlotSource{}, nil, &fakeNotifier{}, clock.NewFixed(now))

		est, err := svc.Estimate(context.Background(), "e-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if est.QueuePosition != 1 {
			t.Fatalf("expected position 1, got %d", est.QueuePosition)
		}
		if est.EstimatedStartAt != nil {
			t.Fatalf("expected no estimated start, got %v", est.EstimatedStartAt)
		}
	})
}

func TestWaitlistService_Promote(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 10, 7, 0, 0, 0, time.UTC)
	at := func(h, m int) time.Time {
		return time.Date(2025, 3, 10, h, m, 0, 0, time.UTC)
	}
	freed := domain.TimeWindow{Start: at(10, 0), End: at(10, 30)}

	t.Run("promotes oldest compatible entry and notifies", func(t *testing.T) {
		repo := newFakeWaitlistRepo(
			domain.WaitlistEntry{ID: "e-newer", StaffID: "st", CustomerID: "c-2", Status: domain.WaitlistStatusWaiting, PreferredStartAt: at(10, 0), CreatedAt: now.Add(time.Minute)},
			domain.WaitlistEntry{ID: "e-older", StaffID: "st", CustomerID: "c-1", Status: domain.WaitlistStatusWaiting, PreferredStartAt: at(10, 15), CreatedAt: now},
			domain.WaitlistEntry{ID: "e-out", StaffID: "st", CustomerID: "c-3", Status: domain.WaitlistStatusWaiting, PreferredStartAt: at(14, 0), CreatedAt: now.Add(-time.Hour)},
		)
		notifier := &fakeNotifier{}
		svc := NewWaitlistService(repo, &fakeSlotSource{}, nil, notifier, clock.NewFixed(now))

		entry, err := svc.Promote(context.Background(), "st", freed)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if entry == nil || entry.ID != "e-older" {
			t.Fatalf("expected e-older promoted, got %+v", entry)
		}
		if entry.Status != domain.WaitlistStatusNotified {
			t.Fatalf("expected notified, got %s", entry.Status)
		}
		if len(notifier.published) != 1 {
			t.Fatalf("expected 1 notification, got %d", len(notifier.published))
		}
	})

	t.Run("no compatible entry promotes nobody", func(t *testing.T) {
		repo := newFakeWaitlistRepo(
			domain.WaitlistEntry{ID: "e-out", StaffID: "st", Status: domain.WaitlistStatusWaiting, PreferredStartAt: at(14, 0), CreatedAt: now},
		)
		notifier := &fakeNotifier{}
		svc := NewWaitlistService(repo, &fakeSlotSource{}, nil, notifier, clock.NewFixed(now))

		entry, err := svc.Promote(context.Background(), "st", freed)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if entry != nil {
			t.Fatalf("expected no promotion, got %+v", entry)
		}
		if len(notifier.published) != 0 {
			t.Fatalf("expected no notifications, got %d", len(notifier.published))
		}
	})
}

func TestWaitlistService_Accept(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 10, 7, 0, 0, 0, time.UTC)
	preferred := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

	t.Run("books through the reservation path", func(t *testing.T) {
		repo := newFakeWaitlistRepo(
			domain.WaitlistEntry{ID: "e-1", TenantID: "t", ServiceID: "s", StaffID: "st", CustomerID: "c", Status: domain.WaitlistStatusNotified, PreferredStartAt: preferred},
		)
		reserver := &fakeReserver{booking: domain.Booking{ID: "b-1", Status: domain.BookingStatusConfirmed}}
		svc := NewWaitlistService(repo, &fakeSlotSource{}, reserver, &fakeNotifier{}, clock.NewFixed(now))

		booking, err := svc.Accept(context.Background(), "e-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if booking.ID != "b-1" {
			t.Fatalf("expected booking b-1, got %s", booking.ID)
		}
		if repo.entries[0].Status != domain.WaitlistStatusBooked {
			t.Fatalf("expected entry booked, got %s", repo.entries[0].Status)
		}
		if !reserver.last.StartAt.Equal(preferred) {
			t.Fatalf("expected reservation at preference, got %v", reserver.last.StartAt)
		}
	})

	t.Run("waiting entry cannot accept", func(t *testing.T) {
		repo := newFakeWaitlistRepo(
			domain.WaitlistEntry{ID: "e-1", Status: domain.WaitlistStatusWaiting, PreferredStartAt: preferred},
		)
		svc := NewWaitlistService(repo, &fakeSlotSource{}, &fakeReserver{}, &fakeNotifier{}, clock.NewFixed(now))

		if _, err := svc.Accept(context.Background(), "e-1"); err != domain.ErrEntryNotNotified {
			t.Fatalf("expected ErrEntryNotNotified, got %v", err)
		}
	})

	t.Run("lost race keeps entry notified", func(t *testing.T) {
		repo := newFakeWaitlistRepo(
			domain.WaitlistEntry{ID: "e-1", Status: domain.WaitlistStatusNotified, PreferredStartAt: preferred},
		)
		reserver := &fakeReserver{err: domain.ErrSlotConflict}
		svc := NewWaitlistService(repo, &fakeSlotSource{}, reserver, &fakeNotifier{}, clock.NewFixed(now))

		if _, err := svc.Accept(context.Background(), "e-1"); err != domain.ErrSlotConflict {
			t.Fatalf("expected ErrSlotConflict, got %v", err)
		}
		if repo.entries[0].Status != domain.WaitlistStatusNotified {
			t.Fatalf("expected entry still notified, got %s", repo.entries[0].Status)
		}
	})
}

type fakeWaitlistRepo struct {
	entries []domain.WaitlistEntry
}

func newFakeWaitlistRepo(entries ...domain.WaitlistEntry) *fakeWaitlistRepo {
	return &fakeWaitlistRepo{entries: append([]domain.WaitlistEntry{}, entries...)}
}

func (f *fakeWaitlistRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *fakeWaitlistRepo) LockStaffDay(context.Context, string, time.Time) error {
	return nil
}

func (f *fakeWaitlistRepo) CreateEntry(_ context.Context, e domain.WaitlistEntry) error {
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeWaitlistRepo) GetEntry(_ context.Context, id string) (domain.WaitlistEntry, error) {
	for _, e := range f.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return domain.WaitlistEntry{}, domain.ErrWaitlistEntryNotFound
}

func (f *fakeWaitlistRepo) CountWaitingBefore(_ context.Context, tenantID, serviceID, staffID string, createdAt time.Time) (int, error) {
	n := 0
	for _, e := range f.entries {
		if e.TenantID == tenantID && e.ServiceID == serviceID && e.StaffID == staffID &&
			e.Status == domain.WaitlistStatusWaiting && e.CreatedAt.Before(createdAt) {
			n++
		}
	}
	return n, nil
}

func (f *fakeWaitlistRepo) FirstWaitingCompatible(_ context.Context, staffID string, window domain.TimeWindow) (*domain.WaitlistEntry, error) {
	var best *domain.WaitlistEntry
	for i := range f.entries {
		e := f.entries[i]
		if e.StaffID != staffID || e.Status != domain.WaitlistStatusWaiting {
			continue
		}
		if e.PreferredStartAt.Before(window.Start) || !e.PreferredStartAt.Before(window.End) {
			continue
		}
		if best == nil || e.CreatedAt.Before(best.CreatedAt) {
			best = &f.entries[i]
		}
	}
	if best == nil {
		return nil, nil
	}
	copied := *best
	return &copied, nil
}

func (f *fakeWaitlistRepo) UpdateEntryStatus(_ context.Context, id string, status domain.WaitlistStatus) error {
	for i := range f.entries {
		if f.entries[i].ID == id {
			f.entries[i].Status = status
			return nil
		}
	}
	return domain.ErrWaitlistEntryNotFound
}

func (f *fakeWaitlistRepo) ListByCustomer(_ context.Context, tenantID, customerID string) ([]domain.WaitlistEntry, error) {
	var out []domain.WaitlistEntry
	for _, e := range f.entries {
		if e.TenantID == tenantID && e.CustomerID == customerID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeSlotSource struct {
	slots []domain.TimeWindow
}

func (f *fakeSlotSource) ListSlots(_ context.Context, _, _, _ string, date time.Time) ([]domain.TimeWindow, error) {
	var out []domain.TimeWindow
	for _, s := range f.slots {
		y1, m1, d1 := s.Start.Date()
		y2, m2, d2 := date.Date()
		if y1 == y2 && m1 == m2 && d1 == d2 {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeReserver struct {
	booking domain.Booking
	err     error
	last    ReserveInput
}

func (f *fakeReserver) Reserve(_ context.Context, in ReserveInput) (domain.Booking, error) {
	f.last = in
	if f.err != nil {
		return domain.Booking{}, f.err
	}
	return f.booking, nil
}

type fakeNotifier struct {
	published []string
}

func (f *fakeNotifier) PublishJSON(_ context.Context, key string, _ any) error {
	f.published = append(f.published, key)
	return nil
}
