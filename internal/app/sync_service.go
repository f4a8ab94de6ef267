package app

import (
	"context"
	"errors"
	"time"

	"github.com/bernardodieta/bookingApp-sub001/internal/calendar"
	"github.com/bernardodieta/bookingApp-sub001/internal/clock"
	"github.com/bernardodieta/bookingApp-sub001/internal/domain"
	"github.com/bernardodieta/bookingApp-sub001/internal/logging"
	"github.com/bernardodieta/bookingApp-sub001/internal/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CalendarRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetAccountForUpdate(ctx context.Context, id string) (domain.CalendarAccount, error)
	GetAccount(ctx context.Context, id string) (domain.CalendarAccount, error)
	ListAccountIDs(ctx context.Context) ([]string, error)
	UpdateAccountSync(ctx context.Context, id, cursor string, health domain.AccountHealth, syncedAt time.Time) error
	SetAccountHealth(ctx context.Context, id string, health domain.AccountHealth) error
	FindBookingByExternalRef(ctx context.Context, accountID, ref string) (*domain.Booking, error)
	FindOverlappingBooking(ctx context.Context, staffID string, window domain.TimeWindow) (*domain.Booking, error)
	LinkBooking(ctx context.Context, bookingID, accountID, ref string) error
	ListLinkedBookings(ctx context.Context, accountID string) ([]domain.Booking, error)
	UpsertConflict(ctx context.Context, c domain.CalendarConflict) (domain.CalendarConflict, error)
}

type SyncService struct {
	repo       CalendarRepository
	provider   calendar.Provider
	clock      clock.Clock
	pageSize   int
	timeout    time.Duration
	staleAfter time.Duration
}

func NewSyncService(repo CalendarRepository, provider calendar.Provider, clk clock.Clock, pageSize int, timeout, staleAfter time.Duration) *SyncService {
	return &SyncService{
		repo:       repo,
		provider:   provider,
		clock:      clk,
		pageSize:   pageSize,
		timeout:    timeout,
		staleAfter: staleAfter,
	}
}

// SyncAll reconciles every connected account. A failing account is marked
// degraded and logged; it never aborts the batch.
func (s *SyncService) SyncAll(ctx context.Context) error {
	ids, err := s.repo.ListAccountIDs(ctx)
	if err != nil {
		return err
	}
	log := logging.FromContext(ctx)
	for _, id := range ids {
		if err := s.SyncAccount(ctx, id); err != nil {
			log.Error("account sync failed", zap.String("account_id", id), zap.Error(err))
		}
	}
	return nil
}

// SyncAccount pulls the provider's change feed from the stored cursor,
// classifies every event against internal bookings, and advances the cursor
// in the same transaction as the conflicts it produced. A rejected cursor
// triggers one full resync from the beginning of the feed.
func (s *SyncService) SyncAccount(ctx context.Context, accountID string) error {
	// Marked outside the transaction so readers see the run in flight.
	if err := s.repo.SetAccountHealth(ctx, accountID, domain.AccountSyncing); err != nil {
		return err
	}
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		account, err := s.repo.GetAccountForUpdate(txCtx, accountID)
		if err != nil {
			return err
		}
		return s.syncLocked(txCtx, account)
	})
	if err != nil {
		metrics.SyncRuns.WithLabelValues("error").Inc()
		if healthErr := s.repo.SetAccountHealth(ctx, accountID, domain.AccountDegraded); healthErr != nil {
			logging.FromContext(ctx).Error("mark account degraded failed",
				zap.String("account_id", accountID), zap.Error(healthErr))
		}
		return err
	}
	metrics.SyncRuns.WithLabelValues("ok").Inc()
	return nil
}

// syncRun carries per-run reconciliation state.
type syncRun struct {
	seen  map[string]bool
	stale bool
}

func (s *SyncService) syncLocked(ctx context.Context, account domain.CalendarAccount) error {
	cursor := account.SyncCursor
	fullResync := cursor == ""

	run := &syncRun{seen: make(map[string]bool)}
	for {
		page, err := s.fetchPage(ctx, account, cursor)
		if errors.Is(err, calendar.ErrCursorInvalid) && !fullResync {
			logging.FromContext(ctx).Warn("sync cursor rejected, full resync",
				zap.String("account_id", account.ID))
			cursor = ""
			fullResync = true
			run = &syncRun{seen: make(map[string]bool)}
			continue
		}
		if err != nil {
			return err
		}

		for _, ev := range page.Events {
			run.seen[ev.Ref] = true
			if err := s.classify(ctx, account, ev, run); err != nil {
				return err
			}
		}

		if page.NextCursor == "" || page.NextCursor == cursor {
			cursor = firstNonEmpty(page.NextCursor, cursor)
			break
		}
		cursor = page.NextCursor
		if len(page.Events) < s.pageSize {
			break
		}
	}

	// A full feed is complete by definition: any linked booking whose event
	// never appeared has lost its external counterpart.
	if fullResync {
		if err := s.sweepOrphans(ctx, account, run.seen); err != nil {
			return err
		}
	}

	// Stale provider data means the feed cannot be trusted yet; the account
	// stays degraded until a run sees fresh events.
	health := domain.AccountHealthy
	if run.stale {
		health = domain.AccountDegraded
	}
	return s.repo.UpdateAccountSync(ctx, account.ID, cursor, health, s.clock.Now())
}

func (s *SyncService) fetchPage(ctx context.Context, account domain.CalendarAccount, cursor string) (calendar.ChangeSet, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.provider.Changes(callCtx, account, cursor, s.pageSize)
}

// classify maps one external event to at most one open conflict, or links the
// event to a matching booking when the two agree.
func (s *SyncService) classify(ctx context.Context, account domain.CalendarAccount, ev domain.ExternalEvent, run *syncRun) error {
	linked, err := s.repo.FindBookingByExternalRef(ctx, account.ID, ev.Ref)
	if err != nil {
		return err
	}

	if ev.Deleted {
		if linked != nil && linked.Status.Blocking() {
			return s.record(ctx, account, ev.Ref, &linked.ID, domain.ConflictOrphanInternal)
		}
		return nil
	}

	if s.staleAfter > 0 && s.clock.Now().Sub(ev.UpdatedAt) > s.staleAfter {
		var bookingID *string
		if linked != nil {
			bookingID = &linked.ID
		}
		run.stale = true
		return s.record(ctx, account, ev.Ref, bookingID, domain.ConflictStaleExternal)
	}

	if linked != nil {
		if !linked.Status.Blocking() {
			return s.record(ctx, account, ev.Ref, &linked.ID, domain.ConflictOrphanExternal)
		}
		if linked.StartAt.Equal(ev.Start) && linked.EndAt.Equal(ev.End) {
			return nil
		}
		return s.record(ctx, account, ev.Ref, &linked.ID, domain.ConflictDoubleBooked)
	}

	overlapping, err := s.repo.FindOverlappingBooking(ctx, account.StaffID, ev.Window())
	if err != nil {
		return err
	}
	if overlapping == nil {
		return nil
	}
	if overlapping.StartAt.Equal(ev.Start) && overlapping.EndAt.Equal(ev.End) {
		return s.repo.LinkBooking(ctx, overlapping.ID, account.ID, ev.Ref)
	}
	return s.record(ctx, account, ev.Ref, &overlapping.ID, domain.ConflictDoubleBooked)
}

func (s *SyncService) sweepOrphans(ctx context.Context, account domain.CalendarAccount, seen map[string]bool) error {
	linked, err := s.repo.ListLinkedBookings(ctx, account.ID)
	if err != nil {
		return err
	}
	for _, b := range linked {
		if seen[b.ExternalRef] || !b.Status.Blocking() {
			continue
		}
		id := b.ID
		if err := s.record(ctx, account, b.ExternalRef, &id, domain.ConflictOrphanInternal); err != nil {
			return err
		}
	}
	return nil
}

func (s *SyncService) record(ctx context.Context, account domain.CalendarAccount, ref string, bookingID *string, kind domain.ConflictKind) error {
	_, err := s.repo.UpsertConflict(ctx, domain.CalendarConflict{
		ID:          uuid.NewString(),
		TenantID:    account.TenantID,
		AccountID:   account.ID,
		ExternalRef: ref,
		BookingID:   bookingID,
		Kind:        kind,
		CreatedAt:   s.clock.Now(),
	})
	if err != nil {
		return err
	}
	metrics.ConflictsUpserted.WithLabelValues(string(kind)).Inc()
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
