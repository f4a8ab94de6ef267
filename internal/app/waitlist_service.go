package app

import (
	"context"
	"time"

	"github.com/bernardodieta/bookingApp-sub001/internal/clock"
	"github.com/bernardodieta/bookingApp-sub001/internal/domain"
	"github.com/bernardodieta/bookingApp-sub001/internal/logging"
	"github.com/bernardodieta/bookingApp-sub001/internal/metrics"
	"github.com/bernardodieta/bookingApp-sub001/internal/queue"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type WaitlistRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	LockStaffDay(ctx context.Context, staffID string, day time.Time) error
	CreateEntry(ctx context.Context, e domain.WaitlistEntry) error
	GetEntry(ctx context.Context, id string) (domain.WaitlistEntry, error)
	CountWaitingBefore(ctx context.Context, tenantID, serviceID, staffID string, createdAt time.Time) (int, error)
	FirstWaitingCompatible(ctx context.Context, staffID string, window domain.TimeWindow) (*domain.WaitlistEntry, error)
	UpdateEntryStatus(ctx context.Context, id string, status domain.WaitlistStatus) error
	ListByCustomer(ctx context.Context, tenantID, customerID string) ([]domain.WaitlistEntry, error)
}

// SlotSource projects bookable slots, used for waitlist estimates.
type SlotSource interface {
	ListSlots(ctx context.Context, tenantID, serviceID, staffID string, date time.Time) ([]domain.TimeWindow, error)
}

// Reserver is the single reservation path; promotions book through it so the
// overlap invariant has one owner.
type Reserver interface {
	Reserve(ctx context.Context, in ReserveInput) (domain.Booking, error)
}

// Notifier publishes waitlist notifications. Satisfied by queue.Publisher.
type Notifier interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

const defaultLookaheadDays = 14

type WaitlistService struct {
	repo      WaitlistRepository
	slots     SlotSource
	reserver  Reserver
	notifier  Notifier
	clock     clock.Clock
	lookahead int
}

func NewWaitlistService(repo WaitlistRepository, slots SlotSource, reserver Reserver, notifier Notifier, clk clock.Clock) *WaitlistService {
	return &WaitlistService{
		repo:      repo,
		slots:     slots,
		reserver:  reserver,
		notifier:  notifier,
		clock:     clk,
		lookahead: defaultLookaheadDays,
	}
}

type JoinInput struct {
	TenantID         string
	ServiceID        string
	StaffID          string
	CustomerID       string
	PreferredStartAt time.Time
}

func (s *WaitlistService) Join(ctx context.Context, in JoinInput) (domain.WaitlistEntry, error) {
	if in.PreferredStartAt.IsZero() {
		return domain.WaitlistEntry{}, domain.ErrInvalidDate
	}

	entry := domain.WaitlistEntry{
		ID:               uuid.NewString(),
		TenantID:         in.TenantID,
		ServiceID:        in.ServiceID,
		StaffID:          in.StaffID,
		CustomerID:       in.CustomerID,
		PreferredStartAt: in.PreferredStartAt.UTC(),
		Status:           domain.WaitlistStatusWaiting,
		CreatedAt:        s.clock.Now(),
	}
	if err := s.repo.CreateEntry(ctx, entry); err != nil {
		return domain.WaitlistEntry{}, err
	}
	return entry, nil
}

// Estimate computes the entry's 1-based FIFO rank among waiting entries in
// its scope and, when a projected slot could serve it within the look-ahead
// horizon, the estimated serving window.
func (s *WaitlistService) Estimate(ctx context.Context, entryID string) (domain.WaitlistEstimate, error) {
	entry, err := s.repo.GetEntry(ctx, entryID)
	if err != nil {
		return domain.WaitlistEstimate{}, err
	}
	if entry.Status != domain.WaitlistStatusWaiting {
		return domain.WaitlistEstimate{}, nil
	}

	ahead, err := s.repo.CountWaitingBefore(ctx, entry.TenantID, entry.ServiceID, entry.StaffID, entry.CreatedAt)
	if err != nil {
		return domain.WaitlistEstimate{}, err
	}
	est := domain.WaitlistEstimate{QueuePosition: ahead + 1}

	for day := 0; day < s.lookahead; day++ {
		date := entry.PreferredStartAt.AddDate(0, 0, day)
		slots, err := s.slots.ListSlots(ctx, entry.TenantID, entry.ServiceID, entry.StaffID, date)
		if err != nil {
			return domain.WaitlistEstimate{}, err
		}
		for _, slot := range slots {
			if slot.Start.Before(entry.PreferredStartAt) {
				continue
			}
			start, end := slot.Start, slot.End
			est.EstimatedStartAt = &start
			est.EstimatedEndAt = &end
			return est, nil
		}
	}
	return est, nil
}

// Promote offers a freed slot to the FIFO head waiting entry whose preferred
// start falls inside the window, transitioning it to notified. Serialized on
// the same staff-day critical section as reservations, so the freed slot is
// never assigned to two entries. Returns nil when no entry is compatible.
func (s *WaitlistService) Promote(ctx context.Context, staffID string, freed domain.TimeWindow) (*domain.WaitlistEntry, error) {
	var promoted *domain.WaitlistEntry
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.LockStaffDay(txCtx, staffID, freed.Start); err != nil {
			return err
		}
		entry, err := s.repo.FirstWaitingCompatible(txCtx, staffID, freed)
		if err != nil {
			return err
		}
		if entry == nil {
			return nil
		}
		if err := s.repo.UpdateEntryStatus(txCtx, entry.ID, domain.WaitlistStatusNotified); err != nil {
			return err
		}
		entry.Status = domain.WaitlistStatusNotified
		promoted = entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	if promoted == nil {
		return nil, nil
	}

	metrics.WaitlistPromotions.Inc()
	notification := queue.WaitlistNotification{
		EntryID:    promoted.ID,
		CustomerID: promoted.CustomerID,
		StartAt:    freed.Start.Format(time.RFC3339),
		EndAt:      freed.End.Format(time.RFC3339),
	}
	if err := s.notifier.PublishJSON(ctx, queue.RoutingWaitlistNotify, notification); err != nil {
		// The promotion stands; delivery is retried by the estimate surface.
		logging.FromContext(ctx).Warn("publish waitlist notification failed",
			zap.String("entry_id", promoted.ID), zap.Error(err))
	}
	return promoted, nil
}

// Accept books the slot for a notified entry through the normal reservation
// path. A lost race surfaces as SlotConflict and the entry stays notified.
func (s *WaitlistService) Accept(ctx context.Context, entryID string) (domain.Booking, error) {
	entry, err := s.repo.GetEntry(ctx, entryID)
	if err != nil {
		return domain.Booking{}, err
	}
	if entry.Status != domain.WaitlistStatusNotified {
		return domain.Booking{}, domain.ErrEntryNotNotified
	}

	booking, err := s.reserver.Reserve(ctx, ReserveInput{
		TenantID:   entry.TenantID,
		ServiceID:  entry.ServiceID,
		StaffID:    entry.StaffID,
		CustomerID: entry.CustomerID,
		StartAt:    entry.PreferredStartAt,
	})
	if err != nil {
		return domain.Booking{}, err
	}

	if err := s.repo.UpdateEntryStatus(ctx, entryID, domain.WaitlistStatusBooked); err != nil {
		return domain.Booking{}, err
	}
	return booking, nil
}

func (s *WaitlistService) ListByCustomer(ctx context.Context, tenantID, customerID string) ([]domain.WaitlistEntry, error) {
	return s.repo.ListByCustomer(ctx, tenantID, customerID)
}
