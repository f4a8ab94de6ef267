package app

import (
	"context"
	"time"

	"github.com/bernardodieta/bookingApp-sub001/internal/clock"
	"github.com/bernardodieta/bookingApp-sub001/internal/domain"
	"github.com/bernardodieta/bookingApp-sub001/internal/metrics"
	"github.com/google/uuid"
)

type BookingRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	LockStaffDay(ctx context.Context, staffID string, day time.Time) error
	GetService(ctx context.Context, tenantID, serviceID string) (domain.Service, error)
	GetTenantSettings(ctx context.Context, tenantID string) (domain.TenantSettings, error)
	ListBlockingBookings(ctx context.Context, staffID string, from, to time.Time) ([]domain.Booking, error)
	ExistsOverlapping(ctx context.Context, staffID string, start, end time.Time) (bool, error)
	CreateBooking(ctx context.Context, b domain.Booking) error
	GetBooking(ctx context.Context, id string) (domain.Booking, error)
	GetBookingForUpdate(ctx context.Context, id string) (domain.Booking, error)
	UpdateBookingStatus(ctx context.Context, id string, status domain.BookingStatus) error
	ListByCustomer(ctx context.Context, tenantID, customerID string) ([]domain.Booking, error)
}

// WindowProjector supplies a staff member's free windows for a local date.
type WindowProjector interface {
	WindowsFor(ctx context.Context, tenantID, staffID string, date time.Time, timezone string) ([]domain.TimeWindow, error)
}

type SlotService struct {
	repo      BookingRepository
	projector WindowProjector
	clock     clock.Clock
}

func NewSlotService(repo BookingRepository, projector WindowProjector, clk clock.Clock) *SlotService {
	return &SlotService{repo: repo, projector: projector, clock: clk}
}

// ListSlots emits the bookable slots for one staff member, service and date:
// projected availability minus blocking bookings (each padded by the tenant's
// buffer), carved into service-duration slots spaced by duration plus buffer.
// A slot is offered only when [start, start+duration) lies entirely inside a
// free window.
func (s *SlotService) ListSlots(ctx context.Context, tenantID, serviceID, staffID string, date time.Time) ([]domain.TimeWindow, error) {
	settings, err := s.repo.GetTenantSettings(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	svc, err := s.repo.GetService(ctx, tenantID, serviceID)
	if err != nil {
		return nil, err
	}

	windows, err := s.projector.WindowsFor(ctx, tenantID, staffID, date, settings.Timezone)
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return nil, nil
	}

	rangeStart := windows[0].Start
	rangeEnd := windows[len(windows)-1].End
	bookings, err := s.repo.ListBlockingBookings(ctx, staffID, rangeStart, rangeEnd)
	if err != nil {
		return nil, err
	}

	buffer := time.Duration(settings.SlotBufferMinutes) * time.Minute
	busy := make([]domain.TimeWindow, 0, len(bookings))
	for _, b := range bookings {
		busy = append(busy, domain.TimeWindow{
			Start: b.StartAt.Add(-buffer),
			End:   b.EndAt.Add(buffer),
		})
	}

	free := SubtractWindows(windows, busy)
	duration := time.Duration(svc.DurationMinutes) * time.Minute
	return carveSlots(free, duration, buffer), nil
}

func carveSlots(free []domain.TimeWindow, duration, buffer time.Duration) []domain.TimeWindow {
	var slots []domain.TimeWindow
	for _, w := range free {
		for at := w.Start; !at.Add(duration).After(w.End); at = at.Add(duration + buffer) {
			slots = append(slots, domain.TimeWindow{Start: at, End: at.Add(duration)})
		}
	}
	return slots
}

type ReserveInput struct {
	TenantID   string
	ServiceID  string
	StaffID    string
	CustomerID string
	StartAt    time.Time
}

// Reserve creates a booking for the slot starting at StartAt. The critical
// section is serialized per staff and date; the overlap check is re-run at
// commit time, and the storage exclusion constraint backstops the race. Two
// concurrent attempts for overlapping windows never both succeed.
func (s *SlotService) Reserve(ctx context.Context, in ReserveInput) (domain.Booking, error) {
	if in.StartAt.IsZero() {
		return domain.Booking{}, domain.ErrInvalidDate
	}

	settings, err := s.repo.GetTenantSettings(ctx, in.TenantID)
	if err != nil {
		return domain.Booking{}, err
	}
	svc, err := s.repo.GetService(ctx, in.TenantID, in.ServiceID)
	if err != nil {
		return domain.Booking{}, err
	}

	start := in.StartAt.UTC()
	end := start.Add(time.Duration(svc.DurationMinutes) * time.Minute)

	var result domain.Booking
	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.LockStaffDay(txCtx, in.StaffID, start); err != nil {
			return err
		}

		exists, err := s.repo.ExistsOverlapping(txCtx, in.StaffID, start, end)
		if err != nil {
			return err
		}
		if exists {
			return domain.ErrSlotConflict
		}

		booking := domain.Booking{
			ID:         uuid.NewString(),
			TenantID:   in.TenantID,
			ServiceID:  in.ServiceID,
			StaffID:    in.StaffID,
			CustomerID: in.CustomerID,
			StartAt:    start,
			EndAt:      end,
			Status:     settings.NewBookingStatus,
			CreatedAt:  s.clock.Now(),
		}
		if err := s.repo.CreateBooking(txCtx, booking); err != nil {
			return err
		}
		result = booking
		return nil
	})
	if err != nil {
		if err == domain.ErrSlotConflict {
			metrics.SlotConflicts.Inc()
		}
		return domain.Booking{}, err
	}
	return result, nil
}

// Cancel moves a booking out of the blocking set and returns the freed
// window so the caller can offer it to the waitlist. Cancelling an already
// cancelled booking is a no-op.
func (s *SlotService) Cancel(ctx context.Context, tenantID, bookingID string) (domain.Booking, error) {
	var result domain.Booking
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		booking, err := s.repo.GetBookingForUpdate(txCtx, bookingID)
		if err != nil {
			return err
		}
		if booking.TenantID != tenantID {
			return domain.ErrBookingNotFound
		}
		if booking.Status == domain.BookingStatusCancelled {
			result = booking
			return nil
		}
		if err := s.repo.UpdateBookingStatus(txCtx, bookingID, domain.BookingStatusCancelled); err != nil {
			return err
		}
		booking.Status = domain.BookingStatusCancelled
		result = booking
		return nil
	})
	if err != nil {
		return domain.Booking{}, err
	}
	return result, nil
}

func (s *SlotService) GetBooking(ctx context.Context, id string) (domain.Booking, error) {
	return s.repo.GetBooking(ctx, id)
}

func (s *SlotService) ListByCustomer(ctx context.Context, tenantID, customerID string) ([]domain.Booking, error) {
	return s.repo.ListByCustomer(ctx, tenantID, customerID)
}
