package domain

import "time"

type BookingStatus string

const (
	BookingStatusPending     BookingStatus = "pending"
	BookingStatusConfirmed   BookingStatus = "confirmed"
	BookingStatusRescheduled BookingStatus = "rescheduled"
	BookingStatusCancelled   BookingStatus = "cancelled"
	BookingStatusCompleted   BookingStatus = "completed"
	BookingStatusNoShow      BookingStatus = "no_show"
)

// BlockingStatuses are the statuses that occupy a staff member's calendar.
// No two bookings in any of these statuses may overlap for the same staff.
var BlockingStatuses = []BookingStatus{
	BookingStatusPending,
	BookingStatusConfirmed,
	BookingStatusRescheduled,
}

func (s BookingStatus) Blocking() bool {
	for _, b := range BlockingStatuses {
		if s == b {
			return true
		}
	}
	return false
}

// Booking is a reserved [StartAt, EndAt) interval on a staff member's calendar.
type Booking struct {
	ID         string
	TenantID   string
	ServiceID  string
	StaffID    string
	CustomerID string
	StartAt    time.Time
	EndAt      time.Time
	Status     BookingStatus
	// ExternalRef links the booking to a synced external calendar event.
	ExternalRef string
	AccountID   string
	CreatedAt   time.Time
}

// Service is a bookable offering with a fixed duration.
type Service struct {
	ID              string
	TenantID        string
	Name            string
	DurationMinutes int
	PriceCents      int64
}

// TimeWindow is a half-open [Start, End) interval in UTC.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

func (w TimeWindow) Overlaps(other TimeWindow) bool {
	return w.Start.Before(other.End) && other.Start.Before(w.End)
}

func (w TimeWindow) Contains(other TimeWindow) bool {
	return !other.Start.Before(w.Start) && !other.End.After(w.End)
}

func (w TimeWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}
