package domain

import "time"

// AvailabilityRule is a recurring weekly free window for a staff member,
// expressed as minutes since local midnight in the tenant's time zone.
// Overlapping active rules for the same staff and weekday are merged by the
// projector, never treated as a conflict.
type AvailabilityRule struct {
	ID          string
	TenantID    string
	StaffID     string
	Weekday     time.Weekday
	StartMinute int
	EndMinute   int
	Active      bool
	CreatedAt   time.Time
}

func (r AvailabilityRule) Valid() bool {
	return r.StartMinute >= 0 && r.EndMinute <= 24*60 && r.StartMinute < r.EndMinute
}
