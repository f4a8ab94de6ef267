package domain

import "time"

type WaitlistStatus string

const (
	WaitlistStatusWaiting   WaitlistStatus = "waiting"
	WaitlistStatusNotified  WaitlistStatus = "notified"
	WaitlistStatusBooked    WaitlistStatus = "booked"
	WaitlistStatusCancelled WaitlistStatus = "cancelled"
)

// WaitlistEntry queues a customer for a time that was not bookable when they
// asked. Entries are served FIFO by CreatedAt within the same
// (tenant, service, staff) scope.
type WaitlistEntry struct {
	ID               string
	TenantID         string
	ServiceID        string
	StaffID          string
	CustomerID       string
	PreferredStartAt time.Time
	Status           WaitlistStatus
	CreatedAt        time.Time
}

// WaitlistEstimate is the computed queue position and, when a free slot exists
// within the look-ahead horizon, the projected serving window.
type WaitlistEstimate struct {
	QueuePosition    int
	EstimatedStartAt *time.Time
	EstimatedEndAt   *time.Time
}
