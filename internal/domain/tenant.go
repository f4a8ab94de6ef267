package domain

// TenantSettings holds the per-tenant scheduling policy. Read-mostly.
type TenantSettings struct {
	TenantID string
	// Timezone is the IANA zone availability rules are expressed in.
	Timezone          string
	SlotBufferMinutes int
	// NewBookingStatus is the status assigned to bookings created through the
	// public surface (pending or confirmed, per tenant policy).
	NewBookingStatus BookingStatus
	// ExternalCalendarAuthoritative controls which side wins a double_booked
	// conflict when suggesting a resolution.
	ExternalCalendarAuthoritative bool
}
