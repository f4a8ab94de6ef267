package domain

import "time"

type CalendarProvider string

const (
	ProviderGoogle    CalendarProvider = "google"
	ProviderMicrosoft CalendarProvider = "microsoft"
)

type AccountHealth string

const (
	AccountHealthy  AccountHealth = "healthy"
	AccountSyncing  AccountHealth = "syncing"
	AccountDegraded AccountHealth = "degraded"
)

// CalendarAccount is a staff member's connected external calendar. The sync
// cursor is an opaque provider token and is only advanced in the same
// transaction as the conflicts produced from the page it covers.
type CalendarAccount struct {
	ID         string
	TenantID   string
	StaffID    string
	Provider   CalendarProvider
	SyncCursor string
	LastSyncAt *time.Time
	Health     AccountHealth
	CreatedAt  time.Time
}

// ExternalEvent is one entry from a provider's change feed.
type ExternalEvent struct {
	Ref       string
	Start     time.Time
	End       time.Time
	Deleted   bool
	UpdatedAt time.Time
}

func (e ExternalEvent) Window() TimeWindow {
	return TimeWindow{Start: e.Start, End: e.End}
}

type ConflictKind string

const (
	ConflictDoubleBooked   ConflictKind = "double_booked"
	ConflictOrphanExternal ConflictKind = "orphan_external"
	ConflictOrphanInternal ConflictKind = "orphan_internal"
	ConflictStaleExternal  ConflictKind = "stale_external"
)

type ResolutionAction string

const (
	ResolutionDismiss   ResolutionAction = "dismiss"
	ResolutionRetrySync ResolutionAction = "retry_sync"
)

// CalendarConflict records a divergence between external calendar state and an
// internally owned booking. Conflicts are append-mostly: they are created by
// the sync reconciler, resolved exactly once by the resolution workflow, and
// never deleted.
type CalendarConflict struct {
	ID          string
	TenantID    string
	AccountID   string
	ExternalRef string
	BookingID   *string
	Kind        ConflictKind
	Resolved    bool
	Action      ResolutionAction
	Note        string
	ResolvedBy  string
	ResolvedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
