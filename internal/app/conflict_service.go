package app

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/bernardodieta/bookingApp-sub001/internal/clock"
	"github.com/bernardodieta/bookingApp-sub001/internal/domain"
	"github.com/bernardodieta/bookingApp-sub001/internal/logging"
	"github.com/bernardodieta/bookingApp-sub001/internal/metrics"
	"github.com/bernardodieta/bookingApp-sub001/internal/queue"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxListLimit     = 200
	defaultListLimit = 50
	maxNoteLength    = 500
)

type ConflictRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetConflict(ctx context.Context, id string) (domain.CalendarConflict, error)
	GetConflictForUpdate(ctx context.Context, id string) (domain.CalendarConflict, error)
	ListConflicts(ctx context.Context, tenantID string, before time.Time, beforeID string, limit int) ([]domain.CalendarConflict, error)
	MarkConflictResolved(ctx context.Context, id string, action domain.ResolutionAction, note, resolvedBy string, at time.Time) error
	CountUnresolvedSince(ctx context.Context, since time.Time) (int, error)
}

// SyncEnqueuer re-queues an account for reconciliation. Satisfied by
// queue.Publisher together with QueueDepth below.
type SyncEnqueuer interface {
	PublishJSON(ctx context.Context, key string, v any) error
	QueueDepth(queue string) (int, error)
}

// SettingsSource exposes tenant policy for resolution previews.
type SettingsSource interface {
	GetTenantSettings(ctx context.Context, tenantID string) (domain.TenantSettings, error)
}

type ConflictService struct {
	repo      ConflictRepository
	settings  SettingsSource
	enqueuer  SyncEnqueuer
	clock     clock.Clock
	syncQueue string
}

func NewConflictService(repo ConflictRepository, settings SettingsSource, enqueuer SyncEnqueuer, clk clock.Clock, syncQueue string) *ConflictService {
	return &ConflictService{
		repo:      repo,
		settings:  settings,
		enqueuer:  enqueuer,
		clock:     clk,
		syncQueue: syncQueue,
	}
}

type ConflictPage struct {
	Conflicts  []domain.CalendarConflict
	NextCursor string
}

// List pages unresolved and resolved conflicts newest-first. The cursor is
// opaque to callers; an unparseable one is rejected rather than silently
// restarting from the first page.
func (s *ConflictService) List(ctx context.Context, tenantID, cursor string, limit int) (ConflictPage, error) {
	if limit == 0 {
		limit = defaultListLimit
	}
	if limit < 1 || limit > maxListLimit {
		return ConflictPage{}, domain.ErrInvalidLimit
	}

	var before time.Time
	var beforeID string
	if cursor != "" {
		var err error
		before, beforeID, err = decodeCursor(cursor)
		if err != nil {
			return ConflictPage{}, domain.ErrInvalidCursor
		}
	}

	conflicts, err := s.repo.ListConflicts(ctx, tenantID, before, beforeID, limit)
	if err != nil {
		return ConflictPage{}, err
	}

	page := ConflictPage{Conflicts: conflicts}
	if len(conflicts) == limit {
		last := conflicts[len(conflicts)-1]
		page.NextCursor = encodeCursor(last.CreatedAt, last.ID)
	}
	return page, nil
}

func encodeCursor(at time.Time, id string) string {
	raw := at.UTC().Format(time.RFC3339Nano) + "|" + id
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(cursor string) (time.Time, string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, "", err
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, "", fmt.Errorf("malformed cursor")
	}
	at, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, "", err
	}
	if _, err := uuid.Parse(parts[1]); err != nil {
		return time.Time{}, "", err
	}
	return at, parts[1], nil
}

type ResolutionPreview struct {
	Conflict        domain.CalendarConflict
	SuggestedAction domain.ResolutionAction
	Reason          string
}

// Preview suggests an action without committing anything. Double bookings
// follow the tenant's authority policy; orphans are dismissals because the
// missing side cannot be recreated by a resync.
func (s *ConflictService) Preview(ctx context.Context, tenantID, conflictID string) (ResolutionPreview, error) {
	conflict, err := s.repo.GetConflict(ctx, conflictID)
	if err != nil {
		return ResolutionPreview{}, err
	}
	if conflict.TenantID != tenantID {
		return ResolutionPreview{}, domain.ErrConflictNotFound
	}

	preview := ResolutionPreview{Conflict: conflict}
	switch conflict.Kind {
	case domain.ConflictDoubleBooked:
		settings, err := s.settings.GetTenantSettings(ctx, conflict.TenantID)
		if err != nil {
			return ResolutionPreview{}, err
		}
		if settings.ExternalCalendarAuthoritative {
			preview.SuggestedAction = domain.ResolutionRetrySync
			preview.Reason = "external calendar is authoritative for this tenant; resync to adopt its window"
		} else {
			preview.SuggestedAction = domain.ResolutionDismiss
			preview.Reason = "internal booking is authoritative for this tenant"
		}
	case domain.ConflictStaleExternal:
		preview.SuggestedAction = domain.ResolutionRetrySync
		preview.Reason = "external event has not been updated recently; resync to refresh it"
	default:
		preview.SuggestedAction = domain.ResolutionDismiss
		preview.Reason = "counterpart no longer exists; nothing a resync can restore"
	}
	return preview, nil
}

type ResolveInput struct {
	TenantID   string
	ConflictID string
	Action     domain.ResolutionAction
	Note       string
	ResolvedBy string
}

// Resolve marks a conflict resolved exactly once. Resolving an already
// resolved conflict returns the stored record unchanged and enqueues nothing.
func (s *ConflictService) Resolve(ctx context.Context, in ResolveInput) (domain.CalendarConflict, error) {
	if in.Action != domain.ResolutionDismiss && in.Action != domain.ResolutionRetrySync {
		return domain.CalendarConflict{}, domain.ErrInvalidAction
	}
	if len(in.Note) > maxNoteLength {
		return domain.CalendarConflict{}, domain.ErrNoteTooLong
	}

	var result domain.CalendarConflict
	var alreadyResolved bool
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		conflict, err := s.repo.GetConflictForUpdate(txCtx, in.ConflictID)
		if err != nil {
			return err
		}
		if conflict.TenantID != in.TenantID {
			return domain.ErrConflictNotFound
		}
		if conflict.Resolved {
			result = conflict
			alreadyResolved = true
			return nil
		}

		now := s.clock.Now()
		if err := s.repo.MarkConflictResolved(txCtx, in.ConflictID, in.Action, in.Note, in.ResolvedBy, now); err != nil {
			return err
		}
		conflict.Resolved = true
		conflict.Action = in.Action
		conflict.Note = in.Note
		conflict.ResolvedBy = in.ResolvedBy
		conflict.ResolvedAt = &now
		conflict.UpdatedAt = now
		result = conflict
		return nil
	})
	if err != nil {
		return domain.CalendarConflict{}, err
	}

	if !alreadyResolved && in.Action == domain.ResolutionRetrySync {
		task := queue.SyncTask{AccountID: result.AccountID}
		if err := s.enqueuer.PublishJSON(ctx, queue.RoutingSyncAccount, task); err != nil {
			return domain.CalendarConflict{}, fmt.Errorf("enqueue resync: %w", err)
		}
	}
	return result, nil
}

type ConflictMetrics struct {
	UnresolvedConflicts int
	WindowDays          int
	SyncQueueDepth      int
}

// Metrics reports the unresolved-conflict count over a trailing window plus
// the sync queue backlog, and refreshes the exported gauges.
func (s *ConflictService) Metrics(ctx context.Context, windowDays int) (ConflictMetrics, error) {
	if windowDays <= 0 {
		windowDays = 7
	}
	since := s.clock.Now().AddDate(0, 0, -windowDays)
	unresolved, err := s.repo.CountUnresolvedSince(ctx, since)
	if err != nil {
		return ConflictMetrics{}, err
	}

	out := ConflictMetrics{UnresolvedConflicts: unresolved, WindowDays: windowDays}
	metrics.UnresolvedConflicts.Set(float64(unresolved))

	depth, err := s.enqueuer.QueueDepth(s.syncQueue)
	if err != nil {
		logging.FromContext(ctx).Warn("sync queue depth unavailable",
			zap.String("queue", s.syncQueue), zap.Error(err))
		return out, nil
	}
	out.SyncQueueDepth = depth
	metrics.SyncQueueDepth.Set(float64(depth))
	return out, nil
}
