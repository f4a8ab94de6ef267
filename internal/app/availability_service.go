package app

import (
	"context"
	"sort"
	"time"

	"github.com/bernardodieta/bookingApp-sub001/internal/clock"
	"github.com/bernardodieta/bookingApp-sub001/internal/domain"
	"github.com/google/uuid"
)

// ProjectWindows turns a day's active availability rules into an ordered,
// non-overlapping list of UTC windows anchored at the target local date.
// Overlapping or adjacent rules are merged. Deterministic: no side effects.
func ProjectWindows(rules []domain.AvailabilityRule, date time.Time, loc *time.Location) []domain.TimeWindow {
	year, month, day := date.Date()

	windows := make([]domain.TimeWindow, 0, len(rules))
	for _, rule := range rules {
		if !rule.Active || !rule.Valid() {
			continue
		}
		start := time.Date(year, month, day, 0, rule.StartMinute, 0, 0, loc)
		end := time.Date(year, month, day, 0, rule.EndMinute, 0, 0, loc)
		windows = append(windows, domain.TimeWindow{Start: start.UTC(), End: end.UTC()})
	}
	return MergeWindows(windows)
}

// MergeWindows sorts windows and unions any that overlap or touch.
func MergeWindows(windows []domain.TimeWindow) []domain.TimeWindow {
	if len(windows) == 0 {
		return nil
	}
	sorted := append([]domain.TimeWindow(nil), windows...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	merged := []domain.TimeWindow{sorted[0]}
	for _, w := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !w.Start.After(last.End) {
			if w.End.After(last.End) {
				last.End = w.End
			}
			continue
		}
		merged = append(merged, w)
	}
	return merged
}

// SubtractWindows removes busy intervals from free windows, keeping order.
func SubtractWindows(free []domain.TimeWindow, busy []domain.TimeWindow) []domain.TimeWindow {
	out := free
	for _, b := range busy {
		var next []domain.TimeWindow
		for _, f := range out {
			if !f.Overlaps(b) {
				next = append(next, f)
				continue
			}
			if b.Start.After(f.Start) {
				next = append(next, domain.TimeWindow{Start: f.Start, End: b.Start})
			}
			if b.End.Before(f.End) {
				next = append(next, domain.TimeWindow{Start: b.End, End: f.End})
			}
		}
		out = next
	}
	return out
}

type AvailabilityRepository interface {
	ListActiveRules(ctx context.Context, tenantID, staffID string, weekday time.Weekday) ([]domain.AvailabilityRule, error)
	ListRules(ctx context.Context, tenantID, staffID string) ([]domain.AvailabilityRule, error)
	CreateRule(ctx context.Context, rule domain.AvailabilityRule) error
}

type AvailabilityService struct {
	repo  AvailabilityRepository
	clock clock.Clock
}

func NewAvailabilityService(repo AvailabilityRepository, clk clock.Clock) *AvailabilityService {
	return &AvailabilityService{repo: repo, clock: clk}
}

// WindowsFor projects a staff member's free windows for one tenant-local
// date. No availability is an empty result, not an error.
func (s *AvailabilityService) WindowsFor(ctx context.Context, tenantID, staffID string, date time.Time, timezone string) ([]domain.TimeWindow, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, domain.ErrInvalidDate
	}

	local := date.In(loc)
	rules, err := s.repo.ListActiveRules(ctx, tenantID, staffID, local.Weekday())
	if err != nil {
		return nil, err
	}
	return ProjectWindows(rules, local, loc), nil
}

type CreateRuleInput struct {
	TenantID    string
	StaffID     string
	Weekday     time.Weekday
	StartMinute int
	EndMinute   int
}

func (s *AvailabilityService) CreateRule(ctx context.Context, in CreateRuleInput) (domain.AvailabilityRule, error) {
	rule := domain.AvailabilityRule{
		ID:          uuid.NewString(),
		TenantID:    in.TenantID,
		StaffID:     in.StaffID,
		Weekday:     in.Weekday,
		StartMinute: in.StartMinute,
		EndMinute:   in.EndMinute,
		Active:      true,
		CreatedAt:   s.clock.Now(),
	}
	if !rule.Valid() {
		return domain.AvailabilityRule{}, domain.ErrInvalidRule
	}
	if err := s.repo.CreateRule(ctx, rule); err != nil {
		return domain.AvailabilityRule{}, err
	}
	return rule, nil
}

func (s *AvailabilityService) ListRules(ctx context.Context, tenantID, staffID string) ([]domain.AvailabilityRule, error) {
	return s.repo.ListRules(ctx, tenantID, staffID)
}
