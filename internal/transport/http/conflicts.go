package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/bernardodieta/bookingApp-sub001/internal/app"
	"github.com/bernardodieta/bookingApp-sub001/internal/domain"
	"github.com/go-chi/chi/v5"
)

// ConflictLister pages conflicts newest-first.
type ConflictLister interface {
	List(rctx context.Context, tenantID, cursor string, limit int) (app.ConflictPage, error)
}

// HandleListConflicts returns an HTTP handler for the conflict inbox.
func HandleListConflicts(svc ConflictLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidLimit, "limit must be an integer")
				return
			}
			limit = n
		}

		page, err := svc.List(r.Context(), TenantID(r), r.URL.Query().Get("cursor"), limit)
		if err != nil {
			switch err {
			case domain.ErrInvalidLimit:
				writeError(w, http.StatusBadRequest, codeInvalidLimit, err.Error())
			case domain.ErrInvalidCursor:
				writeError(w, http.StatusBadRequest, codeInvalidCursor, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		resp := conflictPageResponse{
			Conflicts:  make([]conflictResponse, 0, len(page.Conflicts)),
			NextCursor: page.NextCursor,
		}
		for _, c := range page.Conflicts {
			resp.Conflicts = append(resp.Conflicts, toConflictResponse(c))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// ConflictPreviewer suggests a resolution action without committing it.
type ConflictPreviewer interface {
	Preview(rctx context.Context, tenantID, conflictID string) (app.ResolutionPreview, error)
}

// HandlePreviewConflict returns an HTTP handler for resolution previews.
func HandlePreviewConflict(svc ConflictPreviewer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conflictID := chi.URLParam(r, "conflictID")

		preview, err := svc.Preview(r.Context(), TenantID(r), conflictID)
		if err != nil {
			switch err {
			case domain.ErrInvalidID:
				writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
			case domain.ErrConflictNotFound:
				writeError(w, http.StatusNotFound, codeConflictNotFound, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		writeJSON(w, http.StatusOK, previewResponse{
			Conflict:        toConflictResponse(preview.Conflict),
			SuggestedAction: string(preview.SuggestedAction),
			Reason:          preview.Reason,
		})
	}
}

// ConflictResolver marks a conflict resolved exactly once.
type ConflictResolver interface {
	Resolve(rctx context.Context, in app.ResolveInput) (domain.CalendarConflict, error)
}

// HandleResolveConflict returns an HTTP handler for resolving conflicts.
// Resolving an already resolved conflict returns the stored record and is
// otherwise a no-op.
func HandleResolveConflict(svc ConflictResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conflictID := chi.URLParam(r, "conflictID")

		var req resolveRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		conflict, err := svc.Resolve(r.Context(), app.ResolveInput{
			TenantID:   TenantID(r),
			ConflictID: conflictID,
			Action:     domain.ResolutionAction(req.Action),
			Note:       req.Note,
			ResolvedBy: req.ResolvedBy,
		})
		if err != nil {
			switch err {
			case domain.ErrInvalidAction:
				writeError(w, http.StatusBadRequest, codeInvalidAction, err.Error())
			case domain.ErrNoteTooLong:
				writeError(w, http.StatusBadRequest, codeNoteTooLong, err.Error())
			case domain.ErrInvalidID:
				writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
			case domain.ErrConflictNotFound:
				writeError(w, http.StatusNotFound, codeConflictNotFound, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		writeJSON(w, http.StatusOK, toConflictResponse(conflict))
	}
}

// ConflictMetricsReader reports reconciliation health numbers.
type ConflictMetricsReader interface {
	Metrics(rctx context.Context, windowDays int) (app.ConflictMetrics, error)
}

// HandleConflictMetrics returns an HTTP handler for the reconciliation
// health summary.
func HandleConflictMetrics(svc ConflictMetricsReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		windowDays := 0
		if raw := r.URL.Query().Get("window_days"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidLimit, "window_days must be an integer")
				return
			}
			windowDays = n
		}

		m, err := svc.Metrics(r.Context(), windowDays)
		if err != nil {
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}

		writeJSON(w, http.StatusOK, conflictMetricsResponse{
			UnresolvedConflicts: m.UnresolvedConflicts,
			WindowDays:          m.WindowDays,
			SyncQueueDepth:      m.SyncQueueDepth,
		})
	}
}

type resolveRequest struct {
	Action     string `json:"action"`
	Note       string `json:"note"`
	ResolvedBy string `json:"resolved_by"`
}

type conflictResponse struct {
	ID          string     `json:"id"`
	AccountID   string     `json:"account_id"`
	ExternalRef string     `json:"external_ref"`
	BookingID   *string    `json:"booking_id,omitempty"`
	Kind        string     `json:"kind"`
	Resolved    bool       `json:"resolved"`
	Action      string     `json:"action,omitempty"`
	Note        string     `json:"note,omitempty"`
	ResolvedBy  string     `json:"resolved_by,omitempty"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func toConflictResponse(c domain.CalendarConflict) conflictResponse {
	return conflictResponse{
		ID:          c.ID,
		AccountID:   c.AccountID,
		ExternalRef: c.ExternalRef,
		BookingID:   c.BookingID,
		Kind:        string(c.Kind),
		Resolved:    c.Resolved,
		Action:      string(c.Action),
		Note:        c.Note,
		ResolvedBy:  c.ResolvedBy,
		ResolvedAt:  c.ResolvedAt,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

type conflictPageResponse struct {
	Conflicts  []conflictResponse `json:"conflicts"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

type previewResponse struct {
	Conflict        conflictResponse `json:"conflict"`
	SuggestedAction string           `json:"suggested_action"`
	Reason          string           `json:"reason"`
}

type conflictMetricsResponse struct {
	UnresolvedConflicts int `json:"unresolved_conflicts"`
	WindowDays          int `json:"window_days"`
	SyncQueueDepth      int `json:"sync_queue_depth"`
}
