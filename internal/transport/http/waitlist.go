package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/bernardodieta/bookingApp-sub001/internal/app"
	"github.com/bernardodieta/bookingApp-sub001/internal/domain"
	"github.com/go-chi/chi/v5"
)

// HandleJoinWaitlist returns an HTTP handler for joining the waitlist.
func HandleJoinWaitlist(svc WaitlistJoiner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req joinWaitlistRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if err := req.validate(); err != nil {
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, err.Error())
			return
		}

		entry, err := svc.Join(r.Context(), app.JoinInput{
			TenantID:         TenantID(r),
			ServiceID:        req.ServiceID,
			StaffID:          req.StaffID,
			CustomerID:       req.CustomerID,
			PreferredStartAt: req.PreferredStartAt,
		})
		if err != nil {
			switch err {
			case domain.ErrInvalidDate:
				writeError(w, http.StatusBadRequest, codeInvalidDate, err.Error())
			case domain.ErrInvalidID:
				writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		writeJSON(w, http.StatusCreated, waitlistEntryResponse{
			ID:               entry.ID,
			Status:           string(entry.Status),
			PreferredStartAt: entry.PreferredStartAt,
		})
	}
}

// WaitlistEstimator computes queue position and projected serving window.
type WaitlistEstimator interface {
	Estimate(rctx context.Context, entryID string) (domain.WaitlistEstimate, error)
}

// HandleWaitlistEstimate returns an HTTP handler for the estimate surface.
func HandleWaitlistEstimate(svc WaitlistEstimator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entryID := chi.URLParam(r, "entryID")

		est, err := svc.Estimate(r.Context(), entryID)
		if err != nil {
			switch err {
			case domain.ErrInvalidID:
				writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
			case domain.ErrWaitlistEntryNotFound:
				writeError(w, http.StatusNotFound, codeEntryNotFound, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		writeJSON(w, http.StatusOK, estimateResponse{
			QueuePosition:    est.QueuePosition,
			EstimatedStartAt: est.EstimatedStartAt,
			EstimatedEndAt:   est.EstimatedEndAt,
		})
	}
}

// WaitlistAccepter books the offered slot for a notified entry.
type WaitlistAccepter interface {
	Accept(rctx context.Context, entryID string) (domain.Booking, error)
}

// HandleWaitlistAccept returns an HTTP handler for accepting an offered slot.
func HandleWaitlistAccept(svc WaitlistAccepter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entryID := chi.URLParam(r, "entryID")

		booking, err := svc.Accept(r.Context(), entryID)
		if err != nil {
			switch err {
			case domain.ErrInvalidID:
				writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
			case domain.ErrWaitlistEntryNotFound:
				writeError(w, http.StatusNotFound, codeEntryNotFound, err.Error())
			case domain.ErrEntryNotNotified:
				writeError(w, http.StatusConflict, codeEntryNotNotified, err.Error())
			case domain.ErrSlotConflict:
				writeError(w, http.StatusConflict, codeSlotConflict, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		writeJSON(w, http.StatusCreated, bookingResponse{
			ID:      booking.ID,
			Status:  string(booking.Status),
			StartAt: booking.StartAt,
			EndAt:   booking.EndAt,
		})
	}
}

// WaitlistHistory lists a customer's waitlist entries for the portal.
type WaitlistHistory interface {
	ListByCustomer(rctx context.Context, tenantID, customerID string) ([]domain.WaitlistEntry, error)
}

// HandlePortalWaitlist returns an HTTP handler for the customer portal
// waitlist view.
func HandlePortalWaitlist(svc WaitlistHistory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID := r.Header.Get("X-Customer-ID")
		if customerID == "" {
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, "X-Customer-ID header is required")
			return
		}

		entries, err := svc.ListByCustomer(r.Context(), TenantID(r), customerID)
		if err != nil {
			if err == domain.ErrInvalidID {
				writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}

		resp := make([]waitlistEntryResponse, 0, len(entries))
		for _, e := range entries {
			resp = append(resp, waitlistEntryResponse{
				ID:               e.ID,
				Status:           string(e.Status),
				PreferredStartAt: e.PreferredStartAt,
			})
		}
		writeJSON(w, http.StatusOK, map[string][]waitlistEntryResponse{"entries": resp})
	}
}

type joinWaitlistRequest struct {
	ServiceID        string    `json:"service_id"`
	StaffID          string    `json:"staff_id"`
	CustomerID       string    `json:"customer_id"`
	PreferredStartAt time.Time `json:"preferred_start_at"`
}

func (r joinWaitlistRequest) validate() error {
	if r.ServiceID == "" || r.StaffID == "" || r.CustomerID == "" {
		return errors.New("service_id, staff_id and customer_id are required")
	}
	if r.PreferredStartAt.IsZero() {
		return errors.New("preferred_start_at is required")
	}
	return nil
}

type waitlistEntryResponse struct {
	ID               string    `json:"id"`
	Status           string    `json:"status"`
	PreferredStartAt time.Time `json:"preferred_start_at"`
}

type estimateResponse struct {
	QueuePosition    int        `json:"queue_position"`
	EstimatedStartAt *time.Time `json:"estimated_start_at,omitempty"`
	EstimatedEndAt   *time.Time `json:"estimated_end_at,omitempty"`
}
