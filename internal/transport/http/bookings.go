package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/bernardodieta/bookingApp-sub001/internal/app"
	"github.com/bernardodieta/bookingApp-sub001/internal/domain"
	"github.com/bernardodieta/bookingApp-sub001/internal/logging"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BookingReserver is the minimal interface needed to create a booking.
type BookingReserver interface {
	Reserve(rctx context.Context, in app.ReserveInput) (domain.Booking, error)
}

// WaitlistJoiner joins the caller to the waitlist when the slot is taken.
type WaitlistJoiner interface {
	Join(rctx context.Context, in app.JoinInput) (domain.WaitlistEntry, error)
}

// HandleCreateBooking returns an HTTP handler for creating bookings. When the
// slot is contested and the caller opted in, the loser is placed on the
// waitlist instead of receiving a conflict.
func HandleCreateBooking(svc BookingReserver, waitlist WaitlistJoiner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createBookingRequest
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

		tenantID := TenantID(r)
		booking, err := svc.Reserve(r.Context(), app.ReserveInput{
			TenantID:   tenantID,
			ServiceID:  req.ServiceID,
			StaffID:    req.StaffID,
			CustomerID: req.CustomerID,
			StartAt:    req.StartAt,
		})
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrSlotConflict) && req.JoinWaitlist:
				entry, joinErr := waitlist.Join(r.Context(), app.JoinInput{
					TenantID:         tenantID,
					ServiceID:        req.ServiceID,
					StaffID:          req.StaffID,
					CustomerID:       req.CustomerID,
					PreferredStartAt: req.StartAt,
				})
				if joinErr != nil {
					writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
					return
				}
				writeJSON(w, http.StatusAccepted, waitlistEntryResponse{
					ID:               entry.ID,
					Status:           string(entry.Status),
					PreferredStartAt: entry.PreferredStartAt,
				})
			case errors.Is(err, domain.ErrSlotConflict):
				writeError(w, http.StatusConflict, codeSlotConflict, err.Error())
			case errors.Is(err, domain.ErrInvalidDate):
				writeError(w, http.StatusBadRequest, codeInvalidDate, err.Error())
			case errors.Is(err, domain.ErrInvalidID):
				writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
			case errors.Is(err, domain.ErrServiceNotFound):
				writeError(w, http.StatusNotFound, codeServiceNotFound, err.Error())
			case errors.Is(err, domain.ErrTenantNotFound):
				writeError(w, http.StatusNotFound, codeTenantNotFound, err.Error())
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

// BookingCanceller cancels a booking and reports the freed window.
type BookingCanceller interface {
	Cancel(rctx context.Context, tenantID, bookingID string) (domain.Booking, error)
}

// WaitlistPromoter offers a freed window to the waitlist.
type WaitlistPromoter interface {
	Promote(rctx context.Context, staffID string, freed domain.TimeWindow) (*domain.WaitlistEntry, error)
}

// HandleCancelBooking returns an HTTP handler for cancelling bookings. A
// successful cancel offers the freed window to the waitlist before replying.
func HandleCancelBooking(svc BookingCanceller, waitlist WaitlistPromoter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookingID := chi.URLParam(r, "bookingID")

		booking, err := svc.Cancel(r.Context(), TenantID(r), bookingID)
		if err != nil {
			switch err {
			case domain.ErrInvalidID:
				writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
			case domain.ErrBookingNotFound:
				writeError(w, http.StatusNotFound, codeBookingNotFound, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		freed := domain.TimeWindow{Start: booking.StartAt, End: booking.EndAt}
		if _, err := waitlist.Promote(r.Context(), booking.StaffID, freed); err != nil {
			// The cancellation stands; the next cancel or poll retries promotion.
			logging.FromContext(r.Context()).Error("waitlist promotion failed",
				zap.String("booking_id", booking.ID), zap.Error(err))
		}

		writeJSON(w, http.StatusOK, bookingResponse{
			ID:      booking.ID,
			Status:  string(booking.Status),
			StartAt: booking.StartAt,
			EndAt:   booking.EndAt,
		})
	}
}

// BookingHistory lists a customer's bookings for the portal.
type BookingHistory interface {
	ListByCustomer(rctx context.Context, tenantID, customerID string) ([]domain.Booking, error)
}

// HandlePortalBookings returns an HTTP handler for the customer portal
// booking list. The customer is identified by the session header.
func HandlePortalBookings(svc BookingHistory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID := r.Header.Get("X-Customer-ID")
		if customerID == "" {
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, "X-Customer-ID header is required")
			return
		}

		bookings, err := svc.ListByCustomer(r.Context(), TenantID(r), customerID)
		if err != nil {
			if err == domain.ErrInvalidID {
				writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}

		resp := make([]bookingResponse, 0, len(bookings))
		for _, b := range bookings {
			resp = append(resp, bookingResponse{
				ID:      b.ID,
				Status:  string(b.Status),
				StartAt: b.StartAt,
				EndAt:   b.EndAt,
			})
		}
		writeJSON(w, http.StatusOK, map[string][]bookingResponse{"bookings": resp})
	}
}

type createBookingRequest struct {
	ServiceID    string    `json:"service_id"`
	StaffID      string    `json:"staff_id"`
	CustomerID   string    `json:"customer_id"`
	StartAt      time.Time `json:"start_at"`
	JoinWaitlist bool      `json:"join_waitlist"`
}

func (r createBookingRequest) validate() error {
	if r.ServiceID == "" || r.StaffID == "" || r.CustomerID == "" {
		return errors.New("service_id, staff_id and customer_id are required")
	}
	if r.StartAt.IsZero() {
		return errors.New("start_at is required")
	}
	return nil
}

type bookingResponse struct {
	ID      string    `json:"id"`
	Status  string    `json:"status"`
	StartAt time.Time `json:"start_at"`
	EndAt   time.Time `json:"end_at"`
}
