package http

import (
	"context"
	"net/http"
	"time"

	"github.com/bernardodieta/bookingApp-sub001/internal/domain"
	"github.com/go-chi/chi/v5"
)

// SlotLister is the minimal interface needed to project bookable slots.
type SlotLister interface {
	ListSlots(ctx context.Context, tenantID, serviceID, staffID string, date time.Time) ([]domain.TimeWindow, error)
}

// HandleListSlots returns an HTTP handler for slot projection.
func HandleListSlots(svc SlotLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serviceID := chi.URLParam(r, "serviceID")
		staffID := chi.URLParam(r, "staffID")

		date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidDate, "date must be YYYY-MM-DD")
			return
		}

		slots, err := svc.ListSlots(r.Context(), TenantID(r), serviceID, staffID, date)
		if err != nil {
			switch err {
			case domain.ErrInvalidID:
				writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
			case domain.ErrServiceNotFound:
				writeError(w, http.StatusNotFound, codeServiceNotFound, err.Error())
			case domain.ErrTenantNotFound:
				writeError(w, http.StatusNotFound, codeTenantNotFound, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		resp := listSlotsResponse{Slots: make([]slotResponse, 0, len(slots))}
		for _, s := range slots {
			resp.Slots = append(resp.Slots, slotResponse{StartAt: s.Start, EndAt: s.End})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type slotResponse struct {
	StartAt time.Time `json:"start_at"`
	EndAt   time.Time `json:"end_at"`
}

type listSlotsResponse struct {
	Slots []slotResponse `json:"slots"`
}
