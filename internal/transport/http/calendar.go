package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/bernardodieta/bookingApp-sub001/internal/domain"
	"github.com/bernardodieta/bookingApp-sub001/internal/queue"
)

// Authorizer builds provider OAuth consent URLs.
type Authorizer interface {
	AuthorizeURL(provider domain.CalendarProvider, staffID string) (string, error)
}

// HandleCalendarAuthorize returns an HTTP handler for starting the calendar
// connection flow.
func HandleCalendarAuthorize(svc Authorizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		staffID := r.URL.Query().Get("staff_id")
		provider := domain.CalendarProvider(r.URL.Query().Get("provider"))
		if staffID == "" {
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, "staff_id is required")
			return
		}
		if provider != domain.ProviderGoogle && provider != domain.ProviderMicrosoft {
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, "provider must be google or microsoft")
			return
		}

		url, err := svc.AuthorizeURL(provider, staffID)
		if err != nil {
			if err == domain.ErrIntegrationNotConfigured {
				writeError(w, http.StatusServiceUnavailable, codeIntegrationNotConfigured, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"authorize_url": url})
	}
}

// SyncPublisher enqueues reconciliation tasks.
type SyncPublisher interface {
	PublishJSON(rctx context.Context, key string, v any) error
}

// HandleCalendarWebhook returns an HTTP handler for provider push
// notifications. The payload is untrusted; it only nominates which account to
// reconcile, never what changed.
func HandleCalendarWebhook(publisher SyncPublisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req calendarWebhookRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		task := queue.SyncTask{AccountID: req.AccountID}
		if err := publisher.PublishJSON(r.Context(), queue.RoutingSyncAccount, task); err != nil {
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

type calendarWebhookRequest struct {
	AccountID string `json:"account_id"`
}
