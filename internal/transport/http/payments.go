package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/bernardodieta/bookingApp-sub001/internal/app"
	"github.com/bernardodieta/bookingApp-sub001/internal/domain"
	"github.com/bernardodieta/bookingApp-sub001/internal/payments"
	"github.com/go-chi/chi/v5"
)

const maxWebhookBody = 1 << 20

// CheckoutCreator opens provider checkout sessions.
type CheckoutCreator interface {
	CreateCheckout(rctx context.Context, in app.CheckoutRequest) (payments.CheckoutSession, error)
}

// HandleCreateCheckout returns an HTTP handler for opening checkout sessions.
func HandleCreateCheckout(svc CheckoutCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req checkoutRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.BookingID == "" {
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, "booking_id is required")
			return
		}

		sess, err := svc.CreateCheckout(r.Context(), app.CheckoutRequest{
			BookingID:  req.BookingID,
			Mode:       domain.CheckoutMode(req.Mode),
			Amount:     req.Amount,
			SuccessURL: req.SuccessURL,
			CancelURL:  req.CancelURL,
		})
		if err != nil {
			switch err {
			case domain.ErrIntegrationNotConfigured:
				writeError(w, http.StatusServiceUnavailable, codeIntegrationNotConfigured, err.Error())
			case domain.ErrInvalidCheckoutMode:
				writeError(w, http.StatusBadRequest, codeInvalidCheckoutMode, err.Error())
			case domain.ErrInvalidAmount:
				writeError(w, http.StatusBadRequest, codeInvalidAmount, err.Error())
			case domain.ErrInvalidID:
				writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
			case domain.ErrBookingNotFound:
				writeError(w, http.StatusNotFound, codeBookingNotFound, err.Error())
			case domain.ErrServiceNotFound:
				writeError(w, http.StatusNotFound, codeServiceNotFound, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		writeJSON(w, http.StatusCreated, checkoutResponse{
			SessionID: sess.SessionID,
			URL:       sess.URL,
		})
	}
}

// SessionConfirmer reconciles a checkout session synchronously.
type SessionConfirmer interface {
	ConfirmSession(rctx context.Context, sessionID string) (app.IngestResult, error)
}

// HandleConfirmSession returns an HTTP handler for the synchronous confirm
// fallback used when the client returns before the webhook lands.
func HandleConfirmSession(svc SessionConfirmer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "sessionID")

		result, err := svc.ConfirmSession(r.Context(), sessionID)
		if err != nil {
			writeError(w, http.StatusBadGateway, codeInternalError, "provider lookup failed")
			return
		}
		writeJSON(w, http.StatusOK, ingestResponse{Outcome: result.Outcome})
	}
}

// WebhookIngestor verifies and applies provider webhook deliveries.
type WebhookIngestor interface {
	Ingest(rctx context.Context, payload []byte, sigHeader string) (app.IngestResult, error)
}

// HandleStripeWebhook returns an HTTP handler for the payment provider's
// webhook endpoint. Duplicate deliveries are acknowledged with 200 so the
// provider stops retrying them.
func HandleStripeWebhook(svc WebhookIngestor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "unreadable body")
			return
		}

		result, err := svc.Ingest(r.Context(), payload, r.Header.Get("Stripe-Signature"))
		if err != nil {
			if errors.Is(err, domain.ErrSignatureInvalid) {
				writeError(w, http.StatusUnauthorized, codeSignatureInvalid, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, ingestResponse{Outcome: result.Outcome})
	}
}

type checkoutRequest struct {
	BookingID  string   `json:"booking_id"`
	Mode       string   `json:"mode"`
	Amount     *float64 `json:"amount,omitempty"`
	SuccessURL string   `json:"success_url"`
	CancelURL  string   `json:"cancel_url"`
}

type checkoutResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

type ingestResponse struct {
	Outcome string `json:"outcome"`
}
