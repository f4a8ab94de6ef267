package http

import (
	"net/http"

	"github.com/bernardodieta/bookingApp-sub001/internal/metrics"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Services bundles everything the router exposes.
type Services struct {
	Slots           SlotLister
	Reserver        BookingReserver
	Canceller       BookingCanceller
	BookingHistory  BookingHistory
	WaitlistJoin    WaitlistJoiner
	WaitlistEst     WaitlistEstimator
	WaitlistAccept  WaitlistAccepter
	WaitlistPromote WaitlistPromoter
	WaitlistHistory WaitlistHistory
	Rules           interface {
		RuleWriter
		RuleReader
	}
	Authorizer      Authorizer
	SyncPublisher   SyncPublisher
	ConflictList    ConflictLister
	ConflictPreview ConflictPreviewer
	ConflictResolve ConflictResolver
	ConflictMetrics ConflictMetricsReader
	Checkout        CheckoutCreator
	SessionConfirm  SessionConfirmer
	StripeWebhook   WebhookIngestor
}

// NewRouter assembles the full HTTP surface.
func NewRouter(svc Services, logger *zap.Logger, corsOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(RequestLogger(logger))
	r.Use(metrics.Middleware)
	r.Use(CORS(corsOrigins))
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
	})

	r.Get("/health", HealthHandler)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RequireTenant)

		r.Get("/services/{serviceID}/staff/{staffID}/slots", HandleListSlots(svc.Slots))

		r.Post("/bookings", HandleCreateBooking(svc.Reserver, svc.WaitlistJoin))
		r.Delete("/bookings/{bookingID}", HandleCancelBooking(svc.Canceller, svc.WaitlistPromote))

		r.Get("/portal/bookings", HandlePortalBookings(svc.BookingHistory))
		r.Get("/portal/waitlist", HandlePortalWaitlist(svc.WaitlistHistory))

		r.Post("/waitlist", HandleJoinWaitlist(svc.WaitlistJoin))
		r.Get("/waitlist/{entryID}/estimate", HandleWaitlistEstimate(svc.WaitlistEst))
		r.Post("/waitlist/{entryID}/accept", HandleWaitlistAccept(svc.WaitlistAccept))

		r.Post("/staff/{staffID}/availability", HandleCreateRule(svc.Rules))
		r.Get("/staff/{staffID}/availability", HandleListRules(svc.Rules))

		r.Get("/calendar/authorize", HandleCalendarAuthorize(svc.Authorizer))
		r.Get("/calendar/conflicts", HandleListConflicts(svc.ConflictList))
		r.Get("/calendar/conflicts/{conflictID}/preview", HandlePreviewConflict(svc.ConflictPreview))
		r.Post("/calendar/conflicts/{conflictID}/resolve", HandleResolveConflict(svc.ConflictResolve))
		r.Get("/calendar/metrics", HandleConflictMetrics(svc.ConflictMetrics))

		r.Post("/payments/checkout", HandleCreateCheckout(svc.Checkout))
		r.Post("/payments/sessions/{sessionID}/confirm", HandleConfirmSession(svc.SessionConfirm))
	})

	// Providers cannot send tenant headers; these routes authenticate by
	// signature (stripe) or carry no trusted payload at all (calendar).
	r.Post("/webhooks/calendar", HandleCalendarWebhook(svc.SyncPublisher))
	r.Post("/webhooks/stripe", HandleStripeWebhook(svc.StripeWebhook))

	return r
}
