package app

import (
	"context"
	"errors"
	"math"

	"github.com/bernardodieta/bookingApp-sub001/internal/clock"
	"github.com/bernardodieta/bookingApp-sub001/internal/domain"
	"github.com/bernardodieta/bookingApp-sub001/internal/logging"
	"github.com/bernardodieta/bookingApp-sub001/internal/metrics"
	"github.com/bernardodieta/bookingApp-sub001/internal/payments"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PaymentRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	InsertEventIfAbsent(ctx context.Context, e domain.PaymentEvent) (bool, error)
	BookingExists(ctx context.Context, bookingID string) (bool, error)
	GetPaymentForUpdate(ctx context.Context, bookingID, provider, providerRef string) (*domain.Payment, error)
	CreatePayment(ctx context.Context, p domain.Payment) error
	UpdatePaymentStatus(ctx context.Context, id string, status domain.PaymentStatus, amountCents int64) error
	GetPaymentByBooking(ctx context.Context, bookingID string) (*domain.Payment, error)
}

// CheckoutGateway is the provider surface the ledger depends on. Satisfied by
// payments.Gateway.
type CheckoutGateway interface {
	Configured() bool
	CreateCheckoutSession(ctx context.Context, in payments.CheckoutInput) (payments.CheckoutSession, error)
	VerifyWebhook(payload []byte, sigHeader string) (domain.PaymentEvent, error)
	FetchSession(ctx context.Context, sessionID string) (domain.PaymentEvent, error)
}

// BookingSource supplies service pricing for checkout creation.
type BookingSource interface {
	GetBooking(ctx context.Context, id string) (domain.Booking, error)
	GetService(ctx context.Context, tenantID, serviceID string) (domain.Service, error)
}

type PaymentService struct {
	repo     PaymentRepository
	gateway  CheckoutGateway
	bookings BookingSource
	clock    clock.Clock
	currency string
}

func NewPaymentService(repo PaymentRepository, gateway CheckoutGateway, bookings BookingSource, clk clock.Clock, currency string) *PaymentService {
	return &PaymentService{
		repo:     repo,
		gateway:  gateway,
		bookings: bookings,
		clock:    clk,
		currency: currency,
	}
}

type IngestResult struct {
	Outcome string
	Payment *domain.Payment
}

const (
	outcomeApplied     = "applied"
	outcomeDuplicate   = "duplicate"
	outcomeUnlinked    = "unlinked"
	outcomeUnsupported = "unsupported"
	outcomeNoop        = "noop"
)

// Ingest verifies and applies one provider webhook delivery. An invalid
// signature changes nothing; an unsupported event type is acknowledged so the
// provider stops retrying it.
func (s *PaymentService) Ingest(ctx context.Context, payload []byte, sigHeader string) (IngestResult, error) {
	event, err := s.gateway.VerifyWebhook(payload, sigHeader)
	if errors.Is(err, payments.ErrUnsupportedEvent) {
		metrics.PaymentEvents.WithLabelValues(outcomeUnsupported).Inc()
		return IngestResult{Outcome: outcomeUnsupported}, nil
	}
	if err != nil {
		return IngestResult{}, err
	}
	return s.apply(ctx, event)
}

// ConfirmSession reconciles one checkout session synchronously, for clients
// that return from the provider before the webhook lands. The session id is
// the logical event id, so this and the webhook path are mutually idempotent.
func (s *PaymentService) ConfirmSession(ctx context.Context, sessionID string) (IngestResult, error) {
	event, err := s.gateway.FetchSession(ctx, sessionID)
	if err != nil {
		return IngestResult{}, err
	}
	return s.apply(ctx, event)
}

// apply records the event and advances payment state in one transaction.
// Replays short-circuit on the event ledger; paid is terminal except for
// refunds.
func (s *PaymentService) apply(ctx context.Context, event domain.PaymentEvent) (IngestResult, error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = s.clock.Now()
	}

	var result IngestResult
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		inserted, err := s.repo.InsertEventIfAbsent(txCtx, event)
		if err != nil {
			return err
		}
		if !inserted {
			result = IngestResult{Outcome: outcomeDuplicate}
			return nil
		}

		linked := event.BookingID != ""
		if linked {
			linked, err = s.repo.BookingExists(txCtx, event.BookingID)
			if err != nil {
				return err
			}
		}
		if !linked {
			// Recorded for audit; there is no booking to move.
			logging.FromContext(txCtx).Warn("payment event without booking",
				zap.String("provider_event_id", event.ProviderEventID))
			result = IngestResult{Outcome: outcomeUnlinked}
			return nil
		}

		payment, err := s.repo.GetPaymentForUpdate(txCtx, event.BookingID, event.Provider, event.ProviderRef)
		if err != nil {
			return err
		}
		if payment == nil {
			p := domain.Payment{
				ID:          uuid.NewString(),
				BookingID:   event.BookingID,
				Provider:    event.Provider,
				ProviderRef: event.ProviderRef,
				Status:      event.Status,
				AmountCents: event.AmountCents,
				CreatedAt:   event.ReceivedAt,
				UpdatedAt:   event.ReceivedAt,
			}
			if err := s.repo.CreatePayment(txCtx, p); err != nil {
				return err
			}
			result = IngestResult{Outcome: outcomeApplied, Payment: &p}
			return nil
		}

		if payment.Status == event.Status {
			result = IngestResult{Outcome: outcomeNoop, Payment: payment}
			return nil
		}
		if payment.Status == domain.PaymentStatusPaid && event.Status != domain.PaymentStatusRefunded {
			result = IngestResult{Outcome: outcomeNoop, Payment: payment}
			return nil
		}

		if err := s.repo.UpdatePaymentStatus(txCtx, payment.ID, event.Status, event.AmountCents); err != nil {
			return err
		}
		payment.Status = event.Status
		payment.AmountCents = event.AmountCents
		result = IngestResult{Outcome: outcomeApplied, Payment: payment}
		return nil
	})
	if err != nil {
		metrics.PaymentEvents.WithLabelValues("error").Inc()
		return IngestResult{}, err
	}
	metrics.PaymentEvents.WithLabelValues(result.Outcome).Inc()
	return result, nil
}

type CheckoutRequest struct {
	BookingID  string
	Mode       domain.CheckoutMode
	Amount     *float64
	SuccessURL string
	CancelURL  string
}

// CreateCheckout opens a provider checkout session for a booking. Full mode
// charges the service price; deposit mode charges half, rounded down. An
// explicit amount overrides the derived price.
func (s *PaymentService) CreateCheckout(ctx context.Context, in CheckoutRequest) (payments.CheckoutSession, error) {
	if !s.gateway.Configured() {
		return payments.CheckoutSession{}, domain.ErrIntegrationNotConfigured
	}
	if in.Mode != domain.CheckoutModeFull && in.Mode != domain.CheckoutModeDeposit {
		return payments.CheckoutSession{}, domain.ErrInvalidCheckoutMode
	}

	booking, err := s.bookings.GetBooking(ctx, in.BookingID)
	if err != nil {
		return payments.CheckoutSession{}, err
	}
	svc, err := s.bookings.GetService(ctx, booking.TenantID, booking.ServiceID)
	if err != nil {
		return payments.CheckoutSession{}, err
	}

	amount := svc.PriceCents
	if in.Mode == domain.CheckoutModeDeposit {
		amount = svc.PriceCents / 2
	}
	if in.Amount != nil {
		cents, ok := amountToCents(*in.Amount)
		if !ok {
			return payments.CheckoutSession{}, domain.ErrInvalidAmount
		}
		amount = cents
	}
	if amount <= 0 {
		return payments.CheckoutSession{}, domain.ErrInvalidAmount
	}

	return s.gateway.CreateCheckoutSession(ctx, payments.CheckoutInput{
		BookingID:   booking.ID,
		Mode:        in.Mode,
		AmountCents: amount,
		Currency:    s.currency,
		SuccessURL:  in.SuccessURL,
		CancelURL:   in.CancelURL,
	})
}

func (s *PaymentService) GetPaymentByBooking(ctx context.Context, bookingID string) (*domain.Payment, error) {
	return s.repo.GetPaymentByBooking(ctx, bookingID)
}

// amountToCents converts a positive major-unit amount with at most two
// decimal places to cents.
func amountToCents(amount float64) (int64, bool) {
	if amount <= 0 {
		return 0, false
	}
	cents := math.Round(amount * 100)
	if math.Abs(amount*100-cents) > 1e-9 {
		return 0, false
	}
	return int64(cents), true
}
