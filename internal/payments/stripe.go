package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bernardodieta/bookingApp-sub001/internal/domain"
	stripe "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/webhook"
)

const providerName = "stripe"

// ErrUnsupportedEvent marks provider events the ledger does not act on. They
// are still acknowledged so the provider stops retrying.
var ErrUnsupportedEvent = fmt.Errorf("unsupported provider event")

// CheckoutInput describes a checkout session to create.
type CheckoutInput struct {
	BookingID   string
	Mode        domain.CheckoutMode
	AmountCents int64
	Currency    string
	SuccessURL  string
	CancelURL   string
}

// CheckoutSession is the provider-side session reference handed to the client.
type CheckoutSession struct {
	SessionID string
	URL       string
}

// Gateway wraps the Stripe API for checkout creation, synchronous session
// reconciliation and webhook signature verification.
type Gateway struct {
	webhookSecret string
}

// NewGateway configures the Stripe client. The secret key is process-global
// per the stripe-go API.
func NewGateway(secretKey, webhookSecret string) *Gateway {
	stripe.Key = secretKey
	return &Gateway{webhookSecret: webhookSecret}
}

func (g *Gateway) Configured() bool {
	return stripe.Key != "" && g.webhookSecret != ""
}

// CreateCheckoutSession creates a Stripe Checkout session for a booking.
func (g *Gateway) CreateCheckoutSession(ctx context.Context, in CheckoutInput) (CheckoutSession, error) {
	name := "Booking payment"
	if in.Mode == domain.CheckoutModeDeposit {
		name = "Booking deposit"
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(in.SuccessURL),
		CancelURL:  stripe.String(in.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(in.Currency),
					UnitAmount: stripe.Int64(in.AmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(name),
					},
				},
			},
		},
	}
	params.Context = ctx
	params.AddMetadata("booking_id", in.BookingID)
	params.AddMetadata("mode", string(in.Mode))

	sess, err := session.New(params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("create checkout session: %w", err)
	}
	return CheckoutSession{SessionID: sess.ID, URL: sess.URL}, nil
}

// VerifyWebhook checks the Stripe signature and normalizes the event. Fails
// closed: any signature problem returns ErrSignatureInvalid untouched state.
func (g *Gateway) VerifyWebhook(payload []byte, sigHeader string) (domain.PaymentEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return domain.PaymentEvent{}, domain.ErrSignatureInvalid
	}

	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded",
		"checkout.session.async_payment_failed", "checkout.session.expired":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return domain.PaymentEvent{}, fmt.Errorf("decode session payload: %w", err)
		}
		out := normalizeSession(&sess)
		out.ProviderEventID = event.ID
		return out, nil
	case "charge.refunded":
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			return domain.PaymentEvent{}, fmt.Errorf("decode charge payload: %w", err)
		}
		ref := ch.ID
		if ch.PaymentIntent != nil {
			ref = ch.PaymentIntent.ID
		}
		return domain.PaymentEvent{
			Provider:        providerName,
			ProviderEventID: event.ID,
			BookingID:       ch.Metadata["booking_id"],
			ProviderRef:     ref,
			AmountCents:     ch.AmountRefunded,
			Status:          domain.PaymentStatusRefunded,
			ReceivedAt:      time.Now().UTC(),
		}, nil
	default:
		return domain.PaymentEvent{}, ErrUnsupportedEvent
	}
}

// FetchSession retrieves a checkout session for the synchronous confirm
// fallback. The session id doubles as the logical event id so the webhook and
// poll paths share one idempotent apply.
func (g *Gateway) FetchSession(ctx context.Context, sessionID string) (domain.PaymentEvent, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := session.Get(sessionID, params)
	if err != nil {
		return domain.PaymentEvent{}, fmt.Errorf("fetch session: %w", err)
	}
	out := normalizeSession(sess)
	out.ProviderEventID = sess.ID
	return out, nil
}

func normalizeSession(sess *stripe.CheckoutSession) domain.PaymentEvent {
	status := domain.PaymentStatusPending
	switch {
	case sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid:
		status = domain.PaymentStatusPaid
	case sess.Status == stripe.CheckoutSessionStatusExpired:
		status = domain.PaymentStatusFailed
	}
	return domain.PaymentEvent{
		Provider:    providerName,
		BookingID:   sess.Metadata["booking_id"],
		ProviderRef: sess.ID,
		AmountCents: sess.AmountTotal,
		Status:      status,
		ReceivedAt:  time.Now().UTC(),
	}
}
