package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/praxisware/praxis/internal/config"
	"github.com/praxisware/praxis/internal/observability/tracing"
	"github.com/praxisware/praxis/internal/payment/domain"
	"github.com/shopspring/decimal"
	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
)

const (
	metadataBookingID      = "booking_id"
	metadataBillID         = "bill_id"
	metadataPractitionerID = "practitioner_id"
)

var oneHundred = decimal.NewFromInt(100)

// Processor talks to Stripe hosted checkout, refunds and webhooks.
type Processor struct {
	api            *client.API
	log            *zap.Logger
	webhookSecret  string
	successURL     string
	cancelURL      string
	platformFeeBps int64
}

func NewProcessor(cfg config.Config, log *zap.Logger) (*Processor, error) {
	if strings.TrimSpace(cfg.StripeSecretKey) == "" {
		return nil, errors.New("missing_stripe_secret_key")
	}

	api := &client.API{}
	api.Init(cfg.StripeSecretKey, &stripe.Backends{
		API: stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			HTTPClient: tracing.WrapHTTPClient(nil),
		}),
	})

	return &Processor{
		api:            api,
		log:            log.Named("payment.stripe"),
		webhookSecret:  cfg.StripeWebhookSecret,
		successURL:     cfg.CheckoutSuccessURL,
		cancelURL:      cfg.CheckoutCancelURL,
		platformFeeBps: cfg.PlatformFeeBps,
	}, nil
}

func (p *Processor) CreateCheckoutSession(ctx context.Context, cp domain.CheckoutParams) (*domain.CheckoutSession, error) {
	unitAmount := cp.Amount.Mul(oneHundred).IntPart()

	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:    stripe.String(p.successURL),
		CancelURL:     stripe.String(p.cancelURL),
		CustomerEmail: stripe.String(cp.CustomerEmail),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(cp.Currency)),
					UnitAmount: stripe.Int64(unitAmount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(cp.Description),
					},
				},
			},
		},
	}
	params.Context = ctx
	params.AddMetadata(metadataBookingID, cp.BookingID.String())
	params.AddMetadata(metadataBillID, cp.BillID.String())
	params.AddMetadata(metadataPractitionerID, cp.PractitionerID.String())

	if p.platformFeeBps > 0 {
		fee := unitAmount * p.platformFeeBps / 10000
		if fee > 0 {
			params.PaymentIntentData = &stripe.CheckoutSessionPaymentIntentDataParams{
				ApplicationFeeAmount: stripe.Int64(fee),
			}
		}
	}

	sess, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe checkout session: %w", err)
	}
	return &domain.CheckoutSession{SessionID: sess.ID, CheckoutURL: sess.URL}, nil
}

func (p *Processor) ExpireSession(ctx context.Context, externalSessionID string) error {
	params := &stripe.CheckoutSessionExpireParams{}
	params.Context = ctx
	if _, err := p.api.CheckoutSessions.Expire(externalSessionID, params); err != nil {
		return fmt.Errorf("stripe expire session: %w", err)
	}
	return nil
}

func (p *Processor) Refund(ctx context.Context, paymentIntentID string, amount decimal.Decimal, currency string) (string, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntentID),
		Amount:        stripe.Int64(amount.Mul(oneHundred).IntPart()),
	}
	params.Context = ctx

	refund, err := p.api.Refunds.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe refund: %w", err)
	}
	return refund.ID, nil
}

func (p *Processor) ParseWebhook(payload []byte, signatureHeader string) (*domain.WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, signatureHeader, p.webhookSecret)
	if err != nil {
		return nil, domain.ErrInvalidSignature
	}

	if event.Type != "checkout.session.completed" {
		p.log.Debug("ignoring stripe event", zap.String("type", string(event.Type)))
		return nil, domain.ErrEventIgnored
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, domain.ErrInvalidPayload
	}

	decoded := &domain.WebhookEvent{
		ProviderEventID: event.ID,
		Type:            string(event.Type),
		SessionID:       session.ID,
	}
	if session.PaymentIntent != nil {
		decoded.PaymentIntentID = session.PaymentIntent.ID
	}

	decoded.BookingID, err = parseMetadataID(session.Metadata, metadataBookingID)
	if err != nil {
		return nil, err
	}
	decoded.BillID, err = parseMetadataID(session.Metadata, metadataBillID)
	if err != nil {
		return nil, err
	}
	decoded.PractitionerID, err = parseMetadataID(session.Metadata, metadataPractitionerID)
	if err != nil {
		return nil, err
	}
	return decoded, nil
}

func parseMetadataID(metadata map[string]string, key string) (snowflake.ID, error) {
	raw, ok := metadata[key]
	if !ok || strings.TrimSpace(raw) == "" {
		return 0, domain.ErrInvalidMetadata
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, domain.ErrInvalidMetadata
	}
	return id, nil
}
