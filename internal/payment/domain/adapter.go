package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// CheckoutParams describes the hosted checkout page to create. The
// booking and bill identifiers travel in session metadata and come
// back on the completion webhook.
type CheckoutParams struct {
	BookingID      snowflake.ID
	BillID         snowflake.ID
	PractitionerID snowflake.ID
	Amount         decimal.Decimal
	Currency       string
	CustomerEmail  string
	Description    string
}

// CheckoutSession is the provider's view of a created session.
type CheckoutSession struct {
	SessionID   string
	CheckoutURL string
}

// WebhookEvent is a verified, decoded provider event.
type WebhookEvent struct {
	ProviderEventID string
	Type            string
	SessionID       string
	PaymentIntentID string
	BookingID       snowflake.ID
	BillID          snowflake.ID
	PractitionerID  snowflake.ID
}

// Processor abstracts the payment provider. The Stripe implementation
// is the only one wired today.
type Processor interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)

	// ExpireSession invalidates a still-open hosted session.
	ExpireSession(ctx context.Context, externalSessionID string) error

	// Refund reverses a captured payment and returns the provider
	// refund id.
	Refund(ctx context.Context, paymentIntentID string, amount decimal.Decimal, currency string) (string, error)

	// ParseWebhook verifies the signature and decodes the payload.
	// Unrecognized event types return ErrEventIgnored.
	ParseWebhook(payload []byte, signatureHeader string) (*WebhookEvent, error)
}
