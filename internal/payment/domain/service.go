package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// EnsureSessionRequest carries everything needed to build a checkout
// page from the bill snapshot.
type EnsureSessionRequest struct {
	BookingID      snowflake.ID
	BillID         snowflake.ID
	PractitionerID snowflake.ID
	Amount         decimal.Decimal
	Currency       string
	CustomerEmail  string
	Description    string
}

// Service owns checkout sessions and webhook reconciliation.
type Service interface {
	// EnsureCheckoutSession returns the booking's pending session when
	// one exists, creating one at the provider otherwise.
	EnsureCheckoutSession(ctx context.Context, req EnsureSessionRequest) (*PaymentSession, error)

	// HandleWebhook verifies and reconciles one provider event. The
	// authoritative state changes commit in a single transaction;
	// follow-up work is advisory.
	HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) error

	// ExpirePendingSessions expires the booking's open sessions at the
	// provider and marks them cancelled locally.
	ExpirePendingSessions(ctx context.Context, bookingID snowflake.ID) error

	// CompletedSession returns the booking's settled session, or
	// ErrSessionNotFound when payment never went through the provider.
	CompletedSession(ctx context.Context, bookingID snowflake.ID) (*PaymentSession, error)

	// RefundSession reverses the session's payment at the provider and
	// marks the session refunded. Returns the provider refund id.
	RefundSession(ctx context.Context, session *PaymentSession) (string, error)
}

var (
	ErrInvalidSignature    = errors.New("invalid_signature")
	ErrInvalidPayload      = errors.New("invalid_payload")
	ErrEventIgnored        = errors.New("event_ignored")
	ErrSessionNotFound     = errors.New("session_not_found")
	ErrMissingIntent       = errors.New("missing_payment_intent")
	ErrInvalidMetadata     = errors.New("invalid_session_metadata")
	ErrProviderUnavailable = errors.New("payment_provider_unavailable")
)
