package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Service resolves the billing terms in effect for a practitioner/client
// pair. The resolved record id is stored on the booking as an audit trail.
type Service interface {
	// Resolve returns client-specific settings when they exist, else the
	// practitioner default, else a freshly created zero-amount default.
	// It never fails except on storage errors.
	Resolve(ctx context.Context, practitionerID, clientID snowflake.ID) (BillingSettings, error)

	// TaxRateFor returns the VAT percent for the pair: client-specific
	// settings first, then practitioner default, then zero.
	TaxRateFor(ctx context.Context, practitionerID, clientID snowflake.ID) (decimal.Decimal, error)
}

var (
	ErrInvalidPractitioner = errors.New("invalid_practitioner")
	ErrInvalidClient       = errors.New("invalid_client")
)
