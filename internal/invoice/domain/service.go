package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Service owns invoice aggregation, issuance and rectification.
type Service interface {
	// EnsureMonthlyDraft finds or creates the single draft covering the
	// pair and period, then replaces its bill membership with the
	// current candidate set and recomputes totals. Calling it twice
	// with unchanged bills yields identical state.
	EnsureMonthlyDraft(ctx context.Context, practitionerID, clientID snowflake.ID, periodStart, periodEnd time.Time) (Invoice, error)

	// Issue finalizes a draft: assigns the next series number, stamps
	// the issue time and freezes the document.
	Issue(ctx context.Context, invoiceID snowflake.ID) (Invoice, error)

	// EnsurePerBookingInvoice creates the settled invoice for a paid
	// per-booking bill, or returns the one already linked.
	EnsurePerBookingInvoice(ctx context.Context, billID snowflake.ID) (Invoice, error)

	// CreateCreditNote issues a rectifying document referencing the
	// original invoice.
	CreateCreditNote(ctx context.Context, originalInvoiceID snowflake.ID, amount decimal.Decimal, currency string, reason string) (Invoice, error)

	// MarkRefunded moves an issued or paid invoice to refunded.
	MarkRefunded(ctx context.Context, invoiceID snowflake.ID) error

	GetByID(ctx context.Context, invoiceID snowflake.ID) (Invoice, error)
}

var (
	ErrInvoiceNotFound   = errors.New("invoice_not_found")
	ErrInvalidPeriod     = errors.New("invalid_period")
	ErrInvoiceNotDraft   = errors.New("invoice_not_draft")
	ErrInvalidTransition = errors.New("invalid_invoice_transition")
	ErrBillNotFound      = errors.New("bill_not_found")
	ErrBillNotLinkable   = errors.New("bill_not_linkable")
)
