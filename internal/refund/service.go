package refund

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// Coordinator runs the cancellation and refund workflows. Refunds are
// deliberately not idempotent: a second call for the same booking is an
// error, not a silent no-op.
type Coordinator interface {
	// Cancel releases the booking: open checkout sessions expire,
	// unpaid bills cancel, the calendar event record closes.
	Cancel(ctx context.Context, bookingID snowflake.ID) error

	// Refund reverses the payment of a paid bill and issues the
	// rectifying credit note.
	Refund(ctx context.Context, bookingID snowflake.ID, reason string) error
}

var (
	ErrNoPaidBill          = errors.New("no_paid_bill")
	ErrBillAlreadyRefunded = errors.New("bill_already_refunded")
)
