package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/praxisware/praxis/internal/billingsettings/domain"
	"github.com/shopspring/decimal"
)

// CreateSnapshotRequest carries everything the snapshot writer needs.
// Tax is resolved from billing settings, not passed in, so the snapshot
// always reflects the tax profile at creation time.
type CreateSnapshotRequest struct {
	BookingID        snowflake.ID
	PractitionerID   snowflake.ID
	ClientID         snowflake.ID
	ClientName       string
	ClientEmail      string
	Amount           decimal.Decimal
	Currency         string
	Cadence          billingdomain.Cadence
	EmailScheduledAt *time.Time
}

// Service writes immutable bill snapshots and owns bill status moves
// that are not driven by payments or refunds.
type Service interface {
	// CreateSnapshot computes tax and persists a bill linked 1:1 to the
	// booking. Initial status is scheduled for monthly cadence or when a
	// future email send is set with a positive amount; pending otherwise.
	CreateSnapshot(ctx context.Context, req CreateSnapshotRequest) (Bill, error)

	// MarkSent transitions a scheduled or pending bill to sent after the
	// payment email went out.
	MarkSent(ctx context.Context, billID snowflake.ID) error

	// MarkPaid transitions a bill to paid.
	MarkPaid(ctx context.Context, billID snowflake.ID) error

	// Delete removes a bill as a compensating action: the creation
	// workflow failed after the bill committed.
	Delete(ctx context.Context, billID snowflake.ID) error

	FindByBookingID(ctx context.Context, bookingID snowflake.ID) (Bill, error)
}

var (
	ErrBillNotFound      = errors.New("bill_not_found")
	ErrBillNotTransition = errors.New("bill_status_transition_rejected")
)
