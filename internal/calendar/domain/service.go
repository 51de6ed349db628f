package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// StageRequest carries the booking context the reconciler needs; plain
// fields keep this package independent of the booking package.
type StageRequest struct {
	BookingID      snowflake.ID
	PractitionerID snowflake.ID
	Title          string
	ClientEmail    string
	StartsAt       time.Time
	EndsAt         time.Time
	Notes          string

	Amount        decimal.Decimal
	StartInPast   bool
	SuppressEmail bool
	LeadHours     *int
}

// Service keeps the external calendar in lockstep with payment status.
type Service interface {
	// Stage creates the external event per the decision table, or does
	// nothing when no event is warranted.
	Stage(ctx context.Context, req StageRequest) (*CalendarEvent, error)

	// ConfirmPending upgrades the booking's pending event to confirmed
	// after payment. A missing pending event is logged, not an error.
	ConfirmPending(ctx context.Context, bookingID, practitionerID snowflake.ID, attendees []string) error

	// CancelForBooking marks local event records cancelled.
	CancelForBooking(ctx context.Context, bookingID snowflake.ID) error
}

var ErrExternalCalendar = errors.New("external_calendar_failed")
