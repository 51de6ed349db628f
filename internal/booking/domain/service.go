package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	billdomain "github.com/praxisware/praxis/internal/bill/domain"
)

// CreateBookingRequest is the full input for the creation workflow.
// Billing may be nil, in which case the resolved billing settings for the
// practitioner/client pair supply the terms.
type CreateBookingRequest struct {
	PractitionerID snowflake.ID
	ClientID       snowflake.ID
	ClientName     string
	ClientEmail    string
	StartsAt       time.Time
	EndsAt         time.Time
	Mode           ConsultationMode
	Location       *string
	SeriesID       *snowflake.ID
	Billing        *BillingTerms

	// SuppressEmail skips the payment-email step entirely, used by bulk
	// and series creation.
	SuppressEmail bool
}

// CreateBookingResult reports what the orchestration produced.
type CreateBookingResult struct {
	Booking         Booking
	Bill            billdomain.Bill
	RequiresPayment bool
	PaymentURL      string
}

// Service is the booking lifecycle orchestrator.
type Service interface {
	// CreateBooking runs the full creation workflow: validate, resolve
	// billing, create booking and bill snapshot, stage the calendar
	// event, and send the payment email when it is due now. If that send
	// fails, the already-committed booking and bill are deleted again and
	// the error propagates.
	CreateBooking(ctx context.Context, req CreateBookingRequest) (CreateBookingResult, error)

	// RecordManualPayment marks the booking's bill paid outside the
	// payment processor (cash, bank transfer).
	RecordManualPayment(ctx context.Context, bookingID snowflake.ID) error

	GetByID(ctx context.Context, bookingID snowflake.ID) (Booking, error)
}

var (
	// ErrInvalidTimeWindow carries the message surfaced to API clients.
	ErrInvalidTimeWindow = errors.New("endTime must be after startTime")

	ErrInvalidCadence      = errors.New("invalid_cadence")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrUnsupportedCurrency = errors.New("unsupported_currency")
	ErrInvalidLeadHours    = errors.New("invalid_lead_hours")
	ErrMissingClientEmail  = errors.New("missing_client_email")
	ErrBookingNotFound     = errors.New("booking_not_found")
	ErrNoBillForBooking    = errors.New("no_bill_for_booking")
)
