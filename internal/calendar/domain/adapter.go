package domain

import (
	"context"
	"time"
)

// Variant selects how the external event is staged.
type Variant string

const (
	// VariantPending blocks the slot without inviting the client yet.
	VariantPending Variant = "pending"
	// VariantConfirmed sends the invite immediately.
	VariantConfirmed Variant = "confirmed"
	// VariantInternalConfirmed records the event with no invite, for
	// slots that already happened.
	VariantInternalConfirmed Variant = "internal_confirmed"
	// VariantNone stages nothing.
	VariantNone Variant = "none"
)

// CreateEventRequest is the payload staged into the external calendar.
type CreateEventRequest struct {
	Variant   Variant
	Title     string
	Attendees []string
	StartsAt  time.Time
	EndsAt    time.Time
	Notes     string
}

// ExternalEvent is what the external calendar reports back.
type ExternalEvent struct {
	EventID  string
	MeetLink string
}

// ExternalCalendar is the external calendar service contract.
type ExternalCalendar interface {
	CreateEvent(ctx context.Context, req CreateEventRequest) (*ExternalEvent, error)
	UpgradeToConfirmed(ctx context.Context, externalEventID string, attendees []string) (*ExternalEvent, error)
}
