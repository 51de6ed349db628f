package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// EventType distinguishes a provisional hold from a confirmed invite.
// It only ever moves pending -> confirmed, never back.
type EventType string

const (
	EventTypePending   EventType = "pending"
	EventTypeConfirmed EventType = "confirmed"
)

// EventStatus mirrors the external event lifecycle.
type EventStatus string

const (
	EventStatusCreated   EventStatus = "created"
	EventStatusUpdated   EventStatus = "updated"
	EventStatusCancelled EventStatus = "cancelled"
)

// CalendarEvent is the local mirror of one external calendar event tied
// to one booking.
type CalendarEvent struct {
	ID              snowflake.ID `gorm:"primaryKey"`
	BookingID       snowflake.ID `gorm:"not null;index"`
	PractitionerID  snowflake.ID `gorm:"not null;index"`
	ExternalEventID string       `gorm:"type:text;not null"`
	MeetLink        *string      `gorm:"type:text"`
	EventType       EventType    `gorm:"type:text;not null"`
	EventStatus     EventStatus  `gorm:"type:text;not null"`
	CreatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (CalendarEvent) TableName() string { return "calendar_events" }
