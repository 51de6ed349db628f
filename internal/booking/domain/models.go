package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// BookingStatus tracks the booking lifecycle. "pending" specifically means
// awaiting payment before being confirmed; zero-amount and monthly bookings
// skip it because no payment gates their confirmation.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusScheduled BookingStatus = "scheduled"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCanceled  BookingStatus = "canceled"
)

// ConsultationMode is how the consultation takes place.
type ConsultationMode string

const (
	ModeOnline   ConsultationMode = "online"
	ModeInPerson ConsultationMode = "in_person"
)

// Booking is one scheduling slot for one client with one practitioner.
// BillingSettingID records which billing-terms record was in effect at
// creation; the financial values themselves live on the bill snapshot.
type Booking struct {
	ID               snowflake.ID     `gorm:"primaryKey"`
	PractitionerID   snowflake.ID     `gorm:"not null;index"`
	ClientID         snowflake.ID     `gorm:"not null;index"`
	StartsAt         time.Time        `gorm:"not null"`
	EndsAt           time.Time        `gorm:"not null"`
	Status           BookingStatus    `gorm:"type:text;not null"`
	Mode             ConsultationMode `gorm:"type:text;not null;default:'online'"`
	Location         *string          `gorm:"type:text"`
	SeriesID         *snowflake.ID
	BillingSettingID *snowflake.ID
	CreatedAt        time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Booking) TableName() string { return "bookings" }
