package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Cadence classifies how a practitioner bills a client.
type Cadence string

const (
	CadencePerBooking Cadence = "per_booking"
	CadenceMonthly    Cadence = "monthly"
)

func (c Cadence) Valid() bool {
	return c == CadencePerBooking || c == CadenceMonthly
}

// BillingSettings holds the billing terms a practitioner applies to one
// client, or to every client when ClientID is nil and IsDefault is set.
// Bookings snapshot these values at creation time; later edits never
// touch existing bills.
type BillingSettings struct {
	ID             snowflake.ID  `gorm:"primaryKey"`
	PractitionerID snowflake.ID  `gorm:"not null;index"`
	ClientID       *snowflake.ID `gorm:"index"`
	IsDefault      bool          `gorm:"not null;default:false"`
	Cadence        Cadence       `gorm:"type:text;not null;default:'per_booking'"`
	Amount         decimal.Decimal
	Currency       string `gorm:"type:text;not null;default:'EUR'"`
	TaxRatePercent *decimal.Decimal
	LeadHours      *int
	CreatedAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (BillingSettings) TableName() string { return "billing_settings" }
