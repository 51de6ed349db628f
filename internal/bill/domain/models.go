package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/praxisware/praxis/internal/billingsettings/domain"
	"github.com/shopspring/decimal"
)

// BillStatus tracks the life of a bill. Scheduled bills are owned by the
// async email sweeper; pending bills by the synchronous creation path.
type BillStatus string

const (
	BillStatusScheduled BillStatus = "scheduled"
	BillStatusPending   BillStatus = "pending"
	BillStatusSent      BillStatus = "sent"
	BillStatusPaid      BillStatus = "paid"
	BillStatusDisputed  BillStatus = "disputed"
	BillStatusCanceled  BillStatus = "canceled"
	BillStatusRefunded  BillStatus = "refunded"
)

// Bill is the immutable financial snapshot for exactly one booking.
// Amount, currency and tax are copied from the billing terms at creation
// and never change afterwards; only status, the email lock and the
// invoice linkage move.
type Bill struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	BookingID      snowflake.ID `gorm:"not null;uniqueIndex"`
	PractitionerID snowflake.ID `gorm:"not null;index"`
	ClientID       snowflake.ID `gorm:"not null;index"`
	ClientName     string       `gorm:"type:text;not null;default:''"`
	ClientEmail    string       `gorm:"type:text;not null;default:''"`

	Amount         decimal.Decimal
	Currency       string `gorm:"type:text;not null"`
	TaxRatePercent decimal.Decimal
	TaxAmount      decimal.Decimal
	Cadence        billingdomain.Cadence `gorm:"type:text;not null"`

	Status           BillStatus `gorm:"type:text;not null;index"`
	EmailScheduledAt *time.Time
	EmailLockedAt    *time.Time
	EmailClaimToken  *string `gorm:"type:text"`
	InvoiceID        *snowflake.ID `gorm:"index"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Bill) TableName() string { return "bills" }

// Total is the amount including tax.
func (b Bill) Total() decimal.Decimal {
	return b.Amount.Add(b.TaxAmount)
}
