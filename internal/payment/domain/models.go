package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// SessionStatus tracks a hosted checkout session. At most one pending
// session exists per booking; creation reuses before it creates.
type SessionStatus string

const (
	SessionStatusPending   SessionStatus = "pending"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusCancelled SessionStatus = "cancelled"
	SessionStatusRefunded  SessionStatus = "refunded"
)

// PaymentSession mirrors one provider checkout session.
type PaymentSession struct {
	ID                snowflake.ID  `gorm:"primaryKey"`
	BookingID         *snowflake.ID `gorm:"index"`
	InvoiceID         *snowflake.ID
	ExternalSessionID string        `gorm:"type:text;not null"`
	CheckoutURL       string        `gorm:"type:text;not null;default:''"`
	Amount            decimal.Decimal
	Currency          string        `gorm:"type:text;not null"`
	Status            SessionStatus `gorm:"type:text;not null;index"`
	PaymentIntentID   *string       `gorm:"type:text"`
	CompletedAt       *time.Time
	CreatedAt         time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt         time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (PaymentSession) TableName() string { return "payment_sessions" }
