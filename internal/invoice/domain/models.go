package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Kind distinguishes regular invoices from rectifying credit notes.
type Kind string

const (
	KindInvoice    Kind = "invoice"
	KindCreditNote Kind = "credit_note"
)

// Status tracks the invoice lifecycle. Monthly invoices start as drafts
// and keep reconciling membership until issued; per-booking invoices are
// born settled.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusIssued   Status = "issued"
	StatusPaid     Status = "paid"
	StatusRefunded Status = "refunded"
	StatusCanceled Status = "canceled"
)

// Invoice aggregates one or more bills for a practitioner/client pair.
// Monthly invoices cover a period; per-booking invoices cover exactly
// one bill and carry no period.
type Invoice struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	PractitionerID snowflake.ID `gorm:"not null;index"`
	ClientID       snowflake.ID `gorm:"not null;index"`
	Kind           Kind         `gorm:"type:text;not null;default:'invoice'"`
	Status         Status       `gorm:"type:text;not null;default:'draft'"`
	ClientName     string       `gorm:"type:text;not null;default:''"`
	ClientEmail    string       `gorm:"type:text;not null;default:''"`

	Currency  string `gorm:"type:text;not null"`
	Subtotal  decimal.Decimal
	TaxAmount decimal.Decimal
	Total     decimal.Decimal

	Series string `gorm:"type:text"`
	Number *int64

	PeriodStart *time.Time
	PeriodEnd   *time.Time

	RectifiesInvoiceID *snowflake.ID
	Metadata           datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'"`

	IssuedAt  *time.Time
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// DisplayNumber is the human-readable reference once issued.
func (i Invoice) DisplayNumber() string {
	if i.Number == nil {
		return ""
	}
	return fmt.Sprintf("%s-%04d", i.Series, *i.Number)
}
