package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// LedgerEntryDirection represents debit or credit postings.
type LedgerEntryDirection string

const (
	LedgerEntryDirectionDebit  LedgerEntryDirection = "debit"
	LedgerEntryDirectionCredit LedgerEntryDirection = "credit"
)

const (
	SourceTypePaymentSession = "payment_session"
	SourceTypeManualPayment  = "manual_payment"
	SourceTypeRefund         = "refund"
)

const (
	AccountCodeCashClearing       = "cash_clearing"
	AccountCodeAccountsReceivable = "accounts_receivable"
	AccountCodeRevenue            = "revenue"
	AccountCodeTaxPayable         = "tax_payable"
)

// LedgerAccount defines a chart-of-accounts entry scoped to one practitioner.
type LedgerAccount struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	PractitionerID snowflake.ID `gorm:"not null;index;uniqueIndex:ux_ledger_accounts_code,priority:1"`
	Code           string       `gorm:"type:text;not null;uniqueIndex:ux_ledger_accounts_code,priority:2"`
	Name           string       `gorm:"type:text;not null"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (LedgerAccount) TableName() string { return "ledger_accounts" }

// LedgerEntry captures the immutable header for a financial event.
type LedgerEntry struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	PractitionerID snowflake.ID `gorm:"not null;index"`
	SourceType     string       `gorm:"type:text;not null;index:ix_ledger_entries_source,priority:1"`
	SourceID       string       `gorm:"type:text;not null;index:ix_ledger_entries_source,priority:2"`
	Currency       string       `gorm:"type:text;not null"`
	OccurredAt     time.Time    `gorm:"not null"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (LedgerEntry) TableName() string { return "ledger_entries" }

// LedgerEntryLine is a double-entry posting line.
type LedgerEntryLine struct {
	ID            snowflake.ID         `gorm:"primaryKey"`
	LedgerEntryID snowflake.ID         `gorm:"not null;index"`
	AccountID     snowflake.ID         `gorm:"not null;index"`
	Direction     LedgerEntryDirection `gorm:"type:text;not null"`
	Amount        decimal.Decimal      `gorm:"type:numeric(12,2);not null"`
	CreatedAt     time.Time            `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (LedgerEntryLine) TableName() string { return "ledger_entry_lines" }

// AccountLine pairs an account code with a posting before account
// resolution. CreateEntry resolves codes to account rows.
type AccountLine struct {
	AccountCode string
	Direction   LedgerEntryDirection
	Amount      decimal.Decimal
}
