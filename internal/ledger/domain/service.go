package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// LedgerService records balanced double-entry postings for settled
// payments and refunds.
type LedgerService interface {
	CreateEntry(
		ctx context.Context,
		practitionerID snowflake.ID,
		sourceType string,
		sourceID string,
		currency string,
		occurredAt time.Time,
		lines []AccountLine,
	) error

	// CreateEntryInTx posts inside a caller-owned transaction so the
	// entry commits or rolls back with the caller's state changes.
	CreateEntryInTx(
		tx *gorm.DB,
		practitionerID snowflake.ID,
		sourceType string,
		sourceID string,
		currency string,
		occurredAt time.Time,
		lines []AccountLine,
	) error
}

// Service is the package alias for LedgerService.
type Service = LedgerService

var (
	ErrInvalidPractitioner  = errors.New("invalid_practitioner")
	ErrInvalidSourceType    = errors.New("invalid_source_type")
	ErrInvalidSourceID      = errors.New("invalid_source_id")
	ErrInvalidCurrency      = errors.New("invalid_currency")
	ErrInvalidOccurredAt    = errors.New("invalid_occurred_at")
	ErrInvalidEntryLines    = errors.New("invalid_entry_lines")
	ErrInvalidLineAmount    = errors.New("invalid_line_amount")
	ErrInvalidLineDirection = errors.New("invalid_line_direction")
	ErrInvalidAccount       = errors.New("invalid_account")
	ErrUnbalancedEntry      = errors.New("unbalanced_entry")
)
