package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/praxisware/praxis/internal/ledger/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("ledger.service"),
		genID: p.GenID,
	}
}

var accountNames = map[string]string{
	domain.AccountCodeCashClearing:       "Cash Clearing",
	domain.AccountCodeAccountsReceivable: "Accounts Receivable",
	domain.AccountCodeRevenue:            "Revenue",
	domain.AccountCodeTaxPayable:         "Tax Payable",
}

func (s *Service) CreateEntry(
	ctx context.Context,
	practitionerID snowflake.ID,
	sourceType string,
	sourceID string,
	currency string,
	occurredAt time.Time,
	lines []domain.AccountLine,
) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.CreateEntryInTx(tx, practitionerID, sourceType, sourceID, currency, occurredAt, lines)
	})
}

func (s *Service) CreateEntryInTx(
	tx *gorm.DB,
	practitionerID snowflake.ID,
	sourceType string,
	sourceID string,
	currency string,
	occurredAt time.Time,
	lines []domain.AccountLine,
) error {
	if practitionerID == 0 {
		return domain.ErrInvalidPractitioner
	}
	if strings.TrimSpace(sourceType) == "" {
		return domain.ErrInvalidSourceType
	}
	if strings.TrimSpace(sourceID) == "" {
		return domain.ErrInvalidSourceID
	}
	if strings.TrimSpace(currency) == "" {
		return domain.ErrInvalidCurrency
	}
	if occurredAt.IsZero() {
		return domain.ErrInvalidOccurredAt
	}
	if err := domain.ValidateBalanced(lines); err != nil {
		return err
	}

	entry := domain.LedgerEntry{
		ID:             s.genID.Generate(),
		PractitionerID: practitionerID,
		SourceType:     sourceType,
		SourceID:       sourceID,
		Currency:       strings.ToLower(currency),
		OccurredAt:     occurredAt,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return err
	}

	for _, line := range lines {
		account, err := s.ensureAccount(tx, practitionerID, line.AccountCode)
		if err != nil {
			return err
		}
		posting := domain.LedgerEntryLine{
			ID:            s.genID.Generate(),
			LedgerEntryID: entry.ID,
			AccountID:     account.ID,
			Direction:     line.Direction,
			Amount:        line.Amount,
		}
		if err := tx.Create(&posting).Error; err != nil {
			return err
		}
	}
	return nil
}

// ensureAccount resolves a chart-of-accounts code, creating the row on
// first use. A concurrent insert losing the unique-index race falls
// back to reselecting the winner.
func (s *Service) ensureAccount(tx *gorm.DB, practitionerID snowflake.ID, code string) (*domain.LedgerAccount, error) {
	name, ok := accountNames[code]
	if !ok {
		return nil, domain.ErrInvalidAccount
	}

	var account domain.LedgerAccount
	err := tx.
		Where("practitioner_id = ? AND code = ?", practitionerID, code).
		First(&account).Error
	if err == nil {
		return &account, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	account = domain.LedgerAccount{
		ID:             s.genID.Generate(),
		PractitionerID: practitionerID,
		Code:           code,
		Name:           name,
	}
	if err := tx.Create(&account).Error; err != nil {
		var existing domain.LedgerAccount
		selErr := tx.
			Where("practitioner_id = ? AND code = ?", practitionerID, code).
			First(&existing).Error
		if selErr != nil {
			return nil, err
		}
		return &existing, nil
	}
	return &account, nil
}
