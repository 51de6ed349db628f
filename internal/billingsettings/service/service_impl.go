package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/praxisware/praxis/internal/billingsettings/domain"
	"github.com/praxisware/praxis/internal/clock"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("billingsettings.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) Resolve(ctx context.Context, practitionerID, clientID snowflake.ID) (domain.BillingSettings, error) {
	if practitionerID == 0 {
		return domain.BillingSettings{}, domain.ErrInvalidPractitioner
	}
	if clientID == 0 {
		return domain.BillingSettings{}, domain.ErrInvalidClient
	}

	settings, err := s.findForClient(ctx, s.db, practitionerID, clientID)
	if err != nil {
		return domain.BillingSettings{}, err
	}
	if settings != nil {
		return *settings, nil
	}

	settings, err = s.findDefault(ctx, s.db, practitionerID)
	if err != nil {
		return domain.BillingSettings{}, err
	}
	if settings != nil {
		return *settings, nil
	}

	return s.ensureDefault(ctx, practitionerID)
}

func (s *Service) TaxRateFor(ctx context.Context, practitionerID, clientID snowflake.ID) (decimal.Decimal, error) {
	settings, err := s.findForClient(ctx, s.db, practitionerID, clientID)
	if err != nil {
		return decimal.Zero, err
	}
	if settings != nil && settings.TaxRatePercent != nil {
		return *settings.TaxRatePercent, nil
	}

	settings, err = s.findDefault(ctx, s.db, practitionerID)
	if err != nil {
		return decimal.Zero, err
	}
	if settings != nil && settings.TaxRatePercent != nil {
		return *settings.TaxRatePercent, nil
	}
	return decimal.Zero, nil
}

func (s *Service) findForClient(ctx context.Context, db *gorm.DB, practitionerID, clientID snowflake.ID) (*domain.BillingSettings, error) {
	var settings domain.BillingSettings
	err := db.WithContext(ctx).
		Where("practitioner_id = ? AND client_id = ?", practitionerID, clientID).
		Order("created_at DESC").
		First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

func (s *Service) findDefault(ctx context.Context, db *gorm.DB, practitionerID snowflake.ID) (*domain.BillingSettings, error) {
	var settings domain.BillingSettings
	err := db.WithContext(ctx).
		Where("practitioner_id = ? AND client_id IS NULL AND is_default = ?", practitionerID, true).
		First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// ensureDefault creates the zero-amount practitioner default. A concurrent
// create is tolerated: whoever loses the race reads the winner's row back.
func (s *Service) ensureDefault(ctx context.Context, practitionerID snowflake.ID) (domain.BillingSettings, error) {
	now := s.clock.Now()
	created := domain.BillingSettings{
		ID:             s.genID.Generate(),
		PractitionerID: practitionerID,
		IsDefault:      true,
		Cadence:        domain.CadencePerBooking,
		Amount:         decimal.Zero,
		Currency:       "EUR",
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.findDefault(ctx, tx, practitionerID)
		if err != nil {
			return err
		}
		if existing != nil {
			created = *existing
			return nil
		}
		return tx.Create(&created).Error
	})
	if err == nil {
		return created, nil
	}

	// Lost an insert race on the partial unique index: read the winner.
	existing, findErr := s.findDefault(ctx, s.db, practitionerID)
	if findErr == nil && existing != nil {
		return *existing, nil
	}
	return domain.BillingSettings{}, err
}
