package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/praxisware/praxis/internal/bill/domain"
	billingdomain "github.com/praxisware/praxis/internal/billingsettings/domain"
	"github.com/praxisware/praxis/internal/clock"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	BillingSvc billingdomain.Service
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	billingSvc billingdomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("bill.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		billingSvc: p.BillingSvc,
	}
}

var oneHundred = decimal.NewFromInt(100)

func (s *Service) CreateSnapshot(ctx context.Context, req domain.CreateSnapshotRequest) (domain.Bill, error) {
	taxRate := decimal.Zero
	taxAmount := decimal.Zero
	if req.Amount.IsPositive() {
		var err error
		taxRate, err = s.billingSvc.TaxRateFor(ctx, req.PractitionerID, req.ClientID)
		if err != nil {
			return domain.Bill{}, err
		}
		taxAmount = req.Amount.Mul(taxRate).Div(oneHundred).Round(2)
	}

	now := s.clock.Now()
	bill := domain.Bill{
		ID:               s.genID.Generate(),
		BookingID:        req.BookingID,
		PractitionerID:   req.PractitionerID,
		ClientID:         req.ClientID,
		ClientName:       req.ClientName,
		ClientEmail:      req.ClientEmail,
		Amount:           req.Amount,
		Currency:         req.Currency,
		TaxRatePercent:   taxRate,
		TaxAmount:        taxAmount,
		Cadence:          req.Cadence,
		Status:           initialStatus(req, now),
		EmailScheduledAt: req.EmailScheduledAt,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.db.WithContext(ctx).Create(&bill).Error; err != nil {
		return domain.Bill{}, err
	}
	return bill, nil
}

// initialStatus decides which delivery path owns the bill: scheduled
// bills belong to the async sweeper, pending ones to the synchronous
// creation-time sender.
func initialStatus(req domain.CreateSnapshotRequest, now time.Time) domain.BillStatus {
	if req.Cadence == billingdomain.CadenceMonthly {
		return domain.BillStatusScheduled
	}
	if req.Amount.IsPositive() && req.EmailScheduledAt != nil && req.EmailScheduledAt.After(now) {
		return domain.BillStatusScheduled
	}
	return domain.BillStatusPending
}

func (s *Service) MarkSent(ctx context.Context, billID snowflake.ID) error {
	return s.transition(ctx, billID, []domain.BillStatus{domain.BillStatusScheduled, domain.BillStatusPending}, domain.BillStatusSent)
}

func (s *Service) MarkPaid(ctx context.Context, billID snowflake.ID) error {
	return s.transition(ctx, billID, []domain.BillStatus{
		domain.BillStatusScheduled, domain.BillStatusPending, domain.BillStatusSent,
	}, domain.BillStatusPaid)
}

func (s *Service) transition(ctx context.Context, billID snowflake.ID, from []domain.BillStatus, to domain.BillStatus) error {
	result := s.db.WithContext(ctx).
		Model(&domain.Bill{}).
		Where("id = ? AND status IN ?", billID, from).
		Updates(map[string]any{"status": to, "updated_at": s.clock.Now()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrBillNotTransition
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, billID snowflake.ID) error {
	return s.db.WithContext(ctx).Delete(&domain.Bill{}, "id = ?", billID).Error
}

func (s *Service) FindByBookingID(ctx context.Context, bookingID snowflake.ID) (domain.Bill, error) {
	var bill domain.Bill
	err := s.db.WithContext(ctx).Where("booking_id = ?", bookingID).First(&bill).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Bill{}, domain.ErrBillNotFound
	}
	if err != nil {
		return domain.Bill{}, err
	}
	return bill, nil
}
