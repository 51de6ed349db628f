package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	billdomain "github.com/praxisware/praxis/internal/bill/domain"
	"github.com/praxisware/praxis/internal/clock"
	"github.com/praxisware/praxis/internal/events"
	"github.com/praxisware/praxis/internal/invoice/domain"
	"github.com/praxisware/praxis/internal/invoice/render"
	"github.com/praxisware/praxis/internal/observability/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Renderer render.Renderer
	Store    render.Store
	Outbox   *events.Outbox
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	renderer render.Renderer
	store    render.Store
	outbox   *events.Outbox
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("invoice.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		renderer: p.Renderer,
		store:    p.Store,
		outbox:   p.Outbox,
	}
}

func (s *Service) EnsureMonthlyDraft(ctx context.Context, practitionerID, clientID snowflake.ID, periodStart, periodEnd time.Time) (domain.Invoice, error) {
	if !periodEnd.After(periodStart) {
		return domain.Invoice{}, domain.ErrInvalidPeriod
	}
	periodStart = periodStart.UTC()
	periodEnd = periodEnd.UTC()

	var result domain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inv, err := s.findOrCreateDraft(tx, practitionerID, clientID, periodStart, periodEnd)
		if err != nil {
			return err
		}
		if inv.Status != domain.StatusDraft {
			result = *inv
			return nil
		}

		candidates, err := s.monthlyCandidates(tx, inv, periodStart, periodEnd)
		if err != nil {
			return err
		}
		if err := s.replaceMembership(tx, inv, candidates); err != nil {
			return err
		}
		if len(candidates) == 0 {
			s.log.Warn("monthly draft has no candidate bills",
				zap.String("invoice_id", inv.ID.String()),
				zap.Time("period_start", periodStart),
			)
		}

		subtotal := decimal.Zero
		tax := decimal.Zero
		var snapshot *billdomain.Bill
		for i := range candidates {
			subtotal = subtotal.Add(candidates[i].Amount)
			tax = tax.Add(candidates[i].TaxAmount)
			snapshot = &candidates[i]
		}

		updates := map[string]any{
			"subtotal":   subtotal,
			"tax_amount": tax,
			"total":      subtotal.Add(tax),
			"updated_at": s.clock.Now(),
		}
		if snapshot != nil {
			updates["client_name"] = snapshot.ClientName
			updates["client_email"] = snapshot.ClientEmail
			updates["currency"] = snapshot.Currency
		}
		if err := tx.Model(&domain.Invoice{}).Where("id = ?", inv.ID).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", inv.ID).First(&result).Error
	})
	if err != nil {
		return domain.Invoice{}, err
	}
	return result, nil
}

// findOrCreateDraft relies on the partial unique index over the pair
// and period; losing the insert race falls back to reselecting.
func (s *Service) findOrCreateDraft(tx *gorm.DB, practitionerID, clientID snowflake.ID, periodStart, periodEnd time.Time) (*domain.Invoice, error) {
	var inv domain.Invoice
	err := tx.
		Where("practitioner_id = ? AND client_id = ? AND kind = ? AND period_start = ? AND period_end = ?",
			practitionerID, clientID, domain.KindInvoice, periodStart, periodEnd).
		First(&inv).Error
	if err == nil {
		return &inv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := s.clock.Now()
	inv = domain.Invoice{
		ID:             s.genID.Generate(),
		PractitionerID: practitionerID,
		ClientID:       clientID,
		Kind:           domain.KindInvoice,
		Status:         domain.StatusDraft,
		Currency:       "",
		Subtotal:       decimal.Zero,
		TaxAmount:      decimal.Zero,
		Total:          decimal.Zero,
		PeriodStart:    &periodStart,
		PeriodEnd:      &periodEnd,
		Metadata:       datatypes.JSONMap{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := tx.Create(&inv).Error; err != nil {
		var existing domain.Invoice
		selErr := tx.
			Where("practitioner_id = ? AND client_id = ? AND kind = ? AND period_start = ? AND period_end = ?",
				practitionerID, clientID, domain.KindInvoice, periodStart, periodEnd).
			First(&existing).Error
		if selErr != nil {
			return nil, err
		}
		return &existing, nil
	}
	return &inv, nil
}

// monthlyCandidates selects the bills that belong on the draft right
// now: monthly cadence, not canceled or refunded, booking starting in
// the period, unlinked or already linked to this draft.
func (s *Service) monthlyCandidates(tx *gorm.DB, inv *domain.Invoice, periodStart, periodEnd time.Time) ([]billdomain.Bill, error) {
	var bills []billdomain.Bill
	err := tx.
		Joins("JOIN bookings ON bookings.id = bills.booking_id").
		Where("bills.practitioner_id = ? AND bills.client_id = ?", inv.PractitionerID, inv.ClientID).
		Where("bills.cadence = ?", "monthly").
		Where("bills.status NOT IN ?", []string{string(billdomain.BillStatusCanceled), string(billdomain.BillStatusRefunded)}).
		Where("bills.invoice_id IS NULL OR bills.invoice_id = ?", inv.ID).
		Where("bookings.starts_at >= ? AND bookings.starts_at < ?", periodStart, periodEnd).
		Order("bookings.starts_at ASC").
		Find(&bills).Error
	return bills, err
}

// replaceMembership makes the linked set exactly equal the candidate
// set, unlinking bills that no longer qualify.
func (s *Service) replaceMembership(tx *gorm.DB, inv *domain.Invoice, candidates []billdomain.Bill) error {
	ids := make([]snowflake.ID, 0, len(candidates))
	for _, bill := range candidates {
		ids = append(ids, bill.ID)
	}

	unlink := tx.Model(&billdomain.Bill{}).Where("invoice_id = ?", inv.ID)
	if len(ids) > 0 {
		unlink = unlink.Where("id NOT IN ?", ids)
	}
	if err := unlink.Update("invoice_id", nil).Error; err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	return tx.Model(&billdomain.Bill{}).
		Where("id IN ?", ids).
		Update("invoice_id", inv.ID).Error
}

func (s *Service) Issue(ctx context.Context, invoiceID snowflake.ID) (domain.Invoice, error) {
	var issued domain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var inv domain.Invoice
		if err := tx.Where("id = ?", invoiceID).First(&inv).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrInvoiceNotFound
			}
			return err
		}
		if inv.Status != domain.StatusDraft {
			return domain.ErrInvoiceNotDraft
		}

		now := s.clock.Now()
		series := fmt.Sprintf("%d", now.UTC().Year())
		number, err := s.nextNumber(tx, inv.PractitionerID, series)
		if err != nil {
			return err
		}

		res := tx.Model(&domain.Invoice{}).
			Where("id = ? AND status = ?", inv.ID, domain.StatusDraft).
			Updates(map[string]any{
				"status":     domain.StatusIssued,
				"series":     series,
				"number":     number,
				"issued_at":  now,
				"updated_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrInvalidTransition
		}
		return tx.Where("id = ?", inv.ID).First(&issued).Error
	})
	if err != nil {
		return domain.Invoice{}, err
	}

	s.renderDocument(ctx, issued)
	s.publishIssued(ctx, issued)
	return issued, nil
}

func (s *Service) EnsurePerBookingInvoice(ctx context.Context, billID snowflake.ID) (domain.Invoice, error) {
	var result domain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var bill billdomain.Bill
		if err := tx.Where("id = ?", billID).First(&bill).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrBillNotFound
			}
			return err
		}
		if bill.InvoiceID != nil {
			return tx.Where("id = ?", *bill.InvoiceID).First(&result).Error
		}
		if bill.Status != billdomain.BillStatusPaid {
			return domain.ErrBillNotLinkable
		}

		now := s.clock.Now()
		series := fmt.Sprintf("%d", now.UTC().Year())
		number, err := s.nextNumber(tx, bill.PractitionerID, series)
		if err != nil {
			return err
		}

		inv := domain.Invoice{
			ID:             s.genID.Generate(),
			PractitionerID: bill.PractitionerID,
			ClientID:       bill.ClientID,
			Kind:           domain.KindInvoice,
			Status:         domain.StatusPaid,
			ClientName:     bill.ClientName,
			ClientEmail:    bill.ClientEmail,
			Currency:       bill.Currency,
			Subtotal:       bill.Amount,
			TaxAmount:      bill.TaxAmount,
			Total:          bill.Total(),
			Series:         series,
			Number:         &number,
			Metadata:       datatypes.JSONMap{"bill_id": bill.ID.String()},
			IssuedAt:       &now,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.Create(&inv).Error; err != nil {
			return err
		}
		if err := tx.Model(&billdomain.Bill{}).
			Where("id = ? AND invoice_id IS NULL", bill.ID).
			Update("invoice_id", inv.ID).Error; err != nil {
			return err
		}
		result = inv
		return nil
	})
	if err != nil {
		return domain.Invoice{}, err
	}

	s.renderDocument(ctx, result)
	return result, nil
}

func (s *Service) CreateCreditNote(ctx context.Context, originalInvoiceID snowflake.ID, amount decimal.Decimal, currency string, reason string) (domain.Invoice, error) {
	var note domain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var original domain.Invoice
		if err := tx.Where("id = ?", originalInvoiceID).First(&original).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrInvoiceNotFound
			}
			return err
		}

		now := s.clock.Now()
		series := fmt.Sprintf("CN-%d", now.UTC().Year())
		number, err := s.nextNumber(tx, original.PractitionerID, series)
		if err != nil {
			return err
		}

		metadata := datatypes.JSONMap{"rectifies": original.ID.String()}
		if strings.TrimSpace(reason) != "" {
			metadata["reason"] = reason
		}

		note = domain.Invoice{
			ID:                 s.genID.Generate(),
			PractitionerID:     original.PractitionerID,
			ClientID:           original.ClientID,
			Kind:               domain.KindCreditNote,
			Status:             domain.StatusIssued,
			ClientName:         original.ClientName,
			ClientEmail:        original.ClientEmail,
			Currency:           strings.ToLower(currency),
			Subtotal:           amount,
			TaxAmount:          decimal.Zero,
			Total:              amount,
			Series:             series,
			Number:             &number,
			RectifiesInvoiceID: &original.ID,
			Metadata:           metadata,
			IssuedAt:           &now,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		return tx.Create(&note).Error
	})
	if err != nil {
		return domain.Invoice{}, err
	}

	s.renderDocument(ctx, note)
	return note, nil
}

func (s *Service) MarkRefunded(ctx context.Context, invoiceID snowflake.ID) error {
	res := s.db.WithContext(ctx).Model(&domain.Invoice{}).
		Where("id = ? AND status IN ?", invoiceID, []string{string(domain.StatusIssued), string(domain.StatusPaid)}).
		Updates(map[string]any{
			"status":     domain.StatusRefunded,
			"updated_at": s.clock.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrInvalidTransition
	}
	return nil
}

func (s *Service) GetByID(ctx context.Context, invoiceID snowflake.ID) (domain.Invoice, error) {
	var inv domain.Invoice
	err := s.db.WithContext(ctx).Where("id = ?", invoiceID).First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Invoice{}, domain.ErrInvoiceNotFound
	}
	if err != nil {
		return domain.Invoice{}, err
	}
	return inv, nil
}

// nextNumber hands out the next monotonic number for the practitioner
// and series. The unique index over (practitioner, series, number)
// backstops concurrent issuance.
func (s *Service) nextNumber(tx *gorm.DB, practitionerID snowflake.ID, series string) (int64, error) {
	var max int64
	err := tx.Model(&domain.Invoice{}).
		Where("practitioner_id = ? AND series = ?", practitionerID, series).
		Select("COALESCE(MAX(number), 0)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}

// renderDocument produces the printable HTML for the PDF pipeline.
// Rendering never blocks issuance.
func (s *Service) renderDocument(ctx context.Context, inv domain.Invoice) {
	log := logger.FromContext(ctx).Named("invoice.render")
	html, err := s.renderer.RenderHTML(render.InputFromInvoice(inv))
	if err != nil {
		log.Warn("invoice render failed", zap.String("invoice_id", inv.ID.String()), zap.Error(err))
		return
	}
	if err := s.store.Save(ctx, inv.ID.String(), html); err != nil {
		log.Warn("invoice document store failed", zap.String("invoice_id", inv.ID.String()), zap.Error(err))
	}
}

func (s *Service) publishIssued(ctx context.Context, inv domain.Invoice) {
	err := s.outbox.Publish(ctx, events.Event{
		PractitionerID: inv.PractitionerID,
		Type:           events.EventInvoiceIssued,
		Payload: map[string]any{
			"invoice_id": inv.ID.String(),
			"number":     inv.DisplayNumber(),
			"total":      inv.Total.StringFixed(2),
			"currency":   inv.Currency,
		},
		DedupeKey: "invoice_issued:" + inv.ID.String(),
	})
	if err != nil {
		s.log.Warn("invoice issued event not recorded", zap.Error(err))
	}
}
