package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/praxisware/praxis/internal/advisory"
	auditdomain "github.com/praxisware/praxis/internal/audit/domain"
	billdomain "github.com/praxisware/praxis/internal/bill/domain"
	billingdomain "github.com/praxisware/praxis/internal/billingsettings/domain"
	"github.com/praxisware/praxis/internal/booking/domain"
	calendardomain "github.com/praxisware/praxis/internal/calendar/domain"
	"github.com/praxisware/praxis/internal/clock"
	"github.com/praxisware/praxis/internal/config"
	"github.com/praxisware/praxis/internal/events"
	ledgerdomain "github.com/praxisware/praxis/internal/ledger/domain"
	"github.com/praxisware/praxis/internal/notification"
	"github.com/praxisware/praxis/internal/observability/logger"
	paymentdomain "github.com/praxisware/praxis/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Cfg         config.Config
	BillingSvc  billingdomain.Service
	BillSvc     billdomain.Service
	CalendarSvc calendardomain.Service
	PaymentSvc  paymentdomain.Service
	LedgerSvc   ledgerdomain.Service
	AuditSvc    auditdomain.Service
	Notifier    notification.Notifier
	Outbox      *events.Outbox
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	cfg         config.Config
	billingSvc  billingdomain.Service
	billSvc     billdomain.Service
	calendarSvc calendardomain.Service
	paymentSvc  paymentdomain.Service
	ledgerSvc   ledgerdomain.Service
	auditSvc    auditdomain.Service
	notifier    notification.Notifier
	outbox      *events.Outbox
}

func NewService(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("booking.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		cfg:         p.Cfg,
		billingSvc:  p.BillingSvc,
		billSvc:     p.BillSvc,
		calendarSvc: p.CalendarSvc,
		paymentSvc:  p.PaymentSvc,
		ledgerSvc:   p.LedgerSvc,
		auditSvc:    p.AuditSvc,
		notifier:    p.Notifier,
		outbox:      p.Outbox,
	}
}

func (s *Service) CreateBooking(ctx context.Context, req domain.CreateBookingRequest) (domain.CreateBookingResult, error) {
	log := logger.FromContext(ctx).Named("booking.create")

	if !req.EndsAt.After(req.StartsAt) {
		return domain.CreateBookingResult{}, domain.ErrInvalidTimeWindow
	}
	if strings.TrimSpace(req.ClientEmail) == "" {
		return domain.CreateBookingResult{}, domain.ErrMissingClientEmail
	}

	// Caller-supplied terms validate before Resolve so a rejected
	// request never lazily creates a default settings row.
	if req.Billing != nil {
		if err := req.Billing.Validate(s.cfg.CurrencySupported); err != nil {
			return domain.CreateBookingResult{}, err
		}
	}

	settings, err := s.billingSvc.Resolve(ctx, req.PractitionerID, req.ClientID)
	if err != nil {
		return domain.CreateBookingResult{}, err
	}

	terms := domain.TermsFromSettings(settings)
	if req.Billing != nil {
		terms = *req.Billing
	} else if err := terms.Validate(s.cfg.CurrencySupported); err != nil {
		return domain.CreateBookingResult{}, err
	}

	now := s.clock.Now()
	startInPast := req.StartsAt.Before(now)
	status := domain.ComputeStatus(terms.Cadence, terms.Amount, startInPast, req.SuppressEmail)

	mode := req.Mode
	if mode == "" {
		mode = domain.ModeOnline
	}
	settingID := settings.ID
	booking := domain.Booking{
		ID:               s.genID.Generate(),
		PractitionerID:   req.PractitionerID,
		ClientID:         req.ClientID,
		StartsAt:         req.StartsAt.UTC(),
		EndsAt:           req.EndsAt.UTC(),
		Status:           status,
		Mode:             mode,
		Location:         req.Location,
		SeriesID:         req.SeriesID,
		BillingSettingID: &settingID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.db.WithContext(ctx).Create(&booking).Error; err != nil {
		return domain.CreateBookingResult{}, err
	}

	var emailScheduledAt *time.Time
	if !req.SuppressEmail && terms.Cadence == billingdomain.CadencePerBooking && terms.Amount.IsPositive() {
		at := billdomain.ComputeScheduledAt(terms.LeadHours, booking.StartsAt, booking.EndsAt, now)
		emailScheduledAt = &at
	}

	bill, err := s.billSvc.CreateSnapshot(ctx, billdomain.CreateSnapshotRequest{
		BookingID:        booking.ID,
		PractitionerID:   req.PractitionerID,
		ClientID:         req.ClientID,
		ClientName:       req.ClientName,
		ClientEmail:      req.ClientEmail,
		Amount:           terms.Amount,
		Currency:         terms.Currency,
		Cadence:          terms.Cadence,
		EmailScheduledAt: emailScheduledAt,
	})
	if err != nil {
		s.deleteBooking(ctx, booking.ID)
		return domain.CreateBookingResult{}, err
	}

	advisory.Run(ctx, log, "calendar_stage", func(ctx context.Context) error {
		_, err := s.calendarSvc.Stage(ctx, calendardomain.StageRequest{
			BookingID:      booking.ID,
			PractitionerID: booking.PractitionerID,
			Title:          "Consultation with " + req.ClientName,
			ClientEmail:    req.ClientEmail,
			StartsAt:       booking.StartsAt,
			EndsAt:         booking.EndsAt,
			Amount:         terms.Amount,
			StartInPast:    startInPast,
			SuppressEmail:  req.SuppressEmail,
			LeadHours:      terms.LeadHours,
		})
		return err
	})

	result := domain.CreateBookingResult{Booking: booking, Bill: bill}

	if terms.Amount.IsZero() {
		// Nothing to collect; the bill settles on creation.
		if err := s.billSvc.MarkPaid(ctx, bill.ID); err != nil {
			s.log.Warn("zero-amount bill not marked paid", zap.Error(err))
		} else {
			result.Bill.Status = billdomain.BillStatusPaid
		}
		s.publishCreated(ctx, &result)
		return result, nil
	}

	if terms.Cadence == billingdomain.CadenceMonthly {
		// Monthly bills wait for the invoice aggregator.
		s.publishCreated(ctx, &result)
		return result, nil
	}

	result.RequiresPayment = true
	if req.SuppressEmail || !billdomain.DueNow(bill.EmailScheduledAt, now) {
		// The sweeper picks the bill up when the schedule comes due.
		s.publishCreated(ctx, &result)
		return result, nil
	}

	session, err := s.paymentSvc.EnsureCheckoutSession(ctx, paymentdomain.EnsureSessionRequest{
		BookingID:      booking.ID,
		BillID:         bill.ID,
		PractitionerID: booking.PractitionerID,
		Amount:         bill.Total(),
		Currency:       bill.Currency,
		CustomerEmail:  bill.ClientEmail,
		Description:    "Consultation on " + booking.StartsAt.Format("2006-01-02"),
	})
	if err != nil {
		s.compensate(ctx, booking.ID, bill.ID)
		return domain.CreateBookingResult{}, err
	}

	err = s.notifier.Send(ctx, notification.Message{
		Kind:      notification.KindPaymentRequest,
		Recipient: bill.ClientEmail,
		Data: map[string]any{
			"booking_id":   booking.ID.String(),
			"amount":       bill.Total().StringFixed(2),
			"currency":     bill.Currency,
			"checkout_url": session.CheckoutURL,
		},
	})
	if err != nil {
		s.compensate(ctx, booking.ID, bill.ID)
		return domain.CreateBookingResult{}, err
	}

	if err := s.billSvc.MarkSent(ctx, bill.ID); err != nil {
		s.log.Warn("bill not marked sent", zap.String("bill_id", bill.ID.String()), zap.Error(err))
	} else {
		result.Bill.Status = billdomain.BillStatusSent
	}
	result.PaymentURL = session.CheckoutURL

	advisory.Run(ctx, log, "audit_log", func(ctx context.Context) error {
		practitionerID := booking.PractitionerID
		target := bill.ID.String()
		return s.auditSvc.AuditLog(ctx, &practitionerID, auditdomain.ActorTypeSystem,
			"booking.payment_email_sent", "bill", &target,
			map[string]any{"recipient": bill.ClientEmail})
	})
	s.publishCreated(ctx, &result)
	return result, nil
}

// compensate unwinds the committed booking and bill after a later step
// failed, so no half-created booking survives. The staged calendar
// record and any open checkout session are closed too; those closures
// are best effort.
func (s *Service) compensate(ctx context.Context, bookingID, billID snowflake.ID) {
	if err := s.paymentSvc.ExpirePendingSessions(ctx, bookingID); err != nil {
		s.log.Warn("compensating session expiry failed",
			zap.String("booking_id", bookingID.String()), zap.Error(err))
	}
	if err := s.calendarSvc.CancelForBooking(ctx, bookingID); err != nil {
		s.log.Warn("compensating calendar cancel failed",
			zap.String("booking_id", bookingID.String()), zap.Error(err))
	}
	if err := s.billSvc.Delete(ctx, billID); err != nil {
		s.log.Error("compensating bill delete failed",
			zap.String("bill_id", billID.String()), zap.Error(err))
	}
	s.deleteBooking(ctx, bookingID)
}

func (s *Service) deleteBooking(ctx context.Context, bookingID snowflake.ID) {
	if err := s.db.WithContext(ctx).Where("id = ?", bookingID).Delete(&domain.Booking{}).Error; err != nil {
		s.log.Error("compensating booking delete failed",
			zap.String("booking_id", bookingID.String()), zap.Error(err))
	}
}

func (s *Service) publishCreated(ctx context.Context, result *domain.CreateBookingResult) {
	err := s.outbox.Publish(ctx, events.Event{
		PractitionerID: result.Booking.PractitionerID,
		Type:           events.EventBookingCreated,
		Payload: events.BookingPayload{
			BookingID: result.Booking.ID.String(),
			BillID:    result.Bill.ID.String(),
			Status:    string(result.Booking.Status),
		}.ToMap(),
		DedupeKey: "booking_created:" + result.Booking.ID.String(),
	})
	if err != nil {
		s.log.Warn("booking created event not recorded", zap.Error(err))
	}
}

func (s *Service) RecordManualPayment(ctx context.Context, bookingID snowflake.ID) error {
	log := logger.FromContext(ctx).Named("booking.manual_payment")

	booking, err := s.GetByID(ctx, bookingID)
	if err != nil {
		return err
	}
	bill, err := s.billSvc.FindByBookingID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, billdomain.ErrBillNotFound) {
			return domain.ErrNoBillForBooking
		}
		return err
	}

	if err := s.billSvc.MarkPaid(ctx, bill.ID); err != nil {
		return err
	}

	now := s.clock.Now()
	if booking.Status == domain.BookingStatusPending {
		next := domain.BookingStatusScheduled
		if booking.EndsAt.Before(now) {
			next = domain.BookingStatusCompleted
		}
		err := s.db.WithContext(ctx).Model(&domain.Booking{}).
			Where("id = ? AND status = ?", booking.ID, domain.BookingStatusPending).
			Updates(map[string]any{"status": next, "updated_at": now}).Error
		if err != nil {
			return err
		}
	}

	if bill.Amount.IsPositive() {
		lines := []ledgerdomain.AccountLine{
			{AccountCode: ledgerdomain.AccountCodeCashClearing, Direction: ledgerdomain.LedgerEntryDirectionDebit, Amount: bill.Total()},
			{AccountCode: ledgerdomain.AccountCodeRevenue, Direction: ledgerdomain.LedgerEntryDirectionCredit, Amount: bill.Amount},
		}
		if bill.TaxAmount.IsPositive() {
			lines = append(lines, ledgerdomain.AccountLine{
				AccountCode: ledgerdomain.AccountCodeTaxPayable,
				Direction:   ledgerdomain.LedgerEntryDirectionCredit,
				Amount:      bill.TaxAmount,
			})
		}
		err = s.ledgerSvc.CreateEntry(ctx,
			bill.PractitionerID,
			ledgerdomain.SourceTypeManualPayment,
			"manual-"+bill.ID.String(),
			bill.Currency,
			now,
			lines,
		)
		if err != nil {
			log.Warn("manual payment ledger posting failed", zap.Error(err))
		}
	}

	advisory.Run(ctx, log, "calendar_confirm", func(ctx context.Context) error {
		return s.calendarSvc.ConfirmPending(ctx, booking.ID, booking.PractitionerID, []string{bill.ClientEmail})
	})
	advisory.Run(ctx, log, "audit_log", func(ctx context.Context) error {
		practitionerID := booking.PractitionerID
		target := bill.ID.String()
		return s.auditSvc.AuditLog(ctx, &practitionerID, auditdomain.ActorTypePractitioner,
			"bill.manual_payment", "bill", &target, nil)
	})
	return nil
}

func (s *Service) GetByID(ctx context.Context, bookingID snowflake.ID) (domain.Booking, error) {
	var booking domain.Booking
	err := s.db.WithContext(ctx).Where("id = ?", bookingID).First(&booking).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Booking{}, domain.ErrBookingNotFound
	}
	if err != nil {
		return domain.Booking{}, err
	}
	return booking, nil
}
