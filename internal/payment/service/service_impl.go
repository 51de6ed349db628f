package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/praxisware/praxis/internal/advisory"
	auditdomain "github.com/praxisware/praxis/internal/audit/domain"
	billdomain "github.com/praxisware/praxis/internal/bill/domain"
	billingdomain "github.com/praxisware/praxis/internal/billingsettings/domain"
	bookingdomain "github.com/praxisware/praxis/internal/booking/domain"
	calendardomain "github.com/praxisware/praxis/internal/calendar/domain"
	"github.com/praxisware/praxis/internal/clock"
	"github.com/praxisware/praxis/internal/events"
	invoicedomain "github.com/praxisware/praxis/internal/invoice/domain"
	ledgerdomain "github.com/praxisware/praxis/internal/ledger/domain"
	"github.com/praxisware/praxis/internal/notification"
	"github.com/praxisware/praxis/internal/observability/logger"
	"github.com/praxisware/praxis/internal/payment/domain"
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
	Processor   domain.Processor
	LedgerSvc   ledgerdomain.Service
	AuditSvc    auditdomain.Service
	CalendarSvc calendardomain.Service
	InvoiceSvc  invoicedomain.Service
	Notifier    notification.Notifier
	Outbox      *events.Outbox
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	processor   domain.Processor
	ledgerSvc   ledgerdomain.Service
	auditSvc    auditdomain.Service
	calendarSvc calendardomain.Service
	invoiceSvc  invoicedomain.Service
	notifier    notification.Notifier
	outbox      *events.Outbox
}

func NewService(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("payment.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		processor:   p.Processor,
		ledgerSvc:   p.LedgerSvc,
		auditSvc:    p.AuditSvc,
		calendarSvc: p.CalendarSvc,
		invoiceSvc:  p.InvoiceSvc,
		notifier:    p.Notifier,
		outbox:      p.Outbox,
	}
}

func (s *Service) EnsureCheckoutSession(ctx context.Context, req domain.EnsureSessionRequest) (*domain.PaymentSession, error) {
	var existing domain.PaymentSession
	err := s.db.WithContext(ctx).
		Where("booking_id = ? AND status = ?", req.BookingID, domain.SessionStatusPending).
		First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	created, err := s.processor.CreateCheckoutSession(ctx, domain.CheckoutParams{
		BookingID:      req.BookingID,
		BillID:         req.BillID,
		PractitionerID: req.PractitionerID,
		Amount:         req.Amount,
		Currency:       req.Currency,
		CustomerEmail:  req.CustomerEmail,
		Description:    req.Description,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}

	now := s.clock.Now()
	bookingID := req.BookingID
	session := domain.PaymentSession{
		ID:                s.genID.Generate(),
		BookingID:         &bookingID,
		ExternalSessionID: created.SessionID,
		CheckoutURL:       created.CheckoutURL,
		Amount:            req.Amount,
		Currency:          req.Currency,
		Status:            domain.SessionStatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.db.WithContext(ctx).Create(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) error {
	log := logger.FromContext(ctx).Named("payment.webhook")

	event, err := s.processor.ParseWebhook(payload, signatureHeader)
	if err != nil {
		if errors.Is(err, domain.ErrEventIgnored) {
			return nil
		}
		return err
	}

	now := s.clock.Now()
	var bill billdomain.Bill
	alreadyProcessed := false

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		settled, err := s.settleSession(tx, event, now)
		if err != nil {
			return err
		}
		if !settled {
			alreadyProcessed = true
			return nil
		}

		if err := tx.Where("id = ?", event.BillID).First(&bill).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return billdomain.ErrBillNotFound
			}
			return err
		}

		if err := s.confirmBooking(tx, event.BookingID, now); err != nil {
			return err
		}
		if err := s.markBillPaid(tx, &bill, now); err != nil {
			return err
		}
		return s.postSettlement(tx, &bill, event, now)
	})
	if err != nil {
		return err
	}
	if alreadyProcessed {
		log.Info("webhook replay ignored",
			zap.String("session_id", event.SessionID),
			zap.String("event_id", event.ProviderEventID),
		)
		return nil
	}

	s.runFollowUps(ctx, &bill, event)
	return nil
}

// settleSession flips the session pending to completed. A second
// delivery of the same event loses the guarded update and reports the
// replay. A session the provider knows but we do not is recreated from
// the event so reconciliation still proceeds.
func (s *Service) settleSession(tx *gorm.DB, event *domain.WebhookEvent, now time.Time) (bool, error) {
	updates := map[string]any{
		"status":       domain.SessionStatusCompleted,
		"completed_at": now,
		"updated_at":   now,
	}
	if event.PaymentIntentID != "" {
		updates["payment_intent_id"] = event.PaymentIntentID
	}

	res := tx.Model(&domain.PaymentSession{}).
		Where("external_session_id = ? AND status = ?", event.SessionID, domain.SessionStatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	var existing domain.PaymentSession
	err := tx.Where("external_session_id = ?", event.SessionID).First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	bookingID := event.BookingID
	intent := event.PaymentIntentID
	session := domain.PaymentSession{
		ID:                s.genID.Generate(),
		BookingID:         &bookingID,
		ExternalSessionID: event.SessionID,
		Currency:          "",
		Status:            domain.SessionStatusCompleted,
		CompletedAt:       &now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if intent != "" {
		session.PaymentIntentID = &intent
	}
	return true, tx.Create(&session).Error
}

// confirmBooking moves a payment-gated booking out of pending. A slot
// that already ended settles directly as completed.
func (s *Service) confirmBooking(tx *gorm.DB, bookingID snowflake.ID, now time.Time) error {
	var booking bookingdomain.Booking
	if err := tx.Where("id = ?", bookingID).First(&booking).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return bookingdomain.ErrBookingNotFound
		}
		return err
	}
	if booking.Status != bookingdomain.BookingStatusPending {
		return nil
	}

	next := bookingdomain.BookingStatusScheduled
	if booking.EndsAt.Before(now) {
		next = bookingdomain.BookingStatusCompleted
	}
	return tx.Model(&bookingdomain.Booking{}).
		Where("id = ? AND status = ?", booking.ID, bookingdomain.BookingStatusPending).
		Updates(map[string]any{"status": next, "updated_at": now}).Error
}

func (s *Service) markBillPaid(tx *gorm.DB, bill *billdomain.Bill, now time.Time) error {
	payable := []string{
		string(billdomain.BillStatusScheduled),
		string(billdomain.BillStatusPending),
		string(billdomain.BillStatusSent),
	}
	res := tx.Model(&billdomain.Bill{}).
		Where("id = ? AND status IN ?", bill.ID, payable).
		Updates(map[string]any{"status": billdomain.BillStatusPaid, "updated_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 && bill.Status != billdomain.BillStatusPaid {
		return billdomain.ErrBillNotTransition
	}
	bill.Status = billdomain.BillStatusPaid
	return nil
}

// postSettlement records the double-entry posting in the same
// transaction as the status changes.
func (s *Service) postSettlement(tx *gorm.DB, bill *billdomain.Bill, event *domain.WebhookEvent, now time.Time) error {
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
	return s.ledgerSvc.CreateEntryInTx(tx,
		bill.PractitionerID,
		ledgerdomain.SourceTypePaymentSession,
		event.SessionID,
		bill.Currency,
		now,
		lines,
	)
}

// runFollowUps performs the non-authoritative work after the settlement
// committed. Failures log and never surface to the provider.
func (s *Service) runFollowUps(ctx context.Context, bill *billdomain.Bill, event *domain.WebhookEvent) {
	log := logger.FromContext(ctx).Named("payment.webhook")

	advisory.Run(ctx, log, "receipt_email", func(ctx context.Context) error {
		return s.notifier.Send(ctx, notification.Message{
			Kind:      notification.KindReceipt,
			Recipient: bill.ClientEmail,
			Data: map[string]any{
				"booking_id": event.BookingID.String(),
				"amount":     bill.Total().StringFixed(2),
				"currency":   bill.Currency,
			},
		})
	})
	advisory.Run(ctx, log, "analytics_event", func(ctx context.Context) error {
		return s.outbox.Publish(ctx, events.Event{
			PractitionerID: bill.PractitionerID,
			Type:           events.EventPaymentSettled,
			Payload: events.PaymentPayload{
				BookingID: event.BookingID.String(),
				SessionID: event.SessionID,
				Amount:    bill.Total().StringFixed(2),
				Currency:  bill.Currency,
			}.ToMap(),
			DedupeKey: "payment:" + event.SessionID,
		})
	})
	advisory.Run(ctx, log, "calendar_confirm", func(ctx context.Context) error {
		return s.calendarSvc.ConfirmPending(ctx, event.BookingID, bill.PractitionerID, []string{bill.ClientEmail})
	})
	if bill.Cadence == billingdomain.CadencePerBooking {
		advisory.Run(ctx, log, "booking_invoice", func(ctx context.Context) error {
			_, err := s.invoiceSvc.EnsurePerBookingInvoice(ctx, bill.ID)
			return err
		})
	}
	advisory.Run(ctx, log, "audit_log", func(ctx context.Context) error {
		practitionerID := bill.PractitionerID
		target := event.SessionID
		return s.auditSvc.AuditLog(ctx, &practitionerID, auditdomain.ActorTypeWebhook,
			"payment.settled", "payment_session", &target,
			map[string]any{
				"booking_id": event.BookingID.String(),
				"bill_id":    bill.ID.String(),
				"amount":     bill.Total().StringFixed(2),
			})
	})
}

func (s *Service) ExpirePendingSessions(ctx context.Context, bookingID snowflake.ID) error {
	var sessions []domain.PaymentSession
	err := s.db.WithContext(ctx).
		Where("booking_id = ? AND status = ?", bookingID, domain.SessionStatusPending).
		Find(&sessions).Error
	if err != nil {
		return err
	}

	now := s.clock.Now()
	for _, session := range sessions {
		if err := s.processor.ExpireSession(ctx, session.ExternalSessionID); err != nil {
			s.log.Warn("provider session expire failed",
				zap.String("session_id", session.ExternalSessionID),
				zap.Error(err),
			)
		}
		err := s.db.WithContext(ctx).Model(&domain.PaymentSession{}).
			Where("id = ? AND status = ?", session.ID, domain.SessionStatusPending).
			Updates(map[string]any{"status": domain.SessionStatusCancelled, "updated_at": now}).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) CompletedSession(ctx context.Context, bookingID snowflake.ID) (*domain.PaymentSession, error) {
	var session domain.PaymentSession
	err := s.db.WithContext(ctx).
		Where("booking_id = ? AND status = ?", bookingID, domain.SessionStatusCompleted).
		Order("completed_at DESC").
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *Service) RefundSession(ctx context.Context, session *domain.PaymentSession) (string, error) {
	if session == nil {
		return "", domain.ErrSessionNotFound
	}
	if session.PaymentIntentID == nil || *session.PaymentIntentID == "" {
		return "", domain.ErrMissingIntent
	}

	refundID, err := s.processor.Refund(ctx, *session.PaymentIntentID, session.Amount, session.Currency)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}

	err = s.db.WithContext(ctx).Model(&domain.PaymentSession{}).
		Where("id = ? AND status = ?", session.ID, domain.SessionStatusCompleted).
		Updates(map[string]any{"status": domain.SessionStatusRefunded, "updated_at": s.clock.Now()}).Error
	if err != nil {
		return "", err
	}
	return refundID, nil
}
