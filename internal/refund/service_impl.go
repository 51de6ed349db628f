package refund

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/praxisware/praxis/internal/advisory"
	auditdomain "github.com/praxisware/praxis/internal/audit/domain"
	billdomain "github.com/praxisware/praxis/internal/bill/domain"
	bookingdomain "github.com/praxisware/praxis/internal/booking/domain"
	calendardomain "github.com/praxisware/praxis/internal/calendar/domain"
	"github.com/praxisware/praxis/internal/clock"
	"github.com/praxisware/praxis/internal/events"
	invoicedomain "github.com/praxisware/praxis/internal/invoice/domain"
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
	Clock       clock.Clock
	PaymentSvc  paymentdomain.Service
	CalendarSvc calendardomain.Service
	InvoiceSvc  invoicedomain.Service
	LedgerSvc   ledgerdomain.Service
	AuditSvc    auditdomain.Service
	Notifier    notification.Notifier
	Outbox      *events.Outbox
}

type coordinator struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	paymentSvc  paymentdomain.Service
	calendarSvc calendardomain.Service
	invoiceSvc  invoicedomain.Service
	ledgerSvc   ledgerdomain.Service
	auditSvc    auditdomain.Service
	notifier    notification.Notifier
	outbox      *events.Outbox
}

func NewCoordinator(p Params) Coordinator {
	return &coordinator{
		db:          p.DB,
		log:         p.Log.Named("refund.service"),
		clock:       p.Clock,
		paymentSvc:  p.PaymentSvc,
		calendarSvc: p.CalendarSvc,
		invoiceSvc:  p.InvoiceSvc,
		ledgerSvc:   p.LedgerSvc,
		auditSvc:    p.AuditSvc,
		notifier:    p.Notifier,
		outbox:      p.Outbox,
	}
}

func (c *coordinator) Cancel(ctx context.Context, bookingID snowflake.ID) error {
	log := logger.FromContext(ctx).Named("refund.cancel")

	booking, err := c.loadBooking(ctx, bookingID)
	if err != nil {
		return err
	}

	advisory.Run(ctx, log, "expire_sessions", func(ctx context.Context) error {
		return c.paymentSvc.ExpirePendingSessions(ctx, bookingID)
	})

	now := c.clock.Now()
	err = c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&bookingdomain.Booking{}).
			Where("id = ? AND status <> ?", bookingID, bookingdomain.BookingStatusCanceled).
			Updates(map[string]any{"status": bookingdomain.BookingStatusCanceled, "updated_at": now}).Error
		if err != nil {
			return err
		}

		// Paid bills survive a cancellation; money moves only through
		// an explicit refund. Refunded bills keep their terminal state.
		untouchable := []string{
			string(billdomain.BillStatusPaid),
			string(billdomain.BillStatusCanceled),
			string(billdomain.BillStatusRefunded),
		}
		return tx.Model(&billdomain.Bill{}).
			Where("booking_id = ? AND status NOT IN ?", bookingID, untouchable).
			Updates(map[string]any{"status": billdomain.BillStatusCanceled, "updated_at": now}).Error
	})
	if err != nil {
		return err
	}

	advisory.Run(ctx, log, "calendar_cancel", func(ctx context.Context) error {
		return c.calendarSvc.CancelForBooking(ctx, bookingID)
	})
	advisory.Run(ctx, log, "cancellation_email", func(ctx context.Context) error {
		var bill billdomain.Bill
		err := c.db.WithContext(ctx).Where("booking_id = ?", bookingID).First(&bill).Error
		if err != nil {
			return err
		}
		return c.notifier.Send(ctx, notification.Message{
			Kind:      notification.KindCancellation,
			Recipient: bill.ClientEmail,
			Data:      map[string]any{"booking_id": bookingID.String()},
		})
	})
	advisory.Run(ctx, log, "analytics_event", func(ctx context.Context) error {
		return c.outbox.Publish(ctx, events.Event{
			PractitionerID: booking.PractitionerID,
			Type:           events.EventBookingCanceled,
			Payload:        events.BookingPayload{BookingID: bookingID.String()}.ToMap(),
			DedupeKey:      "booking_canceled:" + bookingID.String(),
		})
	})
	advisory.Run(ctx, log, "audit_log", func(ctx context.Context) error {
		practitionerID := booking.PractitionerID
		target := bookingID.String()
		return c.auditSvc.AuditLog(ctx, &practitionerID, auditdomain.ActorTypePractitioner,
			"booking.canceled", "booking", &target, nil)
	})
	return nil
}

func (c *coordinator) Refund(ctx context.Context, bookingID snowflake.ID, reason string) error {
	log := logger.FromContext(ctx).Named("refund.refund")

	booking, err := c.loadBooking(ctx, bookingID)
	if err != nil {
		return err
	}

	var bill billdomain.Bill
	err = c.db.WithContext(ctx).Where("booking_id = ?", bookingID).First(&bill).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNoPaidBill
	}
	if err != nil {
		return err
	}
	switch bill.Status {
	case billdomain.BillStatusPaid:
	case billdomain.BillStatusRefunded:
		return ErrBillAlreadyRefunded
	default:
		return ErrNoPaidBill
	}

	// Payments that never touched the provider (manual settlement) get
	// a synthetic refund reference instead of a provider call.
	refundID := "manual-" + bill.ID.String()
	session, err := c.paymentSvc.CompletedSession(ctx, bookingID)
	if err != nil && !errors.Is(err, paymentdomain.ErrSessionNotFound) {
		return err
	}
	if session != nil {
		providerRefundID, err := c.paymentSvc.RefundSession(ctx, session)
		if err != nil && !errors.Is(err, paymentdomain.ErrMissingIntent) {
			return err
		}
		if providerRefundID != "" {
			refundID = providerRefundID
		}
	}

	now := c.clock.Now()
	res := c.db.WithContext(ctx).Model(&billdomain.Bill{}).
		Where("id = ? AND status = ?", bill.ID, billdomain.BillStatusPaid).
		Updates(map[string]any{"status": billdomain.BillStatusRefunded, "updated_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrBillAlreadyRefunded
	}

	if bill.InvoiceID != nil {
		if err := c.invoiceSvc.MarkRefunded(ctx, *bill.InvoiceID); err != nil {
			log.Warn("linked invoice not marked refunded",
				zap.String("invoice_id", bill.InvoiceID.String()), zap.Error(err))
		}
		_, err := c.invoiceSvc.CreateCreditNote(ctx, *bill.InvoiceID, bill.Total(), bill.Currency, reason)
		if err != nil {
			log.Warn("credit note not created",
				zap.String("invoice_id", bill.InvoiceID.String()), zap.Error(err))
		}
	}

	if bill.Amount.IsPositive() {
		lines := []ledgerdomain.AccountLine{
			{AccountCode: ledgerdomain.AccountCodeRevenue, Direction: ledgerdomain.LedgerEntryDirectionDebit, Amount: bill.Amount},
			{AccountCode: ledgerdomain.AccountCodeCashClearing, Direction: ledgerdomain.LedgerEntryDirectionCredit, Amount: bill.Total()},
		}
		if bill.TaxAmount.IsPositive() {
			lines = append(lines, ledgerdomain.AccountLine{
				AccountCode: ledgerdomain.AccountCodeTaxPayable,
				Direction:   ledgerdomain.LedgerEntryDirectionDebit,
				Amount:      bill.TaxAmount,
			})
		}
		err = c.ledgerSvc.CreateEntry(ctx,
			bill.PractitionerID,
			ledgerdomain.SourceTypeRefund,
			refundID,
			bill.Currency,
			now,
			lines,
		)
		if err != nil {
			log.Warn("refund ledger posting failed", zap.Error(err))
		}
	}

	advisory.Run(ctx, log, "refund_email", func(ctx context.Context) error {
		return c.notifier.Send(ctx, notification.Message{
			Kind:      notification.KindRefund,
			Recipient: bill.ClientEmail,
			Data: map[string]any{
				"booking_id": bookingID.String(),
				"amount":     bill.Total().StringFixed(2),
				"currency":   bill.Currency,
			},
		})
	})
	advisory.Run(ctx, log, "analytics_event", func(ctx context.Context) error {
		return c.outbox.Publish(ctx, events.Event{
			PractitionerID: booking.PractitionerID,
			Type:           events.EventRefundSettled,
			Payload: events.PaymentPayload{
				BookingID: bookingID.String(),
				Amount:    bill.Total().StringFixed(2),
				Currency:  bill.Currency,
			}.ToMap(),
			DedupeKey: "refund:" + refundID,
		})
	})
	advisory.Run(ctx, log, "audit_log", func(ctx context.Context) error {
		practitionerID := booking.PractitionerID
		target := bill.ID.String()
		return c.auditSvc.AuditLog(ctx, &practitionerID, auditdomain.ActorTypePractitioner,
			"bill.refunded", "bill", &target,
			map[string]any{"refund_id": refundID, "reason": reason})
	})
	return nil
}

func (c *coordinator) loadBooking(ctx context.Context, bookingID snowflake.ID) (bookingdomain.Booking, error) {
	var booking bookingdomain.Booking
	err := c.db.WithContext(ctx).Where("id = ?", bookingID).First(&booking).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return bookingdomain.Booking{}, bookingdomain.ErrBookingNotFound
	}
	if err != nil {
		return bookingdomain.Booking{}, err
	}
	return booking, nil
}
