package sweeper

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	auditdomain "github.com/praxisware/praxis/internal/audit/domain"
	billdomain "github.com/praxisware/praxis/internal/bill/domain"
	billingdomain "github.com/praxisware/praxis/internal/billingsettings/domain"
	"github.com/praxisware/praxis/internal/clock"
	"github.com/praxisware/praxis/internal/notification"
	paymentdomain "github.com/praxisware/praxis/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	BillSvc    billdomain.Service
	PaymentSvc paymentdomain.Service
	AuditSvc   auditdomain.Service
	Notifier   notification.Notifier
	Config     Config `optional:"true"`
}

// Worker sends payment-request emails for scheduled bills whose send
// time has come. Claims are taken with a per-run token so concurrent
// sweepers never double-send.
type Worker struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	billSvc    billdomain.Service
	paymentSvc paymentdomain.Service
	auditSvc   auditdomain.Service
	notifier   notification.Notifier
	cfg        Config
}

func NewWorker(p Params) *Worker {
	return &Worker{
		db:         p.DB,
		log:        p.Log.Named("bill.sweeper"),
		clock:      p.Clock,
		billSvc:    p.BillSvc,
		paymentSvc: p.PaymentSvc,
		auditSvc:   p.AuditSvc,
		notifier:   p.Notifier,
		cfg:        p.Config.withDefaults(),
	}
}

func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil {
			w.log.Warn("sweeper run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce claims one batch of due bills and sends their payment emails.
// Returns how many emails went out.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	if w.db == nil || w.billSvc == nil || w.notifier == nil {
		return 0, errors.New("sweeper_unavailable")
	}

	claimed, err := w.claimDue(ctx, w.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	sent := 0
	for i := range claimed {
		if err := w.send(ctx, &claimed[i]); err != nil {
			w.log.Warn("payment email send failed",
				zap.String("bill_id", claimed[i].ID.String()),
				zap.Error(err),
			)
			w.releaseLock(ctx, claimed[i].ID)
			continue
		}
		sent++
	}
	return sent, nil
}

// claimDue stamps a batch of due, unclaimed bills with this run's claim
// token and reselects by that token. The single guarded UPDATE makes the
// claim atomic, and the token is unique per run, so two runs can never
// reselect the same rows even when their clocks coincide. Stale locks
// past the timeout are stolen.
func (w *Worker) claimDue(ctx context.Context, limit int) ([]billdomain.Bill, error) {
	now := w.clock.Now()
	stale := now.Add(-w.cfg.LockTimeout)
	token := uuid.NewString()

	err := w.db.WithContext(ctx).Exec(`
UPDATE bills SET email_locked_at = ?, email_claim_token = ?
WHERE id IN (
    SELECT id FROM bills
    WHERE status = ?
      AND cadence <> ?
      AND email_scheduled_at IS NOT NULL
      AND email_scheduled_at <= ?
      AND (email_locked_at IS NULL OR email_locked_at < ?)
    ORDER BY email_scheduled_at
    LIMIT ?
)`,
		now,
		token,
		billdomain.BillStatusScheduled,
		billingdomain.CadenceMonthly,
		now,
		stale,
		limit,
	).Error
	if err != nil {
		return nil, err
	}

	var claimed []billdomain.Bill
	err = w.db.WithContext(ctx).
		Where("email_claim_token = ? AND status = ?", token, billdomain.BillStatusScheduled).
		Find(&claimed).Error
	return claimed, err
}

func (w *Worker) send(ctx context.Context, bill *billdomain.Bill) error {
	session, err := w.paymentSvc.EnsureCheckoutSession(ctx, paymentdomain.EnsureSessionRequest{
		BookingID:      bill.BookingID,
		BillID:         bill.ID,
		PractitionerID: bill.PractitionerID,
		Amount:         bill.Total(),
		Currency:       bill.Currency,
		CustomerEmail:  bill.ClientEmail,
		Description:    "Consultation payment",
	})
	if err != nil {
		return err
	}

	err = w.notifier.Send(ctx, notification.Message{
		Kind:      notification.KindPaymentRequest,
		Recipient: bill.ClientEmail,
		Data: map[string]any{
			"booking_id":   bill.BookingID.String(),
			"amount":       bill.Total().StringFixed(2),
			"currency":     bill.Currency,
			"checkout_url": session.CheckoutURL,
		},
	})
	if err != nil {
		return err
	}

	if err := w.billSvc.MarkSent(ctx, bill.ID); err != nil {
		return err
	}

	practitionerID := bill.PractitionerID
	target := bill.ID.String()
	if err := w.auditSvc.AuditLog(ctx, &practitionerID, auditdomain.ActorTypeSystem,
		"bill.payment_email_sent", "bill", &target,
		map[string]any{"recipient": bill.ClientEmail}); err != nil {
		w.log.Warn("sweeper audit log failed", zap.Error(err))
	}
	return nil
}

// releaseLock clears the claim so the next run retries the bill.
func (w *Worker) releaseLock(ctx context.Context, billID snowflake.ID) {
	err := w.db.WithContext(ctx).Model(&billdomain.Bill{}).
		Where("id = ?", billID).
		Updates(map[string]any{"email_locked_at": nil, "email_claim_token": nil}).Error
	if err != nil {
		w.log.Error("sweeper lock release failed",
			zap.String("bill_id", billID.String()),
			zap.Error(err),
		)
	}
}
