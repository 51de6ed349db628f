package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/praxisware/praxis/internal/audit/domain"
	billdomain "github.com/praxisware/praxis/internal/bill/domain"
	billservice "github.com/praxisware/praxis/internal/bill/service"
	billingdomain "github.com/praxisware/praxis/internal/billingsettings/domain"
	billingservice "github.com/praxisware/praxis/internal/billingsettings/service"
	"github.com/praxisware/praxis/internal/booking/domain"
	calendardomain "github.com/praxisware/praxis/internal/calendar/domain"
	"github.com/praxisware/praxis/internal/clock"
	"github.com/praxisware/praxis/internal/config"
	"github.com/praxisware/praxis/internal/events"
	ledgerdomain "github.com/praxisware/praxis/internal/ledger/domain"
	"github.com/praxisware/praxis/internal/notification"
	paymentdomain "github.com/praxisware/praxis/internal/payment/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fakeCalendar struct {
	staged    []calendardomain.StageRequest
	confirmed []snowflake.ID
	canceled  []snowflake.ID
}

func (f *fakeCalendar) Stage(_ context.Context, req calendardomain.StageRequest) (*calendardomain.CalendarEvent, error) {
	f.staged = append(f.staged, req)
	return nil, nil
}

func (f *fakeCalendar) ConfirmPending(_ context.Context, bookingID, _ snowflake.ID, _ []string) error {
	f.confirmed = append(f.confirmed, bookingID)
	return nil
}

func (f *fakeCalendar) CancelForBooking(_ context.Context, bookingID snowflake.ID) error {
	f.canceled = append(f.canceled, bookingID)
	return nil
}

type fakePayment struct {
	sessions int
	expired  []snowflake.ID
	err      error
}

func (f *fakePayment) EnsureCheckoutSession(_ context.Context, req paymentdomain.EnsureSessionRequest) (*paymentdomain.PaymentSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sessions++
	bookingID := req.BookingID
	return &paymentdomain.PaymentSession{
		ID:                snowflake.ID(9000 + int64(f.sessions)),
		BookingID:         &bookingID,
		ExternalSessionID: "cs_test_1",
		CheckoutURL:       "https://pay.example/cs_test_1",
		Amount:            req.Amount,
		Currency:          req.Currency,
		Status:            paymentdomain.SessionStatusPending,
	}, nil
}

func (f *fakePayment) HandleWebhook(context.Context, []byte, string) error { return nil }

func (f *fakePayment) ExpirePendingSessions(_ context.Context, bookingID snowflake.ID) error {
	f.expired = append(f.expired, bookingID)
	return nil
}

func (f *fakePayment) CompletedSession(context.Context, snowflake.ID) (*paymentdomain.PaymentSession, error) {
	return nil, paymentdomain.ErrSessionNotFound
}

func (f *fakePayment) RefundSession(context.Context, *paymentdomain.PaymentSession) (string, error) {
	return "", paymentdomain.ErrSessionNotFound
}

type fakeNotifier struct {
	messages []notification.Message
	err      error
}

func (f *fakeNotifier) Send(_ context.Context, msg notification.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msg)
	return nil
}

type fakeLedger struct {
	entries int
}

func (f *fakeLedger) CreateEntry(context.Context, snowflake.ID, string, string, string, time.Time, []ledgerdomain.AccountLine) error {
	f.entries++
	return nil
}

func (f *fakeLedger) CreateEntryInTx(*gorm.DB, snowflake.ID, string, string, string, time.Time, []ledgerdomain.AccountLine) error {
	f.entries++
	return nil
}

type fakeAudit struct {
	actions []string
}

func (f *fakeAudit) AuditLog(_ context.Context, _ *snowflake.ID, _ auditdomain.ActorType, action string, _ string, _ *string, _ map[string]any) error {
	f.actions = append(f.actions, action)
	return nil
}

type orchestratorEnv struct {
	svc      domain.Service
	db       *gorm.DB
	calendar *fakeCalendar
	payment  *fakePayment
	notifier *fakeNotifier
	ledger   *fakeLedger
	audit    *fakeAudit
	now      time.Time
}

func newOrchestrator(t *testing.T) *orchestratorEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(&domain.Booking{}, &billdomain.Bill{}, &billingdomain.BillingSettings{})
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	err = db.Exec(`CREATE TABLE analytics_events (
		id INTEGER PRIMARY KEY,
		practitioner_id INTEGER NOT NULL,
		event_type TEXT NOT NULL,
		payload TEXT,
		dedupe_key TEXT,
		published BOOLEAN NOT NULL DEFAULT FALSE,
		created_at DATETIME
	)`).Error
	if err != nil {
		t.Fatalf("analytics table: %v", err)
	}
	err = db.Exec(`CREATE UNIQUE INDEX ux_analytics_events_dedupe ON analytics_events (practitioner_id, dedupe_key)`).Error
	if err != nil {
		t.Fatalf("analytics index: %v", err)
	}

	node, err := snowflake.NewNode(2)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	fixed := clock.Fixed{At: now}
	log := zap.NewNop()

	billingSvc := billingservice.NewService(billingservice.Params{
		DB: db, Log: log, GenID: node, Clock: fixed,
	})
	billSvc := billservice.NewService(billservice.Params{
		DB: db, Log: log, GenID: node, Clock: fixed, BillingSvc: billingSvc,
	})

	env := &orchestratorEnv{
		db:       db,
		calendar: &fakeCalendar{},
		payment:  &fakePayment{},
		notifier: &fakeNotifier{},
		ledger:   &fakeLedger{},
		audit:    &fakeAudit{},
		now:      now,
	}
	env.svc = NewService(Params{
		DB:          db,
		Log:         log,
		GenID:       node,
		Clock:       fixed,
		Cfg:         config.Config{SupportedCurrencies: []string{"EUR"}},
		BillingSvc:  billingSvc,
		BillSvc:     billSvc,
		CalendarSvc: env.calendar,
		PaymentSvc:  env.payment,
		LedgerSvc:   env.ledger,
		AuditSvc:    env.audit,
		Notifier:    env.notifier,
		Outbox:      events.NewOutbox(db, node),
	})
	return env
}

func (e *orchestratorEnv) request(amount string, opts func(*domain.CreateBookingRequest)) domain.CreateBookingRequest {
	lead := 0
	req := domain.CreateBookingRequest{
		PractitionerID: snowflake.ID(11),
		ClientID:       snowflake.ID(22),
		ClientName:     "Ana Client",
		ClientEmail:    "ana@example.com",
		StartsAt:       e.now.Add(48 * time.Hour),
		EndsAt:         e.now.Add(49 * time.Hour),
		Billing: &domain.BillingTerms{
			Cadence:   billingdomain.CadencePerBooking,
			Amount:    decimal.RequireFromString(amount),
			Currency:  "EUR",
			LeadHours: &lead,
		},
	}
	if opts != nil {
		opts(&req)
	}
	return req
}

func TestCreateBookingSendsPaymentEmail(t *testing.T) {
	env := newOrchestrator(t)

	result, err := env.svc.CreateBooking(context.Background(), env.request("50.00", nil))
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}

	if result.Booking.Status != domain.BookingStatusPending {
		t.Fatalf("booking status = %s, want pending", result.Booking.Status)
	}
	if !result.RequiresPayment {
		t.Fatal("expected RequiresPayment")
	}
	if result.PaymentURL != "https://pay.example/cs_test_1" {
		t.Fatalf("payment url = %q", result.PaymentURL)
	}
	if result.Bill.Status != billdomain.BillStatusSent {
		t.Fatalf("bill status = %s, want sent", result.Bill.Status)
	}
	if len(env.notifier.messages) != 1 || env.notifier.messages[0].Kind != notification.KindPaymentRequest {
		t.Fatalf("notifications = %+v", env.notifier.messages)
	}
	if len(env.calendar.staged) != 1 {
		t.Fatalf("calendar stagings = %d, want 1", len(env.calendar.staged))
	}
}

func TestCreateBookingCompensatesOnSendFailure(t *testing.T) {
	env := newOrchestrator(t)
	env.notifier.err = errors.New("smtp down")

	_, err := env.svc.CreateBooking(context.Background(), env.request("50.00", nil))
	if err == nil {
		t.Fatal("expected error from failed send")
	}

	var bookings, bills int64
	env.db.Model(&domain.Booking{}).Count(&bookings)
	env.db.Model(&billdomain.Bill{}).Count(&bills)
	if bookings != 0 || bills != 0 {
		t.Fatalf("compensation left bookings=%d bills=%d, want 0/0", bookings, bills)
	}

	// The session opened for the failed email and the staged calendar
	// record are closed, not left dangling against a deleted booking.
	if len(env.payment.expired) != 1 {
		t.Fatalf("session expirations = %d, want 1", len(env.payment.expired))
	}
	if len(env.calendar.canceled) != 1 {
		t.Fatalf("calendar cancellations = %d, want 1", len(env.calendar.canceled))
	}
}

func TestCreateBookingZeroAmountAutoPays(t *testing.T) {
	env := newOrchestrator(t)

	result, err := env.svc.CreateBooking(context.Background(), env.request("0", nil))
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}

	if result.Booking.Status != domain.BookingStatusScheduled {
		t.Fatalf("booking status = %s, want scheduled", result.Booking.Status)
	}
	if result.RequiresPayment {
		t.Fatal("zero amount must not require payment")
	}
	if result.Bill.Status != billdomain.BillStatusPaid {
		t.Fatalf("bill status = %s, want paid", result.Bill.Status)
	}
	if env.payment.sessions != 0 {
		t.Fatalf("checkout sessions = %d, want 0", env.payment.sessions)
	}
	if len(env.notifier.messages) != 0 {
		t.Fatalf("notifications = %d, want 0", len(env.notifier.messages))
	}
}

func TestCreateBookingMonthlySkipsEmail(t *testing.T) {
	env := newOrchestrator(t)

	result, err := env.svc.CreateBooking(context.Background(), env.request("50.00", func(req *domain.CreateBookingRequest) {
		req.Billing.Cadence = billingdomain.CadenceMonthly
	}))
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}

	if result.Booking.Status != domain.BookingStatusScheduled {
		t.Fatalf("booking status = %s, want scheduled", result.Booking.Status)
	}
	if result.Bill.Status != billdomain.BillStatusScheduled {
		t.Fatalf("bill status = %s, want scheduled", result.Bill.Status)
	}
	if env.payment.sessions != 0 || len(env.notifier.messages) != 0 {
		t.Fatal("monthly booking must not trigger the payment flow")
	}
}

func TestCreateBookingFutureLeadDefersToSweeper(t *testing.T) {
	env := newOrchestrator(t)

	result, err := env.svc.CreateBooking(context.Background(), env.request("50.00", func(req *domain.CreateBookingRequest) {
		lead := 24
		req.Billing.LeadHours = &lead
	}))
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}

	if !result.RequiresPayment {
		t.Fatal("expected RequiresPayment")
	}
	if result.PaymentURL != "" {
		t.Fatalf("payment url = %q, want empty", result.PaymentURL)
	}
	if result.Bill.Status != billdomain.BillStatusScheduled {
		t.Fatalf("bill status = %s, want scheduled", result.Bill.Status)
	}
	if env.payment.sessions != 0 || len(env.notifier.messages) != 0 {
		t.Fatal("deferred email must not send now")
	}
}

func TestCreateBookingRejectsBadWindow(t *testing.T) {
	env := newOrchestrator(t)

	_, err := env.svc.CreateBooking(context.Background(), env.request("50.00", func(req *domain.CreateBookingRequest) {
		req.EndsAt = req.StartsAt
	}))
	if !errors.Is(err, domain.ErrInvalidTimeWindow) {
		t.Fatalf("err = %v, want ErrInvalidTimeWindow", err)
	}
	if err.Error() != "endTime must be after startTime" {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestRecordManualPayment(t *testing.T) {
	env := newOrchestrator(t)

	result, err := env.svc.CreateBooking(context.Background(), env.request("50.00", nil))
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}

	if err := env.svc.RecordManualPayment(context.Background(), result.Booking.ID); err != nil {
		t.Fatalf("RecordManualPayment: %v", err)
	}

	var bill billdomain.Bill
	if err := env.db.Where("id = ?", result.Bill.ID).First(&bill).Error; err != nil {
		t.Fatalf("load bill: %v", err)
	}
	if bill.Status != billdomain.BillStatusPaid {
		t.Fatalf("bill status = %s, want paid", bill.Status)
	}
	booking, err := env.svc.GetByID(context.Background(), result.Booking.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if booking.Status != domain.BookingStatusScheduled {
		t.Fatalf("booking status = %s, want scheduled", booking.Status)
	}
	if env.ledger.entries != 1 {
		t.Fatalf("ledger entries = %d, want 1", env.ledger.entries)
	}
}

func TestCreateBookingRejectsTermsBeforeAnyWrite(t *testing.T) {
	env := newOrchestrator(t)

	_, err := env.svc.CreateBooking(context.Background(), env.request("50.00", func(req *domain.CreateBookingRequest) {
		req.Billing.Currency = "XXX"
	}))
	if !errors.Is(err, domain.ErrUnsupportedCurrency) {
		t.Fatalf("err = %v, want ErrUnsupportedCurrency", err)
	}

	// Failing fast means no lazily created default settings row either.
	var settings, bookings int64
	env.db.Model(&billingdomain.BillingSettings{}).Count(&settings)
	env.db.Model(&domain.Booking{}).Count(&bookings)
	if settings != 0 || bookings != 0 {
		t.Fatalf("rejected request wrote settings=%d bookings=%d, want 0/0", settings, bookings)
	}
}
