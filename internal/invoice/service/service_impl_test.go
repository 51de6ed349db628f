package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	billdomain "github.com/praxisware/praxis/internal/bill/domain"
	billingdomain "github.com/praxisware/praxis/internal/billingsettings/domain"
	bookingdomain "github.com/praxisware/praxis/internal/booking/domain"
	"github.com/praxisware/praxis/internal/clock"
	"github.com/praxisware/praxis/internal/events"
	"github.com/praxisware/praxis/internal/invoice/domain"
	"github.com/praxisware/praxis/internal/invoice/render"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type invoiceEnv struct {
	svc  domain.Service
	db   *gorm.DB
	node *snowflake.Node
	now  time.Time

	practitionerID snowflake.ID
	clientID       snowflake.ID
	periodStart    time.Time
	periodEnd      time.Time
}

func newInvoiceEnv(t *testing.T) *invoiceEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(&bookingdomain.Booking{}, &billdomain.Bill{}, &domain.Invoice{})
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

	node, err := snowflake.NewNode(5)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	now := time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)
	log := zap.NewNop()

	env := &invoiceEnv{
		db:             db,
		node:           node,
		now:            now,
		practitionerID: snowflake.ID(11),
		clientID:       snowflake.ID(22),
		periodStart:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		periodEnd:      time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	}
	env.svc = NewService(Params{
		DB:       db,
		Log:      log,
		GenID:    node,
		Clock:    clock.Fixed{At: now},
		Renderer: render.NewRenderer(),
		Store:    render.NewLogStore(log),
		Outbox:   events.NewOutbox(db, node),
	})
	return env
}

// seedMonthlyBill creates a booking in March plus its monthly bill.
func (env *invoiceEnv) seedMonthlyBill(t *testing.T, startsAt time.Time, amount, tax string) billdomain.Bill {
	t.Helper()

	booking := bookingdomain.Booking{
		ID:             env.node.Generate(),
		PractitionerID: env.practitionerID,
		ClientID:       env.clientID,
		StartsAt:       startsAt,
		EndsAt:         startsAt.Add(time.Hour),
		Status:         bookingdomain.BookingStatusCompleted,
	}
	if err := env.db.Create(&booking).Error; err != nil {
		t.Fatalf("seed booking: %v", err)
	}

	bill := billdomain.Bill{
		ID:             env.node.Generate(),
		BookingID:      booking.ID,
		PractitionerID: env.practitionerID,
		ClientID:       env.clientID,
		ClientName:     "Ana Client",
		ClientEmail:    "ana@example.com",
		Amount:         decimal.RequireFromString(amount),
		Currency:       "eur",
		TaxAmount:      decimal.RequireFromString(tax),
		Cadence:        billingdomain.CadenceMonthly,
		Status:         billdomain.BillStatusScheduled,
	}
	if err := env.db.Create(&bill).Error; err != nil {
		t.Fatalf("seed bill: %v", err)
	}
	return bill
}

func (env *invoiceEnv) ensureDraft(t *testing.T) domain.Invoice {
	t.Helper()
	inv, err := env.svc.EnsureMonthlyDraft(context.Background(), env.practitionerID, env.clientID, env.periodStart, env.periodEnd)
	if err != nil {
		t.Fatalf("EnsureMonthlyDraft: %v", err)
	}
	return inv
}

func TestEnsureMonthlyDraftAggregates(t *testing.T) {
	env := newInvoiceEnv(t)
	first := env.seedMonthlyBill(t, time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC), "40.00", "8.40")
	second := env.seedMonthlyBill(t, time.Date(2026, 3, 19, 10, 0, 0, 0, time.UTC), "35.00", "7.35")

	inv := env.ensureDraft(t)

	if inv.Status != domain.StatusDraft {
		t.Fatalf("status = %s, want draft", inv.Status)
	}
	if !inv.Subtotal.Equal(decimal.RequireFromString("75.00")) {
		t.Fatalf("subtotal = %s, want 75.00", inv.Subtotal)
	}
	if !inv.TaxAmount.Equal(decimal.RequireFromString("15.75")) {
		t.Fatalf("tax = %s, want 15.75", inv.TaxAmount)
	}
	if !inv.Total.Equal(decimal.RequireFromString("90.75")) {
		t.Fatalf("total = %s, want 90.75", inv.Total)
	}
	if inv.ClientName != "Ana Client" || inv.Currency != "eur" {
		t.Fatalf("client snapshot = %q/%q", inv.ClientName, inv.Currency)
	}

	var linked int64
	env.db.Model(&billdomain.Bill{}).
		Where("invoice_id = ? AND id IN ?", inv.ID, []snowflake.ID{first.ID, second.ID}).
		Count(&linked)
	if linked != 2 {
		t.Fatalf("linked bills = %d, want 2", linked)
	}
}

func TestEnsureMonthlyDraftIsIdempotent(t *testing.T) {
	env := newInvoiceEnv(t)
	env.seedMonthlyBill(t, time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC), "40.00", "8.40")

	first := env.ensureDraft(t)
	second := env.ensureDraft(t)

	if first.ID != second.ID {
		t.Fatalf("draft ids differ: %s vs %s", first.ID, second.ID)
	}
	var count int64
	env.db.Model(&domain.Invoice{}).Count(&count)
	if count != 1 {
		t.Fatalf("invoices = %d, want 1", count)
	}
}

func TestEnsureMonthlyDraftReplacesMembership(t *testing.T) {
	env := newInvoiceEnv(t)
	kept := env.seedMonthlyBill(t, time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC), "40.00", "8.40")
	dropped := env.seedMonthlyBill(t, time.Date(2026, 3, 19, 10, 0, 0, 0, time.UTC), "35.00", "7.35")

	env.ensureDraft(t)

	env.db.Model(&billdomain.Bill{}).
		Where("id = ?", dropped.ID).
		Update("status", billdomain.BillStatusCanceled)

	inv := env.ensureDraft(t)

	if !inv.Subtotal.Equal(decimal.RequireFromString("40.00")) {
		t.Fatalf("subtotal = %s, want 40.00", inv.Subtotal)
	}
	if !inv.Total.Equal(decimal.RequireFromString("48.40")) {
		t.Fatalf("total = %s, want 48.40", inv.Total)
	}

	var droppedBill billdomain.Bill
	env.db.Where("id = ?", dropped.ID).First(&droppedBill)
	if droppedBill.InvoiceID != nil {
		t.Fatalf("canceled bill still linked to %s", droppedBill.InvoiceID)
	}
	var keptBill billdomain.Bill
	env.db.Where("id = ?", kept.ID).First(&keptBill)
	if keptBill.InvoiceID == nil || *keptBill.InvoiceID != inv.ID {
		t.Fatalf("kept bill link = %v, want %s", keptBill.InvoiceID, inv.ID)
	}
}

func TestEnsureMonthlyDraftEmptyPeriod(t *testing.T) {
	env := newInvoiceEnv(t)

	inv := env.ensureDraft(t)

	if !inv.Subtotal.IsZero() || !inv.Total.IsZero() {
		t.Fatalf("empty draft totals = %s/%s, want zero", inv.Subtotal, inv.Total)
	}
}

func TestIssueAssignsSequentialNumbers(t *testing.T) {
	env := newInvoiceEnv(t)
	env.seedMonthlyBill(t, time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC), "40.00", "8.40")
	draft := env.ensureDraft(t)

	issued, err := env.svc.Issue(context.Background(), draft.ID)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if issued.Status != domain.StatusIssued {
		t.Fatalf("status = %s, want issued", issued.Status)
	}
	if issued.Series != "2026" || issued.Number == nil || *issued.Number != 1 {
		t.Fatalf("series/number = %s/%v, want 2026/1", issued.Series, issued.Number)
	}
	if issued.DisplayNumber() != "2026-0001" {
		t.Fatalf("display number = %s, want 2026-0001", issued.DisplayNumber())
	}

	// A second draft for the next period takes the next number.
	env.periodStart = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	env.periodEnd = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	next := env.ensureDraft(t)
	nextIssued, err := env.svc.Issue(context.Background(), next.ID)
	if err != nil {
		t.Fatalf("Issue second: %v", err)
	}
	if nextIssued.Number == nil || *nextIssued.Number != 2 {
		t.Fatalf("second number = %v, want 2", nextIssued.Number)
	}
}

func TestIssueRejectsNonDraft(t *testing.T) {
	env := newInvoiceEnv(t)
	draft := env.ensureDraft(t)

	if _, err := env.svc.Issue(context.Background(), draft.ID); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	_, err := env.svc.Issue(context.Background(), draft.ID)
	if !errors.Is(err, domain.ErrInvoiceNotDraft) {
		t.Fatalf("err = %v, want ErrInvoiceNotDraft", err)
	}
}

func TestEnsurePerBookingInvoice(t *testing.T) {
	env := newInvoiceEnv(t)
	bill := env.seedMonthlyBill(t, time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC), "40.00", "8.40")
	env.db.Model(&billdomain.Bill{}).Where("id = ?", bill.ID).Update("status", billdomain.BillStatusPaid)

	inv, err := env.svc.EnsurePerBookingInvoice(context.Background(), bill.ID)
	if err != nil {
		t.Fatalf("EnsurePerBookingInvoice: %v", err)
	}
	if inv.Status != domain.StatusPaid {
		t.Fatalf("status = %s, want paid", inv.Status)
	}
	if !inv.Total.Equal(decimal.RequireFromString("48.40")) {
		t.Fatalf("total = %s, want 48.40", inv.Total)
	}

	again, err := env.svc.EnsurePerBookingInvoice(context.Background(), bill.ID)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if again.ID != inv.ID {
		t.Fatalf("second call created new invoice %s, want %s", again.ID, inv.ID)
	}
}

func TestEnsurePerBookingInvoiceRequiresPaidBill(t *testing.T) {
	env := newInvoiceEnv(t)
	bill := env.seedMonthlyBill(t, time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC), "40.00", "8.40")

	_, err := env.svc.EnsurePerBookingInvoice(context.Background(), bill.ID)
	if !errors.Is(err, domain.ErrBillNotLinkable) {
		t.Fatalf("err = %v, want ErrBillNotLinkable", err)
	}
}

func TestCreateCreditNote(t *testing.T) {
	env := newInvoiceEnv(t)
	env.seedMonthlyBill(t, time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC), "40.00", "8.40")
	draft := env.ensureDraft(t)
	issued, err := env.svc.Issue(context.Background(), draft.ID)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	note, err := env.svc.CreateCreditNote(context.Background(), issued.ID, decimal.RequireFromString("48.40"), "EUR", "session refunded")
	if err != nil {
		t.Fatalf("CreateCreditNote: %v", err)
	}
	if note.Kind != domain.KindCreditNote {
		t.Fatalf("kind = %s, want credit_note", note.Kind)
	}
	if note.Series != "CN-2026" || note.Number == nil || *note.Number != 1 {
		t.Fatalf("series/number = %s/%v, want CN-2026/1", note.Series, note.Number)
	}
	if note.RectifiesInvoiceID == nil || *note.RectifiesInvoiceID != issued.ID {
		t.Fatalf("rectifies = %v, want %s", note.RectifiesInvoiceID, issued.ID)
	}
	if note.Currency != "eur" {
		t.Fatalf("currency = %s, want eur", note.Currency)
	}
	if note.Metadata["reason"] != "session refunded" {
		t.Fatalf("metadata = %+v", note.Metadata)
	}
}

func TestMarkRefundedGuardsStatus(t *testing.T) {
	env := newInvoiceEnv(t)
	draft := env.ensureDraft(t)

	err := env.svc.MarkRefunded(context.Background(), draft.ID)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("draft refund err = %v, want ErrInvalidTransition", err)
	}

	issued, err := env.svc.Issue(context.Background(), draft.ID)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := env.svc.MarkRefunded(context.Background(), issued.ID); err != nil {
		t.Fatalf("MarkRefunded: %v", err)
	}

	var inv domain.Invoice
	env.db.Where("id = ?", issued.ID).First(&inv)
	if inv.Status != domain.StatusRefunded {
		t.Fatalf("status = %s, want refunded", inv.Status)
	}
}
