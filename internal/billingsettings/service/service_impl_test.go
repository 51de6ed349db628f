package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/praxisware/praxis/internal/billingsettings/domain"
	"github.com/praxisware/praxis/internal/clock"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (domain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.BillingSettings{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	node, err := snowflake.NewNode(7)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.Fixed{At: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)},
	})
	return svc, db, node
}

func TestResolvePrefersClientSettings(t *testing.T) {
	svc, db, node := newTestService(t)
	practitionerID := snowflake.ID(11)
	clientID := snowflake.ID(22)

	db.Create(&domain.BillingSettings{
		ID:             node.Generate(),
		PractitionerID: practitionerID,
		IsDefault:      true,
		Cadence:        domain.CadencePerBooking,
		Amount:         decimal.RequireFromString("50.00"),
		Currency:       "EUR",
	})
	perClient := domain.BillingSettings{
		ID:             node.Generate(),
		PractitionerID: practitionerID,
		ClientID:       &clientID,
		Cadence:        domain.CadenceMonthly,
		Amount:         decimal.RequireFromString("35.00"),
		Currency:       "EUR",
	}
	db.Create(&perClient)

	got, err := svc.Resolve(context.Background(), practitionerID, clientID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.ID != perClient.ID {
		t.Fatalf("resolved %s, want client-specific %s", got.ID, perClient.ID)
	}
	if got.Cadence != domain.CadenceMonthly {
		t.Fatalf("cadence = %s, want monthly", got.Cadence)
	}
}

func TestResolveFallsBackToDefault(t *testing.T) {
	svc, db, node := newTestService(t)
	practitionerID := snowflake.ID(11)

	def := domain.BillingSettings{
		ID:             node.Generate(),
		PractitionerID: practitionerID,
		IsDefault:      true,
		Cadence:        domain.CadencePerBooking,
		Amount:         decimal.RequireFromString("50.00"),
		Currency:       "EUR",
	}
	db.Create(&def)

	got, err := svc.Resolve(context.Background(), practitionerID, snowflake.ID(22))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.ID != def.ID {
		t.Fatalf("resolved %s, want default %s", got.ID, def.ID)
	}
}

func TestResolveCreatesZeroAmountDefault(t *testing.T) {
	svc, db, _ := newTestService(t)

	got, err := svc.Resolve(context.Background(), snowflake.ID(11), snowflake.ID(22))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !got.IsDefault || !got.Amount.IsZero() || got.Cadence != domain.CadencePerBooking {
		t.Fatalf("created default = %+v", got)
	}

	var count int64
	db.Model(&domain.BillingSettings{}).Count(&count)
	if count != 1 {
		t.Fatalf("settings rows = %d, want 1", count)
	}

	// Resolving again reuses the created default.
	again, err := svc.Resolve(context.Background(), snowflake.ID(11), snowflake.ID(22))
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if again.ID != got.ID {
		t.Fatalf("second resolve = %s, want %s", again.ID, got.ID)
	}
}

func TestResolveRejectsZeroIDs(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Resolve(context.Background(), 0, snowflake.ID(22))
	if !errors.Is(err, domain.ErrInvalidPractitioner) {
		t.Fatalf("err = %v, want ErrInvalidPractitioner", err)
	}
	_, err = svc.Resolve(context.Background(), snowflake.ID(11), 0)
	if !errors.Is(err, domain.ErrInvalidClient) {
		t.Fatalf("err = %v, want ErrInvalidClient", err)
	}
}

func TestTaxRateForLayers(t *testing.T) {
	svc, db, node := newTestService(t)
	practitionerID := snowflake.ID(11)
	clientID := snowflake.ID(22)

	rate, err := svc.TaxRateFor(context.Background(), practitionerID, clientID)
	if err != nil {
		t.Fatalf("TaxRateFor: %v", err)
	}
	if !rate.IsZero() {
		t.Fatalf("rate with nothing configured = %s, want 0", rate)
	}

	defaultRate := decimal.RequireFromString("21")
	db.Create(&domain.BillingSettings{
		ID:             node.Generate(),
		PractitionerID: practitionerID,
		IsDefault:      true,
		Cadence:        domain.CadencePerBooking,
		Currency:       "EUR",
		TaxRatePercent: &defaultRate,
	})
	rate, err = svc.TaxRateFor(context.Background(), practitionerID, clientID)
	if err != nil {
		t.Fatalf("TaxRateFor: %v", err)
	}
	if !rate.Equal(defaultRate) {
		t.Fatalf("rate = %s, want 21", rate)
	}

	clientRate := decimal.RequireFromString("10")
	db.Create(&domain.BillingSettings{
		ID:             node.Generate(),
		PractitionerID: practitionerID,
		ClientID:       &clientID,
		Cadence:        domain.CadencePerBooking,
		Currency:       "EUR",
		TaxRatePercent: &clientRate,
	})
	rate, err = svc.TaxRateFor(context.Background(), practitionerID, clientID)
	if err != nil {
		t.Fatalf("TaxRateFor: %v", err)
	}
	if !rate.Equal(clientRate) {
		t.Fatalf("rate = %s, want client-specific 10", rate)
	}
}
