package domain

import (
	billingdomain "github.com/praxisware/praxis/internal/billingsettings/domain"
	"github.com/shopspring/decimal"
)

// LeadHoursAfterConsultation requests the payment email at consultation
// end instead of before the slot.
const LeadHoursAfterConsultation = -1

// BillingTerms is the validated billing input for one booking. It is
// checked once at the boundary so nothing downstream re-guesses shapes.
type BillingTerms struct {
	Cadence   billingdomain.Cadence
	Amount    decimal.Decimal
	Currency  string
	LeadHours *int
}

// Validate rejects malformed terms before any write happens.
func (t BillingTerms) Validate(currencySupported func(string) bool) error {
	if !t.Cadence.Valid() {
		return ErrInvalidCadence
	}
	if t.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if currencySupported != nil && !currencySupported(t.Currency) {
		return ErrUnsupportedCurrency
	}
	if t.LeadHours != nil && *t.LeadHours < LeadHoursAfterConsultation {
		return ErrInvalidLeadHours
	}
	return nil
}

// TermsFromSettings builds booking terms from resolved billing settings,
// used when the caller does not override them.
func TermsFromSettings(settings billingdomain.BillingSettings) BillingTerms {
	return BillingTerms{
		Cadence:   settings.Cadence,
		Amount:    settings.Amount,
		Currency:  settings.Currency,
		LeadHours: settings.LeadHours,
	}
}
