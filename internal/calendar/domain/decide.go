package domain

import "github.com/shopspring/decimal"

// DecideVariant applies the staging decision table. All inputs are known
// at booking-creation time.
func DecideVariant(amount decimal.Decimal, startInPast, suppressEmail bool, leadHours *int) Variant {
	if amount.IsZero() {
		return VariantConfirmed
	}
	if startInPast {
		if suppressEmail {
			return VariantNone
		}
		return VariantInternalConfirmed
	}
	if suppressEmail {
		return VariantConfirmed
	}
	if leadHours != nil && *leadHours == -1 {
		// Invite now, payment requested after the consultation.
		return VariantConfirmed
	}
	return VariantPending
}
