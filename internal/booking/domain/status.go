package domain

import (
	billingdomain "github.com/praxisware/praxis/internal/billingsettings/domain"
	"github.com/shopspring/decimal"
)

// ComputeStatus assigns the initial booking status. Pure function of its
// inputs:
//
//   - suppressed email (bulk/series creation): completed for past slots,
//     scheduled otherwise;
//   - per-booking with a positive amount: completed for past slots,
//     pending (awaiting payment) otherwise;
//   - zero amount or monthly cadence: scheduled immediately, since no
//     payment gates confirmation at creation time.
func ComputeStatus(cadence billingdomain.Cadence, amount decimal.Decimal, startInPast, suppressEmail bool) BookingStatus {
	if suppressEmail {
		if startInPast {
			return BookingStatusCompleted
		}
		return BookingStatusScheduled
	}
	if cadence == billingdomain.CadencePerBooking && amount.IsPositive() {
		if startInPast {
			return BookingStatusCompleted
		}
		return BookingStatusPending
	}
	return BookingStatusScheduled
}
