package domain

import "github.com/shopspring/decimal"

var oneHundred = decimal.NewFromInt(100)

// ValidateBalanced ensures posting lines sum to a balanced double-entry.
func ValidateBalanced(lines []AccountLine) error {
	if len(lines) < 2 {
		return ErrInvalidEntryLines
	}

	var debitTotal, creditTotal int64
	for _, line := range lines {
		if line.Amount.IsNegative() {
			return ErrInvalidLineAmount
		}
		cents := line.Amount.Mul(oneHundred).IntPart()
		switch line.Direction {
		case LedgerEntryDirectionDebit:
			debitTotal += cents
		case LedgerEntryDirectionCredit:
			creditTotal += cents
		default:
			return ErrInvalidLineDirection
		}
	}

	if debitTotal != creditTotal {
		return ErrUnbalancedEntry
	}
	return nil
}
