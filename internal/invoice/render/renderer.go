package render

import (
	"time"

	"github.com/praxisware/praxis/internal/invoice/domain"
	"github.com/shopspring/decimal"
)

// Input is the deterministic view rendered into the printable
// document. Building it from a persisted invoice keeps rendering
// reproducible after the fact.
type Input struct {
	Title       string
	Number      string
	Status      string
	ClientName  string
	ClientEmail string
	Currency    string
	Subtotal    decimal.Decimal
	TaxAmount   decimal.Decimal
	Total       decimal.Decimal
	PeriodStart *time.Time
	PeriodEnd   *time.Time
	IssuedAt    *time.Time
	Rectifies   string
}

// InputFromInvoice projects an invoice row into its render view.
func InputFromInvoice(inv domain.Invoice) Input {
	input := Input{
		Title:       "Invoice",
		Number:      inv.DisplayNumber(),
		Status:      string(inv.Status),
		ClientName:  inv.ClientName,
		ClientEmail: inv.ClientEmail,
		Currency:    inv.Currency,
		Subtotal:    inv.Subtotal,
		TaxAmount:   inv.TaxAmount,
		Total:       inv.Total,
		PeriodStart: inv.PeriodStart,
		PeriodEnd:   inv.PeriodEnd,
		IssuedAt:    inv.IssuedAt,
	}
	if inv.Kind == domain.KindCreditNote {
		input.Title = "Credit Note"
		if inv.RectifiesInvoiceID != nil {
			input.Rectifies = inv.RectifiesInvoiceID.String()
		}
	}
	return input
}

// Renderer produces the printable HTML handed to the PDF pipeline.
type Renderer interface {
	RenderHTML(input Input) (string, error)
}
