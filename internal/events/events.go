package events

// Analytics event types recorded through the outbox.
const (
	EventBookingCreated  = "booking.created"
	EventBookingCanceled = "booking.canceled"
	EventPaymentSettled  = "payment.settled"
	EventRefundSettled   = "refund.settled"
	EventInvoiceIssued   = "invoice.issued"
	EventPaymentEmail    = "payment_email.sent"
)

// BookingPayload captures the minimal data to roll up booking events.
type BookingPayload struct {
	BookingID string `json:"booking_id"`
	BillID    string `json:"bill_id,omitempty"`
	Status    string `json:"status,omitempty"`
}

// PaymentPayload captures the minimal data to roll up payment events.
type PaymentPayload struct {
	BookingID string `json:"booking_id"`
	SessionID string `json:"session_id,omitempty"`
	Amount    string `json:"amount,omitempty"`
	Currency  string `json:"currency,omitempty"`
}

// ToMap converts a payload into an outbox-friendly map.
func (p BookingPayload) ToMap() map[string]any {
	payload := map[string]any{"booking_id": p.BookingID}
	if p.BillID != "" {
		payload["bill_id"] = p.BillID
	}
	if p.Status != "" {
		payload["status"] = p.Status
	}
	return payload
}

// ToMap converts a payload into an outbox-friendly map.
func (p PaymentPayload) ToMap() map[string]any {
	payload := map[string]any{"booking_id": p.BookingID}
	if p.SessionID != "" {
		payload["session_id"] = p.SessionID
	}
	if p.Amount != "" {
		payload["amount"] = p.Amount
		payload["currency"] = p.Currency
	}
	return payload
}
