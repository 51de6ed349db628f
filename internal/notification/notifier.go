package notification

import "context"

// Kind selects the notification template.
type Kind string

const (
	KindPaymentRequest Kind = "payment_request"
	KindReceipt        Kind = "receipt"
	KindCancellation   Kind = "cancellation"
	KindRefund         Kind = "refund"
)

// Message is one fire-and-forget notification.
type Message struct {
	Kind      Kind
	Recipient string
	Data      map[string]any
}

// Notifier delivers notifications. Callers treat delivery as advisory
// except for the creation-time payment request, where a failed send
// triggers compensation.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}
