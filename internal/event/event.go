// internal/event/event.go
package event

import "time"

// Type identifies a domain event consumed by the notification layer.
type Type string

const (
	TypeReservationCreated   Type = "reservation.created"
	TypeReservationApproved  Type = "reservation.approved"
	TypeReservationRejected  Type = "reservation.rejected"
	TypeReservationCancelled Type = "reservation.cancelled"
	TypeReservationCompleted Type = "reservation.completed"
	TypeReceiptSubmitted     Type = "receipt.submitted"
	TypeReceiptVerified      Type = "receipt.verified"
	TypeReceiptDisputed      Type = "receipt.disputed"
	TypeUrgentSaleCreated    Type = "urgent_sale.created"
	TypeUrgentSalePurchased  Type = "urgent_sale.purchased"
	TypeUrgentSaleSoldOut    Type = "urgent_sale.sold_out"
	TypeUrgentSaleExpired    Type = "urgent_sale.expired"
)

// Event is the envelope handed to the notification dispatcher. The payload
// is opaque to delivery; the engine never depends on what happens to it.
type Event struct {
	Type       Type      `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

func New(t Type, payload any) Event {
	return Event{Type: t, OccurredAt: time.Now().UTC(), Payload: payload}
}
