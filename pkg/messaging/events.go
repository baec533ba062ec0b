package messaging

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Change-feed event names. Every payment mutation is broadcast on a subject
// scoped to its bill, so terminals only hear about the table they are on.
const (
	EventPaymentRecorded = "payment.recorded"
	EventPaymentUpdated  = "payment.updated"
	EventPaymentDeleted  = "payment.deleted"
	EventPaymentsCleared = "payment.cleared"
)

// Payment-network subjects.
const (
	SubjectChargeConfirmed = "paynet.charge.confirmed"
	SubjectChargeExpired   = "paynet.charge.expired"
	SubjectChargeReverse   = "paynet.charge.reverse"
)

// BillSubject builds the subject one payment mutation is published on.
func BillSubject(restaurantID uuid.UUID, billID, event string) string {
	return fmt.Sprintf("settlement.%s.%s.%s", restaurantID, billID, event)
}

// BillWildcard matches every mutation on one bill. Coordinators subscribe to
// this and reload on any message, whatever the event.
func BillWildcard(restaurantID uuid.UUID, billID string) string {
	return fmt.Sprintf("settlement.%s.%s.>", restaurantID, billID)
}

// PaymentEvent is the change-feed payload. Amounts travel as strings so the
// wire format never inherits float rounding.
type PaymentEvent struct {
	PaymentID    uuid.UUID `json:"payment_id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
	BillID       string    `json:"bill_id"`
	Method       string    `json:"method"`
	Amount       string    `json:"amount"`
	ServiceFee   string    `json:"service_fee"`
	Status       string    `json:"status"`
	Terminal     string    `json:"terminal,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// ChargeNotification is what the payment network emits when an instant
// transfer is confirmed by the payer's bank or times out unconfirmed.
type ChargeNotification struct {
	PaymentID    uuid.UUID `json:"payment_id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
	BillID       string    `json:"bill_id"`
	EndToEndID   string    `json:"end_to_end_id,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// ReversalRequest asks the payment network to drop a charge still held open
// for an unconfirmed instant transfer.
type ReversalRequest struct {
	PaymentID    uuid.UUID `json:"payment_id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
	Reason       string    `json:"reason,omitempty"`
}

// ReversalReply acknowledges (or refuses) a reversal.
type ReversalReply struct {
	Status string `json:"status"` // "ok" or "rejected"
	Detail string `json:"detail,omitempty"`
}
