// Package billing holds the settlement domain model: the payment record and
// its lifecycle, and the pure arithmetic that projects a bill's state from
// its recorded payments.
package billing

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidMethod    = errors.New("invalid payment method")
	ErrInvalidFeePolicy = errors.New("invalid service-fee policy")
	ErrNegativeAmount   = errors.New("payment amount must not be negative")
	ErrNotPending       = errors.New("payment is not pending")
)

// Method is how a payment was taken.
type Method string

const (
	MethodPix  Method = "pix"
	MethodCash Method = "cash"
	MethodCard Method = "card"
)

func (m Method) Valid() bool {
	switch m {
	case MethodPix, MethodCash, MethodCard:
		return true
	}
	return false
}

// Instant reports whether the method settles through the instant-payment
// network and therefore needs an external confirmation before completing.
func (m Method) Instant() bool { return m == MethodPix }

// Status is a payment's lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusExpired   Status = "expired"
)

// FeePolicy records how a payment's service-fee contribution was chosen.
// Persisting the policy avoids ever having to guess it back from the stored
// fee amount.
type FeePolicy string

const (
	// FeeProportional carries the payment's pro-rata share of the fee.
	FeeProportional FeePolicy = "proportional"
	// FeeIntegral absorbs the entire outstanding service-fee balance.
	FeeIntegral FeePolicy = "integral"
	// FeeNone opts the payment out of the service fee entirely.
	FeeNone FeePolicy = "none"
)

func (p FeePolicy) Valid() bool {
	switch p {
	case FeeProportional, FeeIntegral, FeeNone:
		return true
	}
	return false
}

// Customer is one attribution slot on a payment. Identified slots are backed
// by a loyalty profile; unidentified slots are placeholders for diners who
// shared the payment instrument without giving a phone number.
type Customer struct {
	Identified bool   `json:"identified"`
	Phone      string `json:"phone,omitempty"`
	Name       string `json:"name,omitempty"`
}

// Payment is one recorded settlement action against a bill. It is owned by
// the bill it settles but persisted independently, so it survives terminal
// disconnects.
type Payment struct {
	ID           uuid.UUID       `json:"id"`
	RestaurantID uuid.UUID       `json:"restaurant_id"`
	BillID       string          `json:"bill_id"`
	Method       Method          `json:"method"`
	Amount       decimal.Decimal `json:"amount"`
	ServiceFee   decimal.Decimal `json:"service_fee"`
	FeePolicy    FeePolicy       `json:"fee_policy"`
	Status       Status          `json:"status"`
	Customers    []Customer      `json:"customers,omitempty"`
	CreatedBy    string          `json:"created_by"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// InitialStatus is the state a freshly recorded payment enters. Instant
// transfers wait for the network; cash and card have no round-trip to await.
func InitialStatus(m Method) Status {
	if m.Instant() {
		return StatusPending
	}
	return StatusCompleted
}

// Confirm moves a pending instant-transfer payment to completed.
func (p *Payment) Confirm() error {
	if p.Status != StatusPending {
		return ErrNotPending
	}
	p.Status = StatusCompleted
	return nil
}

// Expire marks an unconfirmed instant-transfer payment as expired, driven by
// the payment network's own timeout notification.
func (p *Payment) Expire() error {
	if p.Status != StatusPending {
		return ErrNotPending
	}
	p.Status = StatusExpired
	return nil
}

// ChangeMethod switches the payment method and re-enters the state machine
// at the state the new method implies. Moving away from an instant transfer
// forces completed; moving onto one restarts the pending wait.
func (p *Payment) ChangeMethod(m Method) error {
	if !m.Valid() {
		return ErrInvalidMethod
	}
	p.Method = m
	p.Status = InitialStatus(m)
	return nil
}

// NeedsReversal reports whether deleting this payment must also reverse a
// charge held open with the payment network.
func (p *Payment) NeedsReversal() bool {
	return p.Method.Instant() && p.Status == StatusPending
}
