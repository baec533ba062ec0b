// Package settlement records, edits and deletes payments against a bill and
// keeps every connected terminal converged on the same ledger. Writes are
// single round trips to the backing store; the ledger itself is always
// recomputed from the stored payment list, never patched in place.
package settlement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/msxsistemas/quick-bite-craft-sub000/internal/billing"
	"github.com/msxsistemas/quick-bite-craft-sub000/pkg/messaging"
)

// PaymentStore is the durable payment list for a bill.
type PaymentStore interface {
	Insert(ctx context.Context, p *billing.Payment) error
	Update(ctx context.Context, p *billing.Payment) error
	Get(ctx context.Context, restaurantID, id uuid.UUID) (*billing.Payment, error)
	ListByBill(ctx context.Context, restaurantID uuid.UUID, billID string) ([]billing.Payment, error)
	Delete(ctx context.Context, restaurantID, id uuid.UUID) error
	DeleteByBill(ctx context.Context, restaurantID uuid.UUID, billID string) error
}

// Reverser drops a charge held open with the payment network. Deleting an
// unconfirmed instant transfer is only legal once the reversal succeeds.
type Reverser interface {
	Reverse(ctx context.Context, req messaging.ReversalRequest) error
}

// Publisher broadcasts change-feed events to the other terminals.
type Publisher interface {
	Publish(ctx context.Context, subject string, v any) error
}

// LoyaltyRecorder persists identified customer attributions.
type LoyaltyRecorder interface {
	Record(ctx context.Context, restaurantID uuid.UUID, customers []billing.Customer) error
}

// BillRef scopes an operation to one bill of one restaurant.
type BillRef struct {
	RestaurantID uuid.UUID
	BillID       string
}

// Service implements the settlement operations.
type Service struct {
	store    PaymentStore
	pub      Publisher
	reverser Reverser
	loyalty  LoyaltyRecorder
	log      *slog.Logger
}

// NewService wires the settlement service. loyalty may be nil when no
// loyalty store is configured.
func NewService(store PaymentStore, pub Publisher, reverser Reverser, loyalty LoyaltyRecorder, log *slog.Logger) *Service {
	return &Service{store: store, pub: pub, reverser: reverser, loyalty: loyalty, log: log}
}

// RecordRequest describes one payment being taken on a terminal.
type RecordRequest struct {
	Bill      BillRef
	Terms     billing.Terms
	Method    billing.Method
	Amount    decimal.Decimal
	FeePolicy billing.FeePolicy
	Customers []billing.Customer
	Terminal  string
}

// Record validates and persists a new payment, then broadcasts the change.
// Validation failures happen before any write; store failures leave nothing
// behind to roll back.
func (s *Service) Record(ctx context.Context, req RecordRequest) (*billing.Payment, error) {
	if !req.Method.Valid() {
		return nil, billing.ErrInvalidMethod
	}
	if req.FeePolicy == "" {
		req.FeePolicy = billing.FeeProportional
	}
	if !req.FeePolicy.Valid() {
		return nil, billing.ErrInvalidFeePolicy
	}
	if req.Amount.IsNegative() {
		return nil, billing.ErrNegativeAmount
	}

	payments, err := s.store.ListByBill(ctx, req.Bill.RestaurantID, req.Bill.BillID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bill payments: %w", err)
	}

	now := time.Now().UTC()
	p := &billing.Payment{
		ID:           uuid.New(),
		RestaurantID: req.Bill.RestaurantID,
		BillID:       req.Bill.BillID,
		Method:       req.Method,
		Amount:       req.Amount.Round(2),
		FeePolicy:    req.FeePolicy,
		ServiceFee:   billing.FeeFor(req.FeePolicy, req.Amount, req.Terms.FeeRatePercent, billing.OutstandingFee(req.Terms, payments)),
		Status:       billing.InitialStatus(req.Method),
		Customers:    req.Customers,
		CreatedBy:    req.Terminal,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.Insert(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}
	paymentsRecorded.WithLabelValues(string(p.Method)).Inc()

	// Loyalty is a side channel: a profile write failing must not lose a
	// payment that is already durable.
	if s.loyalty != nil {
		if err := s.loyalty.Record(ctx, p.RestaurantID, p.Customers); err != nil {
			s.log.Warn("loyalty record failed", "payment_id", p.ID, "error", err)
		}
	}

	s.broadcast(ctx, req.Bill, messaging.EventPaymentRecorded, p)
	return p, nil
}

// EditRequest carries the fields an edit may change; nil means unchanged.
type EditRequest struct {
	Amount    *decimal.Decimal
	Method    *billing.Method
	FeePolicy *billing.FeePolicy
	Customers []billing.Customer
}

// Edit applies an edit to one payment. The service fee is re-evaluated from
// the persisted policy against the then-current bill state; the edit
// re-enters the state machine when the method changes.
func (s *Service) Edit(ctx context.Context, ref BillRef, terms billing.Terms, id uuid.UUID, req EditRequest) (*billing.Payment, error) {
	p, err := s.store.Get(ctx, ref.RestaurantID, id)
	if err != nil {
		return nil, err
	}

	if req.Amount != nil {
		if req.Amount.IsNegative() {
			return nil, billing.ErrNegativeAmount
		}
		p.Amount = req.Amount.Round(2)
	}
	if req.Method != nil {
		if err := p.ChangeMethod(*req.Method); err != nil {
			return nil, err
		}
	}
	if req.FeePolicy != nil {
		if !req.FeePolicy.Valid() {
			return nil, billing.ErrInvalidFeePolicy
		}
		p.FeePolicy = *req.FeePolicy
	}
	if req.Customers != nil {
		p.Customers = req.Customers
	}

	payments, err := s.store.ListByBill(ctx, ref.RestaurantID, ref.BillID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bill payments: %w", err)
	}
	p.ServiceFee = billing.FeeFor(p.FeePolicy, p.Amount, terms.FeeRatePercent,
		billing.OutstandingFee(terms, excluding(payments, id)))
	p.UpdatedAt = time.Now().UTC()

	if err := s.store.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to update payment: %w", err)
	}

	s.broadcast(ctx, ref, messaging.EventPaymentUpdated, p)
	return p, nil
}

// Delete removes one payment. An unconfirmed instant transfer must be
// reversed with the payment network first; if the reversal fails the record
// stays untouched.
func (s *Service) Delete(ctx context.Context, ref BillRef, id uuid.UUID) error {
	p, err := s.store.Get(ctx, ref.RestaurantID, id)
	if err != nil {
		return err
	}

	if p.NeedsReversal() {
		req := messaging.ReversalRequest{PaymentID: p.ID, RestaurantID: p.RestaurantID, Reason: "payment deleted"}
		if err := s.reverser.Reverse(ctx, req); err != nil {
			return fmt.Errorf("failed to reverse pending charge: %w", err)
		}
		reversalsTotal.Inc()
	}

	if err := s.store.Delete(ctx, ref.RestaurantID, id); err != nil {
		return fmt.Errorf("failed to delete payment: %w", err)
	}
	paymentsDeleted.Inc()

	s.broadcast(ctx, ref, messaging.EventPaymentDeleted, p)
	return nil
}

// Clear wipes every payment on the bill. Pending instant transfers are all
// reversed before anything is deleted, so a refused reversal aborts the
// clear with the ledger unchanged.
func (s *Service) Clear(ctx context.Context, ref BillRef) error {
	payments, err := s.store.ListByBill(ctx, ref.RestaurantID, ref.BillID)
	if err != nil {
		return fmt.Errorf("failed to load bill payments: %w", err)
	}

	for i := range payments {
		if !payments[i].NeedsReversal() {
			continue
		}
		req := messaging.ReversalRequest{PaymentID: payments[i].ID, RestaurantID: ref.RestaurantID, Reason: "bill cleared"}
		if err := s.reverser.Reverse(ctx, req); err != nil {
			return fmt.Errorf("failed to reverse pending charge %s: %w", payments[i].ID, err)
		}
		reversalsTotal.Inc()
	}

	if err := s.store.DeleteByBill(ctx, ref.RestaurantID, ref.BillID); err != nil {
		return fmt.Errorf("failed to clear payments: %w", err)
	}
	paymentsDeleted.Add(float64(len(payments)))

	err = s.pub.Publish(ctx, messaging.BillSubject(ref.RestaurantID, ref.BillID, messaging.EventPaymentsCleared),
		messaging.PaymentEvent{RestaurantID: ref.RestaurantID, BillID: ref.BillID, Timestamp: time.Now().UTC()})
	if err != nil {
		s.log.Warn("change-feed publish failed", "event", messaging.EventPaymentsCleared, "bill_id", ref.BillID, "error", err)
	}
	return nil
}

// Confirm completes a pending instant transfer after the network notified
// payer-side approval.
func (s *Service) Confirm(ctx context.Context, restaurantID, id uuid.UUID) error {
	return s.applyNetworkTransition(ctx, restaurantID, id, (*billing.Payment).Confirm)
}

// Expire marks a pending instant transfer as timed out by the network. The
// record stays on the bill for the operator to retry or delete.
func (s *Service) Expire(ctx context.Context, restaurantID, id uuid.UUID) error {
	return s.applyNetworkTransition(ctx, restaurantID, id, (*billing.Payment).Expire)
}

func (s *Service) applyNetworkTransition(ctx context.Context, restaurantID, id uuid.UUID, transition func(*billing.Payment) error) error {
	p, err := s.store.Get(ctx, restaurantID, id)
	if err != nil {
		return err
	}
	if err := transition(p); err != nil {
		return err
	}
	p.UpdatedAt = time.Now().UTC()
	if err := s.store.Update(ctx, p); err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	s.broadcast(ctx, BillRef{RestaurantID: restaurantID, BillID: p.BillID}, messaging.EventPaymentUpdated, p)
	return nil
}

// Summary loads the bill's payments and projects the ledger from scratch.
func (s *Service) Summary(ctx context.Context, ref BillRef, terms billing.Terms) (billing.Summary, []billing.Payment, error) {
	payments, err := s.store.ListByBill(ctx, ref.RestaurantID, ref.BillID)
	if err != nil {
		return billing.Summary{}, nil, fmt.Errorf("failed to load bill payments: %w", err)
	}
	return billing.Summarize(terms, payments), payments, nil
}

// Share suggests the per-person amount for an N-way split of what remains.
func (s *Service) Share(ctx context.Context, ref BillRef, terms billing.Terms, ways int) (decimal.Decimal, error) {
	summary, _, err := s.Summary(ctx, ref, terms)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return billing.PerPersonShare(summary.Remaining, ways), nil
}

func (s *Service) broadcast(ctx context.Context, ref BillRef, event string, p *billing.Payment) {
	err := s.pub.Publish(ctx, messaging.BillSubject(ref.RestaurantID, ref.BillID, event), messaging.PaymentEvent{
		PaymentID:    p.ID,
		RestaurantID: p.RestaurantID,
		BillID:       p.BillID,
		Method:       string(p.Method),
		Amount:       p.Amount.StringFixed(2),
		ServiceFee:   p.ServiceFee.StringFixed(2),
		Status:       string(p.Status),
		Terminal:     p.CreatedBy,
		Timestamp:    time.Now().UTC(),
	})
	if err != nil {
		// Other terminals converge on their next reload; the write itself
		// is already durable.
		s.log.Warn("change-feed publish failed", "event", event, "payment_id", p.ID, "error", err)
	}
}

func excluding(payments []billing.Payment, id uuid.UUID) []billing.Payment {
	out := payments[:0:0]
	for _, p := range payments {
		if p.ID != id {
			out = append(out, p)
		}
	}
	return out
}
