// Package postgres persists payment records. Every lookup is scoped by
// restaurant and bill; the service layer enforces domain invariants before
// anything reaches this package.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/msxsistemas/quick-bite-craft-sub000/internal/billing"
)

var ErrPaymentNotFound = errors.New("payment not found")

// Store is the payments table gateway.
type Store struct {
	db *sql.DB
}

// New wraps an open database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the payments table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS payments (
			id            UUID PRIMARY KEY,
			restaurant_id UUID NOT NULL,
			bill_id       TEXT NOT NULL,
			method        TEXT NOT NULL,
			amount        NUMERIC(12,2) NOT NULL,
			service_fee   NUMERIC(12,2) NOT NULL,
			fee_policy    TEXT NOT NULL,
			status        TEXT NOT NULL,
			customers     JSONB NOT NULL DEFAULT '[]',
			created_by    TEXT NOT NULL DEFAULT '',
			created_at    TIMESTAMPTZ NOT NULL,
			updated_at    TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("failed to create payments table: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS payments_bill_idx
		ON payments (restaurant_id, bill_id, created_at)`)
	if err != nil {
		return fmt.Errorf("failed to create payments index: %w", err)
	}
	return nil
}

// Insert writes a new payment row.
func (s *Store) Insert(ctx context.Context, p *billing.Payment) error {
	customers, err := json.Marshal(p.Customers)
	if err != nil {
		return fmt.Errorf("failed to marshal customers: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO payments (id, restaurant_id, bill_id, method, amount, service_fee,
		                       fee_policy, status, customers, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		p.ID, p.RestaurantID, p.BillID, p.Method, p.Amount, p.ServiceFee,
		p.FeePolicy, p.Status, customers, p.CreatedBy, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of an existing payment.
func (s *Store) Update(ctx context.Context, p *billing.Payment) error {
	customers, err := json.Marshal(p.Customers)
	if err != nil {
		return fmt.Errorf("failed to marshal customers: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE payments
		 SET method = $1, amount = $2, service_fee = $3, fee_policy = $4,
		     status = $5, customers = $6, updated_at = $7
		 WHERE id = $8 AND restaurant_id = $9`,
		p.Method, p.Amount, p.ServiceFee, p.FeePolicy,
		p.Status, customers, time.Now().UTC(), p.ID, p.RestaurantID,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	return requireRow(res)
}

// Get fetches one payment within a restaurant scope.
func (s *Store) Get(ctx context.Context, restaurantID, id uuid.UUID) (*billing.Payment, error) {
	row := s.db.QueryRowContext(ctx,
		selectColumns+` WHERE id = $1 AND restaurant_id = $2`, id, restaurantID)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return p, nil
}

// ListByBill returns every payment recorded against one bill, oldest first.
func (s *Store) ListByBill(ctx context.Context, restaurantID uuid.UUID, billID string) ([]billing.Payment, error) {
	rows, err := s.db.QueryContext(ctx,
		selectColumns+` WHERE restaurant_id = $1 AND bill_id = $2 ORDER BY created_at, id`,
		restaurantID, billID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []billing.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read payments: %w", err)
	}
	return payments, nil
}

// Delete removes one payment row.
func (s *Store) Delete(ctx context.Context, restaurantID, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM payments WHERE id = $1 AND restaurant_id = $2`, id, restaurantID)
	if err != nil {
		return fmt.Errorf("failed to delete payment: %w", err)
	}
	return requireRow(res)
}

// DeleteByBill clears every payment on a bill in one statement.
func (s *Store) DeleteByBill(ctx context.Context, restaurantID uuid.UUID, billID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM payments WHERE restaurant_id = $1 AND bill_id = $2`,
		restaurantID, billID)
	if err != nil {
		return fmt.Errorf("failed to clear payments: %w", err)
	}
	return nil
}

const selectColumns = `SELECT id, restaurant_id, bill_id, method, amount, service_fee,
       fee_policy, status, customers, created_by, created_at, updated_at
FROM payments`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (*billing.Payment, error) {
	var p billing.Payment
	var customers []byte
	err := row.Scan(&p.ID, &p.RestaurantID, &p.BillID, &p.Method, &p.Amount,
		&p.ServiceFee, &p.FeePolicy, &p.Status, &customers, &p.CreatedBy,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(customers) > 0 {
		if err := json.Unmarshal(customers, &p.Customers); err != nil {
			return nil, fmt.Errorf("failed to unmarshal customers: %w", err)
		}
	}
	return &p, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if n == 0 {
		return ErrPaymentNotFound
	}
	return nil
}
