package billing

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Terms are the bill-level inputs owned by order aggregation: the sum of the
// ordered items and the service-fee rate as a percentage (10 means 10%).
type Terms struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	FeeRatePercent decimal.Decimal `json:"fee_rate_percent"`
}

// ServiceFee is the total surcharge the bill carries, rounded to cents.
func (t Terms) ServiceFee() decimal.Decimal {
	return t.Subtotal.Mul(t.FeeRatePercent).Div(hundred).Round(2)
}

// GrandTotal is always derived, never stored.
func (t Terms) GrandTotal() decimal.Decimal {
	return t.Subtotal.Add(t.ServiceFee())
}

// Summary is the settlement ledger: a pure projection over the current
// payment list. It holds no state of its own, so it cannot drift from the
// recorded payments. Remaining may be negative (over-payment) and is never
// clamped here; callers decide how to surface it.
type Summary struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	ServiceFee decimal.Decimal `json:"service_fee"`
	GrandTotal decimal.Decimal `json:"grand_total"`
	TotalPaid  decimal.Decimal `json:"total_paid"`
	Remaining  decimal.Decimal `json:"remaining"`
	Settled    bool            `json:"settled"`
}

// Summarize recomputes the ledger from scratch. Expired payments never moved
// money and are excluded; pending instant transfers count, since the charge
// is already held open with the network.
func Summarize(terms Terms, payments []Payment) Summary {
	fee := terms.ServiceFee()
	grand := terms.Subtotal.Add(fee)

	paid := decimal.Zero
	for _, p := range payments {
		if p.Status == StatusExpired {
			continue
		}
		paid = paid.Add(p.Amount).Add(p.ServiceFee)
	}

	remaining := grand.Sub(paid)
	return Summary{
		Subtotal:   terms.Subtotal,
		ServiceFee: fee,
		GrandTotal: grand,
		TotalPaid:  paid,
		Remaining:  remaining,
		Settled:    remaining.Sign() <= 0,
	}
}

// OutstandingFee is the part of the bill's service fee not yet carried by
// any recorded payment. Floored at zero: an integral-fee payment can never
// be asked to contribute a negative amount.
func OutstandingFee(terms Terms, payments []Payment) decimal.Decimal {
	carried := decimal.Zero
	for _, p := range payments {
		if p.Status == StatusExpired {
			continue
		}
		carried = carried.Add(p.ServiceFee)
	}
	out := terms.ServiceFee().Sub(carried)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}
