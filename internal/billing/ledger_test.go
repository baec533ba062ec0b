package billing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func terms(subtotal, rate string) Terms {
	return Terms{Subtotal: dec(subtotal), FeeRatePercent: dec(rate)}
}

func TestTermsDerivedTotals(t *testing.T) {
	tm := terms("100.00", "10")
	assert.True(t, dec("10.00").Equal(tm.ServiceFee()), "fee = %s", tm.ServiceFee())
	assert.True(t, dec("110.00").Equal(tm.GrandTotal()), "grand = %s", tm.GrandTotal())

	// Fee rounds to cents.
	tm = terms("33.33", "10")
	assert.True(t, dec("3.33").Equal(tm.ServiceFee()), "fee = %s", tm.ServiceFee())
}

func TestSummarizeEmptyBill(t *testing.T) {
	s := Summarize(terms("50.00", "12"), nil)
	assert.True(t, dec("56.00").Equal(s.GrandTotal))
	assert.True(t, s.TotalPaid.IsZero())
	assert.True(t, dec("56.00").Equal(s.Remaining))
	assert.False(t, s.Settled)
}

func TestSummarizeConservation(t *testing.T) {
	tm := terms("87.90", "13")
	payments := []Payment{
		{Method: MethodCash, Status: StatusCompleted, Amount: dec("30.00"), ServiceFee: dec("3.90")},
		{Method: MethodPix, Status: StatusPending, Amount: dec("25.50"), ServiceFee: dec("3.32")},
		{Method: MethodCard, Status: StatusCompleted, Amount: dec("10.00"), ServiceFee: decimal.Zero},
	}

	s := Summarize(tm, payments)
	// totalPaid + remaining == grandTotal, to the cent, for any payment mix.
	assert.True(t, s.TotalPaid.Add(s.Remaining).Equal(s.GrandTotal),
		"paid %s + remaining %s != grand %s", s.TotalPaid, s.Remaining, s.GrandTotal)
}

func TestSummarizeExcludesExpired(t *testing.T) {
	tm := terms("100.00", "0")
	payments := []Payment{
		{Method: MethodPix, Status: StatusExpired, Amount: dec("40.00"), ServiceFee: decimal.Zero},
		{Method: MethodCash, Status: StatusCompleted, Amount: dec("60.00"), ServiceFee: decimal.Zero},
	}
	s := Summarize(tm, payments)
	assert.True(t, dec("60.00").Equal(s.TotalPaid), "expired payment must not count, paid = %s", s.TotalPaid)
	assert.False(t, s.Settled)
}

func TestSettledBoundary(t *testing.T) {
	tm := terms("100.00", "0")
	pay := func(amount string) []Payment {
		return []Payment{{Method: MethodCash, Status: StatusCompleted, Amount: dec(amount), ServiceFee: decimal.Zero}}
	}

	assert.False(t, Summarize(tm, pay("99.99")).Settled)
	assert.True(t, Summarize(tm, pay("100.00")).Settled)

	// Over-payment stays visible as negative remaining, never clamped.
	over := Summarize(tm, pay("120.00"))
	assert.True(t, over.Settled)
	assert.True(t, dec("-20.00").Equal(over.Remaining), "remaining = %s", over.Remaining)
}

func TestFeePolicies(t *testing.T) {
	assert.True(t, dec("6.00").Equal(ProportionalFee(dec("60.00"), dec("10"))))
	assert.True(t, dec("1.33").Equal(ProportionalFee(dec("13.30"), dec("10"))))

	assert.True(t, dec("4.00").Equal(FeeFor(FeeIntegral, dec("44.00"), dec("10"), dec("4.00"))))
	assert.True(t, FeeFor(FeeNone, dec("44.00"), dec("10"), dec("4.00")).IsZero())
	assert.True(t, dec("4.40").Equal(FeeFor(FeeProportional, dec("44.00"), dec("10"), dec("4.00"))))
}

func TestOutstandingFee(t *testing.T) {
	tm := terms("100.00", "10")

	assert.True(t, dec("10.00").Equal(OutstandingFee(tm, nil)))

	payments := []Payment{{Method: MethodCash, Status: StatusCompleted, Amount: dec("60.00"), ServiceFee: dec("6.00")}}
	assert.True(t, dec("4.00").Equal(OutstandingFee(tm, payments)))

	// Over-carried fee floors at zero, never goes negative.
	payments = append(payments, Payment{Method: MethodCard, Status: StatusCompleted, Amount: dec("10.00"), ServiceFee: dec("8.00")})
	assert.True(t, OutstandingFee(tm, payments).IsZero())
}

func TestPerPersonShare(t *testing.T) {
	assert.True(t, dec("25.00").Equal(PerPersonShare(dec("100.00"), 4)))
	assert.True(t, dec("33.34").Equal(PerPersonShare(dec("100.01"), 3)))

	// Zero ways behaves as one; negative remaining splits to zero.
	assert.True(t, dec("44.00").Equal(PerPersonShare(dec("44.00"), 0)))
	assert.True(t, PerPersonShare(dec("-4.00"), 2).IsZero())
	assert.True(t, PerPersonShare(decimal.Zero, 2).IsZero())
}

// Mirrors a full table settlement: 100.00 at 10% fee, a cash payment with a
// proportional fee, then an instant transfer absorbing the leftover fee and
// over-paying the bill.
func TestSettlementScenario(t *testing.T) {
	tm := terms("100.00", "10")
	require.True(t, dec("110.00").Equal(tm.GrandTotal()))

	var payments []Payment

	a := Payment{
		Method:     MethodCash,
		Status:     InitialStatus(MethodCash),
		Amount:     dec("60.00"),
		FeePolicy:  FeeProportional,
		ServiceFee: FeeFor(FeeProportional, dec("60.00"), tm.FeeRatePercent, OutstandingFee(tm, payments)),
	}
	require.Equal(t, StatusCompleted, a.Status)
	require.True(t, dec("6.00").Equal(a.ServiceFee))
	payments = append(payments, a)

	s := Summarize(tm, payments)
	assert.True(t, dec("66.00").Equal(s.TotalPaid))
	assert.True(t, dec("44.00").Equal(s.Remaining))
	assert.False(t, s.Settled)

	b := Payment{
		Method:     MethodPix,
		Status:     InitialStatus(MethodPix),
		Amount:     dec("44.00"),
		FeePolicy:  FeeIntegral,
		ServiceFee: FeeFor(FeeIntegral, dec("44.00"), tm.FeeRatePercent, OutstandingFee(tm, payments)),
	}
	require.Equal(t, StatusPending, b.Status)
	require.True(t, dec("4.00").Equal(b.ServiceFee), "integral fee = %s", b.ServiceFee)
	payments = append(payments, b)

	s = Summarize(tm, payments)
	assert.True(t, dec("114.00").Equal(s.TotalPaid))
	assert.True(t, dec("-4.00").Equal(s.Remaining))
	assert.True(t, s.Settled, "over-paid bill is settled")
}
