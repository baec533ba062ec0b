package messaging

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestBillSubjects(t *testing.T) {
	restaurantID := uuid.MustParse("a2c8e6a4-0b1e-4f3a-9a68-4a6c0fbe1c11")

	subject := BillSubject(restaurantID, "table-12", EventPaymentRecorded)
	assert.Equal(t, "settlement.a2c8e6a4-0b1e-4f3a-9a68-4a6c0fbe1c11.table-12.payment.recorded", subject)

	wildcard := BillWildcard(restaurantID, "table-12")
	assert.Equal(t, "settlement.a2c8e6a4-0b1e-4f3a-9a68-4a6c0fbe1c11.table-12.>", wildcard)
}
