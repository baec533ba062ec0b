package pix

import (
	"strconv"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parseFields splits a payload into its top-level tag -> value map and
// verifies every length header matches its value on the way.
func parseFields(t *testing.T, payload string) map[string]string {
	t.Helper()
	fields := make(map[string]string)
	for i := 0; i < len(payload); {
		require.GreaterOrEqual(t, len(payload)-i, 4, "truncated field header at offset %d", i)
		tag := payload[i : i+2]
		length, err := strconv.Atoi(payload[i+2 : i+4])
		require.NoError(t, err, "non-numeric length for tag %s", tag)
		require.GreaterOrEqual(t, len(payload), i+4+length, "length overruns payload for tag %s", tag)
		fields[tag] = payload[i+4 : i+4+length]
		i += 4 + length
	}
	return fields
}

func sampleCharge() Charge {
	return Charge{
		Key:          "+55 (11) 99999-9999",
		KeyType:      KeyPhone,
		MerchantName: "Cantina São João",
		MerchantCity: "São Paulo",
		Amount:       decimal.RequireFromString("10.00"),
		TxID:         "MESA-12",
	}
}

func TestEncodeDeterminism(t *testing.T) {
	c := sampleCharge()
	assert.Equal(t, c.Encode(), c.Encode())

	// Over-length names truncate the same way every time.
	c.MerchantName = strings.Repeat("Churrascaria Espetáculo ", 4)
	assert.Equal(t, c.Encode(), c.Encode())
}

func TestEncodeFieldLayout(t *testing.T) {
	payload := sampleCharge().Encode()
	fields := parseFields(t, payload)

	assert.Equal(t, "01", fields[tagPayloadFormat])
	assert.Equal(t, "12", fields[tagInitiationMethod])
	assert.Equal(t, "0000", fields[tagMerchantCategory])
	assert.Equal(t, "986", fields[tagCurrency])
	assert.Equal(t, "10.00", fields[tagAmount])
	assert.Equal(t, "BR", fields[tagCountryCode])
	assert.Equal(t, "Cantina Sao Joao", fields[tagMerchantName])
	assert.Equal(t, "Sao Paulo", fields[tagMerchantCity])
	assert.True(t, strings.HasPrefix(payload, "000201"))

	account := parseFields(t, fields[tagMerchantAccount])
	assert.Equal(t, "br.gov.bcb.pix", account[subGUI])
	assert.Equal(t, "+5511999999999", account[subKey])

	extra := parseFields(t, fields[tagAdditionalData])
	assert.Equal(t, "MESA12", extra[subTxID])
}

func TestEncodeChecksumValidates(t *testing.T) {
	payload := sampleCharge().Encode()
	require.Greater(t, len(payload), 4)
	assert.Equal(t, Checksum(payload[:len(payload)-4]), payload[len(payload)-4:])
}

func TestEncodeOmitsZeroAmount(t *testing.T) {
	c := sampleCharge()
	c.Amount = decimal.Zero
	payload := c.Encode()

	fields := parseFields(t, payload)
	_, present := fields[tagAmount]
	assert.False(t, present, "amount field must be omitted for an open charge")

	// The shortened payload still carries a checksum that validates.
	assert.Equal(t, Checksum(payload[:len(payload)-4]), payload[len(payload)-4:])
}

func TestEncodeSanitizesInsteadOfFailing(t *testing.T) {
	c := Charge{
		Key:          "",
		KeyType:      KeyRandom,
		MerchantName: "Café & Bistrô — Sé",
		MerchantCity: "",
		Amount:       decimal.RequireFromString("3.50"),
		TxID:         "mesa #7!",
		Description:  strings.Repeat("observação longa ", 10),
	}
	payload := c.Encode()
	fields := parseFields(t, payload)

	assert.Equal(t, "Cafe Bistro Se", fields[tagMerchantName])
	assert.Equal(t, "", fields[tagMerchantCity], "empty city still emitted with empty value")

	account := parseFields(t, fields[tagMerchantAccount])
	assert.Equal(t, "", account[subKey], "empty key still emitted with empty value")
	assert.LessOrEqual(t, len(account[subDescription]), maxDescriptionLen)

	extra := parseFields(t, fields[tagAdditionalData])
	assert.Equal(t, "mesa7", extra[subTxID])

	for i := 0; i < len(payload); i++ {
		assert.Less(t, payload[i], byte(128), "payload must be pure ASCII")
	}
}

func TestEncodeCapsOversizedKey(t *testing.T) {
	c := Charge{
		Key:          strings.Repeat("k", 120),
		KeyType:      KeyRandom,
		MerchantName: "Cantina São João",
		MerchantCity: "São Paulo",
		Amount:       decimal.RequireFromString("25.00"),
		TxID:         "MESA-3",
		Description:  strings.Repeat("rodizio completo ", 8),
	}
	payload := c.Encode()

	// parseFields walks every length header; a three-digit length would
	// desync the walk and fail it.
	fields := parseFields(t, payload)
	assert.LessOrEqual(t, len(fields[tagMerchantAccount]), maxValueLen)

	account := parseFields(t, fields[tagMerchantAccount])
	assert.Equal(t, strings.Repeat("k", maxKeyLen), account[subKey])
	assert.Equal(t, Checksum(payload[:len(payload)-4]), payload[len(payload)-4:])
}

func TestEncodeShrinksDescriptionToFitAccountBlock(t *testing.T) {
	c := sampleCharge()
	c.Description = strings.Repeat("meia porção ", 12)
	payload := c.Encode()

	fields := parseFields(t, payload)
	require.LessOrEqual(t, len(fields[tagMerchantAccount]), maxValueLen)

	account := parseFields(t, fields[tagMerchantAccount])
	assert.Equal(t, "+5511999999999", account[subKey], "the key always wins over the description")
	assert.NotEmpty(t, account[subDescription])
}

func TestEncodeDefaultTxID(t *testing.T) {
	c := sampleCharge()
	c.TxID = ""
	fields := parseFields(t, c.Encode())
	extra := parseFields(t, fields[tagAdditionalData])
	assert.Equal(t, "***", extra[subTxID])
}

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		key  string
		kt   KeyType
		want string
	}{
		{"(11) 98888-7777", KeyPhone, "+5511988887777"},
		{"+55 11 98888 7777", KeyPhone, "+5511988887777"},
		{"123.456.789-09", KeyCPF, "12345678909"},
		{"12.345.678/0001-95", KeyCNPJ, "12345678000195"},
		{"Financeiro@Restaurante.COM", KeyEmail, "financeiro@restaurante.com"},
		{"b6685cfa-7c3c-4c41-a42e-9e0005e4e7b3", KeyRandom, "b6685cfa-7c3c-4c41-a42e-9e0005e4e7b3"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeKey(tt.key, tt.kt), "key %q type %s", tt.key, tt.kt)
	}
}
