package pix

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChecksumReferenceVectors(t *testing.T) {
	// Published CRC-16/CCITT-FALSE check values.
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"standard check string", "123456789", "29B1"},
		{"single byte", "A", "B915"},
		{"empty input keeps the initial register", "", "FFFF"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Checksum(tt.input))
		})
	}
}

func TestChecksumIsUppercaseHex(t *testing.T) {
	got := Checksum("some arbitrary payload text")
	assert.Len(t, got, 4)
	for _, r := range got {
		assert.Contains(t, "0123456789ABCDEF", string(r))
	}
}
