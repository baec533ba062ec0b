package loyalty

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProfileFromHash(t *testing.T) {
	p := profileFromHash(map[string]string{
		"phone":     "+5511988887777",
		"name":      "Ana",
		"visits":    "7",
		"last_seen": "2026-08-30T19:42:00Z",
	})

	assert.Equal(t, "+5511988887777", p.Phone)
	assert.Equal(t, "Ana", p.Name)
	assert.Equal(t, int64(7), p.Visits)
	assert.Equal(t, time.Date(2026, 8, 30, 19, 42, 0, 0, time.UTC), p.LastSeen)
}

func TestProfileFromHashToleratesBadFields(t *testing.T) {
	p := profileFromHash(map[string]string{
		"phone":     "+5511988887777",
		"visits":    "not-a-number",
		"last_seen": "yesterday",
	})

	assert.Equal(t, int64(0), p.Visits)
	assert.True(t, p.LastSeen.IsZero())
}
