package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePowerCode(t *testing.T) {
	tests := []struct {
		raw   string
		ok    bool
		label string
		on    bool
	}{
		{"01", true, "On", true},
		{"02", true, "Warm Up", false},
		{"03", true, "Cool Down", false},
		{"04", true, "Standby, Network On", false},
		{"05", true, "Abnormal Standby", false},
		{"09", false, "Unknown", false},
		{"", false, "Unknown", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			code, ok := ParsePowerCode(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.label, code.Label())
			assert.Equal(t, tt.on, code.IsOn())
		})
	}
}

func TestResolvePropertyQuery(t *testing.T) {
	q := ResolvePropertyQuery("LUMLEVEL")
	assert.Equal(t, "LUMLEVEL=", q.Anchor)
	assert.False(t, q.KeepAnchor)

	q = ResolvePropertyQuery("AXESADJ", WithAnchor("R="), WithAnchorKept())
	assert.Equal(t, "R=", q.Anchor)
	assert.True(t, q.KeepAnchor)

	q = ResolvePropertyQuery("QC", WithAnchor(""))
	assert.Equal(t, "QC=", q.Anchor)
}
