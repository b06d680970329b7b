package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverityOrdering(t *testing.T) {
	ordered := []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
	for i, lower := range ordered {
		for j, higher := range ordered {
			if j >= i {
				assert.True(t, higher.AtLeast(lower), "%s should be at least %s", higher, lower)
			} else {
				assert.False(t, higher.AtLeast(lower), "%s should not be at least %s", higher, lower)
			}
		}
	}
}

func TestParseSeverity(t *testing.T) {
	for _, s := range []string{"low", "medium", "high", "critical"} {
		parsed, err := ParseSeverity(s)
		require.NoError(t, err)
		assert.Equal(t, s, parsed.String())
		assert.True(t, parsed.Valid())
	}

	for _, s := range []string{"", "LOW", "severe", "critical "} {
		_, err := ParseSeverity(s)
		assert.Error(t, err, "input %q", s)
	}
}

func TestParseEventStatus(t *testing.T) {
	for _, s := range []string{"open", "investigating", "resolved", "false_positive"} {
		parsed, err := ParseEventStatus(s)
		require.NoError(t, err)
		assert.Equal(t, EventStatus(s), parsed)
	}

	_, err := ParseEventStatus("closed")
	assert.Error(t, err)
}
