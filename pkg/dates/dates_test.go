package dates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "certo/pkg/domain-errors"
)

func TestParseFlexible(t *testing.T) {
	t.Run("parses ISO", func(t *testing.T) {
		got, err := ParseFlexible("2025-01-31")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), got)
	})

	t.Run("parses display format", func(t *testing.T) {
		got, err := ParseFlexible("31/01/2025")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), got)
	})

	t.Run("empty string is zero time", func(t *testing.T) {
		got, err := ParseFlexible("")
		require.NoError(t, err)
		assert.True(t, got.IsZero())
	})

	t.Run("rejects other formats", func(t *testing.T) {
		_, err := ParseFlexible("Jan 31 2025")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

// Round-trip is the contract template metadata editing relies on: the only
// transformation between what an operator typed and what they read back is
// the documented encoding change.
func TestRoundTrip(t *testing.T) {
	parsed, err := ParseFlexible("02/12/2027")
	require.NoError(t, err)
	assert.Equal(t, "2027-12-02", FormatISO(parsed))
	assert.Equal(t, "02/12/2027", FormatDisplay(parsed))

	reparsed, err := ParseFlexible(FormatISO(parsed))
	require.NoError(t, err)
	assert.True(t, parsed.Equal(reparsed))
}

func TestFormatZero(t *testing.T) {
	assert.Equal(t, "", FormatISO(time.Time{}))
	assert.Equal(t, "", FormatDisplay(time.Time{}))
}
