package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateOTPCode_LengthAndDigits(t *testing.T) {
	code, err := GenerateOTPCode(6)
	require.NoError(t, err)
	require.Len(t, code, 6)
	for _, c := range code {
		assert.True(t, c >= '0' && c <= '9', "code must be numeric, got %q", code)
	}
}

func TestGenerateOTPCode_DefaultsLength(t *testing.T) {
	code, err := GenerateOTPCode(0)
	require.NoError(t, err)
	assert.Len(t, code, 6)
}

func TestValidMobileNumber(t *testing.T) {
	valid := []string{"+919876543210", "+14155550123", "+4915123456789", "+12"}
	for _, m := range valid {
		assert.True(t, ValidMobileNumber(m), "expected %q to be valid", m)
	}

	invalid := []string{
		"",
		"9876543210",        // missing +
		"+09876543210",      // leading zero
		"+91 98765 43210",   // spaces
		"+91-9876543210",    // dashes
		"+9198765432101234", // too long
		"+1",                // too short
		"+91abc",            // letters
	}
	for _, m := range invalid {
		assert.False(t, ValidMobileNumber(m), "expected %q to be invalid", m)
	}
}
