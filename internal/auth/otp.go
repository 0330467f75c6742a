package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
)

// mobilePattern matches international E.164: "+", first digit 1-9, up to 14
// more digits.
var mobilePattern = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// ValidMobileNumber reports whether mobile is a well-formed E.164 number.
func ValidMobileNumber(mobile string) bool {
	return mobilePattern.MatchString(mobile)
}

// GenerateOTPCode returns a random numeric code of the given length, each
// digit drawn uniformly from crypto/rand.
func GenerateOTPCode(length int) (string, error) {
	if length <= 0 {
		length = 6
	}
	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("generate otp digit: %w", err)
		}
		code[i] = byte('0' + n.Int64())
	}
	return string(code), nil
}
