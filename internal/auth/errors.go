package auth

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidMobileFormat is returned when the mobile number is not E.164.
	ErrInvalidMobileFormat = errors.New("invalid mobile number format")

	// ErrMissingFields is returned when a required request field is absent.
	ErrMissingFields = errors.New("missing required fields")

	// ErrNoActiveChallenge is returned when no unverified, unexpired OTP
	// challenge exists for the mobile number.
	ErrNoActiveChallenge = errors.New("no valid OTP found")

	// ErrChallengeExpired is returned when the challenge exists but is past
	// its expiry; the caller must request a new OTP.
	ErrChallengeExpired = errors.New("OTP has expired")

	// ErrAttemptsExhausted is returned once the attempt limit is reached.
	// The challenge is terminal even if the correct code is presented.
	ErrAttemptsExhausted = errors.New("maximum OTP attempts exceeded")

	// ErrUserAlreadyExists is returned when CompleteProfile is called for a
	// mobile number that already has an account.
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrUserNotFound is returned when the user referenced by a token no
	// longer exists.
	ErrUserNotFound = errors.New("user not found")

	// ErrDispatchFailed is returned when every SMS provider failed to
	// deliver the code. The challenge is retained so a resend can succeed
	// without re-validating the number.
	ErrDispatchFailed = errors.New("failed to send OTP")

	// ErrHashingFailed wraps infrastructure failures in the credential
	// hasher. Never conflated with a plain mismatch.
	ErrHashingFailed = errors.New("hashing failed")

	// ErrValidation wraps profile field validation failures.
	ErrValidation = errors.New("validation failed")
)

// CooldownError is returned when a resend is requested before the per-number
// cooldown has elapsed. Tighter than the rate limiter, keyed to the challenge.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("please wait %d seconds before requesting new OTP", int(e.Remaining.Seconds()))
}

// InvalidCodeError is returned on an OTP mismatch, carrying how many attempts
// the caller has left before the challenge becomes terminal.
type InvalidCodeError struct {
	Remaining int
}

func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("invalid OTP, %d attempts remaining", e.Remaining)
}
