// Package sms delivers OTP codes through interchangeable SMS gateways with
// sticky-success failover between them.
package sms

import (
	"context"
	"fmt"

	"github.com/vendormitra/server/internal/model"
)

// Result is the outcome of a successful dispatch.
type Result struct {
	MessageID string
}

// Provider is one SMS gateway capable of delivering an OTP code.
type Provider interface {
	Name() string
	SendOTP(ctx context.Context, mobile, code string, locale model.Language) (Result, error)
}

// otpMessage renders the localized SMS body. Hindi is the platform default;
// every other configured language falls back to English copy.
func otpMessage(code string, locale model.Language) string {
	if locale == model.LangHindi {
		return fmt.Sprintf("आपका OTP: %s। 10 मिनट में समाप्त। साझा न करें।", code)
	}
	return fmt.Sprintf("Your OTP: %s. Expires in 10 min. Don't share.", code)
}
