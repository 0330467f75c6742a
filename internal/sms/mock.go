package sms

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vendormitra/server/internal/model"
)

// MockProvider performs no network I/O and always succeeds, logging the code.
// It is registered as the guaranteed last resort so local development never
// blocks on missing gateway credentials.
type MockProvider struct {
	logger *slog.Logger
}

// NewMockProvider creates a MockProvider logging through the given logger.
func NewMockProvider(logger *slog.Logger) *MockProvider {
	return &MockProvider{logger: logger}
}

// Name implements Provider.
func (p *MockProvider) Name() string { return "mock" }

// SendOTP logs the message instead of sending it. The code is intentionally
// visible here; this provider must never be reachable in production.
func (p *MockProvider) SendOTP(_ context.Context, mobile, code string, locale model.Language) (Result, error) {
	p.logger.Info("mock sms sent", "mobile", mobile, "message", otpMessage(code, locale))
	return Result{MessageID: fmt.Sprintf("mock_%d", time.Now().UnixMilli())}, nil
}
