package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/vendormitra/server/internal/model"
)

const fast2smsURL = "https://www.fast2sms.com/dev/bulkV2"

// Fast2SMSProvider sends OTPs through the Fast2SMS gateway.
type Fast2SMSProvider struct {
	apiKey string
	client *http.Client
}

// NewFast2SMSProvider creates a Fast2SMS provider.
func NewFast2SMSProvider(apiKey string, client *http.Client) *Fast2SMSProvider {
	return &Fast2SMSProvider{apiKey: apiKey, client: client}
}

// Name implements Provider.
func (p *Fast2SMSProvider) Name() string { return "fast2sms" }

type fast2smsRequest struct {
	VariablesValues string `json:"variables_values"`
	Route           string `json:"route"`
	Numbers         string `json:"numbers"`
	Message         string `json:"message"`
}

type fast2smsResponse struct {
	Return    bool   `json:"return"`
	RequestID string `json:"request_id"`
}

// SendOTP delivers the code via Fast2SMS's OTP route.
func (p *Fast2SMSProvider) SendOTP(ctx context.Context, mobile, code string, locale model.Language) (Result, error) {
	payload, err := json.Marshal(fast2smsRequest{
		VariablesValues: code,
		Route:           "otp",
		Numbers:         strings.TrimPrefix(mobile, "+91"),
		Message:         otpMessage(code, locale),
	})
	if err != nil {
		return Result{}, fmt.Errorf("fast2sms marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fast2smsURL, bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("fast2sms request: %w", err)
	}
	req.Header.Set("authorization", p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("fast2sms send: %w", err)
	}
	defer resp.Body.Close()

	var body fast2smsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Result{}, fmt.Errorf("fast2sms decode response: %w", err)
	}
	if !body.Return {
		return Result{}, fmt.Errorf("fast2sms rejected send")
	}
	return Result{MessageID: body.RequestID}, nil
}
