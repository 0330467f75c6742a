package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/vendormitra/server/internal/model"
)

// TwoFactorProvider sends OTPs through the 2Factor.in gateway.
type TwoFactorProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewTwoFactorProvider creates a 2Factor provider. The client's timeout
// bounds each dispatch so an unresponsive gateway cannot stall SendOTP.
func NewTwoFactorProvider(apiKey, baseURL string, client *http.Client) *TwoFactorProvider {
	return &TwoFactorProvider{apiKey: apiKey, baseURL: baseURL, client: client}
}

// Name implements Provider.
func (p *TwoFactorProvider) Name() string { return "2factor" }

type twoFactorResponse struct {
	Status  string `json:"Status"`
	Details string `json:"Details"`
}

// SendOTP delivers the code via 2Factor's voice/SMS OTP endpoint.
func (p *TwoFactorProvider) SendOTP(ctx context.Context, mobile, code string, _ model.Language) (Result, error) {
	// 2Factor takes national numbers without the +91 prefix.
	national := strings.TrimPrefix(mobile, "+91")
	url := fmt.Sprintf("%s/%s/SMS/%s/%s", p.baseURL, p.apiKey, national, code)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return Result{}, fmt.Errorf("2factor request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("2factor send: %w", err)
	}
	defer resp.Body.Close()

	var body twoFactorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Result{}, fmt.Errorf("2factor decode response: %w", err)
	}
	if body.Status != "Success" {
		return Result{}, fmt.Errorf("2factor rejected send: %s", body.Details)
	}
	return Result{MessageID: body.Details}, nil
}
