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

// MSG91Provider sends OTPs through the MSG91 gateway.
type MSG91Provider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewMSG91Provider creates an MSG91 provider.
func NewMSG91Provider(apiKey, baseURL string, client *http.Client) *MSG91Provider {
	return &MSG91Provider{apiKey: apiKey, baseURL: baseURL, client: client}
}

// Name implements Provider.
func (p *MSG91Provider) Name() string { return "msg91" }

type msg91Request struct {
	AuthKey string `json:"authkey"`
	Mobiles string `json:"mobiles"`
	Message string `json:"message"`
	Sender  string `json:"sender"`
	Route   int    `json:"route"`
	Country int    `json:"country"`
}

type msg91Response struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// SendOTP delivers the code via MSG91's transactional route.
func (p *MSG91Provider) SendOTP(ctx context.Context, mobile, code string, locale model.Language) (Result, error) {
	payload, err := json.Marshal(msg91Request{
		AuthKey: p.apiKey,
		Mobiles: strings.TrimPrefix(mobile, "+91"),
		Message: otpMessage(code, locale),
		Sender:  "VENDOR",
		Route:   4,
		Country: 91,
	})
	if err != nil {
		return Result{}, fmt.Errorf("msg91 marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/sendhttp.php", bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("msg91 request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("msg91 send: %w", err)
	}
	defer resp.Body.Close()

	var body msg91Response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Result{}, fmt.Errorf("msg91 decode response: %w", err)
	}
	if body.Type != "success" {
		return Result{}, fmt.Errorf("msg91 rejected send: %s", body.Message)
	}
	return Result{MessageID: body.Message}, nil
}
