package sms

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/vendormitra/server/internal/config"
	"github.com/vendormitra/server/internal/logging"
	"github.com/vendormitra/server/internal/model"
)

// ErrAllProvidersFailed is returned when every configured gateway rejected
// or failed the dispatch.
var ErrAllProvidersFailed = errors.New("all SMS providers failed")

// providerTimeout bounds each individual gateway call so an unresponsive
// provider cannot stall the whole send before failover kicks in.
const providerTimeout = 10 * time.Second

// Dispatcher routes OTP sends across an ordered provider list with
// sticky-success routing: the preferred provider is tried first, failures
// fall through the rest in order, and whichever provider succeeds becomes
// preferred for subsequent sends. The preference is explicit state here, not
// a hidden singleton, so it can be unit-tested with fakes.
type Dispatcher struct {
	mu        sync.Mutex
	providers []Provider
	preferred int
	logger    *slog.Logger
}

// NewDispatcher creates a Dispatcher over the given providers, preferring the
// first. At least one provider is required.
func NewDispatcher(logger *slog.Logger, providers ...Provider) *Dispatcher {
	return &Dispatcher{providers: providers, logger: logger}
}

// NewDispatcherFromConfig builds the provider chain from configured
// credentials, in the platform's preference order. The mock provider is
// appended in non-production (or when nothing else is configured) so local
// development always has a working last resort.
func NewDispatcherFromConfig(cfg *config.Config, logger *slog.Logger) *Dispatcher {
	client := &http.Client{Timeout: providerTimeout}

	var providers []Provider
	if cfg.TwoFactorAPIKey != "" {
		providers = append(providers, NewTwoFactorProvider(cfg.TwoFactorAPIKey, cfg.TwoFactorAPIURL, client))
	}
	if cfg.MSG91APIKey != "" {
		providers = append(providers, NewMSG91Provider(cfg.MSG91APIKey, cfg.MSG91APIURL, client))
	}
	if cfg.Fast2SMSAPIKey != "" {
		providers = append(providers, NewFast2SMSProvider(cfg.Fast2SMSAPIKey, client))
	}
	if !cfg.IsProduction() || len(providers) == 0 {
		providers = append(providers, NewMockProvider(logger))
	}

	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = p.Name()
	}
	logger.Info("sms dispatcher initialized", "providers", names)

	return NewDispatcher(logger, providers...)
}

// CurrentProvider returns the name of the currently preferred provider.
func (d *Dispatcher) CurrentProvider() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.providers[d.preferred].Name()
}

// SendOTP attempts delivery through the preferred provider, then each
// remaining provider in order. Any success updates the preference.
func (d *Dispatcher) SendOTP(ctx context.Context, mobile, code string, locale model.Language) (Result, error) {
	d.mu.Lock()
	order := make([]int, 0, len(d.providers))
	order = append(order, d.preferred)
	for i := range d.providers {
		if i != d.preferred {
			order = append(order, i)
		}
	}
	d.mu.Unlock()

	masked := logging.MaskMobile(mobile)
	for _, idx := range order {
		p := d.providers[idx]

		callCtx, cancel := context.WithTimeout(ctx, providerTimeout)
		result, err := p.SendOTP(callCtx, mobile, code, locale)
		cancel()

		if err != nil {
			d.logger.Warn("sms provider failed", "provider", p.Name(), "mobile", masked, "error", err)
			continue
		}

		d.mu.Lock()
		d.preferred = idx
		d.mu.Unlock()

		d.logger.Info("sms sent", "provider", p.Name(), "mobile", masked, "messageId", result.MessageID)
		return result, nil
	}

	d.logger.Error("all sms providers failed", "mobile", masked)
	return Result{}, ErrAllProvidersFailed
}
