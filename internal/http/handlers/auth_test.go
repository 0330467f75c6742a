package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendormitra/server/internal/auth"
	httpx "github.com/vendormitra/server/internal/http"
	"github.com/vendormitra/server/internal/http/handlers"
	"github.com/vendormitra/server/internal/logging"
	"github.com/vendormitra/server/internal/model"
	"github.com/vendormitra/server/internal/ratelimit"
	"github.com/vendormitra/server/internal/repo"
	"github.com/vendormitra/server/internal/sms"
)

const testMobile = "+919876543210"

// captureSender records the last dispatched code so tests can verify it.
type captureSender struct {
	mu       sync.Mutex
	lastCode string
}

func (c *captureSender) SendOTP(_ context.Context, _, code string, _ model.Language) (sms.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastCode = code
	return sms.Result{MessageID: "test-1"}, nil
}

func (c *captureSender) code() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastCode
}

type apiFixture struct {
	router http.Handler
	sender *captureSender
	svc    *auth.Service
	now    time.Time
}

func newAPIFixture(t *testing.T, otpLimitMax int) *apiFixture {
	t.Helper()

	otpRepo := repo.NewMemoryOtpRepo(0)
	t.Cleanup(otpRepo.Close)
	userRepo := repo.NewMemoryUserRepo()
	sender := &captureSender{}
	logger := logging.Discard()

	tokens := auth.NewTokenService(
		"test-access-secret-at-least-32-characters",
		"test-refresh-secret-at-least-32-characters",
		time.Hour,
		7*24*time.Hour,
	)

	f := &apiFixture{
		sender: sender,
		now:    time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	otpRepo.SetClock(clock)

	f.svc = auth.NewService(otpRepo, userRepo, auth.NewHasher(4), tokens, sender, auth.DefaultPolicy(), logger)
	f.svc.SetClock(clock)

	otpLimiter := ratelimit.NewMemoryLimiter(otpLimitMax, 10*time.Minute)
	t.Cleanup(otpLimiter.Close)

	generous := func() ratelimit.Limiter {
		l := ratelimit.NewMemoryLimiter(1000, time.Minute)
		t.Cleanup(l.Close)
		return l
	}

	authHandler := handlers.NewAuthHandler(f.svc, otpLimiter, false, logger)
	f.router = httpx.NewRouter(authHandler, tokens, userRepo, httpx.Limiters{
		General:         generous(),
		Verify:          generous(),
		CompleteProfile: generous(),
		Refresh:         generous(),
	}, "http://localhost:3000", logger)

	return f
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func (f *apiFixture) sendOTP(t *testing.T) string {
	t.Helper()
	rec, _ := f.do(t, http.MethodPost, "/api/auth/send-otp", map[string]any{"mobileNumber": testMobile}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	return f.sender.code()
}

func profileBody() map[string]any {
	return map[string]any{
		"mobileNumber": testMobile,
		"name":         "Ramesh Kumar",
		"businessType": "street_vendor",
		"location": map[string]any{
			"city":    "Pune",
			"state":   "Maharashtra",
			"pincode": "411001",
		},
		"preferredLanguage": "hindi",
	}
}

func TestAPI_FullSignupFlow(t *testing.T) {
	f := newAPIFixture(t, 100)

	// 1. Request an OTP.
	rec, body := f.do(t, http.MethodPost, "/api/auth/send-otp", map[string]any{"mobileNumber": testMobile, "language": "hindi"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 600, body["expiresIn"])

	// 2. Verify it; the number is unknown, so profile setup is required.
	rec, body = f.do(t, http.MethodPost, "/api/auth/verify-otp", map[string]any{"mobileNumber": testMobile, "otp": f.sender.code()}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["isNewUser"])
	assert.Equal(t, true, body["requiresProfileSetup"])
	assert.Nil(t, body["tokens"])

	// 3. Complete the profile, receiving the first token pair.
	rec, body = f.do(t, http.MethodPost, "/api/auth/complete-profile", profileBody(), nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	tokens := body["tokens"].(map[string]any)
	access := tokens["accessToken"].(string)
	refresh := tokens["refreshToken"].(string)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)
	user := body["user"].(map[string]any)
	assert.Equal(t, testMobile, user["mobileNumber"])
	assert.Equal(t, false, user["isVerified"])

	// 4. The access token opens the protected surface.
	rec, body = f.do(t, http.MethodGet, "/api/auth/me", nil, map[string]string{"Authorization": "Bearer " + access})
	require.Equal(t, http.StatusOK, rec.Code)
	me := body["user"].(map[string]any)
	assert.Equal(t, "Ramesh Kumar", me["name"])
	assert.NotNil(t, me["preferences"], "the owner view includes preferences")

	// 5. Refresh mints a fresh pair.
	rec, body = f.do(t, http.MethodPost, "/api/auth/refresh-token", map[string]any{"refreshToken": refresh}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	fresh := body["tokens"].(map[string]any)
	assert.NotEmpty(t, fresh["accessToken"])

	// 6. Logout succeeds with the access token.
	rec, _ = f.do(t, http.MethodPost, "/api/auth/logout", map[string]any{"deviceToken": "fcm-1"}, map[string]string{"Authorization": "Bearer " + access})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPI_ReturningUserLogin(t *testing.T) {
	f := newAPIFixture(t, 100)

	code := f.sendOTP(t)
	rec, _ := f.do(t, http.MethodPost, "/api/auth/verify-otp", map[string]any{"mobileNumber": testMobile, "otp": code}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = f.do(t, http.MethodPost, "/api/auth/complete-profile", profileBody(), nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	// Second login on the now-known number returns tokens directly.
	f.now = f.now.Add(3 * time.Minute)
	code = f.sendOTP(t)
	rec, body := f.do(t, http.MethodPost, "/api/auth/verify-otp", map[string]any{"mobileNumber": testMobile, "otp": code}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["isNewUser"])
	require.NotNil(t, body["tokens"])
	require.NotNil(t, body["user"])
}

func TestAPI_SendOTP_InvalidMobile(t *testing.T) {
	f := newAPIFixture(t, 100)

	rec, body := f.do(t, http.MethodPost, "/api/auth/send-otp", map[string]any{"mobileNumber": "9876543210"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["success"])
}

func TestAPI_SendOTP_Cooldown(t *testing.T) {
	f := newAPIFixture(t, 100)
	f.sendOTP(t)

	f.now = f.now.Add(30 * time.Second)
	rec, body := f.do(t, http.MethodPost, "/api/auth/send-otp", map[string]any{"mobileNumber": testMobile}, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.EqualValues(t, 90, body["cooldownRemaining"])
}

func TestAPI_SendOTP_RateLimited(t *testing.T) {
	f := newAPIFixture(t, 1)
	f.sendOTP(t)

	// The second request for the same number trips the OTP limiter before
	// the cooldown is even consulted.
	rec, body := f.do(t, http.MethodPost, "/api/auth/send-otp", map[string]any{"mobileNumber": testMobile}, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotNil(t, body["retryAfter"])
}

func TestAPI_VerifyOTP_WrongCode(t *testing.T) {
	f := newAPIFixture(t, 100)
	code := f.sendOTP(t)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	rec, body := f.do(t, http.MethodPost, "/api/auth/verify-otp", map[string]any{"mobileNumber": testMobile, "otp": wrong}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.EqualValues(t, 2, body["remainingAttempts"])
}

func TestAPI_VerifyOTP_NoChallenge(t *testing.T) {
	f := newAPIFixture(t, 100)

	rec, body := f.do(t, http.MethodPost, "/api/auth/verify-otp", map[string]any{"mobileNumber": testMobile, "otp": "123456"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["success"])
}

func TestAPI_VerifyOTP_Expired(t *testing.T) {
	f := newAPIFixture(t, 100)
	code := f.sendOTP(t)

	f.now = f.now.Add(10*time.Minute + time.Second)
	rec, body := f.do(t, http.MethodPost, "/api/auth/verify-otp", map[string]any{"mobileNumber": testMobile, "otp": code}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["message"], "expired")
}

func TestAPI_CompleteProfile_Conflict(t *testing.T) {
	f := newAPIFixture(t, 100)

	rec, _ := f.do(t, http.MethodPost, "/api/auth/complete-profile", profileBody(), nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, body := f.do(t, http.MethodPost, "/api/auth/complete-profile", profileBody(), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, false, body["success"])
}

func TestAPI_CompleteProfile_BadPincode(t *testing.T) {
	f := newAPIFixture(t, 100)

	body := profileBody()
	body["location"].(map[string]any)["pincode"] = "041100"
	rec, resp := f.do(t, http.MethodPost, "/api/auth/complete-profile", body, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, resp["message"], "pincode")
}

func TestAPI_RefreshToken_Invalid(t *testing.T) {
	f := newAPIFixture(t, 100)

	rec, _ := f.do(t, http.MethodPost, "/api/auth/refresh-token", map[string]any{"refreshToken": "garbage"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = f.do(t, http.MethodPost, "/api/auth/refresh-token", map[string]any{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_ProtectedRoutes_RequireToken(t *testing.T) {
	f := newAPIFixture(t, 100)

	rec, body := f.do(t, http.MethodGet, "/api/auth/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "ACCESS_TOKEN_REQUIRED", body["code"])

	rec, body = f.do(t, http.MethodGet, "/api/auth/me", nil, map[string]string{"Authorization": "Bearer not.a.jwt"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "TOKEN_INVALID", body["code"])
}

func TestAPI_Health(t *testing.T) {
	f := newAPIFixture(t, 100)

	rec, body := f.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["ok"])
}

func TestAPI_CORSHeaders(t *testing.T) {
	f := newAPIFixture(t, 100)

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/send-otp", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}
