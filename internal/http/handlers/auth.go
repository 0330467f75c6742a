package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/vendormitra/server/internal/auth"
	"github.com/vendormitra/server/internal/middleware"
	"github.com/vendormitra/server/internal/model"
	"github.com/vendormitra/server/internal/ratelimit"
)

// AuthHandler handles the authentication endpoints.
type AuthHandler struct {
	service    *auth.Service
	otpLimiter ratelimit.Limiter
	bypassRL   bool
	logger     *slog.Logger
}

// NewAuthHandler creates an AuthHandler. The OTP limiter is keyed by mobile
// number (falling back to IP) and checked before any challenge is created;
// it is the primary defense against OTP-spam abuse.
func NewAuthHandler(service *auth.Service, otpLimiter ratelimit.Limiter, bypassRateLimit bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service:    service,
		otpLimiter: otpLimiter,
		bypassRL:   bypassRateLimit,
		logger:     logger,
	}
}

type sendOTPRequest struct {
	MobileNumber string `json:"mobileNumber"`
	Language     string `json:"language"`
}

// HandleSendOTP handles POST /auth/send-otp (and /auth/resend-otp).
func (h *AuthHandler) HandleSendOTP(w http.ResponseWriter, r *http.Request) {
	var req sendOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Limit per mobile number, falling back to IP when absent. Checked
	// before any challenge is created.
	key := "otp:" + req.MobileNumber
	if req.MobileNumber == "" {
		key = "otp:" + middleware.ClientIP(r)
	}
	if h.bypassRL {
		h.logger.Warn("otp rate limiting bypassed", "mobile", req.MobileNumber)
	} else {
		result, err := h.otpLimiter.Allow(r.Context(), key)
		if err != nil {
			h.logger.Error("otp limiter unavailable, failing open", "error", err)
		} else if !result.OK {
			retryAfter := int(result.RetryAfter.Seconds())
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"success":    false,
				"message":    "too many OTP requests, please try again later",
				"retryAfter": retryAfter,
			})
			return
		}
	}

	expiresIn, err := h.service.SendOTP(r.Context(), req.MobileNumber, model.Language(req.Language), middleware.ClientIP(r), r.UserAgent())
	if err != nil {
		h.respondSendError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "OTP sent successfully",
		"expiresIn": int(expiresIn.Seconds()),
	})
}

func (h *AuthHandler) respondSendError(w http.ResponseWriter, err error) {
	var cooldown *auth.CooldownError
	switch {
	case errors.Is(err, auth.ErrInvalidMobileFormat):
		respondError(w, http.StatusBadRequest, "Invalid mobile number format")
	case errors.As(err, &cooldown):
		remaining := int(cooldown.Remaining.Seconds())
		if remaining < 1 {
			remaining = 1
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":           false,
			"message":           cooldown.Error(),
			"cooldownRemaining": remaining,
		})
	case errors.Is(err, auth.ErrDispatchFailed):
		respondError(w, http.StatusInternalServerError, "Failed to send OTP. Please try again.")
	default:
		sentry.CaptureException(err)
		h.logger.Error("send otp failed", "error", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

type verifyOTPRequest struct {
	MobileNumber string `json:"mobileNumber"`
	OTP          string `json:"otp"`
}

// HandleVerifyOTP handles POST /auth/verify-otp.
func (h *AuthHandler) HandleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.service.VerifyOTP(r.Context(), req.MobileNumber, req.OTP)
	if err != nil {
		h.respondVerifyError(w, err)
		return
	}

	if result.IsNewUser {
		respondJSON(w, http.StatusOK, map[string]any{
			"success":              true,
			"message":              "OTP verified successfully",
			"isNewUser":            true,
			"mobileNumber":         req.MobileNumber,
			"requiresProfileSetup": true,
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Login successful",
		"isNewUser": false,
		"user":      publicUser(result.User),
		"tokens":    result.Tokens,
	})
}

func (h *AuthHandler) respondVerifyError(w http.ResponseWriter, err error) {
	var invalidCode *auth.InvalidCodeError
	switch {
	case errors.Is(err, auth.ErrMissingFields):
		respondError(w, http.StatusBadRequest, "Mobile number and OTP are required")
	case errors.Is(err, auth.ErrNoActiveChallenge):
		respondError(w, http.StatusBadRequest, "No valid OTP found. Please request a new OTP.")
	case errors.Is(err, auth.ErrChallengeExpired):
		respondError(w, http.StatusBadRequest, "OTP has expired. Please request a new OTP.")
	case errors.Is(err, auth.ErrAttemptsExhausted):
		respondError(w, http.StatusBadRequest, "Maximum OTP attempts exceeded. Please request a new OTP.")
	case errors.As(err, &invalidCode):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":           false,
			"message":           invalidCode.Error(),
			"remainingAttempts": invalidCode.Remaining,
		})
	default:
		sentry.CaptureException(err)
		h.logger.Error("verify otp failed", "error", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

type completeProfileRequest struct {
	MobileNumber      string                `json:"mobileNumber"`
	Name              string                `json:"name"`
	BusinessType      string                `json:"businessType"`
	Location          *model.Location       `json:"location"`
	PreferredLanguage string                `json:"preferredLanguage"`
	BusinessDetails   model.BusinessDetails `json:"businessDetails"`
}

// HandleCompleteProfile handles POST /auth/complete-profile.
func (h *AuthHandler) HandleCompleteProfile(w http.ResponseWriter, r *http.Request) {
	var req completeProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, tokens, err := h.service.CompleteProfile(r.Context(), auth.ProfileInput{
		MobileNumber:      req.MobileNumber,
		Name:              req.Name,
		BusinessType:      model.BusinessType(req.BusinessType),
		Location:          req.Location,
		PreferredLanguage: model.Language(req.PreferredLanguage),
		BusinessDetails:   req.BusinessDetails,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMissingFields):
			respondError(w, http.StatusBadRequest, "Mobile number, name, business type, and location are required")
		case errors.Is(err, auth.ErrInvalidMobileFormat):
			respondError(w, http.StatusBadRequest, "Invalid mobile number format")
		case errors.Is(err, auth.ErrValidation):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, auth.ErrUserAlreadyExists):
			respondError(w, http.StatusConflict, "User already exists")
		default:
			sentry.CaptureException(err)
			h.logger.Error("complete profile failed", "error", err)
			respondError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Profile created successfully",
		"user":    publicUser(&user),
		"tokens":  tokens,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// HandleRefreshToken handles POST /auth/refresh-token.
func (h *AuthHandler) HandleRefreshToken(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RefreshToken == "" {
		respondError(w, http.StatusBadRequest, "refreshToken is required")
		return
	}

	tokens, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrTokenExpired):
			respondError(w, http.StatusUnauthorized, "Refresh token expired")
		case errors.Is(err, auth.ErrTokenInvalid):
			respondError(w, http.StatusUnauthorized, "Invalid refresh token")
		case errors.Is(err, auth.ErrUserNotFound):
			respondError(w, http.StatusUnauthorized, "User not found")
		default:
			sentry.CaptureException(err)
			h.logger.Error("refresh token failed", "error", err)
			respondError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Tokens refreshed successfully",
		"tokens":  tokens,
	})
}

type logoutRequest struct {
	DeviceToken string `json:"deviceToken"`
}

// HandleLogout handles POST /auth/logout. Logout never fails the
// client-visible flow; there is no server-side token invalidation.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	if userID, ok := middleware.UserID(r.Context()); ok {
		h.service.Logout(r.Context(), userID, req.DeviceToken)
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Logged out successfully",
	})
}

// HandleMe handles GET /auth/me.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	user, err := h.service.CurrentUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			respondError(w, http.StatusNotFound, "User not found")
			return
		}
		sentry.CaptureException(err)
		h.logger.Error("load current user failed", "error", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    fullUser(&user),
	})
}

// publicUser is the user shape echoed on login and profile creation.
func publicUser(u *model.User) map[string]any {
	return map[string]any{
		"id":                u.ID.String(),
		"name":              u.Name,
		"mobileNumber":      u.MobileNumber,
		"businessType":      u.BusinessType,
		"location":          u.Location,
		"preferredLanguage": u.PreferredLanguage,
		"isVerified":        u.IsVerified,
		"profilePicture":    u.ProfilePicture,
	}
}

// fullUser adds the fields only the account owner sees.
func fullUser(u *model.User) map[string]any {
	out := publicUser(u)
	out["businessDetails"] = u.BusinessDetails
	out["preferences"] = u.Preferences
	out["createdAt"] = u.CreatedAt.UTC().Format(time.RFC3339)
	out["lastActive"] = u.LastActive.UTC().Format(time.RFC3339)
	return out
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]any{
		"success": false,
		"message": message,
	})
}
