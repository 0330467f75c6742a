package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/vendormitra/server/internal/auth"
	"github.com/vendormitra/server/internal/repo"
)

type contextKey string

const (
	userIDKey contextKey = "user_id"
	mobileKey contextKey = "mobile_number"
)

// Machine-readable 401 codes. TOKEN_EXPIRED is distinct from TOKEN_INVALID
// so clients can attempt a silent refresh instead of forcing re-login.
const (
	CodeTokenRequired = "ACCESS_TOKEN_REQUIRED"
	CodeTokenExpired  = "TOKEN_EXPIRED"
	CodeTokenInvalid  = "TOKEN_INVALID"
	CodeUserNotFound  = "USER_NOT_FOUND"
)

// Authenticate validates the bearer access token, re-fetches the user (the
// account may have been deleted after issuance), and attaches the identity to
// the request context.
func Authenticate(tokens *auth.TokenService, users repo.UserRepo) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				respondUnauthorized(w, CodeTokenRequired, "access token required")
				return
			}

			userID, mobile, err := tokens.VerifyAccessToken(token)
			if err != nil {
				if errors.Is(err, auth.ErrTokenExpired) {
					respondUnauthorized(w, CodeTokenExpired, "access token expired")
					return
				}
				respondUnauthorized(w, CodeTokenInvalid, "invalid access token")
				return
			}

			if _, err := users.GetByID(r.Context(), userID); err != nil {
				respondUnauthorized(w, CodeUserNotFound, "user not found")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			ctx = context.WithValue(ctx, mobileKey, mobile)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID extracts the authenticated user ID from the context.
func UserID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey).(uuid.UUID)
	return id, ok
}

// MobileNumber extracts the authenticated mobile number from the context.
func MobileNumber(ctx context.Context) (string, bool) {
	mobile, ok := ctx.Value(mobileKey).(string)
	return mobile, ok
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func respondUnauthorized(w http.ResponseWriter, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"code":    code,
		"message": message,
	})
}
