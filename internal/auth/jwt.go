package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/vendormitra/server/internal/model"
)

const (
	tokenIssuer   = "vendormitra-api"
	tokenAudience = "vendormitra-app"
)

var (
	// ErrTokenExpired signals a structurally valid token past its expiry.
	// Distinct from ErrTokenInvalid so clients can trigger a silent refresh.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid signals a bad signature, issuer, audience or claims.
	ErrTokenInvalid = errors.New("invalid token")
)

// TokenClaims are the JWT claims carried by both access and refresh tokens.
type TokenClaims struct {
	MobileNumber string `json:"mobileNumber"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies signed, expiring session tokens.
// Access and refresh tokens are signed with distinct secrets. The service is
// stateless; tokens are invalidated only by expiry or secret rotation.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewTokenService creates a TokenService with the given secrets and lifetimes.
func NewTokenService(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenService {
	return &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// AccessTokenTTL returns the configured access token lifetime.
func (s *TokenService) AccessTokenTTL() time.Duration { return s.accessTTL }

// IssueAccessToken signs a short-lived access token for the user.
func (s *TokenService) IssueAccessToken(userID uuid.UUID, mobile string) (string, error) {
	return s.sign(userID, mobile, s.accessSecret, s.accessTTL)
}

// IssueRefreshToken signs a long-lived refresh token for the user.
func (s *TokenService) IssueRefreshToken(userID uuid.UUID, mobile string) (string, error) {
	return s.sign(userID, mobile, s.refreshSecret, s.refreshTTL)
}

// IssueTokenPair signs both tokens for the user.
func (s *TokenService) IssueTokenPair(userID uuid.UUID, mobile string) (model.TokenPair, error) {
	access, err := s.IssueAccessToken(userID, mobile)
	if err != nil {
		return model.TokenPair{}, err
	}
	refresh, err := s.IssueRefreshToken(userID, mobile)
	if err != nil {
		return model.TokenPair{}, err
	}
	return model.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// VerifyAccessToken validates an access token and returns its subject.
func (s *TokenService) VerifyAccessToken(token string) (uuid.UUID, string, error) {
	return s.verify(token, s.accessSecret)
}

// VerifyRefreshToken validates a refresh token and returns its subject.
func (s *TokenService) VerifyRefreshToken(token string) (uuid.UUID, string, error) {
	return s.verify(token, s.refreshSecret)
}

func (s *TokenService) sign(userID uuid.UUID, mobile string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &TokenClaims{
		MobileNumber: mobile,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *TokenService) verify(tokenString string, secret []byte) (uuid.UUID, string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithAudience(tokenAudience))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, "", ErrTokenExpired
		}
		return uuid.Nil, "", ErrTokenInvalid
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return uuid.Nil, "", ErrTokenInvalid
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, "", ErrTokenInvalid
	}
	return userID, claims.MobileNumber, nil
}
