package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/vendormitra/server/internal/logging"
	"github.com/vendormitra/server/internal/model"
	"github.com/vendormitra/server/internal/repo"
	"github.com/vendormitra/server/internal/sms"
)

// SMSSender delivers an OTP code to a mobile number. Satisfied by
// *sms.Dispatcher; faked in tests.
type SMSSender interface {
	SendOTP(ctx context.Context, mobile, code string, locale model.Language) (sms.Result, error)
}

// Policy holds the OTP flow's tunables.
type Policy struct {
	OTPLength      int
	OTPExpiry      time.Duration
	MaxAttempts    int
	ResendCooldown time.Duration
}

// DefaultPolicy mirrors the platform defaults: 6 digits, 10 minute expiry,
// 3 attempts, 2 minute resend cooldown.
func DefaultPolicy() Policy {
	return Policy{
		OTPLength:      6,
		OTPExpiry:      10 * time.Minute,
		MaxAttempts:    3,
		ResendCooldown: 2 * time.Minute,
	}
}

// Service orchestrates the send-OTP / verify-OTP / complete-profile /
// refresh / logout protocol.
type Service struct {
	otpRepo  repo.OtpRepo
	userRepo repo.UserRepo
	hasher   *Hasher
	tokens   *TokenService
	sender   SMSSender
	policy   Policy
	logger   *slog.Logger
	now      func() time.Time
}

// NewService wires the orchestrator's collaborators.
func NewService(
	otpRepo repo.OtpRepo,
	userRepo repo.UserRepo,
	hasher *Hasher,
	tokens *TokenService,
	sender SMSSender,
	policy Policy,
	logger *slog.Logger,
) *Service {
	return &Service{
		otpRepo:  otpRepo,
		userRepo: userRepo,
		hasher:   hasher,
		tokens:   tokens,
		sender:   sender,
		policy:   policy,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock overrides the service's notion of now. Test hook.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// SendOTP validates the number, enforces the resend cooldown, then creates a
// fresh challenge (superseding any prior one) and dispatches it. If every SMS
// provider fails the challenge is retained so the client can retry resend
// without burning a new cooldown slot; the caller sees ErrDispatchFailed.
func (s *Service) SendOTP(ctx context.Context, mobile string, locale model.Language, ip, device string) (time.Duration, error) {
	if !ValidMobileNumber(mobile) {
		return 0, ErrInvalidMobileFormat
	}
	if !locale.Valid() {
		locale = model.LangHindi
	}

	now := s.now()
	if existing, err := s.otpRepo.FindActive(ctx, mobile); err == nil {
		age := now.Sub(existing.CreatedAt)
		if age < s.policy.ResendCooldown {
			return 0, &CooldownError{Remaining: s.policy.ResendCooldown - age}
		}
	} else if !errors.Is(err, repo.ErrNotFound) {
		return 0, fmt.Errorf("lookup challenge: %w", err)
	}

	code, err := GenerateOTPCode(s.policy.OTPLength)
	if err != nil {
		return 0, fmt.Errorf("generate otp: %w", err)
	}
	digest, err := s.hasher.Hash(code)
	if err != nil {
		return 0, err
	}

	var ipPtr, devicePtr *string
	if ip != "" {
		ipPtr = &ip
	}
	if device != "" {
		devicePtr = &device
	}

	if _, err := s.otpRepo.CreateChallenge(ctx, mobile, digest, now.Add(s.policy.OTPExpiry), ipPtr, devicePtr); err != nil {
		return 0, fmt.Errorf("create challenge: %w", err)
	}

	if _, err := s.sender.SendOTP(ctx, mobile, code, locale); err != nil {
		s.logger.Error("otp dispatch failed", "mobile", logging.MaskMobile(mobile), "error", err)
		return 0, ErrDispatchFailed
	}

	s.logger.Info("otp sent", "mobile", logging.MaskMobile(mobile))
	return s.policy.OTPExpiry, nil
}

// VerifyResult is the outcome of a successful OTP verification.
type VerifyResult struct {
	IsNewUser bool
	User      *model.User
	Tokens    *model.TokenPair
}

// VerifyOTP checks the candidate code against the active challenge. A match
// consumes the challenge; for known users it issues a token pair, for unknown
// numbers it signals that profile completion is required before any token
// exists to bind.
func (s *Service) VerifyOTP(ctx context.Context, mobile, code string) (VerifyResult, error) {
	if mobile == "" || code == "" {
		return VerifyResult{}, ErrMissingFields
	}

	challenge, err := s.otpRepo.FindActive(ctx, mobile)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return VerifyResult{}, ErrNoActiveChallenge
		}
		return VerifyResult{}, fmt.Errorf("lookup challenge: %w", err)
	}

	if challenge.Expired(s.now()) {
		return VerifyResult{}, ErrChallengeExpired
	}
	if challenge.Attempts >= s.policy.MaxAttempts {
		return VerifyResult{}, ErrAttemptsExhausted
	}

	match, err := s.hasher.Verify(code, challenge.OTPHash)
	if err != nil {
		return VerifyResult{}, err
	}
	if !match {
		newCount, err := s.otpRepo.IncrementAttempts(ctx, challenge.ID)
		if err != nil {
			return VerifyResult{}, fmt.Errorf("record attempt: %w", err)
		}
		remaining := s.policy.MaxAttempts - newCount
		if remaining < 0 {
			remaining = 0
		}
		return VerifyResult{}, &InvalidCodeError{Remaining: remaining}
	}

	if err := s.otpRepo.MarkVerified(ctx, challenge.ID); err != nil {
		return VerifyResult{}, fmt.Errorf("consume challenge: %w", err)
	}

	user, err := s.userRepo.GetByMobile(ctx, mobile)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			// New number: profile completion must happen before any
			// token exists to bind to an identity.
			return VerifyResult{IsNewUser: true}, nil
		}
		return VerifyResult{}, fmt.Errorf("lookup user: %w", err)
	}

	if err := s.userRepo.TouchLastActive(ctx, user.ID); err != nil {
		s.logger.Warn("touch last_active failed", "userId", user.ID, "error", err)
	}

	pair, err := s.tokens.IssueTokenPair(user.ID, user.MobileNumber)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("issue tokens: %w", err)
	}

	s.logger.Info("login successful", "mobile", logging.MaskMobile(mobile))
	return VerifyResult{User: &user, Tokens: &pair}, nil
}

// ProfileInput is the payload for CompleteProfile.
type ProfileInput struct {
	MobileNumber      string
	Name              string
	BusinessType      model.BusinessType
	Location          *model.Location
	PreferredLanguage model.Language
	BusinessDetails   model.BusinessDetails
}

var pincodePattern = regexp.MustCompile(`^[1-9][0-9]{5}$`)

func validateProfile(in ProfileInput) error {
	// Length in characters, not bytes; Devanagari names are three bytes a rune.
	if n := utf8.RuneCountInString(in.Name); n < 2 || n > 100 {
		return fmt.Errorf("%w: name must be 2-100 characters", ErrValidation)
	}
	if !in.BusinessType.Valid() {
		return fmt.Errorf("%w: unknown business type %q", ErrValidation, in.BusinessType)
	}
	loc := in.Location
	if loc.City == "" || loc.State == "" || loc.Pincode == "" {
		return fmt.Errorf("%w: location requires city, state and pincode", ErrValidation)
	}
	if !pincodePattern.MatchString(loc.Pincode) {
		return fmt.Errorf("%w: invalid pincode", ErrValidation)
	}
	lng, lat := loc.Coordinates[0], loc.Coordinates[1]
	if lng != 0 || lat != 0 {
		if lng < -180 || lng > 180 || lat < -90 || lat > 90 {
			return fmt.Errorf("%w: coordinates out of range", ErrValidation)
		}
	}
	return nil
}

// CompleteProfile creates the account for a freshly verified number. Strictly
// the new-user path: an existing account is a conflict, never an upsert.
func (s *Service) CompleteProfile(ctx context.Context, in ProfileInput) (model.User, model.TokenPair, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.MobileNumber == "" || in.Name == "" || in.BusinessType == "" || in.Location == nil {
		return model.User{}, model.TokenPair{}, ErrMissingFields
	}
	if !ValidMobileNumber(in.MobileNumber) {
		return model.User{}, model.TokenPair{}, ErrInvalidMobileFormat
	}
	if err := validateProfile(in); err != nil {
		return model.User{}, model.TokenPair{}, err
	}

	if _, err := s.userRepo.GetByMobile(ctx, in.MobileNumber); err == nil {
		return model.User{}, model.TokenPair{}, ErrUserAlreadyExists
	} else if !errors.Is(err, repo.ErrNotFound) {
		return model.User{}, model.TokenPair{}, fmt.Errorf("lookup user: %w", err)
	}

	language := in.PreferredLanguage
	if !language.Valid() {
		language = model.LangHindi
	}

	user, err := s.userRepo.Create(ctx, model.User{
		MobileNumber:      in.MobileNumber,
		Name:              in.Name,
		BusinessType:      in.BusinessType,
		Location:          *in.Location,
		PreferredLanguage: language,
		IsVerified:        false, // platform verification is a separate flow
		BusinessDetails:   in.BusinessDetails,
		Preferences:       model.DefaultPreferences(),
		DeviceTokens:      []string{},
	})
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return model.User{}, model.TokenPair{}, ErrUserAlreadyExists
		}
		return model.User{}, model.TokenPair{}, fmt.Errorf("create user: %w", err)
	}

	pair, err := s.tokens.IssueTokenPair(user.ID, user.MobileNumber)
	if err != nil {
		return model.User{}, model.TokenPair{}, fmt.Errorf("issue tokens: %w", err)
	}

	s.logger.Info("profile created", "mobile", logging.MaskMobile(user.MobileNumber))
	return user, pair, nil
}

// Refresh exchanges a valid refresh token for a fresh pair. The presented
// refresh token is not rotated; it stays valid until its own expiry.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error) {
	userID, _, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return model.TokenPair{}, err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.TokenPair{}, ErrUserNotFound
		}
		return model.TokenPair{}, fmt.Errorf("lookup user: %w", err)
	}

	pair, err := s.tokens.IssueTokenPair(user.ID, user.MobileNumber)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("issue tokens: %w", err)
	}
	return pair, nil
}

// Logout removes the device push token from the user's set, best effort.
// There is no server-side token invalidation to fail, so cleanup errors are
// logged and never surfaced.
func (s *Service) Logout(ctx context.Context, userID uuid.UUID, deviceToken string) {
	if deviceToken == "" {
		return
	}
	if err := s.userRepo.RemoveDeviceToken(ctx, userID, deviceToken); err != nil {
		s.logger.Warn("device token cleanup failed", "userId", userID, "error", err)
	}
}

// CurrentUser loads the authenticated user and touches lastActive.
func (s *Service) CurrentUser(ctx context.Context, userID uuid.UUID) (model.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if err := s.userRepo.TouchLastActive(ctx, user.ID); err != nil {
		s.logger.Warn("touch last_active failed", "userId", user.ID, "error", err)
	}
	return user, nil
}
