package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vendormitra/server/internal/model"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// OtpRepo stores OTP challenges, at most one active per mobile number.
type OtpRepo interface {
	// CreateChallenge atomically deletes any existing challenges for the
	// mobile number and inserts a new one. Concurrent calls for the same
	// number must not leave two unverified challenges behind.
	CreateChallenge(ctx context.Context, mobile, otpHash string, expiresAt time.Time, requestIP, deviceInfo *string) (model.OTPChallenge, error)

	// FindActive returns the newest unverified challenge for the number.
	// The record may already be past its expiry; callers check expiry so
	// that a verify between expiry and the next sweep reports "expired"
	// rather than "no challenge". Swept (purged) challenges are gone.
	FindActive(ctx context.Context, mobile string) (model.OTPChallenge, error)

	// IncrementAttempts bumps the attempt counter and returns the new count.
	IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error)

	// MarkVerified flips the verified flag; the challenge no longer
	// qualifies as active afterwards.
	MarkVerified(ctx context.Context, id uuid.UUID) error

	// DeleteExpired purges challenges past their expiry, verified or not.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type otpRepo struct {
	db *sql.DB
}

// NewOtpRepo creates a PostgreSQL-backed OtpRepo.
func NewOtpRepo(db *sql.DB) OtpRepo {
	return &otpRepo{db: db}
}

// CreateChallenge supersedes prior challenges inside a transaction. An
// advisory lock keyed by the phone serializes concurrent sends for the same
// number; released on COMMIT/ROLLBACK.
func (r *otpRepo) CreateChallenge(ctx context.Context, mobile, otpHash string, expiresAt time.Time, requestIP, deviceInfo *string) (model.OTPChallenge, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.OTPChallenge{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(1, hashtext($1))`, mobile); err != nil {
		return model.OTPChallenge{}, fmt.Errorf("advisory lock: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM otp_challenges WHERE mobile_number = $1`, mobile); err != nil {
		return model.OTPChallenge{}, fmt.Errorf("delete prior challenges: %w", err)
	}

	var (
		idStr     string
		createdAt time.Time
	)
	err = tx.QueryRowContext(ctx, `
		INSERT INTO otp_challenges (mobile_number, otp_hash, expires_at, request_ip, device_info)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, mobile, otpHash, expiresAt, requestIP, deviceInfo).Scan(&idStr, &createdAt)
	if err != nil {
		return model.OTPChallenge{}, fmt.Errorf("insert challenge: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.OTPChallenge{}, fmt.Errorf("commit: %w", err)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return model.OTPChallenge{}, fmt.Errorf("parse challenge ID: %w", err)
	}

	return model.OTPChallenge{
		ID:           id,
		MobileNumber: mobile,
		OTPHash:      otpHash,
		ExpiresAt:    expiresAt,
		CreatedAt:    createdAt,
		RequestIP:    requestIP,
		DeviceInfo:   deviceInfo,
	}, nil
}

// FindActive returns the newest unverified challenge for the number.
func (r *otpRepo) FindActive(ctx context.Context, mobile string) (model.OTPChallenge, error) {
	query := `
		SELECT id, mobile_number, otp_hash, attempts, verified, expires_at, created_at, request_ip, device_info
		FROM otp_challenges
		WHERE mobile_number = $1 AND verified = false
		ORDER BY created_at DESC
		LIMIT 1
	`
	var (
		c     model.OTPChallenge
		idStr string
	)
	err := r.db.QueryRowContext(ctx, query, mobile).Scan(
		&idStr,
		&c.MobileNumber,
		&c.OTPHash,
		&c.Attempts,
		&c.Verified,
		&c.ExpiresAt,
		&c.CreatedAt,
		&c.RequestIP,
		&c.DeviceInfo,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.OTPChallenge{}, ErrNotFound
		}
		return model.OTPChallenge{}, fmt.Errorf("query challenge: %w", err)
	}

	c.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.OTPChallenge{}, fmt.Errorf("parse challenge ID: %w", err)
	}
	return c, nil
}

// IncrementAttempts bumps attempts and returns the new count.
func (r *otpRepo) IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	var newCount int
	err := r.db.QueryRowContext(ctx, `
		UPDATE otp_challenges
		SET attempts = attempts + 1
		WHERE id = $1
		RETURNING attempts
	`, id).Scan(&newCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("increment attempts: %w", err)
	}
	return newCount, nil
}

// MarkVerified sets verified = true for the challenge.
func (r *otpRepo) MarkVerified(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE otp_challenges SET verified = true WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteExpired purges challenges past expiry, regardless of verified state.
func (r *otpRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM otp_challenges WHERE expires_at <= $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired challenges: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}
