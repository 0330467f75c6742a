package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/vendormitra/server/internal/model"
)

// ErrDuplicate is returned when a unique constraint rejects an insert.
var ErrDuplicate = errors.New("already exists")

// UserRepo stores vendor accounts keyed by mobile number.
type UserRepo interface {
	Create(ctx context.Context, user model.User) (model.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (model.User, error)
	GetByMobile(ctx context.Context, mobile string) (model.User, error)
	TouchLastActive(ctx context.Context, id uuid.UUID) error
	RemoveDeviceToken(ctx context.Context, id uuid.UUID, token string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type userRepo struct {
	db *sql.DB
}

// NewUserRepo creates a PostgreSQL-backed UserRepo.
func NewUserRepo(db *sql.DB) UserRepo {
	return &userRepo{db: db}
}

const userColumns = `id, mobile_number, name, business_type, location, preferred_language,
	is_verified, profile_picture, business_details, preferences, device_tokens,
	last_active, created_at, updated_at`

// Create inserts a new user. The mobile number's unique constraint turns a
// concurrent duplicate into ErrDuplicate.
func (r *userRepo) Create(ctx context.Context, user model.User) (model.User, error) {
	location, err := json.Marshal(user.Location)
	if err != nil {
		return model.User{}, fmt.Errorf("marshal location: %w", err)
	}
	details, err := json.Marshal(user.BusinessDetails)
	if err != nil {
		return model.User{}, fmt.Errorf("marshal business details: %w", err)
	}
	prefs, err := json.Marshal(user.Preferences)
	if err != nil {
		return model.User{}, fmt.Errorf("marshal preferences: %w", err)
	}

	query := `
		INSERT INTO users (mobile_number, name, business_type, location, preferred_language,
			is_verified, profile_picture, business_details, preferences, device_tokens)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + userColumns

	row := r.db.QueryRowContext(ctx, query,
		user.MobileNumber,
		user.Name,
		string(user.BusinessType),
		location,
		string(user.PreferredLanguage),
		user.IsVerified,
		user.ProfilePicture,
		details,
		prefs,
		pq.Array(user.DeviceTokens),
	)

	created, err := scanUser(row)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return model.User{}, ErrDuplicate
		}
		return model.User{}, fmt.Errorf("insert user: %w", err)
	}
	return created, nil
}

// GetByID retrieves a user by ID.
func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("query user: %w", err)
	}
	return user, nil
}

// GetByMobile retrieves a user by mobile number.
func (r *userRepo) GetByMobile(ctx context.Context, mobile string) (model.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE mobile_number = $1`, mobile)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("query user: %w", err)
	}
	return user, nil
}

// TouchLastActive sets last_active to now.
func (r *userRepo) TouchLastActive(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `UPDATE users SET last_active = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("touch last_active: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RemoveDeviceToken drops a push token from the user's token set.
func (r *userRepo) RemoveDeviceToken(ctx context.Context, id uuid.UUID, token string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET device_tokens = array_remove(device_tokens, $2), updated_at = now()
		WHERE id = $1
	`, id, token)
	if err != nil {
		return fmt.Errorf("remove device token: %w", err)
	}
	return nil
}

// Delete removes the account.
func (r *userRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (model.User, error) {
	var (
		user         model.User
		idStr        string
		businessType string
		language     string
		location     []byte
		details      []byte
		prefs        []byte
	)
	err := row.Scan(
		&idStr,
		&user.MobileNumber,
		&user.Name,
		&businessType,
		&location,
		&language,
		&user.IsVerified,
		&user.ProfilePicture,
		&details,
		&prefs,
		pq.Array(&user.DeviceTokens),
		&user.LastActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return model.User{}, err
	}

	user.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.User{}, fmt.Errorf("parse user ID: %w", err)
	}
	user.BusinessType = model.BusinessType(businessType)
	user.PreferredLanguage = model.Language(language)
	if err := json.Unmarshal(location, &user.Location); err != nil {
		return model.User{}, fmt.Errorf("unmarshal location: %w", err)
	}
	if err := json.Unmarshal(details, &user.BusinessDetails); err != nil {
		return model.User{}, fmt.Errorf("unmarshal business details: %w", err)
	}
	if err := json.Unmarshal(prefs, &user.Preferences); err != nil {
		return model.User{}, fmt.Errorf("unmarshal preferences: %w", err)
	}
	return user, nil
}
