package repo

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vendormitra/server/internal/model"
)

// MemoryUserRepo is a process-local UserRepo for tests.
type MemoryUserRepo struct {
	mu       sync.Mutex
	byID     map[uuid.UUID]*model.User
	byMobile map[string]uuid.UUID
}

// NewMemoryUserRepo creates an empty in-memory UserRepo.
func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{
		byID:     make(map[uuid.UUID]*model.User),
		byMobile: make(map[string]uuid.UUID),
	}
}

// Create inserts the user, enforcing mobile number uniqueness.
func (r *MemoryUserRepo) Create(_ context.Context, user model.User) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byMobile[user.MobileNumber]; exists {
		return model.User{}, ErrDuplicate
	}

	now := time.Now()
	user.ID = uuid.New()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.LastActive = now

	stored := user
	r.byID[user.ID] = &stored
	r.byMobile[user.MobileNumber] = user.ID
	return user, nil
}

// GetByID retrieves a user by ID.
func (r *MemoryUserRepo) GetByID(_ context.Context, id uuid.UUID) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return *u, nil
}

// GetByMobile retrieves a user by mobile number.
func (r *MemoryUserRepo) GetByMobile(_ context.Context, mobile string) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byMobile[mobile]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return *r.byID[id], nil
}

// TouchLastActive sets last_active to now.
func (r *MemoryUserRepo) TouchLastActive(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	u.LastActive = time.Now()
	return nil
}

// RemoveDeviceToken drops a push token from the user's token set.
func (r *MemoryUserRepo) RemoveDeviceToken(_ context.Context, id uuid.UUID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	kept := u.DeviceTokens[:0]
	for _, t := range u.DeviceTokens {
		if t != token {
			kept = append(kept, t)
		}
	}
	u.DeviceTokens = kept
	u.UpdatedAt = time.Now()
	return nil
}

// Delete removes the account.
func (r *MemoryUserRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(r.byMobile, u.MobileNumber)
	delete(r.byID, id)
	return nil
}
