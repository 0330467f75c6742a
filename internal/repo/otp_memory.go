package repo

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vendormitra/server/internal/model"
)

// MemoryOtpRepo is a process-local OtpRepo for tests and single-instance
// deployments. The map holds at most one challenge per mobile number; a
// janitor goroutine purges expired entries.
type MemoryOtpRepo struct {
	mu         sync.Mutex
	challenges map[string]*model.OTPChallenge
	now        func() time.Time
	stop       chan struct{}
	stopOnce   sync.Once
}

// NewMemoryOtpRepo creates an in-memory OtpRepo sweeping at the given
// interval. An interval <= 0 disables the janitor (callers sweep manually).
func NewMemoryOtpRepo(sweepInterval time.Duration) *MemoryOtpRepo {
	r := &MemoryOtpRepo{
		challenges: make(map[string]*model.OTPChallenge),
		now:        time.Now,
		stop:       make(chan struct{}),
	}
	if sweepInterval > 0 {
		go r.janitor(sweepInterval)
	}
	return r
}

// SetClock overrides the repo's notion of now. Test hook.
func (r *MemoryOtpRepo) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// Close stops the janitor goroutine.
func (r *MemoryOtpRepo) Close() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// CreateChallenge replaces any existing challenge for the number.
func (r *MemoryOtpRepo) CreateChallenge(_ context.Context, mobile, otpHash string, expiresAt time.Time, requestIP, deviceInfo *string) (model.OTPChallenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := &model.OTPChallenge{
		ID:           uuid.New(),
		MobileNumber: mobile,
		OTPHash:      otpHash,
		ExpiresAt:    expiresAt,
		CreatedAt:    r.now(),
		RequestIP:    requestIP,
		DeviceInfo:   deviceInfo,
	}
	r.challenges[mobile] = c
	return *c, nil
}

// FindActive returns the unverified challenge for the number, if any.
func (r *MemoryOtpRepo) FindActive(_ context.Context, mobile string) (model.OTPChallenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.challenges[mobile]
	if !ok || c.Verified {
		return model.OTPChallenge{}, ErrNotFound
	}
	return *c, nil
}

// IncrementAttempts bumps the attempt counter for the challenge.
func (r *MemoryOtpRepo) IncrementAttempts(_ context.Context, id uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.byID(id)
	if c == nil {
		return 0, ErrNotFound
	}
	c.Attempts++
	return c.Attempts, nil
}

// MarkVerified flips the verified flag for the challenge.
func (r *MemoryOtpRepo) MarkVerified(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.byID(id)
	if c == nil {
		return ErrNotFound
	}
	c.Verified = true
	return nil
}

// DeleteExpired purges challenges past expiry, verified or not.
func (r *MemoryOtpRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for mobile, c := range r.challenges {
		if now.After(c.ExpiresAt) {
			delete(r.challenges, mobile)
			n++
		}
	}
	return n, nil
}

func (r *MemoryOtpRepo) byID(id uuid.UUID) *model.OTPChallenge {
	for _, c := range r.challenges {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (r *MemoryOtpRepo) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.mu.Lock()
			now := r.now()
			for mobile, c := range r.challenges {
				if now.After(c.ExpiresAt) {
					delete(r.challenges, mobile)
				}
			}
			r.mu.Unlock()
		}
	}
}
