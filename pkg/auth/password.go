package auth

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

const (
	// DefaultPasswordCost is the bcrypt work factor used for new hashes
	DefaultPasswordCost = 10
	// MinPasswordLength is the shortest accepted password
	MinPasswordLength = 6
	// maxPasswordBytes is the bcrypt input limit
	maxPasswordBytes = 72
)

// PasswordHasher hashes and verifies passwords with bcrypt.
//
// bcrypt is CPU-bound, so concurrent work is bounded by a weighted semaphore.
// Callers waiting for a slot give up when their context is cancelled.
type PasswordHasher struct {
	cost  int
	slots *semaphore.Weighted
	dummy []byte
}

// NewPasswordHasher creates a hasher. A cost of 0 selects DefaultPasswordCost
// and a concurrency of 0 selects runtime.NumCPU().
func NewPasswordHasher(cost, concurrency int) (*PasswordHasher, error) {
	if cost == 0 {
		cost = DefaultPasswordCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}

	// Hash compared against when the email is unknown, so both login
	// failure paths pay for one bcrypt comparison.
	dummy, err := bcrypt.GenerateFromPassword([]byte("sports-ecosystem-placeholder"), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare placeholder hash: %w", err)
	}

	return &PasswordHasher{
		cost:  cost,
		slots: semaphore.NewWeighted(int64(concurrency)),
		dummy: dummy,
	}, nil
}

// Cost returns the configured bcrypt work factor
func (h *PasswordHasher) Cost() int {
	return h.cost
}

// Hash returns a salted bcrypt hash of the password
func (h *PasswordHasher) Hash(ctx context.Context, password string) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", err
	}
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("waiting for hashing slot: %w", err)
	}
	defer h.slots.Release(1)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether password matches hash. A mismatch is (false, nil);
// a malformed hash is an error.
func (h *PasswordHasher) Verify(ctx context.Context, password, hash string) (bool, error) {
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return false, fmt.Errorf("waiting for hashing slot: %w", err)
	}
	defer h.slots.Release(1)

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("failed to compare password: %w", err)
	}
}

// burn spends one comparison against the placeholder hash
func (h *PasswordHasher) burn(ctx context.Context, password string) {
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return
	}
	defer h.slots.Release(1)
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(password))
}

// ValidatePassword enforces the password policy
func ValidatePassword(password string) error {
	if password == "" {
		return Invalid("Please add a password")
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return Invalid("Password must be at least %d characters", MinPasswordLength)
	}
	if len(password) > maxPasswordBytes {
		return Invalid("Password must be at most %d bytes", maxPasswordBytes)
	}
	return nil
}
