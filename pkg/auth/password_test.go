package auth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestNewPasswordHasher_Defaults(t *testing.T) {
	h, err := NewPasswordHasher(0, 0)
	if err != nil {
		t.Fatalf("NewPasswordHasher() error = %v", err)
	}
	if h.Cost() != DefaultPasswordCost {
		t.Errorf("Cost() = %d, want %d", h.Cost(), DefaultPasswordCost)
	}
}

func TestNewPasswordHasher_RejectsCostOutOfRange(t *testing.T) {
	for _, cost := range []int{1, bcrypt.MaxCost + 1} {
		if _, err := NewPasswordHasher(cost, 1); err == nil {
			t.Errorf("NewPasswordHasher(%d) expected error", cost)
		}
	}
}

func TestPasswordHasher_HashAndVerify(t *testing.T) {
	h, err := NewPasswordHasher(bcrypt.MinCost, 2)
	if err != nil {
		t.Fatalf("NewPasswordHasher() error = %v", err)
	}
	ctx := context.Background()

	hash, err := h.Hash(ctx, "secret1")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if hash == "secret1" || !strings.HasPrefix(hash, "$2") {
		t.Errorf("Hash() = %q, want a bcrypt hash", hash)
	}

	ok, err := h.Verify(ctx, "secret1", hash)
	if err != nil || !ok {
		t.Errorf("Verify(correct) = %v, %v; want true, nil", ok, err)
	}

	ok, err = h.Verify(ctx, "secret2", hash)
	if err != nil || ok {
		t.Errorf("Verify(wrong) = %v, %v; want false, nil", ok, err)
	}
}

func TestPasswordHasher_SaltsEachHash(t *testing.T) {
	h, _ := NewPasswordHasher(bcrypt.MinCost, 1)
	ctx := context.Background()

	a, _ := h.Hash(ctx, "secret1")
	b, _ := h.Hash(ctx, "secret1")
	if a == b {
		t.Error("two hashes of the same password should differ")
	}
}

func TestPasswordHasher_StoredCostIsHonored(t *testing.T) {
	h, _ := NewPasswordHasher(bcrypt.MinCost, 1)
	hash, _ := h.Hash(context.Background(), "secret1")

	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		t.Fatalf("bcrypt.Cost() error = %v", err)
	}
	if cost != bcrypt.MinCost {
		t.Errorf("cost = %d, want %d", cost, bcrypt.MinCost)
	}
}

func TestPasswordHasher_VerifyMalformedHash(t *testing.T) {
	h, _ := NewPasswordHasher(bcrypt.MinCost, 1)
	if _, err := h.Verify(context.Background(), "secret1", "not-a-hash"); err == nil {
		t.Error("Verify() with malformed hash should return an error")
	}
}

func TestPasswordHasher_CancelledContext(t *testing.T) {
	h, _ := NewPasswordHasher(bcrypt.MinCost, 1)

	// Hold the only slot so the next caller has to wait.
	if err := h.slots.Acquire(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	defer h.slots.Release(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := h.Hash(ctx, "secret1"); !errors.Is(err, context.Canceled) {
		t.Errorf("Hash() error = %v, want context.Canceled", err)
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"empty", "", true},
		{"too short", "abc12", true},
		{"minimum length", "abc123", false},
		{"multibyte counts runes", "pässwö", false},
		{"over bcrypt limit", strings.Repeat("a", 73), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePassword(%q) error = %v, wantErr %v", tt.password, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrValidation) {
				t.Errorf("error %v should wrap ErrValidation", err)
			}
		})
	}
}
