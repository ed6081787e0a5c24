package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func TestNewTokenIssuer_Validation(t *testing.T) {
	if _, err := NewTokenIssuer("", time.Hour); err == nil {
		t.Error("expected error for empty secret")
	}
	if _, err := NewTokenIssuer(testSecret, 0); err == nil {
		t.Error("expected error for zero lifetime")
	}
}

func TestTokenIssuer_IssueAndVerify(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	issuer, err := NewTokenIssuer(testSecret, 30*Day, WithClock(clock.Now), WithIssuer("sports-api"))
	if err != nil {
		t.Fatalf("NewTokenIssuer() error = %v", err)
	}

	token, expiresAt, err := issuer.Issue("user-1")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Errorf("token %q is not a compact JWS", token)
	}
	if want := clock.now.Add(30 * Day); !expiresAt.Equal(want) {
		t.Errorf("expiresAt = %v, want %v", expiresAt, want)
	}

	id, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if id != "user-1" {
		t.Errorf("Verify() = %q, want user-1", id)
	}
}

func TestTokenIssuer_IssueRequiresUserID(t *testing.T) {
	issuer, _ := NewTokenIssuer(testSecret, time.Hour)
	if _, _, err := issuer.Issue(""); err == nil {
		t.Error("Issue(\"\") expected error")
	}
}

func TestTokenIssuer_VerifyExpired(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	issuer, _ := NewTokenIssuer(testSecret, time.Hour, WithClock(clock.Now))

	token, _, err := issuer.Issue("user-1")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	clock.now = clock.now.Add(2 * time.Hour)
	_, err = issuer.Verify(token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Verify() error = %v, want ErrTokenExpired", err)
	}
}

func TestTokenIssuer_VerifyTampered(t *testing.T) {
	issuer, _ := NewTokenIssuer(testSecret, time.Hour)
	token, _, _ := issuer.Issue("user-1")

	// Change one character in the middle of the signature.
	parts := strings.Split(token, ".")
	sig := []byte(parts[2])
	mid := len(sig) / 2
	if sig[mid] == 'A' {
		sig[mid] = 'B'
	} else {
		sig[mid] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	_, err := issuer.Verify(tampered)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Verify(tampered) error = %v, want ErrTokenInvalid", err)
	}
}

func TestTokenIssuer_VerifyOtherSecret(t *testing.T) {
	a, _ := NewTokenIssuer(testSecret, time.Hour)
	b, _ := NewTokenIssuer(strings.Repeat("z", 32), time.Hour)

	token, _, _ := a.Issue("user-1")
	if _, err := b.Verify(token); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Verify() error = %v, want ErrTokenInvalid", err)
	}
}

func TestTokenIssuer_VerifyRejectsOtherAlgorithms(t *testing.T) {
	issuer, _ := NewTokenIssuer(testSecret, time.Hour)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := issuer.Verify(token); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Verify(HS512) error = %v, want ErrTokenInvalid", err)
	}
}

func TestTokenIssuer_VerifyRequiresExpiry(t *testing.T) {
	issuer, _ := NewTokenIssuer(testSecret, time.Hour)

	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"}}
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))

	if _, err := issuer.Verify(token); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Verify(no exp) error = %v, want ErrTokenInvalid", err)
	}
}

func TestTokenIssuer_VerifyFallsBackToIDClaim(t *testing.T) {
	issuer, _ := NewTokenIssuer(testSecret, time.Hour)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID: "user-7",
	}
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))

	id, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if id != "user-7" {
		t.Errorf("Verify() = %q, want user-7", id)
	}
}

func TestTokenIssuer_VerifyEmpty(t *testing.T) {
	issuer, _ := NewTokenIssuer(testSecret, time.Hour)
	if _, err := issuer.Verify(""); !errors.Is(err, ErrNoToken) {
		t.Errorf("Verify(\"\") error = %v, want ErrNoToken", err)
	}
	if _, err := issuer.Verify("garbage"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Verify(garbage) error = %v, want ErrTokenInvalid", err)
	}
}

func TestCause(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{ErrNoToken, "no_token"},
		{ErrTokenExpired, "expired_token"},
		{errors.Join(ErrTokenInvalid, errors.New("sig")), "invalid_token"},
		{ErrUserNotFound, "user_not_found"},
		{ErrAccountInactive, "inactive_account"},
		{errors.New("boom"), "error"},
	}
	for _, tt := range tests {
		if got := Cause(tt.err); got != tt.want {
			t.Errorf("Cause(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
