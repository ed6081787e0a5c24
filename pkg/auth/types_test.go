package auth

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{"", RoleAthlete, false},
		{"athlete", RoleAthlete, false},
		{"Coach", RoleCoach, false},
		{" scout ", RoleScout, false},
		{"admin", RoleAdmin, false},
		{"referee", "", true},
	}
	for _, tt := range tests {
		got, err := ParseRole(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRole(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseRole(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestUser_MarshalJSONOmitsHash(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	u := User{
		ID:           "u1",
		Name:         "Priya",
		Email:        "priya@x.io",
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuv",
		Role:         RoleAthlete,
		IsActive:     true,
		LastLoginAt:  &now,
		CreatedAt:    now,
	}

	for _, v := range []interface{}{u, &u, []*User{&u}} {
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		s := string(data)
		if strings.Contains(s, "$2a$") || strings.Contains(strings.ToLower(s), "password") {
			t.Errorf("serialized user leaks the hash: %s", s)
		}
		if !strings.Contains(s, `"lastLogin"`) || !strings.Contains(s, `"isActive":true`) {
			t.Errorf("serialized user missing public fields: %s", s)
		}
	}
}

func TestUser_Clone(t *testing.T) {
	now := time.Now()
	u := &User{ID: "u1", Profile: Profile{"sport": "cricket"}, LastLoginAt: &now}
	c := u.Clone()

	c.Profile["sport"] = "football"
	later := now.Add(time.Hour)
	*c.LastLoginAt = later

	if u.Profile["sport"] != "cricket" {
		t.Error("Clone shares the profile map")
	}
	if !u.LastLoginAt.Equal(now) {
		t.Error("Clone shares the last login pointer")
	}
	if (*User)(nil).Clone() != nil {
		t.Error("Clone of nil should be nil")
	}
}

func TestAuthContext_HasRole(t *testing.T) {
	ac := &AuthContext{User: &User{Role: RoleCoach}}
	if !ac.HasRole(RoleAdmin, RoleCoach) {
		t.Error("coach should match [admin coach]")
	}
	if ac.HasRole(RoleAdmin) {
		t.Error("coach should not match [admin]")
	}
	var empty *AuthContext
	if empty.HasRole(RoleAthlete) {
		t.Error("nil context should hold no role")
	}
}
