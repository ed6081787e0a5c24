package auth

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Role represents a platform-level role
type Role string

const (
	RoleAthlete Role = "athlete" // Default role for new accounts
	RoleCoach   Role = "coach"   // Manages athletes and training plans
	RoleScout   Role = "scout"   // Discovers and evaluates talent
	RoleAdmin   Role = "admin"   // Full access, manages accounts
)

// DefaultRole is assigned when registration does not specify one
const DefaultRole = RoleAthlete

// AllRoles returns every known role in declaration order
func AllRoles() []Role {
	return []Role{RoleAthlete, RoleCoach, RoleScout, RoleAdmin}
}

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleAthlete, RoleCoach, RoleScout, RoleAdmin:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// ParseRole converts a string into a Role. An empty string yields DefaultRole.
func ParseRole(s string) (Role, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return DefaultRole, nil
	}
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Profile is the free-form seed document attached to an identity
type Profile map[string]interface{}

// User represents a registered identity.
//
// User never serializes its password hash: MarshalJSON always goes through
// the PublicUser projection.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Profile      Profile
	IsActive     bool
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser is the outward representation of a User
type PublicUser struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Role        Role       `json:"role"`
	Profile     Profile    `json:"profile,omitempty"`
	IsActive    bool       `json:"isActive"`
	LastLoginAt *time.Time `json:"lastLogin,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Public returns the public projection of u
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Role:        u.Role,
		Profile:     u.Profile,
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

// MarshalJSON encodes the public projection only
func (u User) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.Public())
}

// Clone returns a deep-enough copy for stores that hand out values
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Profile != nil {
		c.Profile = make(Profile, len(u.Profile))
		for k, v := range u.Profile {
			c.Profile[k] = v
		}
	}
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		c.LastLoginAt = &t
	}
	return &c
}

// AuthContext holds the authenticated identity for a request
type AuthContext struct {
	User *User
}

// HasRole checks if the authenticated user holds any of the given roles
func (ac *AuthContext) HasRole(roles ...Role) bool {
	if ac == nil || ac.User == nil {
		return false
	}
	for _, r := range roles {
		if ac.User.Role == r {
			return true
		}
	}
	return false
}

// SearchFilter narrows a user search
type SearchFilter struct {
	Query string
	Role  Role
	Limit int
}

// DefaultSearchLimit caps search results when no limit is given
const DefaultSearchLimit = 20
