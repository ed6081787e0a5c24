// Package memory provides an in-process auth.UserStore.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/manitejabayya/Sports-Ecosystem/pkg/auth"
)

// UserStore keeps identities in maps guarded by a RWMutex. Values are cloned
// on the way in and out so callers never share state with the store.
type UserStore struct {
	mu      sync.RWMutex
	byID    map[string]*auth.User
	byEmail map[string]string
}

var _ auth.UserStore = (*UserStore)(nil)

// NewUserStore creates an empty store
func NewUserStore() *UserStore {
	return &UserStore{
		byID:    make(map[string]*auth.User),
		byEmail: make(map[string]string),
	}
}

func (s *UserStore) Create(ctx context.Context, user *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[user.Email]; exists {
		return auth.ErrEmailTaken
	}
	if _, exists := s.byID[user.ID]; exists {
		return auth.ErrEmailTaken
	}

	s.byID[user.ID] = user.Clone()
	s.byEmail[user.Email] = user.ID
	return nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byID[id]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	return user.Clone(), nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	return s.byID[id].Clone(), nil
}

func (s *UserStore) Update(ctx context.Context, user *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[user.ID]
	if !ok {
		return auth.ErrUserNotFound
	}
	if user.Email != current.Email {
		if owner, taken := s.byEmail[user.Email]; taken && owner != user.ID {
			return auth.ErrEmailTaken
		}
		delete(s.byEmail, current.Email)
		s.byEmail[user.Email] = user.ID
	}

	updated := user.Clone()
	updated.CreatedAt = current.CreatedAt
	s.byID[user.ID] = updated
	return nil
}

func (s *UserStore) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[id]
	if !ok {
		return auth.ErrUserNotFound
	}
	t := at
	user.LastLoginAt = &t
	return nil
}

// Search matches the query case-insensitively against name and email.
// Results are ordered by creation time, oldest first.
func (s *UserStore) Search(ctx context.Context, filter auth.SearchFilter) ([]*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := strings.ToLower(filter.Query)
	var matches []*auth.User
	for _, user := range s.byID {
		if filter.Role != "" && user.Role != filter.Role {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(user.Name), query) &&
			!strings.Contains(strings.ToLower(user.Email), query) {
			continue
		}
		matches = append(matches, user)
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].CreatedAt.Before(matches[j].CreatedAt)
	})

	if filter.Limit > 0 && len(matches) > filter.Limit {
		matches = matches[:filter.Limit]
	}

	result := make([]*auth.User, len(matches))
	for i, user := range matches {
		result[i] = user.Clone()
	}
	return result, nil
}

// Len returns the number of stored identities
func (s *UserStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
