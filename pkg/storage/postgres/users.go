package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/manitejabayya/Sports-Ecosystem/pkg/auth"
)

const uniqueViolation = "23505"

const userColumns = `id, name, email, password_hash, role, profile, is_active, last_login_at, created_at, updated_at`

// UserStore implements auth.UserStore on PostgreSQL. Searches go to a read
// replica when the connection manager has one.
type UserStore struct {
	conns *ConnectionManager
}

var _ auth.UserStore = (*UserStore)(nil)

// NewUserStore creates a store over the given connections
func NewUserStore(conns *ConnectionManager) *UserStore {
	return &UserStore{conns: conns}
}

func (s *UserStore) Create(ctx context.Context, user *auth.User) error {
	profile, err := marshalProfile(user.Profile)
	if err != nil {
		return err
	}

	query := `INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = s.conns.Primary().ExecContext(ctx, query,
		user.ID, user.Name, user.Email, user.PasswordHash, string(user.Role),
		profile, user.IsActive, nullTime(user.LastLoginAt), user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return auth.ErrEmailTaken
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*auth.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(s.conns.Primary().QueryRowContext(ctx, query, id))
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(s.conns.Primary().QueryRowContext(ctx, query, email))
}

func (s *UserStore) Update(ctx context.Context, user *auth.User) error {
	profile, err := marshalProfile(user.Profile)
	if err != nil {
		return err
	}

	query := `UPDATE users
		SET name = $2, email = $3, password_hash = $4, role = $5, profile = $6,
		    is_active = $7, updated_at = $8
		WHERE id = $1`

	result, err := s.conns.Primary().ExecContext(ctx, query,
		user.ID, user.Name, user.Email, user.PasswordHash, string(user.Role),
		profile, user.IsActive, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return auth.ErrEmailTaken
		}
		return fmt.Errorf("db error: %w", err)
	}
	return expectOneRow(result)
}

func (s *UserStore) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	result, err := s.conns.Primary().ExecContext(ctx,
		`UPDATE users SET last_login_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOneRow(result)
}

func (s *UserStore) Search(ctx context.Context, filter auth.SearchFilter) ([]*auth.User, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.Query != "" {
		args = append(args, "%"+escapeLike(filter.Query)+"%")
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d)", len(args), len(args)))
	}
	if filter.Role != "" {
		args = append(args, string(filter.Role))
		conds = append(conds, fmt.Sprintf("role = $%d", len(args)))
	}

	query := `SELECT ` + userColumns + ` FROM users`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.conns.Replica().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var users []*auth.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return users, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*auth.User, error) {
	var (
		user      auth.User
		role      string
		profile   []byte
		lastLogin sql.NullTime
	)

	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &role,
		&profile, &user.IsActive, &lastLogin, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrUserNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	user.Role = auth.Role(role)
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLoginAt = &t
	}
	if len(profile) > 0 {
		if err := json.Unmarshal(profile, &user.Profile); err != nil {
			return nil, fmt.Errorf("failed to decode profile: %w", err)
		}
		if len(user.Profile) == 0 {
			user.Profile = nil
		}
	}
	return &user, nil
}

func marshalProfile(p auth.Profile) ([]byte, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode profile: %w", err)
	}
	return data, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func expectOneRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
