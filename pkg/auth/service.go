package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/manitejabayya/Sports-Ecosystem/pkg/audit"
	"github.com/manitejabayya/Sports-Ecosystem/pkg/observability"
)

const (
	// MaxNameLength is the longest accepted display name
	MaxNameLength = 50
	// MaxEmailLength matches the users.email column
	MaxEmailLength = 255

	tracerName = "github.com/manitejabayya/Sports-Ecosystem/pkg/auth"
)

var emailPattern = regexp.MustCompile(`^\w+([.+-]?\w+)*@\w+([.-]?\w+)*(\.\w{2,})+$`)

// Session is the result of a successful register, login or password change
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *User
}

// RegisterInput holds the fields accepted at registration
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
	Profile  Profile
}

// UpdateDetailsInput holds optional profile changes; nil fields are left alone
type UpdateDetailsInput struct {
	Name  *string
	Email *string
}

// Service implements registration, login and session verification
type Service struct {
	store   UserStore
	hasher  *PasswordHasher
	tokens  *TokenIssuer
	logger  *observability.Logger
	audit   audit.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer
	now     func() time.Time
	newID   func() string
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithLogger sets the service logger
func WithLogger(logger *observability.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAuditLogger sets the sink for authentication events
func WithAuditLogger(logger audit.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.audit = logger
		}
	}
}

// WithMetrics enables Prometheus instrumentation
func WithMetrics(metrics *observability.Metrics) ServiceOption {
	return func(s *Service) {
		s.metrics = metrics
	}
}

// WithServiceClock overrides the time source used for timestamps
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService wires the auth service
func NewService(store UserStore, hasher *PasswordHasher, tokens *TokenIssuer, opts ...ServiceOption) *Service {
	s := &Service{
		store:  store,
		hasher: hasher,
		tokens: tokens,
		logger: observability.NopLogger(),
		audit:  audit.NoOp(),
		tracer: observability.Tracer(tracerName),
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SessionTTL returns the lifetime of issued tokens
func (s *Service) SessionTTL() time.Duration {
	return s.tokens.TTL()
}

// Register creates an identity and opens a session for it
func (s *Service) Register(ctx context.Context, in RegisterInput) (_ *Session, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.Register")
	defer func() { endSpan(span, err) }()

	name := strings.TrimSpace(in.Name)
	email := strings.TrimSpace(in.Email)

	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	role, err := ParseRole(in.Role)
	if err != nil {
		return nil, Invalid("Role must be one of athlete, coach or scout")
	}
	if role == RoleAdmin {
		return nil, Invalid("Role must be one of athlete, coach or scout")
	}

	if _, err := s.store.GetByEmail(ctx, email); err == nil {
		s.metrics.RecordAuthAttempt("register", "duplicate")
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("checking existing user: %w", err)
	}

	hash, err := s.hash(ctx, in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	user := &User{
		ID:           s.newID(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Profile:      in.Profile,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.Create(ctx, user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			s.metrics.RecordAuthAttempt("register", "duplicate")
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}
	span.SetAttributes(attribute.String("user.id", user.ID), attribute.String("user.role", string(role)))

	session, err := s.openSession(user)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAuthAttempt("register", "success")
	s.logger.WithFields(map[string]interface{}{"user_id": user.ID, "role": role}).Info("user registered")
	_ = s.audit.LogAuthentication(ctx, audit.EventTypeAuthRegister, user.ID, user.Email, audit.EventStatusSuccess, "user registered")

	return session, nil
}

// Login verifies credentials and opens a session. Unknown email and wrong
// password both return ErrInvalidCredentials after one bcrypt comparison.
// A deactivated account with the right password also wraps ErrAccountInactive.
func (s *Service) Login(ctx context.Context, email, password string) (_ *Session, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.Login")
	defer func() { endSpan(span, err) }()

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, Invalid("Please provide an email and password")
	}

	user, err := s.store.GetByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		start := time.Now()
		s.hasher.burn(ctx, password)
		s.metrics.ObservePasswordHash("verify", time.Since(start))
		s.loginFailed(ctx, "", email, "unknown email")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	start := time.Now()
	ok, err := s.hasher.Verify(ctx, password, user.PasswordHash)
	s.metrics.ObservePasswordHash("verify", time.Since(start))
	if err != nil {
		return nil, err
	}
	if !ok {
		s.loginFailed(ctx, user.ID, email, "wrong password")
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		s.loginFailed(ctx, user.ID, email, "account deactivated")
		// Callers see the same credentials failure as a wrong password
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, ErrAccountInactive)
	}

	now := s.now().UTC()
	if err := s.store.TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("recording last login: %w", err)
	}
	user.LastLoginAt = &now
	span.SetAttributes(attribute.String("user.id", user.ID))

	session, err := s.openSession(user)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAuthAttempt("login", "success")
	_ = s.audit.LogAuthentication(ctx, audit.EventTypeAuthLogin, user.ID, user.Email, audit.EventStatusSuccess, "login succeeded")

	return session, nil
}

func (s *Service) loginFailed(ctx context.Context, userID, email, reason string) {
	s.metrics.RecordAuthAttempt("login", "failure")
	s.logger.WithFields(map[string]interface{}{"email": email, "reason": reason}).Warn("login failed")
	_ = s.audit.LogAuthentication(ctx, audit.EventTypeAuthLoginFailed, userID, email, audit.EventStatusFailure, reason)
}

// Authenticate resolves a session token to an active identity.
// Errors wrap ErrNoToken, ErrTokenInvalid, ErrTokenExpired, ErrUserNotFound
// or ErrAccountInactive.
func (s *Service) Authenticate(ctx context.Context, token string) (_ *User, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.Authenticate")
	defer func() { endSpan(span, err) }()

	userID, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	user, err := s.store.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, fmt.Errorf("token subject %s: %w", userID, ErrUserNotFound)
		}
		return nil, fmt.Errorf("loading token subject: %w", err)
	}
	if !user.IsActive {
		return nil, ErrAccountInactive
	}

	span.SetAttributes(attribute.String("user.id", user.ID))
	return user, nil
}

// Get returns the identity with the given id
func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	return s.store.GetByID(ctx, id)
}

// UpdateDetails changes name and/or email. The password hash is untouched.
func (s *Service) UpdateDetails(ctx context.Context, id string, in UpdateDetailsInput) (_ *User, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.UpdateDetails")
	defer func() { endSpan(span, err) }()

	user, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if err := validateName(name); err != nil {
			return nil, err
		}
		user.Name = name
	}
	if in.Email != nil {
		email := strings.TrimSpace(*in.Email)
		if err := validateEmail(email); err != nil {
			return nil, err
		}
		if email != user.Email {
			if other, err := s.store.GetByEmail(ctx, email); err == nil && other.ID != user.ID {
				return nil, ErrEmailTaken
			} else if err != nil && !errors.Is(err, ErrUserNotFound) {
				return nil, fmt.Errorf("checking email: %w", err)
			}
		}
		user.Email = email
	}

	user.UpdatedAt = s.now().UTC()
	if err := s.store.Update(ctx, user); err != nil {
		return nil, err
	}

	_ = s.audit.LogAuthentication(ctx, audit.EventTypeAuthProfileUpdate, user.ID, user.Email, audit.EventStatusSuccess, "details updated")
	return user, nil
}

// ChangePassword verifies the current password, stores a new hash and opens
// a fresh session
func (s *Service) ChangePassword(ctx context.Context, id, current, next string) (_ *Session, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.ChangePassword")
	defer func() { endSpan(span, err) }()

	if current == "" || next == "" {
		return nil, Invalid("Please provide the current and new password")
	}
	if err := ValidatePassword(next); err != nil {
		return nil, err
	}

	user, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	ok, err := s.hasher.Verify(ctx, current, user.PasswordHash)
	s.metrics.ObservePasswordHash("verify", time.Since(start))
	if err != nil {
		return nil, err
	}
	if !ok {
		s.metrics.RecordAuthAttempt("password_change", "failure")
		_ = s.audit.LogAuthentication(ctx, audit.EventTypeAuthPasswordChange, user.ID, user.Email, audit.EventStatusFailure, "current password incorrect")
		return nil, ErrIncorrectPassword
	}

	hash, err := s.hash(ctx, next)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash
	user.UpdatedAt = s.now().UTC()
	if err := s.store.Update(ctx, user); err != nil {
		return nil, err
	}

	session, err := s.openSession(user)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAuthAttempt("password_change", "success")
	_ = s.audit.LogAuthentication(ctx, audit.EventTypeAuthPasswordChange, user.ID, user.Email, audit.EventStatusSuccess, "password changed")
	return session, nil
}

// SetActive activates or deactivates an identity on behalf of an admin
func (s *Service) SetActive(ctx context.Context, adminID, targetID string, active bool) (_ *User, err error) {
	ctx, span := s.tracer.Start(ctx, "auth.SetActive")
	defer func() { endSpan(span, err) }()

	if adminID == targetID && !active {
		return nil, Invalid("Administrators cannot deactivate their own account")
	}

	user, err := s.store.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if user.IsActive == active {
		return user, nil
	}

	user.IsActive = active
	user.UpdatedAt = s.now().UTC()
	if err := s.store.Update(ctx, user); err != nil {
		return nil, err
	}

	eventType := audit.EventTypeAdminUserDeactivate
	if active {
		eventType = audit.EventTypeAdminUserActivate
	}
	_ = s.audit.LogAdminAction(ctx, eventType, adminID, targetID, fmt.Sprintf("account active=%t", active))
	s.logger.WithFields(map[string]interface{}{"admin_id": adminID, "target_id": targetID, "active": active}).Info("account status changed")

	return user, nil
}

// Search finds identities by name or email fragment
func (s *Service) Search(ctx context.Context, filter SearchFilter) ([]*User, error) {
	if filter.Role != "" && !filter.Role.Valid() {
		return nil, Invalid("Unknown role %q", filter.Role)
	}
	if filter.Limit <= 0 || filter.Limit > DefaultSearchLimit {
		filter.Limit = DefaultSearchLimit
	}
	filter.Query = strings.TrimSpace(filter.Query)
	return s.store.Search(ctx, filter)
}

func (s *Service) hash(ctx context.Context, password string) (string, error) {
	start := time.Now()
	defer func() { s.metrics.ObservePasswordHash("hash", time.Since(start)) }()
	return s.hasher.Hash(ctx, password)
}

func (s *Service) openSession(user *User) (*Session, error) {
	token, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issuing token: %w", err)
	}
	s.metrics.RecordTokenIssued()
	return &Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

func validateName(name string) error {
	if name == "" {
		return Invalid("Please add a name")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return Invalid("Name can not be more than %d characters", MaxNameLength)
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return Invalid("Please add an email")
	}
	if len(email) > MaxEmailLength {
		return Invalid("Email can not be more than %d characters", MaxEmailLength)
	}
	if !emailPattern.MatchString(email) {
		return Invalid("Please add a valid email")
	}
	return nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
