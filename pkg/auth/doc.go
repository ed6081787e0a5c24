// Package auth implements identities, password hashing and session tokens
// for the sports platform.
//
// # Overview
//
// An identity is registered with a name, an email, a password and a role.
// Passwords are hashed with bcrypt at cost 10; the hash never leaves the
// package in a response because User marshals through PublicUser.
//
// # Sessions
//
// A session is an HS256 token whose subject is the identity id. Its lifetime
// comes from configuration and is normalized once with ParseSessionDuration:
//
//	ttl, _ := auth.ParseSessionDuration("30")  // thirty days
//	ttl, _ = auth.ParseSessionDuration("12h")  // twelve hours
//
//	issuer, err := auth.NewTokenIssuer(secret, ttl)
//	token, expiresAt, err := issuer.Issue(user.ID)
//	userID, err := issuer.Verify(token)
//
// # Service
//
// Service ties a UserStore, a PasswordHasher and a TokenIssuer together:
//
//	svc := auth.NewService(store, hasher, issuer,
//		auth.WithLogger(logger),
//		auth.WithAuditLogger(auditLogger),
//		auth.WithMetrics(metrics),
//	)
//
//	session, err := svc.Register(ctx, auth.RegisterInput{
//		Name:     "Priya",
//		Email:    "priya@x.io",
//		Password: "secret1",
//	})
//
//	session, err = svc.Login(ctx, "priya@x.io", "secret1")
//	user, err := svc.Authenticate(ctx, session.Token)
//
// Login returns ErrInvalidCredentials for both an unknown email and a wrong
// password, after the same amount of bcrypt work. Authenticate failures wrap
// one of ErrNoToken, ErrTokenInvalid, ErrTokenExpired, ErrUserNotFound or
// ErrAccountInactive; Cause turns them into a log label.
//
// # Roles
//
// Roles are athlete (the default), coach, scout and admin. Admin cannot be
// chosen at registration.
package auth
