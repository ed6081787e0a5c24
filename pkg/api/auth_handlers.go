package api

import (
	"net/http"

	"github.com/manitejabayya/Sports-Ecosystem/pkg/audit"
	"github.com/manitejabayya/Sports-Ecosystem/pkg/auth"
	"github.com/manitejabayya/Sports-Ecosystem/pkg/httputil"
	"github.com/manitejabayya/Sports-Ecosystem/pkg/middleware"
	"github.com/manitejabayya/Sports-Ecosystem/pkg/observability"
)

// register handles POST /api/auth/register
func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	session, err := s.service.Register(r.Context(), auth.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		Profile:  req.Profile,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.sendToken(w, http.StatusCreated, session)
}

// login handles POST /api/auth/login
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	session, err := s.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.sendToken(w, http.StatusOK, session)
}

// getMe handles GET /api/auth/me
func (s *Server) getMe(w http.ResponseWriter, r *http.Request) {
	current := middleware.CurrentUser(r)

	user, err := s.service.Get(r.Context(), current.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httputil.WriteData(w, http.StatusOK, user.Public())
}

// updateDetails handles PUT /api/auth/me
func (s *Server) updateDetails(w http.ResponseWriter, r *http.Request) {
	var req updateDetailsRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	user, err := s.service.UpdateDetails(r.Context(), middleware.CurrentUser(r).ID, auth.UpdateDetailsInput{
		Name:  req.Name,
		Email: req.Email,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httputil.WriteData(w, http.StatusOK, user.Public())
}

// updatePassword handles PUT /api/auth/updatepassword
func (s *Server) updatePassword(w http.ResponseWriter, r *http.Request) {
	var req updatePasswordRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	session, err := s.service.ChangePassword(r.Context(), middleware.CurrentUser(r).ID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.sendToken(w, http.StatusOK, session)
}

// logout handles GET|POST /api/auth/logout. Tokens are stateless, so logout
// only clears the cookie.
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookieName,
		Value:    "none",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.SecureCookies,
	})

	ctx := r.Context()
	if err := audit.FromContext(ctx).LogAuthentication(ctx, audit.EventTypeAuthLogout,
		user.ID, user.Email, audit.EventStatusSuccess, "logged out"); err != nil {
		observability.FromContext(ctx).WithError(err).Warn("Failed to write audit event")
	}

	httputil.WriteData(w, http.StatusOK, struct{}{})
}

// verify handles GET /api/auth/verify
func (s *Server) verify(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, http.StatusOK, VerifyData{
		User:  middleware.CurrentUser(r).Public(),
		Valid: true,
	})
}

// sendToken sets the session cookie and writes the token response
func (s *Server) sendToken(w http.ResponseWriter, status int, session *auth.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   s.opts.SecureCookies,
	})

	httputil.WriteJSON(w, status, TokenResponse{
		Success: true,
		Token:   session.Token,
		Data:    session.User.Public(),
	})
}
