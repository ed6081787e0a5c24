package api

import (
	"net/http"

	"github.com/manitejabayya/Sports-Ecosystem/pkg/auth"
	"github.com/manitejabayya/Sports-Ecosystem/pkg/httputil"
	"github.com/manitejabayya/Sports-Ecosystem/pkg/middleware"
)

// searchUsers handles GET /api/users/search?query=&role=&limit=
func (s *Server) searchUsers(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.ParseQueryInt(r, "limit", auth.DefaultSearchLimit)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	users, err := s.service.Search(r.Context(), auth.SearchFilter{
		Query: httputil.ParseQueryString(r, "query", ""),
		Role:  auth.Role(httputil.ParseQueryString(r, "role", "")),
		Limit: limit,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	data := make([]auth.PublicUser, 0, len(users))
	for _, u := range users {
		data = append(data, u.Public())
	}

	httputil.WriteJSON(w, http.StatusOK, SearchResponse{
		Success: true,
		Count:   len(data),
		Data:    data,
	})
}

// whoAmI handles GET /api/users/whoami; anonymous callers get
// authenticated=false rather than a 401
func (s *Server) whoAmI(w http.ResponseWriter, r *http.Request) {
	data := WhoAmIData{}
	if user := middleware.CurrentUser(r); user != nil {
		public := user.Public()
		data.Authenticated = true
		data.User = &public
	}
	httputil.WriteData(w, http.StatusOK, data)
}

// setUserStatus handles PUT /api/admin/users/{id}/status
func (s *Server) setUserStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var req setStatusRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.IsActive == nil {
		httputil.WriteBadRequest(w, "Please provide isActive")
		return
	}

	user, err := s.service.SetActive(r.Context(), middleware.CurrentUser(r).ID, id, *req.IsActive)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httputil.WriteData(w, http.StatusOK, user.Public())
}
