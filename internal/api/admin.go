package api

import (
	"errors"
	"net/http"

	"github.com/nanobanana/supermarket/internal/store"
)

const adminTokenHeader = "Admin-Token"

// adminTokenMiddleware gates the admin endpoints behind the static token.
func (s *Server) adminTokenMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(adminTokenHeader) != s.cfg.AdminToken {
			s.writeError(w, http.StatusUnauthorized, "invalid admin token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type adminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req adminLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Username != s.cfg.AdminUsername || req.Password != s.cfg.AdminPassword {
		s.writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"token":   s.cfg.AdminToken,
	})
}

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	accounts, stats, err := s.accounts.ListAll(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"users":   accounts,
		"stats":   stats,
	})
}

type resetUsesRequest struct {
	Phone string `json:"phone"`
	Uses  int    `json:"uses"`
}

func (s *Server) handleAdminResetUses(w http.ResponseWriter, r *http.Request) {
	var req resetUsesRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Uses < 0 {
		s.writeError(w, http.StatusBadRequest, "uses must not be negative")
		return
	}

	if err := s.accounts.ResetUses(r.Context(), req.Phone, req.Uses); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "user does not exist")
			return
		}
		s.internalError(w, err)
		return
	}

	s.log.Info("uses reset", "phone", req.Phone, "uses", req.Uses)
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
