package httpserver

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// AdminRouter returns the router of the mock-only admin API, used by tests
// and local tooling to mint user tokens and inspect state. It is protected
// by the same app credentials as the API.
//
// The router provides endpoints for:
//   - Issuing a user JWT accepted by the authenticate endpoint
//   - Counting stored resources
func (h *Handler) AdminRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(h.requireAdmin)

	r.Get("/status", h.handleStatus)
	r.Post("/users/{user_id}/jwt", h.handleIssueJWT)

	return r
}

func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.appAuthorized(r) {
			h.log.Warn("admin authentication failed", "remoteAddr", r.RemoteAddr)
			h.writeError(w, &RequestError{StatusCode: http.StatusUnauthorized, Err: errors.New("invalid app id or app secret")})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// StatusResponse reports the number of stored resources.
type StatusResponse struct {
	Wallets    int `json:"wallets"`
	KeyQuorums int `json:"key_quorums"`
	Policies   int `json:"policies"`
	Users      int `json:"users"`
}

// Endpoint: GET /admin/status
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	h.store.mu.RLock()
	resp := StatusResponse{
		Wallets:    len(h.store.wallets),
		KeyQuorums: len(h.store.quorums),
		Policies:   len(h.store.policies),
		Users:      len(h.store.users),
	}
	h.store.mu.RUnlock()

	writeJSON(w, http.StatusOK, &resp)
}

// IssueJWTResponse carries a token for POST /v1/wallets/authenticate.
type IssueJWTResponse struct {
	JWT string `json:"jwt"`
}

// Endpoint: POST /admin/users/{user_id}/jwt
func (h *Handler) handleIssueJWT(w http.ResponseWriter, r *http.Request) {
	jwt, err := h.IssueJWT(chi.URLParam(r, "user_id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &IssueJWTResponse{JWT: jwt})
}
