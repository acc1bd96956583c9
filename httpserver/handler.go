package httpserver

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/privy-io/privy-go/api"
	"github.com/privy-io/privy-go/cryptoutils"
	"github.com/privy-io/privy-go/interfaces"
)

const (
	// maxBodySize is the maximum allowed request body size (1MB).
	maxBodySize = 1024 * 1024

	// DefaultAuthorizationKeyTTL is the lifetime of keys issued by the
	// authenticate endpoint.
	DefaultAuthorizationKeyTTL = time.Hour
)

// RequestError provides structured error information for HTTP responses.
// It includes both an HTTP status code and the underlying error.
type RequestError struct {
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	return e.Err.Error()
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

func badRequest(format string, args ...any) error {
	return &RequestError{StatusCode: http.StatusBadRequest, Err: fmt.Errorf(format, args...)}
}

// HandlerConfig configures the mock API.
type HandlerConfig struct {
	// AppID and AppSecret are the only accepted app credentials.
	AppID     string
	AppSecret string

	// BaseURL is the public URL clients use to reach the server. Signed
	// requests are verified against it. When empty the URL is rebuilt from
	// the Host header.
	BaseURL string

	// UnencryptedAuthentication makes the authenticate endpoint return
	// authorization keys in the clear.
	UnencryptedAuthentication bool

	// AuthorizationKeyTTL overrides DefaultAuthorizationKeyTTL.
	AuthorizationKeyTTL time.Duration

	Clock interfaces.Clock
	Log   *slog.Logger
}

// Handler serves an in-memory subset of the Privy wallet API: authenticate,
// wallets, key quorums, policies and users. Owner-gated mutations verify
// privy-authorization-signature against the owner key quorum.
type Handler struct {
	cfg     HandlerConfig
	store   *store
	clock   interfaces.Clock
	log     *slog.Logger
	metrics *serverMetrics
}

func NewHandler(cfg HandlerConfig) (*Handler, error) {
	if cfg.AppID == "" || cfg.AppSecret == "" {
		return nil, errors.New("app id and app secret are required")
	}
	if cfg.AuthorizationKeyTTL <= 0 {
		cfg.AuthorizationKeyTTL = DefaultAuthorizationKeyTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = interfaces.SystemClock{}
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}

	return &Handler{
		cfg:     cfg,
		store:   newStore(),
		clock:   cfg.Clock,
		log:     cfg.Log,
		metrics: newServerMetrics(),
	}, nil
}

// APIRouter returns the router of the /v1 API.
func (h *Handler) APIRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(h.metrics.instrument, h.requireApp)

	r.Post("/wallets/authenticate", h.handleAuthenticate)
	r.Post("/wallets/import/init", h.handleImportInit)
	r.Post("/wallets/import/submit", h.handleImportSubmit)
	r.Post("/wallets", h.handleCreateWallet)
	r.Get("/wallets", h.handleListWallets)
	r.Route("/wallets/{wallet_id}", func(r chi.Router) {
		r.Get("/", h.handleGetWallet)
		r.Patch("/", h.handleUpdateWallet)
		r.Post("/rpc", h.handleRPC)
		r.Post("/raw_sign", h.handleRawSign)
		r.Post("/export", h.handleExport)
	})

	r.Post("/key_quorums", h.handleCreateKeyQuorum)
	r.Route("/key_quorums/{key_quorum_id}", func(r chi.Router) {
		r.Get("/", h.handleGetKeyQuorum)
		r.Patch("/", h.handleUpdateKeyQuorum)
		r.Delete("/", h.handleDeleteKeyQuorum)
	})

	r.Post("/policies", h.handleCreatePolicy)
	r.Route("/policies/{policy_id}", func(r chi.Router) {
		r.Get("/", h.handleGetPolicy)
		r.Patch("/", h.handleUpdatePolicy)
		r.Delete("/", h.handleDeletePolicy)
		r.Post("/rules", h.handleCreateRule)
		r.Get("/rules/{rule_id}", h.handleGetRule)
		r.Patch("/rules/{rule_id}", h.handleUpdateRule)
		r.Delete("/rules/{rule_id}", h.handleDeleteRule)
	})

	r.Post("/users", h.handleCreateUser)
	r.Get("/users", h.handleListUsers)
	r.Post("/users/search", h.handleSearchUsers)
	r.Get("/users/{user_id}", h.handleGetUser)
	r.Delete("/users/{user_id}", h.handleDeleteUser)

	return r
}

// requireApp checks the basic auth app credentials and the privy-app-id
// header.
func (h *Handler) requireApp(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.appAuthorized(r) {
			h.writeError(w, &RequestError{StatusCode: http.StatusUnauthorized, Err: errors.New("invalid app id or app secret")})
			return
		}
		if r.Header.Get(interfaces.HeaderAppID) != h.cfg.AppID {
			h.writeError(w, badRequest("missing or mismatched %s header", interfaces.HeaderAppID))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) appAuthorized(r *http.Request) bool {
	appID, appSecret, ok := r.BasicAuth()
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(appID), []byte(h.cfg.AppID)) == 1 &&
		subtle.ConstantTimeCompare([]byte(appSecret), []byte(h.cfg.AppSecret)) == 1
}

// IssueJWT returns a token that the authenticate endpoint accepts for the
// user. It stands in for a JWT issued by an identity provider.
func (h *Handler) IssueJWT(userID string) (string, error) {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	if _, err := h.store.user(userID); err != nil {
		return "", err
	}
	jwt := "mock-jwt." + uuid.NewString()
	h.store.jwts[jwt] = userID
	return jwt, nil
}

// handleAuthenticate exchanges a user JWT for a fresh P-256 authorization
// key. The key is HPKE-sealed to recipient_public_key unless the handler
// runs in unencrypted mode or the request asks for no encryption.
//
// Endpoint: POST /v1/wallets/authenticate
func (h *Handler) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	var req interfaces.AuthenticateRequest
	if _, err := h.readJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	h.store.mu.RLock()
	userID, ok := h.store.jwts[req.UserJWT]
	h.store.mu.RUnlock()
	if !ok {
		h.writeError(w, &RequestError{StatusCode: http.StatusUnauthorized, Err: errors.New("invalid user jwt")})
		return
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		h.writeError(w, fmt.Errorf("failed to generate authorization key: %w", err))
		return
	}
	expiry := h.clock.Now().Add(h.cfg.AuthorizationKeyTTL)
	resp := interfaces.AuthenticateResponse{
		ExpiresAt: float64(expiry.UnixMilli()) / 1000,
	}

	encrypted := !h.cfg.UnencryptedAuthentication && req.EncryptionType != ""
	if encrypted {
		if req.EncryptionType != interfaces.EncryptionTypeHPKE {
			h.writeError(w, badRequest("unsupported encryption type %q", req.EncryptionType))
			return
		}
		encapsulatedKey, ciphertext, err := cryptoutils.SealPrivateKey(req.RecipientPublicKey, key)
		if err != nil {
			h.writeError(w, badRequest("invalid recipient public key: %w", err))
			return
		}
		resp.EncryptedAuthorizationKey = &interfaces.EncryptedKey{
			EncryptionType:  interfaces.EncryptionTypeHPKE,
			EncapsulatedKey: encapsulatedKey,
			Ciphertext:      ciphertext,
		}
	} else {
		resp.AuthorizationKey, err = cryptoutils.MarshalAuthorizationKey(key)
		if err != nil {
			h.writeError(w, err)
			return
		}
	}

	h.store.mu.Lock()
	h.store.userKeys[userID] = append(h.store.userKeys[userID], issuedKey{publicKey: &key.PublicKey, expiry: expiry})
	h.store.mu.Unlock()

	h.metrics.keysIssued.WithLabelValues(fmt.Sprint(encrypted)).Inc()
	h.log.Info("issued authorization key", "userID", userID, "encrypted", encrypted, "expiresAt", expiry)
	writeJSON(w, http.StatusOK, &resp)
}

// readJSON reads the request body, decodes it into v and returns the raw
// bytes for signature verification.
func (h *Handler) readJSON(w http.ResponseWriter, r *http.Request, v any) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return nil, badRequest("failed to read request body: %w", err)
	}
	if v == nil || len(body) == 0 {
		return body, nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return nil, badRequest("invalid request body: %w", err)
	}
	return body, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// writeError responds with the API error body. Errors that are not a
// RequestError are internal.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		status = reqErr.StatusCode
	}
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", "err", err)
	}
	writeJSON(w, status, &api.ErrorResponse{Error: err.Error()})
}
