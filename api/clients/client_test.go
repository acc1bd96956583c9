package clients

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/privy-io/privy-go/api"
	"github.com/privy-io/privy-go/authorization"
	"github.com/privy-io/privy-go/common"
	"github.com/privy-io/privy-go/cryptoutils"
	"github.com/privy-io/privy-go/httpserver"
	"github.com/privy-io/privy-go/interfaces"
	"github.com/stretchr/testify/require"
)

const (
	testAppID     = "test-app"
	testAppSecret = "test-secret"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type testEnv struct {
	client  *Client
	handler *httpserver.Handler
}

// newTestEnv starts a mock API and a client talking to it.
func newTestEnv(t *testing.T, configure ...func(*httpserver.HandlerConfig)) *testEnv {
	cfg := httpserver.HandlerConfig{
		AppID:     testAppID,
		AppSecret: testAppSecret,
		Log:       discardLogger,
	}
	for _, f := range configure {
		f(&cfg)
	}

	handler, err := httpserver.NewHandler(cfg)
	require.NoError(t, err)
	srv, err := httpserver.New(&httpserver.HTTPServerConfig{Log: discardLogger}, handler)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	client, err := NewClient(testAppID, testAppSecret,
		WithBaseURL(ts.URL),
		WithHTTPClient(ts.Client()),
		WithExchangeDelay(0),
		WithLogger(discardLogger),
	)
	require.NoError(t, err)
	return &testEnv{client: client, handler: handler}
}

// newAuthKey returns an authorization key and its base64 SPKI public key.
func newAuthKey(t *testing.T) (*authorization.PrivateKey, string) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	pub, err := cryptoutils.MarshalPublicKeyBase64(&key.PublicKey)
	require.NoError(t, err)
	return authorization.FromECDSA(key), pub
}

func requireAPIError(t *testing.T, err error, status int) *APIError {
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, status, apiErr.StatusCode, apiErr.Error())
	return apiErr
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient("", testAppSecret)
	require.Error(t, err)
	_, err = NewClient(testAppID, "")
	require.Error(t, err)

	_, err = NewClient(testAppID, testAppSecret, WithExchangeCacheCapacity(0))
	require.Error(t, err)
}

func TestClientURL(t *testing.T) {
	c, err := NewClient(testAppID, testAppSecret)
	require.NoError(t, err)
	require.Equal(t, DefaultBaseURL, c.BaseURL())
	require.Equal(t, "https://api.privy.io/v1/wallets", c.URL("/v1/wallets"))
	require.Equal(t, "http://localhost/x", c.URL("http://localhost/x"))

	c, err = NewClient(testAppID, testAppSecret, WithBaseURL("http://localhost:8080/"))
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8080/v1/wallets", c.URL("/v1/wallets"))
}

func TestCanonicalRequestMatchesReferenceVector(t *testing.T) {
	c, err := NewClient("your-privy-app-id", testAppSecret)
	require.NoError(t, err)

	canonical, err := c.CanonicalRequest(interfaces.MethodPatch, "/v1/wallets/clw4cc3a700b811p865d21b7b",
		&api.UpdateWalletRequest{PolicyIDs: []string{"pol_123abc"}}, "a-unique-uuid-for-the-request")
	require.NoError(t, err)
	require.Equal(t,
		`{"body":{"policy_ids":["pol_123abc"]},"headers":{"privy-app-id":"your-privy-app-id","privy-idempotency-key":"a-unique-uuid-for-the-request"},"method":"PATCH","url":"https://api.privy.io/v1/wallets/clw4cc3a700b811p865d21b7b","version":1}`,
		string(canonical))
}

func TestAuthorizationSignature(t *testing.T) {
	c, err := NewClient(testAppID, testAppSecret)
	require.NoError(t, err)
	k1, _ := newAuthKey(t)
	k2, _ := newAuthKey(t)
	body := map[string]any{"policy_ids": []string{"pol_1"}}

	header, err := c.AuthorizationSignature(context.Background(), authorization.NewAuthorizationContext(k1, k2),
		interfaces.MethodPatch, "/v1/wallets/w1", body, "")
	require.NoError(t, err)

	signatures, err := authorization.SplitSignatures(header)
	require.NoError(t, err)
	require.Len(t, signatures, 2)

	canonical, err := c.CanonicalRequest(interfaces.MethodPatch, "/v1/wallets/w1", body, "")
	require.NoError(t, err)
	for i, key := range []*authorization.PrivateKey{k1, k2} {
		pub, err := key.PublicKey(context.Background())
		require.NoError(t, err)
		require.True(t, cryptoutils.VerifySignature(pub, canonical, signatures[i]), "signature %d", i)
	}

	header, err = c.AuthorizationSignature(context.Background(), authorization.NewAuthorizationContext(), interfaces.MethodPatch, "/v1/wallets/w1", body, "")
	require.NoError(t, err)
	require.Empty(t, header)
}

func TestRequestHeaders(t *testing.T) {
	var got http.Header
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"w1","address":"0x0","chain_type":"ethereum","created_at":1}`))
	}))
	defer ts.Close()

	c, err := NewClient(testAppID, testAppSecret, WithBaseURL(ts.URL), WithLogger(discardLogger))
	require.NoError(t, err)

	wallet, err := c.Wallets().Get(context.Background(), "w1")
	require.NoError(t, err)
	require.Equal(t, "w1", wallet.ID)

	req := &http.Request{Header: got}
	appID, appSecret, ok := req.BasicAuth()
	require.True(t, ok)
	require.Equal(t, testAppID, appID)
	require.Equal(t, testAppSecret, appSecret)
	require.Equal(t, testAppID, got.Get(interfaces.HeaderAppID))
	require.Equal(t, common.ClientHeader(), got.Get(interfaces.HeaderClient))
	require.Equal(t, "application/json", got.Get("Content-Type"))
	require.Empty(t, got.Get(interfaces.HeaderAuthorizationSignature))
	require.Empty(t, got.Get(interfaces.HeaderIdempotencyKey))
}

func TestParseError(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected APIError
	}{
		{"error field", 401, `{"error":"Invalid authorization signature"}`, APIError{StatusCode: 401, Message: "Invalid authorization signature"}},
		{"with code", 400, `{"error":"bad owner","code":"invalid_data"}`, APIError{StatusCode: 400, Code: "invalid_data", Message: "bad owner"}},
		{"message field", 403, `{"message":"forbidden"}`, APIError{StatusCode: 403, Message: "forbidden"}},
		{"plain text", 502, "bad gateway\n", APIError{StatusCode: 502, Message: "bad gateway"}},
		{"empty body", 404, "", APIError{StatusCode: 404, Message: "Not Found"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := parseError(tt.status, []byte(tt.body))
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			require.Equal(t, tt.expected, *apiErr)
		})
	}

	err := parseError(http.StatusUnauthorized, []byte(`{"error":"x"}`)).(*APIError)
	require.True(t, err.IsUnauthorized())
	require.False(t, err.IsNotFound())
	require.False(t, err.IsForbidden())
}

func TestIdempotencyKeysAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		key := NewIdempotencyKey()
		require.False(t, seen[key])
		seen[key] = true
	}
}

func TestErrorBodyIsDecoded(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(&api.ErrorResponse{Error: "wallet not found"})
	}))
	defer ts.Close()

	c, err := NewClient(testAppID, testAppSecret, WithBaseURL(ts.URL), WithLogger(discardLogger))
	require.NoError(t, err)

	_, err = c.Wallets().Get(context.Background(), "missing")
	apiErr := requireAPIError(t, err, http.StatusNotFound)
	require.True(t, apiErr.IsNotFound())
	require.Equal(t, "wallet not found", apiErr.Message)
}
