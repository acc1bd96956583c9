package httpserver

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/privy-io/privy-go/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getStatus(t *testing.T, url string) (int, string) {
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body.Status
}

func TestHealthAndDrain(t *testing.T) {
	env := newTestEnv(t)
	url := env.server.URL

	steps := []struct {
		path   string
		code   int
		status string
	}{
		{"/livez", http.StatusOK, "alive"},
		{"/readyz", http.StatusOK, "ready"},
		{"/drain", http.StatusOK, "draining"},
		{"/readyz", http.StatusServiceUnavailable, "not ready"},
		{"/drain", http.StatusOK, "already draining"},
		{"/livez", http.StatusOK, "alive"},
		{"/undrain", http.StatusOK, "ready"},
		{"/undrain", http.StatusOK, "already ready"},
		{"/readyz", http.StatusOK, "ready"},
	}
	for _, step := range steps {
		code, status := getStatus(t, url+step.path)
		assert.Equal(t, step.code, code, step.path)
		assert.Equal(t, step.status, status, step.path)
	}
}

func TestAdminRouter(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("dave")

	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/admin/users/"+user.ID+"/jwt", nil)
	require.NoError(t, err)
	resp, err := env.server.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req.SetBasicAuth(testAppID, testAppSecret)
	resp, err = env.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var issued IssueJWTResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&issued))
	require.NotEmpty(t, issued.JWT)

	req, err = http.NewRequest(http.MethodGet, env.server.URL+"/admin/status", nil)
	require.NoError(t, err)
	req.SetBasicAuth(testAppID, testAppSecret)
	statusResp, err := env.server.Client().Do(req)
	require.NoError(t, err)
	defer statusResp.Body.Close()

	var status StatusResponse
	require.NoError(t, json.NewDecoder(statusResp.Body).Decode(&status))
	// One user with one embedded wallet, owned through an implicit quorum
	require.Equal(t, StatusResponse{Wallets: 1, KeyQuorums: 1, Users: 1}, status)
}

func TestMetricsRecordRequests(t *testing.T) {
	env := newTestEnv(t)
	env.createWallet(&api.CreateWalletRequest{ChainType: api.ChainTypeEthereum})

	rec := httptest.NewRecorder()
	env.handler.metrics.handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `privy_mock_requests_total{code="200",method="POST",route="/v1/wallets"} 1`)
}

func TestSeedUser(t *testing.T) {
	env := newTestEnv(t)

	user, jwt, err := env.handler.SeedUser(&api.CreateUserRequest{
		LinkedAccounts: []api.LinkedAccount{{Type: "custom_auth", CustomUserID: "seeded"}},
		Wallets:        []api.CreateUserWallet{{ChainType: api.ChainTypeEthereum}},
	})
	require.NoError(t, err)
	require.Len(t, user.LinkedAccounts, 2)
	require.Equal(t, "wallet", user.LinkedAccounts[1].Type)

	env.handler.store.mu.RLock()
	defer env.handler.store.mu.RUnlock()
	require.Equal(t, user.ID, env.handler.store.jwts[jwt])
	require.Len(t, env.handler.store.wallets, 1)
}
