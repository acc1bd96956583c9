/*
Package httpserver implements an in-process, Privy compatible mock of the
wallet API. It backs the integration tests of the client and the mockserver
binary.

The mock keeps all state in memory and implements the authorization model of
the real API: resources are owned by key quorums, and owner-gated requests
must carry a privy-authorization-signature header whose signatures, verified
over the canonical request, satisfy the quorum threshold.

# API Endpoints

All endpoints require HTTP basic auth with the app id and secret, and the
privy-app-id header.

  - POST /v1/wallets/authenticate - Exchange a user JWT for an authorization key
  - POST /v1/wallets, GET /v1/wallets, GET /v1/wallets/{wallet_id}
  - PATCH /v1/wallets/{wallet_id} - Update owner, policies or signers (signed)
  - POST /v1/wallets/{wallet_id}/rpc - Ethereum signing methods (signed)
  - POST /v1/wallets/{wallet_id}/raw_sign - Sign a hash (signed)
  - POST /v1/wallets/{wallet_id}/export - HPKE sealed key export (signed)
  - POST /v1/wallets/import/init, POST /v1/wallets/import/submit
  - POST, GET, PATCH, DELETE /v1/key_quorums/...
  - POST, GET, PATCH, DELETE /v1/policies/... and /v1/policies/{policy_id}/rules/...
  - POST, GET, DELETE /v1/users/..., POST /v1/users/search

# Admin Endpoints

  - GET /admin/status - Resource counts
  - POST /admin/users/{user_id}/jwt - Issue a JWT accepted by authenticate

# Operational Endpoints

  - GET /livez - Liveness check
  - GET /readyz - Readiness check
  - GET /drain - Gracefully mark server as not ready
  - GET /undrain - Mark server as ready

Prometheus metrics are served on a separate address when configured.

# Usage

	handler, err := httpserver.NewHandler(httpserver.HandlerConfig{
		AppID:     "app-id",
		AppSecret: "app-secret",
	})
	server, err := httpserver.New(&httpserver.HTTPServerConfig{
		ListenAddr: ":8080",
		Log:        logger,
	}, handler)
	server.RunInBackground()
	defer server.Shutdown()
*/
package httpserver
