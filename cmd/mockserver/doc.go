// Package main (cmd/mockserver) serves an in-memory implementation of the
// Privy wallet API for local development and integration tests.
//
// The server verifies authorization signatures exactly like the real API,
// so requests that pass against it are signed correctly. User JWTs are
// minted with --seed-user at startup, or later through the admin API:
//
//	curl -u mock-app:mock-secret -X POST http://127.0.0.1:8080/admin/users/<user_id>/jwt
//
// Prometheus metrics are served on --metrics-addr.
package main
