// Package authorization implements request authorization for the Privy
// wallet API: canonical request formatting, the key variants that can sign a
// request, and multi-key signature generation for quorum-gated operations.
//
// # Canonical Requests
//
// A mutating request (POST, PUT, PATCH, DELETE) is signed over its canonical
// form rather than its raw bytes:
//
//	{"body":<body-or-null>,"headers":{"privy-app-id":"...","privy-idempotency-key":"..."},"method":"PATCH","url":"https://...","version":1}
//
// Serialization follows RFC 8785, so object keys are sorted at every depth and
// array order is preserved. The idempotency key header is included only when
// the request carries one.
//
// # Keys
//
// Every credential implements interfaces.Key:
//
//   - PrivateKey: a static P-256 key parsed from PEM or dashboard format
//   - PrivateKeyFile: a PEM file read on every use
//   - JwtUser: a user JWT exchanged for a short-lived key (see package jwtexchange)
//   - PrecomputedSignature: a signature produced elsewhere
//   - TimeCachingKey: caches the key resolved from any SecretKeySource
//
// Keys backed by AWS KMS and HashiCorp Vault live in package kms.
//
// # Signing
//
// An AuthorizationContext collects keys in order. GenerateSignature signs the
// canonical request with every key concurrently and joins the base64 DER
// signatures with commas in push order, producing the value of the
// privy-authorization-signature header. Quorum evaluation is done by the
// server; the client only produces the signatures it can.
package authorization
