// Package jwtexchange exchanges user JWTs for short-lived P-256
// authorization keys and caches the result.
//
// An exchange generates an ephemeral HPKE keypair, calls the authenticate
// endpoint with the recipient public key and decrypts the returned key. Keys
// are cached per JWT in an LRU and served until ExpiryBuffer before their
// expiry. Stale entries are demoted so they are the first to go under
// capacity pressure, instead of being deleted while another request may be
// using them.
//
// The cache lock only guards in-memory operations and is never held across
// the network call. Concurrent exchanges for the same JWT may both reach the
// server unless WithSingleFlight is set.
package jwtexchange
