// Package interfaces defines the core contracts shared by the Privy client
// packages, separating interface definitions from their implementations.
//
// # Key Interfaces
//
//   - Key: anything that can produce a P-256 public key and a DER encoded
//     ECDSA signature over a byte string. Static keys, JWT identities and
//     remote KMS keys all implement it.
//   - SecretKeySource: a Key whose material resolves to a local private key.
//   - KeyExchanger: resolves a user JWT to a short-lived authorization key.
//
// # Transport Interfaces
//
//   - Authenticator: performs the authenticate call against the Privy API.
//     It is satisfied by the wallets service of the API client and by fakes
//     in tests.
//
// # Wire Types
//
// The package also defines the request verbs that can carry an
// authorization signature, the well-known Privy header names and the
// tagged union returned by the authenticate endpoint.
package interfaces
