// Package main (cmd/privyctl) is a command line client for the Privy wallet API.
//
// Commands:
//
//	generate-key     - Generate a P-256 authorization key and print its public key
//	public-key       - Print the base64 SPKI public key of the given keys
//	canonicalize     - Print the canonical JSON payload covered by a signature
//	sign             - Print the privy-authorization-signature header for a request
//	hpke-seal        - Seal stdin to an HPKE recipient key
//	wallet get       - Fetch a wallet
//	wallet list      - List every wallet of the app
//	wallet update    - Apply a signed wallet update
//	wallet export    - Export a wallet private key over HPKE
//
// Authorization keys can come from PEM files (--auth-key-file), inline values
// (--auth-key or PRIVY_AUTHORIZATION_KEY), AWS KMS (--aws-kms-key) or a Vault
// KV secret (--vault-path). Every given key signs, so a quorum can be
// satisfied from a single invocation:
//
//	privyctl wallet update --wallet-id=<id> --body='{"policy_ids":["<policy>"]}' \
//	  --auth-key-file=alice.pem --auth-key-file=bob.pem
//
// App credentials are read from --app-id/--app-secret or PRIVY_APP_ID and
// PRIVY_APP_SECRET.
package main
