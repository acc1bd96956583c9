/*
Package api holds the wire models of the Privy REST API and the pieces that
sit between them and the network.

The package is organized into two subpackages:

 1. middleware - an http.RoundTripper that attaches the
    privy-authorization-signature header to mutating requests
 2. clients - the Privy client and its wallets, policies, key quorums and
    users services

# Signed requests

Every PATCH, POST, PUT and DELETE request with a JSON body is signed by the
keys of the AuthorizationContext carried in the request context. The body
types in this package omit unset fields, so the body that is canonicalized
and signed is byte for byte the body that is sent.

The authenticate endpoint is never signed: authenticating is what produces
the keys used for signing.
*/
package api
