/*
Package clients provides the Privy API client.

A Client is created once per app and exposes one service per API resource:

  - Wallets: create, get, list, update, rpc, raw_sign, export, import and the
    JWT authenticate call
  - Policies and their rules
  - KeyQuorums
  - Users

# Authorization signatures

Operations on owner-gated resources take an AuthorizationContext. The
client's transport canonicalizes the request and attaches one signature per
key of the context, in push order. Whether the signatures satisfy the owner
is decided by the API; an insufficient set is rejected with an APIError for
which IsUnauthorized reports true.

	client, err := clients.NewClient(appID, appSecret)
	if err != nil {
	    return err
	}

	owner, err := authorization.NewPrivateKey(os.Getenv("PRIVY_AUTHORIZATION_KEY"))
	if err != nil {
	    return err
	}
	authCtx := authorization.NewAuthorizationContext(owner).
	    Push(client.JwtUser(userJWT))

	wallet, err := client.Wallets().Update(ctx, walletID, authCtx, &api.UpdateWalletRequest{
	    PolicyIDs: []string{policyID},
	})

# User keys

Client.JwtUser returns a key backed by the client's JWT exchange cache. The
first use of a JWT performs an HPKE key exchange with the authenticate
endpoint; later uses are served from the cache until shortly before the key
expires.

# Errors

Non-2xx responses are returned as *APIError. Failures to obtain a user key
match authorization.ErrKeyExchange and keep the API error reachable through
errors.As.
*/
package clients
