package clients

import (
	"context"
	"testing"

	"github.com/privy-io/privy-go/api"
	"github.com/privy-io/privy-go/authorization"
	"github.com/stretchr/testify/require"
)

func TestKeyQuorumMembership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	k1, pub1 := newAuthKey(t)
	k2, pub2 := newAuthKey(t)
	k3, pub3 := newAuthKey(t)

	quorum, err := env.client.KeyQuorums().Create(ctx, &api.CreateKeyQuorumRequest{
		DisplayName: "ops",
		PublicKeys:  []string{pub1, pub2},
	})
	require.NoError(t, err)
	// Unset threshold means every member signs
	require.Equal(t, 2, quorum.Threshold())
	require.Len(t, quorum.AuthorizationKeys, 2)

	rotate := &api.UpdateKeyQuorumRequest{
		DisplayName:            "ops",
		AuthorizationThreshold: 1,
		PublicKeys:             []string{pub2, pub3},
	}
	_, err = env.client.KeyQuorums().Update(ctx, quorum.ID, authorization.NewAuthorizationContext(k1), rotate)
	requireAPIError(t, err, 401)

	rotated, err := env.client.KeyQuorums().Update(ctx, quorum.ID, authorization.NewAuthorizationContext(k1, k2), rotate)
	require.NoError(t, err)
	require.Equal(t, 1, rotated.Threshold())

	fetched, err := env.client.KeyQuorums().Get(ctx, quorum.ID)
	require.NoError(t, err)
	require.Equal(t, rotated, fetched)

	// k1 was rotated out
	err = env.client.KeyQuorums().Delete(ctx, quorum.ID, authorization.NewAuthorizationContext(k1))
	requireAPIError(t, err, 401)
	require.NoError(t, env.client.KeyQuorums().Delete(ctx, quorum.ID, authorization.NewAuthorizationContext(k3)))

	_, err = env.client.KeyQuorums().Get(ctx, quorum.ID)
	requireAPIError(t, err, 404)
}

func TestKeyQuorumValidation(t *testing.T) {
	env := newTestEnv(t)
	_, pub := newAuthKey(t)

	tests := []struct {
		name string
		req  *api.CreateKeyQuorumRequest
	}{
		{"no members", &api.CreateKeyQuorumRequest{}},
		{"threshold above members", &api.CreateKeyQuorumRequest{AuthorizationThreshold: 2, PublicKeys: []string{pub}}},
		{"bad key", &api.CreateKeyQuorumRequest{PublicKeys: []string{"bm90IGEga2V5"}}},
		{"unknown user", &api.CreateKeyQuorumRequest{UserIDs: []string{"did:privy:missing"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.client.KeyQuorums().Create(context.Background(), tt.req)
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			require.GreaterOrEqual(t, apiErr.StatusCode, 400)
			require.Less(t, apiErr.StatusCode, 500)
		})
	}
}

func TestKeyQuorumInUseCannotBeDeleted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	key, pub := newAuthKey(t)

	quorum, err := env.client.KeyQuorums().Create(ctx, &api.CreateKeyQuorumRequest{PublicKeys: []string{pub}})
	require.NoError(t, err)
	_, err = env.client.Wallets().Create(ctx, &api.CreateWalletRequest{
		ChainType: api.ChainTypeEthereum,
		OwnerID:   quorum.ID,
	}, "")
	require.NoError(t, err)

	err = env.client.KeyQuorums().Delete(ctx, quorum.ID, authorization.NewAuthorizationContext(key))
	requireAPIError(t, err, 400)
}
