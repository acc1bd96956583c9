package clients

import (
	"context"
	"testing"

	"github.com/privy-io/privy-go/api"
	"github.com/stretchr/testify/require"
)

func TestUsers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var ids []string
	for _, name := range []string{"alice", "bob", "carol"} {
		user, err := env.client.Users().Create(ctx, &api.CreateUserRequest{
			LinkedAccounts: []api.LinkedAccount{{Type: "custom_auth", CustomUserID: name}},
			CustomMetadata: map[string]any{"team": "core"},
		})
		require.NoError(t, err)
		require.Contains(t, user.ID, "did:privy:")
		ids = append(ids, user.ID)
	}

	user, err := env.client.Users().Get(ctx, ids[1])
	require.NoError(t, err)
	require.Equal(t, "bob", user.LinkedAccounts[0].CustomUserID)
	require.Equal(t, "core", user.CustomMetadata["team"])

	found, err := env.client.Users().Search(ctx, "CAROL")
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, ids[2], found[0].ID)

	list, err := env.client.Users().List(ctx, &api.ListOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, list.Data, 2)
	require.NotNil(t, list.NextCursor)

	require.NoError(t, env.client.Users().Delete(ctx, ids[0]))
	_, err = env.client.Users().Get(ctx, ids[0])
	requireAPIError(t, err, 404)

	list, err = env.client.Users().List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, list.Data, 2)
	require.Nil(t, list.NextCursor)
}

func TestUserValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.client.Users().Create(ctx, &api.CreateUserRequest{})
	requireAPIError(t, err, 400)

	_, err = env.client.Users().Create(ctx, &api.CreateUserRequest{
		LinkedAccounts: []api.LinkedAccount{{Type: "email", Address: "a@example.com"}},
		Wallets:        []api.CreateUserWallet{{ChainType: api.ChainTypeSolana}},
	})
	requireAPIError(t, err, 400)

	_, err = env.client.Users().Search(ctx, "")
	requireAPIError(t, err, 400)
}

func TestUserInSharedQuorumCannotBeDeleted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, pub := newAuthKey(t)

	user, err := env.client.Users().Create(ctx, &api.CreateUserRequest{
		LinkedAccounts: []api.LinkedAccount{{Type: "email", Address: "ops@example.com"}},
	})
	require.NoError(t, err)
	_, err = env.client.KeyQuorums().Create(ctx, &api.CreateKeyQuorumRequest{
		AuthorizationThreshold: 1,
		PublicKeys:             []string{pub},
		UserIDs:                []string{user.ID},
	})
	require.NoError(t, err)

	err = env.client.Users().Delete(ctx, user.ID)
	requireAPIError(t, err, 400)

	// The JWT of a deleted user stops working
	other, err := env.client.Users().Create(ctx, &api.CreateUserRequest{
		LinkedAccounts: []api.LinkedAccount{{Type: "email", Address: "temp@example.com"}},
	})
	require.NoError(t, err)
	jwt, err := env.handler.IssueJWT(other.ID)
	require.NoError(t, err)
	require.NoError(t, env.client.Users().Delete(ctx, other.ID))

	_, err = env.client.ExchangeCache().Exchange(ctx, jwt)
	requireAPIError(t, err, 401)
}
