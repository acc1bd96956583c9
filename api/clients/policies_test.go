package clients

import (
	"context"
	"testing"

	"github.com/privy-io/privy-go/api"
	"github.com/privy-io/privy-go/authorization"
	"github.com/stretchr/testify/require"
)

func TestPolicyLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner, ownerPub := newAuthKey(t)
	stranger, _ := newAuthKey(t)
	authCtx := authorization.NewAuthorizationContext(owner)

	policy, err := env.client.Policies().Create(ctx, &api.CreatePolicyRequest{
		Name:      "deny all",
		ChainType: api.ChainTypeEthereum,
		Rules:     []api.Rule{{Name: "deny", Method: "*", Action: "DENY", Conditions: []api.Condition{}}},
		Owner:     &api.Owner{PublicKey: ownerPub},
	}, NewIdempotencyKey())
	require.NoError(t, err)
	require.NotEmpty(t, policy.OwnerID)
	require.Len(t, policy.Rules, 1)
	require.NotEmpty(t, policy.Rules[0].ID)

	_, err = env.client.Policies().Update(ctx, policy.ID, authorization.NewAuthorizationContext(stranger),
		&api.UpdatePolicyRequest{Name: "renamed"})
	requireAPIError(t, err, 401)

	updated, err := env.client.Policies().Update(ctx, policy.ID, authCtx, &api.UpdatePolicyRequest{Name: "renamed"})
	require.NoError(t, err)
	require.Equal(t, "renamed", updated.Name)
	require.Equal(t, policy.Rules, updated.Rules)

	rule, err := env.client.Policies().CreateRule(ctx, policy.ID, authCtx, &api.Rule{
		Name:   "allow base",
		Method: "eth_sendTransaction",
		Action: "ALLOW",
		Conditions: []api.Condition{{
			FieldSource: "ethereum_transaction",
			Field:       "chain_id",
			Operator:    "eq",
			Value:       "8453",
		}},
	})
	require.NoError(t, err)
	require.NotEmpty(t, rule.ID)

	fetched, err := env.client.Policies().GetRule(ctx, policy.ID, rule.ID)
	require.NoError(t, err)
	require.Equal(t, "allow base", fetched.Name)
	require.Equal(t, "8453", fetched.Conditions[0].Value)

	rule.Action = "DENY"
	changed, err := env.client.Policies().UpdateRule(ctx, policy.ID, rule.ID, authCtx, rule)
	require.NoError(t, err)
	require.Equal(t, "DENY", changed.Action)
	require.Equal(t, rule.ID, changed.ID)

	require.NoError(t, env.client.Policies().DeleteRule(ctx, policy.ID, rule.ID, authCtx))
	_, err = env.client.Policies().GetRule(ctx, policy.ID, rule.ID)
	requireAPIError(t, err, 404)

	err = env.client.Policies().Delete(ctx, policy.ID, nil)
	requireAPIError(t, err, 401)
	require.NoError(t, env.client.Policies().Delete(ctx, policy.ID, authCtx))

	_, err = env.client.Policies().Get(ctx, policy.ID)
	require.True(t, requireAPIError(t, err, 404).IsNotFound())
}

func TestCreatePolicyValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		req  *api.CreatePolicyRequest
	}{
		{"missing name", &api.CreatePolicyRequest{ChainType: api.ChainTypeEthereum}},
		{"unknown version", &api.CreatePolicyRequest{Version: "2.0", Name: "p", ChainType: api.ChainTypeEthereum}},
		{"bad owner key", &api.CreatePolicyRequest{Name: "p", Owner: &api.Owner{PublicKey: "not-a-key"}}},
		{"unknown owner id", &api.CreatePolicyRequest{Name: "p", OwnerID: "missing"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.client.Policies().Create(context.Background(), tt.req, "")
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			require.GreaterOrEqual(t, apiErr.StatusCode, 400)
			require.Less(t, apiErr.StatusCode, 500)
		})
	}
}
