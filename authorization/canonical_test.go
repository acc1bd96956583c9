package authorization

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/privy-io/privy-go/interfaces"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeGoldenVectors(t *testing.T) {
	t.Run("update wallet policies with idempotency key", func(t *testing.T) {
		canonical, err := FormatRequest(
			"your-privy-app-id",
			interfaces.MethodPatch,
			"https://api.privy.io/v1/wallets/clw4cc3a700b811p865d21b7b",
			map[string]any{"policy_ids": []string{"pol_123abc"}},
			"a-unique-uuid-for-the-request",
		)
		require.NoError(t, err)
		require.Equal(t,
			`{"body":{"policy_ids":["pol_123abc"]},"headers":{"privy-app-id":"your-privy-app-id","privy-idempotency-key":"a-unique-uuid-for-the-request"},"method":"PATCH","url":"https://api.privy.io/v1/wallets/clw4cc3a700b811p865d21b7b","version":1}`,
			string(canonical))
	})

	t.Run("update wallet owner without idempotency key", func(t *testing.T) {
		body := map[string]any{
			"owner": map[string]string{
				"public_key": "-----BEGIN PUBLIC KEY-----\nMFkwEwYHKoZIzj0CAQYIKoZIzj0DAQcDQgAESYrvEwooR33jt/8Up0lWdDNAcxmg\nNZrCX23OThCPA+WxDx+dHYrjRlfPmHX0/aMTopp1PdKAtlQjRJDHSNd8XA==\n-----END PUBLIC KEY-----\n",
			},
		}
		canonical, err := FormatRequest(
			"cmf418pa801bxl40b5rcgjvd9",
			interfaces.MethodPatch,
			"https://api.privy.io/v1/wallets/o5zuf7fbygwze9l9gaxyc0bm",
			body,
			"",
		)
		require.NoError(t, err)
		require.Equal(t,
			`{"body":{"owner":{"public_key":"-----BEGIN PUBLIC KEY-----\nMFkwEwYHKoZIzj0CAQYIKoZIzj0DAQcDQgAESYrvEwooR33jt/8Up0lWdDNAcxmg\nNZrCX23OThCPA+WxDx+dHYrjRlfPmHX0/aMTopp1PdKAtlQjRJDHSNd8XA==\n-----END PUBLIC KEY-----\n"}},"headers":{"privy-app-id":"cmf418pa801bxl40b5rcgjvd9"},"method":"PATCH","url":"https://api.privy.io/v1/wallets/o5zuf7fbygwze9l9gaxyc0bm","version":1}`,
			string(canonical))
	})
}

func TestCanonicalizeBodies(t *testing.T) {
	const suffix = `,"headers":{"privy-app-id":"app"},"method":"POST","url":"https://api.privy.io/v1/wallets","version":1}`

	testCases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "keys are sorted",
			body: `{"name":"John","age":30}`,
			want: `{"age":30,"name":"John"}`,
		},
		{
			name: "nested objects are sorted",
			body: `{"name":"John","address":{"street":"123 Main St","city":"Boston"}}`,
			want: `{"address":{"city":"Boston","street":"123 Main St"},"name":"John"}`,
		},
		{
			name: "arrays keep their order and nulls survive",
			body: `{"name":"John","hobbies":["reading","gaming","hiking"],"spouse":null}`,
			want: `{"hobbies":["reading","gaming","hiking"],"name":"John","spouse":null}`,
		},
		{
			name: "objects inside arrays are sorted",
			body: `{"user":{"name":"Alice","roles":["admin","user"],"settings":{"theme":"dark","notifications":true}},"metadata":{"version":2,"created":"2024-01-01"},"items":[{"z":1,"a":2},{"b":null}]}`,
			want: `{"items":[{"a":2,"z":1},{"b":null}],"metadata":{"created":"2024-01-01","version":2},"user":{"name":"Alice","roles":["admin","user"],"settings":{"notifications":true,"theme":"dark"}}}`,
		},
		{
			name: "whitespace is dropped",
			body: "{\n  \"b\" : [ 1, 2 ],\n  \"a\" : { }\n}",
			want: `{"a":{},"b":[1,2]}`,
		},
		{
			name: "html characters and unicode are not escaped",
			body: `{"memo":"café <b>&</b>","emoji":"🔑"}`,
			want: `{"emoji":"🔑","memo":"café <b>&</b>"}`,
		},
		{
			name: "null body",
			body: `null`,
			want: `null`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			canonical, err := FormatRequest("app", interfaces.MethodPost, "https://api.privy.io/v1/wallets", json.RawMessage(tc.body), "")
			require.NoError(t, err)
			require.Equal(t, `{"body":`+tc.want+suffix, string(canonical))
		})
	}
}

func TestCanonicalizeIsDeterministic(t *testing.T) {
	type rule struct {
		Name   string `json:"name"`
		Method string `json:"method"`
		Action string `json:"action"`
	}
	body := map[string]any{
		"rules":   []rule{{Name: "allow", Method: "eth_sendTransaction", Action: "ALLOW"}},
		"name":    "policy",
		"version": "1.0",
	}

	first, err := FormatRequest("app", interfaces.MethodPut, "https://api.privy.io/v1/policies/p", body, "key")
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := FormatRequest("app", interfaces.MethodPut, "https://api.privy.io/v1/policies/p", body, "key")
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
	require.Equal(t,
		`{"body":{"name":"policy","rules":[{"action":"ALLOW","method":"eth_sendTransaction","name":"allow"}],"version":"1.0"},"headers":{"privy-app-id":"app","privy-idempotency-key":"key"},"method":"PUT","url":"https://api.privy.io/v1/policies/p","version":1}`,
		string(first))
}

func TestCanonicalizeFailures(t *testing.T) {
	t.Run("read-only verbs are not signed", func(t *testing.T) {
		_, err := FormatRequest("app", interfaces.HTTPMethod("GET"), "https://api.privy.io/v1/wallets", nil, "")
		require.ErrorIs(t, err, ErrMethodNotSigned)
	})

	t.Run("non-finite numbers", func(t *testing.T) {
		_, err := FormatRequest("app", interfaces.MethodPost, "https://api.privy.io/v1/wallets", map[string]float64{"x": math.NaN()}, "")
		require.ErrorIs(t, err, ErrSerialization)
	})

	t.Run("invalid raw json", func(t *testing.T) {
		_, err := FormatRequest("app", interfaces.MethodPost, "https://api.privy.io/v1/wallets", json.RawMessage(`{"a":`), "")
		require.ErrorIs(t, err, ErrSerialization)
	})
}
