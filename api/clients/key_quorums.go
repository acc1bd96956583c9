package clients

import (
	"context"
	"net/http"
	"net/url"

	"github.com/privy-io/privy-go/api"
	"github.com/privy-io/privy-go/authorization"
)

// KeyQuorumsService handles key quorums. Updating or deleting a quorum needs
// signatures from a threshold of its own keys.
type KeyQuorumsService struct {
	client *Client
}

func keyQuorumPath(id string) string {
	return "/v1/key_quorums/" + url.PathEscape(id)
}

func (s *KeyQuorumsService) Create(ctx context.Context, req *api.CreateKeyQuorumRequest) (*api.KeyQuorum, error) {
	var quorum api.KeyQuorum
	if err := s.client.doRequest(ctx, http.MethodPost, "/v1/key_quorums", req, &quorum, nil); err != nil {
		return nil, err
	}
	return &quorum, nil
}

func (s *KeyQuorumsService) Get(ctx context.Context, id string) (*api.KeyQuorum, error) {
	var quorum api.KeyQuorum
	if err := s.client.get(ctx, keyQuorumPath(id), &quorum); err != nil {
		return nil, err
	}
	return &quorum, nil
}

func (s *KeyQuorumsService) Update(ctx context.Context, id string, authCtx *authorization.AuthorizationContext, req *api.UpdateKeyQuorumRequest) (*api.KeyQuorum, error) {
	var quorum api.KeyQuorum
	err := s.client.doRequest(ctx, http.MethodPatch, keyQuorumPath(id), req, &quorum, &requestOptions{authCtx: authCtx})
	if err != nil {
		return nil, err
	}
	return &quorum, nil
}

func (s *KeyQuorumsService) Delete(ctx context.Context, id string, authCtx *authorization.AuthorizationContext) error {
	return s.client.doRequest(ctx, http.MethodDelete, keyQuorumPath(id), emptyBody, nil, &requestOptions{authCtx: authCtx})
}
