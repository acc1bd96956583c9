package clients

import (
	"context"
	"net/http"
	"net/url"

	"github.com/privy-io/privy-go/api"
)

// UsersService handles app users. User calls are authenticated by the app
// secret alone.
type UsersService struct {
	client *Client
}

func userPath(id string) string {
	return "/v1/users/" + url.PathEscape(id)
}

func (s *UsersService) Create(ctx context.Context, req *api.CreateUserRequest) (*api.User, error) {
	var user api.User
	if err := s.client.doRequest(ctx, http.MethodPost, "/v1/users", req, &user, nil); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UsersService) Get(ctx context.Context, id string) (*api.User, error) {
	var user api.User
	if err := s.client.get(ctx, userPath(id), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UsersService) List(ctx context.Context, opts *api.ListOptions) (*api.ListUsersResponse, error) {
	var resp api.ListUsersResponse
	if err := s.client.get(ctx, "/v1/users"+listQuery(opts), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *UsersService) Delete(ctx context.Context, id string) error {
	return s.client.doRequest(ctx, http.MethodDelete, userPath(id), nil, nil, nil)
}

// Search finds users by a linked account value such as an email or address.
func (s *UsersService) Search(ctx context.Context, term string) ([]api.User, error) {
	var resp api.ListUsersResponse
	err := s.client.doRequest(ctx, http.MethodPost, "/v1/users/search", &api.SearchUsersRequest{SearchTerm: term}, &resp, nil)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}
