package clients

import (
	"context"
	"net/http"
	"net/url"

	"github.com/privy-io/privy-go/api"
	"github.com/privy-io/privy-go/authorization"
)

// emptyBody is signed and sent by delete calls on owner-gated resources.
var emptyBody = struct{}{}

// PoliciesService handles policies and their rules. Mutations of an owned
// policy are signed with the owner's authorization context.
type PoliciesService struct {
	client *Client
}

func policyPath(policyID string) string {
	return "/v1/policies/" + url.PathEscape(policyID)
}

func rulePath(policyID, ruleID string) string {
	return policyPath(policyID) + "/rules/" + url.PathEscape(ruleID)
}

func (s *PoliciesService) Create(ctx context.Context, req *api.CreatePolicyRequest, idempotencyKey string) (*api.Policy, error) {
	if req.Version == "" {
		req.Version = api.PolicyVersion
	}
	var policy api.Policy
	err := s.client.doRequest(ctx, http.MethodPost, "/v1/policies", req, &policy, &requestOptions{idempotencyKey: idempotencyKey})
	if err != nil {
		return nil, err
	}
	return &policy, nil
}

func (s *PoliciesService) Get(ctx context.Context, policyID string) (*api.Policy, error) {
	var policy api.Policy
	if err := s.client.get(ctx, policyPath(policyID), &policy); err != nil {
		return nil, err
	}
	return &policy, nil
}

func (s *PoliciesService) Update(ctx context.Context, policyID string, authCtx *authorization.AuthorizationContext, req *api.UpdatePolicyRequest) (*api.Policy, error) {
	var policy api.Policy
	err := s.client.doRequest(ctx, http.MethodPatch, policyPath(policyID), req, &policy, &requestOptions{authCtx: authCtx})
	if err != nil {
		return nil, err
	}
	return &policy, nil
}

func (s *PoliciesService) Delete(ctx context.Context, policyID string, authCtx *authorization.AuthorizationContext) error {
	return s.client.doRequest(ctx, http.MethodDelete, policyPath(policyID), emptyBody, nil, &requestOptions{authCtx: authCtx})
}

func (s *PoliciesService) CreateRule(ctx context.Context, policyID string, authCtx *authorization.AuthorizationContext, rule *api.Rule) (*api.Rule, error) {
	var created api.Rule
	err := s.client.doRequest(ctx, http.MethodPost, policyPath(policyID)+"/rules", rule, &created, &requestOptions{authCtx: authCtx})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *PoliciesService) GetRule(ctx context.Context, policyID, ruleID string) (*api.Rule, error) {
	var rule api.Rule
	if err := s.client.get(ctx, rulePath(policyID, ruleID), &rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

func (s *PoliciesService) UpdateRule(ctx context.Context, policyID, ruleID string, authCtx *authorization.AuthorizationContext, rule *api.Rule) (*api.Rule, error) {
	var updated api.Rule
	err := s.client.doRequest(ctx, http.MethodPatch, rulePath(policyID, ruleID), rule, &updated, &requestOptions{authCtx: authCtx})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *PoliciesService) DeleteRule(ctx context.Context, policyID, ruleID string, authCtx *authorization.AuthorizationContext) error {
	return s.client.doRequest(ctx, http.MethodDelete, rulePath(policyID, ruleID), emptyBody, nil, &requestOptions{authCtx: authCtx})
}
