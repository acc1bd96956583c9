package httpserver

import (
	"crypto/ecdsa"
	"fmt"
	"net/http"
	"slices"
	"strconv"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/privy-io/privy-go/api"
)

func (h *Handler) handleCreateKeyQuorum(w http.ResponseWriter, r *http.Request) {
	var req api.CreateKeyQuorumRequest
	if _, err := h.readJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	record, err := h.store.newQuorumLocked(&req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.log.Info("created key quorum", "keyQuorumID", record.quorum.ID, "threshold", record.quorum.Threshold())
	writeJSON(w, http.StatusOK, record.quorum)
}

func (h *Handler) handleGetKeyQuorum(w http.ResponseWriter, r *http.Request) {
	h.store.mu.RLock()
	defer h.store.mu.RUnlock()

	record, err := h.store.quorum(chi.URLParam(r, "key_quorum_id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record.quorum)
}

// handleUpdateKeyQuorum replaces the members of a quorum. A quorum owns
// itself, so the change must satisfy its current threshold.
//
// Endpoint: PATCH /v1/key_quorums/{key_quorum_id}
func (h *Handler) handleUpdateKeyQuorum(w http.ResponseWriter, r *http.Request) {
	var req api.UpdateKeyQuorumRequest
	body, err := h.readJSON(w, r, &req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	record, err := h.store.quorum(chi.URLParam(r, "key_quorum_id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.authorizeLocked(r, body, record.quorum.ID); err != nil {
		h.writeError(w, err)
		return
	}
	if len(req.PublicKeys)+len(req.UserIDs) == 0 {
		h.writeError(w, badRequest("key quorum needs at least one key or user"))
		return
	}
	if err := h.store.setQuorumMembersLocked(record, &req); err != nil {
		h.writeError(w, err)
		return
	}

	h.log.Info("updated key quorum", "keyQuorumID", record.quorum.ID, "threshold", record.quorum.Threshold())
	writeJSON(w, http.StatusOK, record.quorum)
}

func (h *Handler) handleDeleteKeyQuorum(w http.ResponseWriter, r *http.Request) {
	body, err := h.readJSON(w, r, nil)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	record, err := h.store.quorum(chi.URLParam(r, "key_quorum_id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.authorizeLocked(r, body, record.quorum.ID); err != nil {
		h.writeError(w, err)
		return
	}
	if h.quorumInUseLocked(record.quorum.ID) {
		h.writeError(w, badRequest("key quorum %s still owns resources", record.quorum.ID))
		return
	}

	delete(h.store.quorums, record.quorum.ID)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) quorumInUseLocked(id string) bool {
	for _, record := range h.store.wallets {
		if record.wallet.OwnerID == id {
			return true
		}
		for _, signer := range record.wallet.AdditionalSigners {
			if signer.SignerID == id {
				return true
			}
		}
	}
	for _, policy := range h.store.policies {
		if policy.OwnerID == id {
			return true
		}
	}
	return false
}

func assignRuleIDs(rules []api.Rule) []api.Rule {
	rules = slices.Clone(rules)
	for i := range rules {
		if rules[i].ID == "" {
			rules[i].ID = uuid.NewString()
		}
	}
	return rules
}

func (h *Handler) handleCreatePolicy(w http.ResponseWriter, r *http.Request) {
	var req api.CreatePolicyRequest
	if _, err := h.readJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.Version != api.PolicyVersion {
		h.writeError(w, badRequest("unsupported policy version %q", req.Version))
		return
	}
	if req.Name == "" {
		h.writeError(w, badRequest("policy name is required"))
		return
	}

	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	ownerID, err := h.store.resolveOwnerLocked(req.Owner, req.OwnerID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	policy := &api.Policy{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Version:   req.Version,
		ChainType: req.ChainType,
		Rules:     assignRuleIDs(req.Rules),
		OwnerID:   ownerID,
		CreatedAt: millis(h.clock.Now()),
	}
	h.store.policies[policy.ID] = policy

	h.log.Info("created policy", "policyID", policy.ID, "ownerID", ownerID)
	writeJSON(w, http.StatusOK, policy)
}

func (h *Handler) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	h.store.mu.RLock()
	defer h.store.mu.RUnlock()

	policy, err := h.store.policy(chi.URLParam(r, "policy_id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, policy)
}

// ownedPolicyLocked reads the body, loads the policy of the route and checks
// the request against its owner.
func (h *Handler) ownedPolicyLocked(r *http.Request, body []byte) (*api.Policy, error) {
	policy, err := h.store.policy(chi.URLParam(r, "policy_id"))
	if err != nil {
		return nil, err
	}
	if err := h.authorizeLocked(r, body, policy.OwnerID); err != nil {
		return nil, err
	}
	return policy, nil
}

func (h *Handler) handleUpdatePolicy(w http.ResponseWriter, r *http.Request) {
	var req api.UpdatePolicyRequest
	body, err := h.readJSON(w, r, &req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	policy, err := h.ownedPolicyLocked(r, body)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if req.Owner != nil || req.OwnerID != "" {
		ownerID, err := h.store.resolveOwnerLocked(req.Owner, req.OwnerID)
		if err != nil {
			h.writeError(w, err)
			return
		}
		policy.OwnerID = ownerID
	}
	if req.Name != "" {
		policy.Name = req.Name
	}
	if req.Rules != nil {
		policy.Rules = assignRuleIDs(req.Rules)
	}
	writeJSON(w, http.StatusOK, policy)
}

func (h *Handler) handleDeletePolicy(w http.ResponseWriter, r *http.Request) {
	body, err := h.readJSON(w, r, nil)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	policy, err := h.ownedPolicyLocked(r, body)
	if err != nil {
		h.writeError(w, err)
		return
	}
	delete(h.store.policies, policy.ID)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var rule api.Rule
	body, err := h.readJSON(w, r, &rule)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	policy, err := h.ownedPolicyLocked(r, body)
	if err != nil {
		h.writeError(w, err)
		return
	}
	rule.ID = uuid.NewString()
	policy.Rules = append(policy.Rules, rule)
	writeJSON(w, http.StatusOK, &rule)
}

func ruleIndex(policy *api.Policy, ruleID string) (int, error) {
	i := slices.IndexFunc(policy.Rules, func(rule api.Rule) bool { return rule.ID == ruleID })
	if i < 0 {
		return -1, &RequestError{StatusCode: http.StatusNotFound, Err: fmt.Errorf("rule %s %w", ruleID, errNotFound)}
	}
	return i, nil
}

func (h *Handler) handleGetRule(w http.ResponseWriter, r *http.Request) {
	h.store.mu.RLock()
	defer h.store.mu.RUnlock()

	policy, err := h.store.policy(chi.URLParam(r, "policy_id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	i, err := ruleIndex(policy, chi.URLParam(r, "rule_id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, policy.Rules[i])
}

func (h *Handler) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	var rule api.Rule
	body, err := h.readJSON(w, r, &rule)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	policy, err := h.ownedPolicyLocked(r, body)
	if err != nil {
		h.writeError(w, err)
		return
	}
	i, err := ruleIndex(policy, chi.URLParam(r, "rule_id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	rule.ID = policy.Rules[i].ID
	policy.Rules[i] = rule
	writeJSON(w, http.StatusOK, &rule)
}

func (h *Handler) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	body, err := h.readJSON(w, r, nil)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	policy, err := h.ownedPolicyLocked(r, body)
	if err != nil {
		h.writeError(w, err)
		return
	}
	i, err := ruleIndex(policy, chi.URLParam(r, "rule_id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	policy.Rules = slices.Delete(policy.Rules, i, i+1)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleCreateUser creates a user and any requested embedded wallets. The
// wallets are owned by the user.
//
// Endpoint: POST /v1/users
func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req api.CreateUserRequest
	if _, err := h.readJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if len(req.LinkedAccounts) == 0 {
		h.writeError(w, badRequest("at least one linked account is required"))
		return
	}
	for _, wallet := range req.Wallets {
		if wallet.ChainType != api.ChainTypeEthereum {
			h.writeError(w, badRequest("unsupported chain type %q", wallet.ChainType))
			return
		}
	}

	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	user, err := h.createUserLocked(&req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.log.Info("created user", "userID", user.ID, "wallets", len(req.Wallets))
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) createUserLocked(req *api.CreateUserRequest) (*api.User, error) {
	now := h.clock.Now()
	user := &api.User{
		ID:             "did:privy:" + uuid.NewString(),
		CreatedAt:      millis(now),
		LinkedAccounts: slices.Clone(req.LinkedAccounts),
		CustomMetadata: req.CustomMetadata,
	}

	keys := make([]*ecdsa.PrivateKey, 0, len(req.Wallets))
	for range req.Wallets {
		key, err := crypto.GenerateKey()
		if err != nil {
			return nil, fmt.Errorf("failed to generate wallet key: %w", err)
		}
		keys = append(keys, key)
	}

	h.store.users[user.ID] = user
	h.store.userOrder = append(h.store.userOrder, user.ID)
	for i, wallet := range req.Wallets {
		ownerID, err := h.store.resolveOwnerLocked(&api.Owner{UserID: user.ID}, "")
		if err != nil {
			return nil, err
		}
		record := h.store.addWalletLocked(keys[i], wallet.ChainType, ownerID, nil, nil, now)
		user.LinkedAccounts = append(user.LinkedAccounts, api.LinkedAccount{
			Type:       "wallet",
			Address:    record.wallet.Address,
			ChainType:  wallet.ChainType,
			VerifiedAt: millis(now),
		})
	}
	return user, nil
}

// SeedUser creates a user outside of any request and issues a JWT for it.
func (h *Handler) SeedUser(req *api.CreateUserRequest) (*api.User, string, error) {
	h.store.mu.Lock()
	user, err := h.createUserLocked(req)
	h.store.mu.Unlock()
	if err != nil {
		return nil, "", err
	}

	jwt, err := h.IssueJWT(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, jwt, nil
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	h.store.mu.RLock()
	defer h.store.mu.RUnlock()

	user, err := h.store.user(chi.URLParam(r, "user_id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))

	h.store.mu.RLock()
	defer h.store.mu.RUnlock()

	ids, next, err := page(h.store.userOrder, query.Get("cursor"), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	resp := api.ListUsersResponse{Data: make([]api.User, 0, len(ids)), NextCursor: next}
	for _, id := range ids {
		resp.Data = append(resp.Data, *h.store.users[id])
	}
	writeJSON(w, http.StatusOK, &resp)
}

func (h *Handler) handleSearchUsers(w http.ResponseWriter, r *http.Request) {
	var req api.SearchUsersRequest
	if _, err := h.readJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.SearchTerm == "" {
		h.writeError(w, badRequest("search term is required"))
		return
	}

	h.store.mu.RLock()
	defer h.store.mu.RUnlock()

	resp := api.ListUsersResponse{Data: []api.User{}}
	for _, id := range h.store.userOrder {
		if user := h.store.users[id]; matchesUser(user, req.SearchTerm) {
			resp.Data = append(resp.Data, *user)
		}
	}
	writeJSON(w, http.StatusOK, &resp)
}

func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	id := chi.URLParam(r, "user_id")
	if _, err := h.store.user(id); err != nil {
		h.writeError(w, err)
		return
	}
	for _, record := range h.store.quorums {
		if slices.Contains(record.quorum.UserIDs, id) && len(record.quorum.UserIDs)+len(record.keys) > 1 {
			h.writeError(w, badRequest("user %s is a member of key quorum %s", id, record.quorum.ID))
			return
		}
	}

	delete(h.store.users, id)
	delete(h.store.userKeys, id)
	h.store.userOrder = slices.DeleteFunc(h.store.userOrder, func(u string) bool { return u == id })
	for jwt, userID := range h.store.jwts {
		if userID == id {
			delete(h.store.jwts, jwt)
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
