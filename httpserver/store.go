package httpserver

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/privy-io/privy-go/api"
	"github.com/privy-io/privy-go/cryptoutils"
)

const defaultPageSize = 100

var (
	errNotFound     = errors.New("not found")
	errInvalidOwner = errors.New("invalid owner")
)

type walletRecord struct {
	wallet api.Wallet
	key    *ecdsa.PrivateKey
}

type quorumRecord struct {
	quorum api.KeyQuorum
	keys   []*ecdsa.PublicKey
}

// issuedKey is an authorization key handed out by the authenticate endpoint.
type issuedKey struct {
	publicKey *ecdsa.PublicKey
	expiry    time.Time
}

// store is the in-memory state of the mock API.
type store struct {
	mu sync.RWMutex

	wallets     map[string]*walletRecord
	walletOrder []string
	quorums     map[string]*quorumRecord
	policies    map[string]*api.Policy
	users       map[string]*api.User
	userOrder   []string

	// jwt -> user id
	jwts map[string]string
	// user id -> keys issued for that user
	userKeys map[string][]issuedKey
	// lowercase address -> pending import
	imports map[string]*cryptoutils.HPKERecipient
	// idempotency key -> resource id
	idempotent map[string]string
}

func newStore() *store {
	return &store{
		wallets:    make(map[string]*walletRecord),
		quorums:    make(map[string]*quorumRecord),
		policies:   make(map[string]*api.Policy),
		users:      make(map[string]*api.User),
		jwts:       make(map[string]string),
		userKeys:   make(map[string][]issuedKey),
		imports:    make(map[string]*cryptoutils.HPKERecipient),
		idempotent: make(map[string]string),
	}
}

func millis(t time.Time) float64 {
	return float64(t.UnixMilli())
}

// newQuorumLocked validates and stores a key quorum. Caller holds mu.
func (s *store) newQuorumLocked(req *api.CreateKeyQuorumRequest) (*quorumRecord, error) {
	if len(req.PublicKeys)+len(req.UserIDs) == 0 {
		return nil, &RequestError{StatusCode: http.StatusBadRequest, Err: errors.New("key quorum needs at least one key or user")}
	}

	record := &quorumRecord{
		quorum: api.KeyQuorum{
			ID:                     uuid.NewString(),
			DisplayName:            req.DisplayName,
			AuthorizationThreshold: req.AuthorizationThreshold,
			AuthorizationKeys:      make([]api.AuthorizationKey, 0, len(req.PublicKeys)),
			UserIDs:                slices.Clone(req.UserIDs),
		},
	}
	if err := s.setQuorumMembersLocked(record, req); err != nil {
		return nil, err
	}
	s.quorums[record.quorum.ID] = record
	return record, nil
}

func (s *store) setQuorumMembersLocked(record *quorumRecord, req *api.CreateKeyQuorumRequest) error {
	total := len(req.PublicKeys) + len(req.UserIDs)
	if req.AuthorizationThreshold < 0 || req.AuthorizationThreshold > total {
		return &RequestError{StatusCode: http.StatusBadRequest, Err: fmt.Errorf("authorization threshold must be between 1 and %d", total)}
	}

	keys := make([]*ecdsa.PublicKey, 0, len(req.PublicKeys))
	authKeys := make([]api.AuthorizationKey, 0, len(req.PublicKeys))
	for _, encoded := range req.PublicKeys {
		pub, err := cryptoutils.ParsePublicKey(encoded)
		if err != nil {
			return &RequestError{StatusCode: http.StatusBadRequest, Err: fmt.Errorf("invalid public key: %w", err)}
		}
		normalized, err := cryptoutils.MarshalPublicKeyBase64(pub)
		if err != nil {
			return err
		}
		keys = append(keys, pub)
		authKeys = append(authKeys, api.AuthorizationKey{PublicKey: normalized})
	}
	for _, userID := range req.UserIDs {
		if _, ok := s.users[userID]; !ok {
			return &RequestError{StatusCode: http.StatusBadRequest, Err: fmt.Errorf("unknown user %s", userID)}
		}
	}

	record.keys = keys
	record.quorum.DisplayName = req.DisplayName
	record.quorum.AuthorizationThreshold = req.AuthorizationThreshold
	record.quorum.AuthorizationKeys = authKeys
	record.quorum.UserIDs = slices.Clone(req.UserIDs)
	return nil
}

// resolveOwnerLocked turns an owner field into an owner id. A public key or
// user owner gets an implicit 1-of-1 key quorum. An empty owner means the
// resource is unowned.
func (s *store) resolveOwnerLocked(owner *api.Owner, ownerID string) (string, error) {
	switch {
	case ownerID != "" && owner != nil:
		return "", &RequestError{StatusCode: http.StatusBadRequest, Err: fmt.Errorf("%w: owner and owner_id are exclusive", errInvalidOwner)}
	case ownerID != "":
		if _, ok := s.quorums[ownerID]; !ok {
			return "", &RequestError{StatusCode: http.StatusBadRequest, Err: fmt.Errorf("%w: unknown key quorum %s", errInvalidOwner, ownerID)}
		}
		return ownerID, nil
	case owner == nil:
		return "", nil
	}

	req := &api.CreateKeyQuorumRequest{AuthorizationThreshold: 1}
	switch {
	case owner.PublicKey != "" && owner.UserID != "":
		return "", &RequestError{StatusCode: http.StatusBadRequest, Err: fmt.Errorf("%w: public_key and user_id are exclusive", errInvalidOwner)}
	case owner.PublicKey != "":
		req.PublicKeys = []string{owner.PublicKey}
	case owner.UserID != "":
		req.UserIDs = []string{owner.UserID}
	default:
		return "", &RequestError{StatusCode: http.StatusBadRequest, Err: fmt.Errorf("%w: empty owner", errInvalidOwner)}
	}

	record, err := s.newQuorumLocked(req)
	if err != nil {
		return "", err
	}
	return record.quorum.ID, nil
}

func (s *store) checkPoliciesLocked(ids []string) error {
	for _, id := range ids {
		if _, ok := s.policies[id]; !ok {
			return &RequestError{StatusCode: http.StatusBadRequest, Err: fmt.Errorf("unknown policy %s", id)}
		}
	}
	return nil
}

func (s *store) checkSignersLocked(signers []api.AdditionalSigner) error {
	for _, signer := range signers {
		if _, ok := s.quorums[signer.SignerID]; !ok {
			return &RequestError{StatusCode: http.StatusBadRequest, Err: fmt.Errorf("unknown signer %s", signer.SignerID)}
		}
		if err := s.checkPoliciesLocked(signer.OverridePolicyIDs); err != nil {
			return err
		}
	}
	return nil
}

// addWalletLocked stores a wallet for key. Only Ethereum wallets are backed
// by real keys in the mock.
func (s *store) addWalletLocked(key *ecdsa.PrivateKey, chainType api.ChainType, ownerID string, policyIDs []string, signers []api.AdditionalSigner, now time.Time) *walletRecord {
	record := &walletRecord{
		wallet: api.Wallet{
			ID:                uuid.NewString(),
			Address:           crypto.PubkeyToAddress(key.PublicKey).Hex(),
			ChainType:         chainType,
			OwnerID:           ownerID,
			PolicyIDs:         slices.Clone(policyIDs),
			AdditionalSigners: slices.Clone(signers),
			CreatedAt:         millis(now),
		},
		key: key,
	}
	s.wallets[record.wallet.ID] = record
	s.walletOrder = append(s.walletOrder, record.wallet.ID)
	return record
}

func (s *store) wallet(id string) (*walletRecord, error) {
	record, ok := s.wallets[id]
	if !ok {
		return nil, &RequestError{StatusCode: http.StatusNotFound, Err: fmt.Errorf("wallet %s %w", id, errNotFound)}
	}
	return record, nil
}

func (s *store) quorum(id string) (*quorumRecord, error) {
	record, ok := s.quorums[id]
	if !ok {
		return nil, &RequestError{StatusCode: http.StatusNotFound, Err: fmt.Errorf("key quorum %s %w", id, errNotFound)}
	}
	return record, nil
}

func (s *store) policy(id string) (*api.Policy, error) {
	policy, ok := s.policies[id]
	if !ok {
		return nil, &RequestError{StatusCode: http.StatusNotFound, Err: fmt.Errorf("policy %s %w", id, errNotFound)}
	}
	return policy, nil
}

func (s *store) user(id string) (*api.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, &RequestError{StatusCode: http.StatusNotFound, Err: fmt.Errorf("user %s %w", id, errNotFound)}
	}
	return user, nil
}

// activeUserKeysLocked returns the unexpired authorization keys of a user,
// dropping expired ones.
func (s *store) activeUserKeysLocked(userID string, now time.Time) []*ecdsa.PublicKey {
	issued := s.userKeys[userID]
	active := issued[:0]
	keys := make([]*ecdsa.PublicKey, 0, len(issued))
	for _, k := range issued {
		if now.Before(k.expiry) {
			active = append(active, k)
			keys = append(keys, k.publicKey)
		}
	}
	s.userKeys[userID] = active
	return keys
}

// page returns the ids of one page of order starting at cursor, and the
// cursor of the next page.
func page(order []string, cursor string, limit int) ([]string, *string, error) {
	if limit <= 0 || limit > defaultPageSize {
		limit = defaultPageSize
	}

	start := 0
	if cursor != "" {
		start = slices.Index(order, cursor)
		if start < 0 {
			return nil, nil, &RequestError{StatusCode: http.StatusBadRequest, Err: fmt.Errorf("invalid cursor %q", cursor)}
		}
	}

	end := min(start+limit, len(order))
	var next *string
	if end < len(order) {
		cursor := order[end]
		next = &cursor
	}
	return order[start:end], next, nil
}

func matchesUser(user *api.User, term string) bool {
	term = strings.ToLower(term)
	if strings.Contains(strings.ToLower(user.ID), term) {
		return true
	}
	for _, account := range user.LinkedAccounts {
		if strings.Contains(strings.ToLower(account.Address), term) ||
			strings.Contains(strings.ToLower(account.CustomUserID), term) {
			return true
		}
	}
	return false
}
