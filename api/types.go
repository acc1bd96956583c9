package api

import (
	"encoding/json"
)

// ChainType identifies the blockchain a wallet or policy belongs to.
type ChainType string

const (
	ChainTypeEthereum ChainType = "ethereum"
	ChainTypeSolana   ChainType = "solana"
	ChainTypeCosmos   ChainType = "cosmos"
	ChainTypeStellar  ChainType = "stellar"
	ChainTypeSui      ChainType = "sui"
	ChainTypeTron     ChainType = "tron"
)

// Owner designates who controls a resource: either a P-256 public key
// (base64 SPKI or PEM) or a user.
type Owner struct {
	PublicKey string `json:"public_key,omitempty"`
	UserID    string `json:"user_id,omitempty"`
}

// AdditionalSigner grants a key quorum signing rights on a wallet.
type AdditionalSigner struct {
	SignerID          string   `json:"signer_id"`
	OverridePolicyIDs []string `json:"override_policy_ids,omitempty"`
}

// Wallet is a server-side wallet. Timestamps are milliseconds since epoch.
type Wallet struct {
	ID                string             `json:"id"`
	Address           string             `json:"address"`
	ChainType         ChainType          `json:"chain_type"`
	PublicKey         string             `json:"public_key,omitempty"`
	OwnerID           string             `json:"owner_id,omitempty"`
	PolicyIDs         []string           `json:"policy_ids,omitempty"`
	AdditionalSigners []AdditionalSigner `json:"additional_signers,omitempty"`
	CreatedAt         float64            `json:"created_at"`
	ExportedAt        *float64           `json:"exported_at,omitempty"`
	ImportedAt        *float64           `json:"imported_at,omitempty"`
}

type CreateWalletRequest struct {
	ChainType         ChainType          `json:"chain_type"`
	Owner             *Owner             `json:"owner,omitempty"`
	OwnerID           string             `json:"owner_id,omitempty"`
	PolicyIDs         []string           `json:"policy_ids,omitempty"`
	AdditionalSigners []AdditionalSigner `json:"additional_signers,omitempty"`
}

// UpdateWalletRequest only serializes the fields that are set, so the signed
// body matches exactly what is sent.
type UpdateWalletRequest struct {
	Owner             *Owner             `json:"owner,omitempty"`
	OwnerID           string             `json:"owner_id,omitempty"`
	PolicyIDs         []string           `json:"policy_ids,omitempty"`
	AdditionalSigners []AdditionalSigner `json:"additional_signers,omitempty"`
}

type ListWalletsResponse struct {
	Data       []Wallet `json:"data"`
	NextCursor *string  `json:"next_cursor"`
}

// ListOptions are the cursor pagination parameters shared by list endpoints.
type ListOptions struct {
	Cursor    string
	Limit     int
	ChainType ChainType
}

// RPCRequest is the body of POST /v1/wallets/{id}/rpc.
type RPCRequest struct {
	Method    string    `json:"method"`
	CAIP2     string    `json:"caip2,omitempty"`
	ChainType ChainType `json:"chain_type,omitempty"`
	Params    any       `json:"params"`
}

// RPCResponse carries method specific data, decoded by the caller.
type RPCResponse struct {
	Method string          `json:"method"`
	Data   json.RawMessage `json:"data"`
}

type RawSignParams struct {
	Hash string `json:"hash"`
}

// RawSignRequest is the body of POST /v1/wallets/{id}/raw_sign.
type RawSignRequest struct {
	Params RawSignParams `json:"params"`
}

type RawSignResponse struct {
	Data struct {
		Signature string `json:"signature"`
		Encoding  string `json:"encoding"`
	} `json:"data"`
}

// ExportRequest asks for the wallet private key sealed to RecipientPublicKey.
type ExportRequest struct {
	EncryptionType     string `json:"encryption_type"`
	RecipientPublicKey string `json:"recipient_public_key"`
}

type ExportResponse struct {
	EncryptionType  string `json:"encryption_type"`
	EncapsulatedKey string `json:"encapsulated_key"`
	Ciphertext      string `json:"ciphertext"`
}

// EntropyTypePrivateKey marks an import of a raw private key.
const EntropyTypePrivateKey = "private-key"

type ImportInitRequest struct {
	Address        string    `json:"address"`
	ChainType      ChainType `json:"chain_type"`
	EncryptionType string    `json:"encryption_type"`
	EntropyType    string    `json:"entropy_type"`
}

// ImportInitResponse carries the server's HPKE public key as a base64 SEC1 point.
type ImportInitResponse struct {
	EncryptionType      string `json:"encryption_type"`
	EncryptionPublicKey string `json:"encryption_public_key"`
}

type ImportSubmitWallet struct {
	Address         string    `json:"address"`
	ChainType       ChainType `json:"chain_type"`
	EncryptionType  string    `json:"encryption_type"`
	EntropyType     string    `json:"entropy_type"`
	Ciphertext      string    `json:"ciphertext"`
	EncapsulatedKey string    `json:"encapsulated_key"`
}

type ImportSubmitRequest struct {
	Wallet            ImportSubmitWallet `json:"wallet"`
	Owner             *Owner             `json:"owner,omitempty"`
	PolicyIDs         []string           `json:"policy_ids,omitempty"`
	AdditionalSigners []AdditionalSigner `json:"additional_signers,omitempty"`
}

// Condition restricts when a policy rule applies.
type Condition struct {
	FieldSource string `json:"field_source"`
	Field       string `json:"field"`
	Operator    string `json:"operator"`
	Value       any    `json:"value"`
}

type Rule struct {
	ID         string      `json:"id,omitempty"`
	Name       string      `json:"name"`
	Method     string      `json:"method"`
	Action     string      `json:"action"`
	Conditions []Condition `json:"conditions"`
}

type Policy struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	ChainType ChainType `json:"chain_type"`
	Rules     []Rule    `json:"rules"`
	OwnerID   string    `json:"owner_id,omitempty"`
	CreatedAt float64   `json:"created_at"`
}

// PolicyVersion is the only policy language version the API accepts.
const PolicyVersion = "1.0"

type CreatePolicyRequest struct {
	Version   string    `json:"version"`
	Name      string    `json:"name"`
	ChainType ChainType `json:"chain_type"`
	Rules     []Rule    `json:"rules"`
	Owner     *Owner    `json:"owner,omitempty"`
	OwnerID   string    `json:"owner_id,omitempty"`
}

type UpdatePolicyRequest struct {
	Name    string `json:"name,omitempty"`
	Rules   []Rule `json:"rules,omitempty"`
	Owner   *Owner `json:"owner,omitempty"`
	OwnerID string `json:"owner_id,omitempty"`
}

// AuthorizationKey is one member key of a key quorum.
type AuthorizationKey struct {
	PublicKey   string `json:"public_key"`
	DisplayName string `json:"display_name,omitempty"`
}

// KeyQuorum is an M-of-N set of keys and users. A request on a resource owned
// by the quorum needs AuthorizationThreshold valid signatures.
type KeyQuorum struct {
	ID                     string             `json:"id"`
	DisplayName            string             `json:"display_name,omitempty"`
	AuthorizationThreshold int                `json:"authorization_threshold,omitempty"`
	AuthorizationKeys      []AuthorizationKey `json:"authorization_keys"`
	UserIDs                []string           `json:"user_ids,omitempty"`
}

// Threshold returns the effective number of required signatures; an unset
// threshold means every key must sign.
func (q *KeyQuorum) Threshold() int {
	if q.AuthorizationThreshold > 0 {
		return q.AuthorizationThreshold
	}
	return len(q.AuthorizationKeys) + len(q.UserIDs)
}

type CreateKeyQuorumRequest struct {
	DisplayName            string   `json:"display_name,omitempty"`
	AuthorizationThreshold int      `json:"authorization_threshold,omitempty"`
	PublicKeys             []string `json:"public_keys,omitempty"`
	UserIDs                []string `json:"user_ids,omitempty"`
}

type UpdateKeyQuorumRequest = CreateKeyQuorumRequest

// LinkedAccount is a login method attached to a user.
type LinkedAccount struct {
	Type         string    `json:"type"`
	Address      string    `json:"address,omitempty"`
	ChainType    ChainType `json:"chain_type,omitempty"`
	CustomUserID string    `json:"custom_user_id,omitempty"`
	VerifiedAt   float64   `json:"verified_at,omitempty"`
}

type User struct {
	ID               string          `json:"id"`
	CreatedAt        float64         `json:"created_at"`
	LinkedAccounts   []LinkedAccount `json:"linked_accounts"`
	CustomMetadata   map[string]any  `json:"custom_metadata,omitempty"`
	IsGuest          bool            `json:"is_guest"`
	HasAcceptedTerms bool            `json:"has_accepted_terms"`
}

type CreateUserWallet struct {
	ChainType ChainType `json:"chain_type"`
}

type CreateUserRequest struct {
	LinkedAccounts []LinkedAccount    `json:"linked_accounts"`
	CustomMetadata map[string]any     `json:"custom_metadata,omitempty"`
	Wallets        []CreateUserWallet `json:"wallets,omitempty"`
}

type ListUsersResponse struct {
	Data       []User  `json:"data"`
	NextCursor *string `json:"next_cursor"`
}

type SearchUsersRequest struct {
	SearchTerm string `json:"search_term"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
