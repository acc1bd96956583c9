package clients

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/privy-io/privy-go/api"
	"github.com/privy-io/privy-go/api/middleware"
	"github.com/privy-io/privy-go/authorization"
	"github.com/privy-io/privy-go/cryptoutils"
	"github.com/privy-io/privy-go/interfaces"
)

var _ interfaces.Authenticator = (*WalletsService)(nil)

// WalletsService handles wallet operations.
type WalletsService struct {
	client *Client
}

func walletPath(walletID string, suffix ...string) string {
	path := "/v1/wallets/" + url.PathEscape(walletID)
	if len(suffix) > 0 {
		path += "/" + strings.Join(suffix, "/")
	}
	return path
}

func listQuery(opts *api.ListOptions) string {
	if opts == nil {
		return ""
	}
	q := url.Values{}
	if opts.Cursor != "" {
		q.Set("cursor", opts.Cursor)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.ChainType != "" {
		q.Set("chain_type", string(opts.ChainType))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

func (s *WalletsService) Create(ctx context.Context, req *api.CreateWalletRequest, idempotencyKey string) (*api.Wallet, error) {
	var wallet api.Wallet
	err := s.client.doRequest(ctx, http.MethodPost, "/v1/wallets", req, &wallet, &requestOptions{idempotencyKey: idempotencyKey})
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (s *WalletsService) Get(ctx context.Context, walletID string) (*api.Wallet, error) {
	var wallet api.Wallet
	if err := s.client.get(ctx, walletPath(walletID), &wallet); err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (s *WalletsService) List(ctx context.Context, opts *api.ListOptions) (*api.ListWalletsResponse, error) {
	var resp api.ListWalletsResponse
	if err := s.client.get(ctx, "/v1/wallets"+listQuery(opts), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Update changes the owner, policies or additional signers of a wallet.
// authCtx must satisfy the wallet's current owner.
func (s *WalletsService) Update(ctx context.Context, walletID string, authCtx *authorization.AuthorizationContext, req *api.UpdateWalletRequest) (*api.Wallet, error) {
	var wallet api.Wallet
	err := s.client.doRequest(ctx, http.MethodPatch, walletPath(walletID), req, &wallet, &requestOptions{authCtx: authCtx})
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// RPC performs a chain specific signing or sending operation.
func (s *WalletsService) RPC(ctx context.Context, walletID string, authCtx *authorization.AuthorizationContext, idempotencyKey string, req *api.RPCRequest) (*api.RPCResponse, error) {
	var resp api.RPCResponse
	err := s.client.doRequest(ctx, http.MethodPost, walletPath(walletID, "rpc"), req, &resp, &requestOptions{
		authCtx:        authCtx,
		idempotencyKey: idempotencyKey,
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// RawSign signs a hash with the wallet key, without any chain specific encoding.
func (s *WalletsService) RawSign(ctx context.Context, walletID string, authCtx *authorization.AuthorizationContext, idempotencyKey string, req *api.RawSignRequest) (*api.RawSignResponse, error) {
	var resp api.RawSignResponse
	err := s.client.doRequest(ctx, http.MethodPost, walletPath(walletID, "raw_sign"), req, &resp, &requestOptions{
		authCtx:        authCtx,
		idempotencyKey: idempotencyKey,
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Export returns the wallet's private key. The key is sealed by the server
// to a one-time HPKE key generated here, so it never travels in the clear.
func (s *WalletsService) Export(ctx context.Context, walletID string, authCtx *authorization.AuthorizationContext) ([]byte, error) {
	recipient, err := cryptoutils.NewHPKERecipient()
	if err != nil {
		return nil, fmt.Errorf("failed to generate HPKE keypair: %w", err)
	}
	publicKey, err := recipient.PublicKey()
	if err != nil {
		return nil, err
	}

	req := &api.ExportRequest{
		EncryptionType:     interfaces.EncryptionTypeHPKE,
		RecipientPublicKey: publicKey,
	}
	var resp api.ExportResponse
	err = s.client.doRequest(ctx, http.MethodPost, walletPath(walletID, "export"), req, &resp, &requestOptions{authCtx: authCtx})
	if err != nil {
		return nil, err
	}

	return recipient.DecryptRaw(resp.EncapsulatedKey, resp.Ciphertext)
}

// ImportWalletInput describes an existing private key to bring under
// management.
type ImportWalletInput struct {
	Address   string
	ChainType api.ChainType
	// PrivateKeyHex is the raw private key, with or without 0x prefix.
	PrivateKeyHex     string
	Owner             *api.Owner
	PolicyIDs         []string
	AdditionalSigners []api.AdditionalSigner
}

// Import uploads a private key. The key is HPKE sealed to the encryption key
// returned by the init call before it is submitted.
func (s *WalletsService) Import(ctx context.Context, input *ImportWalletInput) (*api.Wallet, error) {
	keyHex := input.PrivateKeyHex
	if !strings.HasPrefix(keyHex, "0x") && !strings.HasPrefix(keyHex, "0X") {
		keyHex = "0x" + keyHex
	}
	privateKey, err := hexutil.Decode(keyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: private key is not hex: %w", cryptoutils.ErrInvalidFormat, err)
	}

	initReq := &api.ImportInitRequest{
		Address:        input.Address,
		ChainType:      input.ChainType,
		EncryptionType: interfaces.EncryptionTypeHPKE,
		EntropyType:    api.EntropyTypePrivateKey,
	}
	var initResp api.ImportInitResponse
	err = s.client.doRequest(ctx, http.MethodPost, "/v1/wallets/import/init", initReq, &initResp, &requestOptions{operation: "init_import"})
	if err != nil {
		return nil, err
	}

	encapsulatedKey, ciphertext, err := cryptoutils.Seal(initResp.EncryptionPublicKey, privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt private key: %w", err)
	}

	submitReq := &api.ImportSubmitRequest{
		Wallet: api.ImportSubmitWallet{
			Address:         input.Address,
			ChainType:       input.ChainType,
			EncryptionType:  initResp.EncryptionType,
			EntropyType:     api.EntropyTypePrivateKey,
			Ciphertext:      ciphertext,
			EncapsulatedKey: encapsulatedKey,
		},
		Owner:             input.Owner,
		PolicyIDs:         input.PolicyIDs,
		AdditionalSigners: input.AdditionalSigners,
	}
	var wallet api.Wallet
	err = s.client.doRequest(ctx, http.MethodPost, "/v1/wallets/import/submit", submitReq, &wallet, &requestOptions{operation: "submit_import"})
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// Authenticate exchanges a user JWT for an authorization key. Callers
// normally go through Client.JwtUser, which caches the result.
func (s *WalletsService) Authenticate(ctx context.Context, req *interfaces.AuthenticateRequest) (*interfaces.AuthenticateResponse, error) {
	var resp interfaces.AuthenticateResponse
	err := s.client.doRequest(ctx, http.MethodPost, "/v1/wallets/authenticate", req, &resp, &requestOptions{
		operation: middleware.OperationAuthenticate,
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Ethereum returns helpers for the Ethereum RPC methods.
func (s *WalletsService) Ethereum() *EthereumService {
	return &EthereumService{wallets: s}
}
