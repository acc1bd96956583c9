package httpserver

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-chi/chi/v5"
	"github.com/privy-io/privy-go/api"
	"github.com/privy-io/privy-go/cryptoutils"
	"github.com/privy-io/privy-go/interfaces"
)

// transactionParams is the wire form of an unsigned Ethereum transaction.
type transactionParams struct {
	From                 *common.Address `json:"from"`
	To                   *common.Address `json:"to"`
	ChainID              *hexutil.Big    `json:"chain_id"`
	Nonce                *hexutil.Uint64 `json:"nonce"`
	Value                *hexutil.Big    `json:"value"`
	Data                 hexutil.Bytes   `json:"data"`
	GasLimit             *hexutil.Uint64 `json:"gas_limit"`
	GasPrice             *hexutil.Big    `json:"gas_price"`
	MaxFeePerGas         *hexutil.Big    `json:"max_fee_per_gas"`
	MaxPriorityFeePerGas *hexutil.Big    `json:"max_priority_fee_per_gas"`
	Type                 *int            `json:"type"`
}

type rpcRequest struct {
	Method    string          `json:"method"`
	CAIP2     string          `json:"caip2"`
	ChainType api.ChainType   `json:"chain_type"`
	Params    json.RawMessage `json:"params"`
}

func (h *Handler) handleCreateWallet(w http.ResponseWriter, r *http.Request) {
	var req api.CreateWalletRequest
	if _, err := h.readJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.ChainType != api.ChainTypeEthereum {
		h.writeError(w, badRequest("unsupported chain type %q", req.ChainType))
		return
	}

	idempotencyKey := r.Header.Get(interfaces.HeaderIdempotencyKey)

	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	if idempotencyKey != "" {
		if id, ok := h.store.idempotent["wallet:"+idempotencyKey]; ok {
			writeJSON(w, http.StatusOK, h.store.wallets[id].wallet)
			return
		}
	}

	if err := h.store.checkPoliciesLocked(req.PolicyIDs); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.store.checkSignersLocked(req.AdditionalSigners); err != nil {
		h.writeError(w, err)
		return
	}
	ownerID, err := h.store.resolveOwnerLocked(req.Owner, req.OwnerID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		h.writeError(w, fmt.Errorf("failed to generate wallet key: %w", err))
		return
	}
	record := h.store.addWalletLocked(key, req.ChainType, ownerID, req.PolicyIDs, req.AdditionalSigners, h.clock.Now())
	if idempotencyKey != "" {
		h.store.idempotent["wallet:"+idempotencyKey] = record.wallet.ID
	}

	h.log.Info("created wallet", "walletID", record.wallet.ID, "address", record.wallet.Address, "ownerID", ownerID)
	writeJSON(w, http.StatusOK, record.wallet)
}

func (h *Handler) handleGetWallet(w http.ResponseWriter, r *http.Request) {
	h.store.mu.RLock()
	defer h.store.mu.RUnlock()

	record, err := h.store.wallet(chi.URLParam(r, "wallet_id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record.wallet)
}

func (h *Handler) handleListWallets(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	chainType := api.ChainType(query.Get("chain_type"))

	h.store.mu.RLock()
	defer h.store.mu.RUnlock()

	order := h.store.walletOrder
	if chainType != "" {
		order = slices.DeleteFunc(slices.Clone(order), func(id string) bool {
			return h.store.wallets[id].wallet.ChainType != chainType
		})
	}
	ids, next, err := page(order, query.Get("cursor"), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := api.ListWalletsResponse{Data: make([]api.Wallet, 0, len(ids)), NextCursor: next}
	for _, id := range ids {
		resp.Data = append(resp.Data, h.store.wallets[id].wallet)
	}
	writeJSON(w, http.StatusOK, &resp)
}

// handleUpdateWallet changes owner, policies or signers. It must be signed
// by the current owner.
//
// Endpoint: PATCH /v1/wallets/{wallet_id}
func (h *Handler) handleUpdateWallet(w http.ResponseWriter, r *http.Request) {
	var req api.UpdateWalletRequest
	body, err := h.readJSON(w, r, &req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	record, err := h.store.wallet(chi.URLParam(r, "wallet_id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.authorizeLocked(r, body, record.wallet.OwnerID); err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.store.checkPoliciesLocked(req.PolicyIDs); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.store.checkSignersLocked(req.AdditionalSigners); err != nil {
		h.writeError(w, err)
		return
	}
	if req.Owner != nil || req.OwnerID != "" {
		ownerID, err := h.store.resolveOwnerLocked(req.Owner, req.OwnerID)
		if err != nil {
			h.writeError(w, err)
			return
		}
		record.wallet.OwnerID = ownerID
	}
	if req.PolicyIDs != nil {
		record.wallet.PolicyIDs = slices.Clone(req.PolicyIDs)
	}
	if req.AdditionalSigners != nil {
		record.wallet.AdditionalSigners = slices.Clone(req.AdditionalSigners)
	}

	h.log.Info("updated wallet", "walletID", record.wallet.ID, "ownerID", record.wallet.OwnerID)
	writeJSON(w, http.StatusOK, record.wallet)
}

// authorizeSignerLocked accepts requests signed by the owner or by any
// additional signer of the wallet.
func (h *Handler) authorizeSignerLocked(r *http.Request, body []byte, record *walletRecord) error {
	err := h.authorizeLocked(r, body, record.wallet.OwnerID)
	if err == nil {
		return nil
	}
	for _, signer := range record.wallet.AdditionalSigners {
		if h.authorizeLocked(r, body, signer.SignerID) == nil {
			return nil
		}
	}
	return err
}

// handleRPC serves the Ethereum signing methods.
//
// Endpoint: POST /v1/wallets/{wallet_id}/rpc
func (h *Handler) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	body, err := h.readJSON(w, r, &req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	record, err := h.store.wallet(chi.URLParam(r, "wallet_id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.authorizeSignerLocked(r, body, record); err != nil {
		h.writeError(w, err)
		return
	}
	if record.wallet.ChainType != api.ChainTypeEthereum {
		h.writeError(w, badRequest("rpc is not supported for %s wallets", record.wallet.ChainType))
		return
	}

	data, err := ethereumRPC(record, &req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	raw, err := json.Marshal(data)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.log.Debug("served wallet rpc", "walletID", record.wallet.ID, "method", req.Method)
	writeJSON(w, http.StatusOK, &api.RPCResponse{Method: req.Method, Data: raw})
}

func ethereumRPC(record *walletRecord, req *rpcRequest) (any, error) {
	switch req.Method {
	case "personal_sign":
		var params struct {
			Message  string `json:"message"`
			Encoding string `json:"encoding"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, badRequest("invalid params: %w", err)
		}
		message := []byte(params.Message)
		if params.Encoding == "hex" {
			decoded, err := hexutil.Decode(params.Message)
			if err != nil {
				return nil, badRequest("invalid hex message: %w", err)
			}
			message = decoded
		}
		sig, err := crypto.Sign(accounts.TextHash(message), record.key)
		if err != nil {
			return nil, err
		}
		sig[crypto.RecoveryIDOffset] += 27
		return map[string]string{"signature": hexutil.Encode(sig), "encoding": "hex"}, nil

	case "secp256k1_sign":
		var params struct {
			Hash string `json:"hash"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, badRequest("invalid params: %w", err)
		}
		sig, err := signHash(record.key, params.Hash)
		if err != nil {
			return nil, err
		}
		return map[string]string{"signature": sig, "encoding": "hex"}, nil

	case "eth_signTransaction", "eth_sendTransaction":
		var params struct {
			Transaction transactionParams `json:"transaction"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, badRequest("invalid params: %w", err)
		}
		signed, err := signTransaction(record, &params.Transaction, req.CAIP2)
		if err != nil {
			return nil, err
		}
		if req.Method == "eth_signTransaction" {
			raw, err := signed.MarshalBinary()
			if err != nil {
				return nil, err
			}
			return map[string]string{"signed_transaction": hexutil.Encode(raw), "encoding": "rlp"}, nil
		}
		return map[string]string{"hash": signed.Hash().Hex(), "caip2": req.CAIP2}, nil
	}

	return nil, badRequest("unsupported rpc method %q", req.Method)
}

func signHash(key *ecdsa.PrivateKey, hash string) (string, error) {
	digest, err := hexutil.Decode(hash)
	if err != nil || len(digest) != common.HashLength {
		return "", badRequest("hash must be 32 hex encoded bytes")
	}
	sig, err := crypto.Sign(digest, key)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(sig), nil
}

func bigOrZero(b *hexutil.Big) *big.Int {
	if b == nil {
		return new(big.Int)
	}
	return b.ToInt()
}

func uint64OrZero(u *hexutil.Uint64) uint64 {
	if u == nil {
		return 0
	}
	return uint64(*u)
}

// signTransaction builds and signs a legacy or EIP-1559 transaction. The
// chain id comes from the transaction or, failing that, from an eip155
// CAIP-2 network id.
func signTransaction(record *walletRecord, p *transactionParams, caip2 string) (*types.Transaction, error) {
	if p.From != nil && !strings.EqualFold(p.From.Hex(), record.wallet.Address) {
		return nil, badRequest("from %s does not match wallet address", p.From.Hex())
	}

	var chainID *big.Int
	switch {
	case p.ChainID != nil:
		chainID = p.ChainID.ToInt()
	case strings.HasPrefix(caip2, "eip155:"):
		id, ok := new(big.Int).SetString(strings.TrimPrefix(caip2, "eip155:"), 10)
		if !ok {
			return nil, badRequest("invalid caip2 %q", caip2)
		}
		chainID = id
	default:
		return nil, badRequest("missing chain id")
	}

	var tx *types.Transaction
	if p.MaxFeePerGas != nil || (p.Type != nil && *p.Type == types.DynamicFeeTxType) {
		tx = types.NewTx(&types.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     uint64OrZero(p.Nonce),
			GasTipCap: bigOrZero(p.MaxPriorityFeePerGas),
			GasFeeCap: bigOrZero(p.MaxFeePerGas),
			Gas:       uint64OrZero(p.GasLimit),
			To:        p.To,
			Value:     bigOrZero(p.Value),
			Data:      p.Data,
		})
	} else {
		tx = types.NewTx(&types.LegacyTx{
			Nonce:    uint64OrZero(p.Nonce),
			GasPrice: bigOrZero(p.GasPrice),
			Gas:      uint64OrZero(p.GasLimit),
			To:       p.To,
			Value:    bigOrZero(p.Value),
			Data:     p.Data,
		})
	}

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), record.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return signed, nil
}

// Endpoint: POST /v1/wallets/{wallet_id}/raw_sign
func (h *Handler) handleRawSign(w http.ResponseWriter, r *http.Request) {
	var req api.RawSignRequest
	body, err := h.readJSON(w, r, &req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	record, err := h.store.wallet(chi.URLParam(r, "wallet_id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.authorizeSignerLocked(r, body, record); err != nil {
		h.writeError(w, err)
		return
	}

	sig, err := signHash(record.key, req.Params.Hash)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var resp api.RawSignResponse
	resp.Data.Signature = sig
	resp.Data.Encoding = "hex"
	writeJSON(w, http.StatusOK, &resp)
}

// handleExport seals the hex encoded wallet key to the caller's HPKE key.
// Only the owner may export.
//
// Endpoint: POST /v1/wallets/{wallet_id}/export
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	var req api.ExportRequest
	body, err := h.readJSON(w, r, &req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if req.EncryptionType != interfaces.EncryptionTypeHPKE {
		h.writeError(w, badRequest("unsupported encryption type %q", req.EncryptionType))
		return
	}

	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	record, err := h.store.wallet(chi.URLParam(r, "wallet_id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.authorizeLocked(r, body, record.wallet.OwnerID); err != nil {
		h.writeError(w, err)
		return
	}

	encapsulatedKey, ciphertext, err := cryptoutils.Seal(req.RecipientPublicKey, []byte(hexutil.Encode(crypto.FromECDSA(record.key))))
	if err != nil {
		h.writeError(w, badRequest("invalid recipient public key: %w", err))
		return
	}
	exportedAt := millis(h.clock.Now())
	record.wallet.ExportedAt = &exportedAt

	h.log.Info("exported wallet", "walletID", record.wallet.ID)
	writeJSON(w, http.StatusOK, &api.ExportResponse{
		EncryptionType:  interfaces.EncryptionTypeHPKE,
		EncapsulatedKey: encapsulatedKey,
		Ciphertext:      ciphertext,
	})
}

// handleImportInit starts an import by handing out a one-time HPKE key for
// the address.
//
// Endpoint: POST /v1/wallets/import/init
func (h *Handler) handleImportInit(w http.ResponseWriter, r *http.Request) {
	var req api.ImportInitRequest
	if _, err := h.readJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	switch {
	case req.ChainType != api.ChainTypeEthereum:
		h.writeError(w, badRequest("unsupported chain type %q", req.ChainType))
		return
	case req.EncryptionType != interfaces.EncryptionTypeHPKE:
		h.writeError(w, badRequest("unsupported encryption type %q", req.EncryptionType))
		return
	case req.EntropyType != api.EntropyTypePrivateKey:
		h.writeError(w, badRequest("unsupported entropy type %q", req.EntropyType))
		return
	case !common.IsHexAddress(req.Address):
		h.writeError(w, badRequest("invalid address %q", req.Address))
		return
	}

	recipient, err := cryptoutils.NewHPKERecipient()
	if err != nil {
		h.writeError(w, err)
		return
	}
	publicKey, err := recipient.PublicKeyPoint()
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.store.mu.Lock()
	h.store.imports[strings.ToLower(req.Address)] = recipient
	h.store.mu.Unlock()

	writeJSON(w, http.StatusOK, &api.ImportInitResponse{
		EncryptionType:      interfaces.EncryptionTypeHPKE,
		EncryptionPublicKey: publicKey,
	})
}

// Endpoint: POST /v1/wallets/import/submit
func (h *Handler) handleImportSubmit(w http.ResponseWriter, r *http.Request) {
	var req api.ImportSubmitRequest
	if _, err := h.readJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	address := strings.ToLower(req.Wallet.Address)
	recipient, ok := h.store.imports[address]
	if !ok {
		h.writeError(w, badRequest("no import in progress for %s", req.Wallet.Address))
		return
	}
	delete(h.store.imports, address)

	plaintext, err := recipient.DecryptRaw(req.Wallet.EncapsulatedKey, req.Wallet.Ciphertext)
	if err != nil {
		h.writeError(w, badRequest("failed to decrypt wallet key: %w", err))
		return
	}
	key, err := crypto.ToECDSA(plaintext)
	if err != nil {
		h.writeError(w, badRequest("invalid wallet key: %w", err))
		return
	}
	if !strings.EqualFold(crypto.PubkeyToAddress(key.PublicKey).Hex(), req.Wallet.Address) {
		h.writeError(w, badRequest("key does not match address %s", req.Wallet.Address))
		return
	}

	if err := h.store.checkPoliciesLocked(req.PolicyIDs); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.store.checkSignersLocked(req.AdditionalSigners); err != nil {
		h.writeError(w, err)
		return
	}
	ownerID, err := h.store.resolveOwnerLocked(req.Owner, "")
	if err != nil {
		h.writeError(w, err)
		return
	}

	now := h.clock.Now()
	record := h.store.addWalletLocked(key, req.Wallet.ChainType, ownerID, req.PolicyIDs, req.AdditionalSigners, now)
	importedAt := millis(now)
	record.wallet.ImportedAt = &importedAt

	h.log.Info("imported wallet", "walletID", record.wallet.ID, "address", record.wallet.Address)
	writeJSON(w, http.StatusOK, record.wallet)
}
