package clients

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/privy-io/privy-go/api"
	"github.com/privy-io/privy-go/authorization"
)

// Ethereum RPC methods accepted by the wallet rpc endpoint.
const (
	MethodPersonalSign          = "personal_sign"
	MethodSecp256k1Sign         = "secp256k1_sign"
	MethodSign7702Authorization = "eth_sign7702Authorization"
	MethodSignTypedDataV4       = "eth_signTypedData_v4"
	MethodSignTransaction       = "eth_signTransaction"
	MethodSendTransaction       = "eth_sendTransaction"
)

const (
	encodingUTF8 = "utf-8"
	encodingHex  = "hex"
)

// EthereumService wraps the wallet rpc endpoint for Ethereum wallets. Every
// method is signed with authCtx and accepts an optional idempotency key.
type EthereumService struct {
	wallets *WalletsService
}

// Transaction is an unsigned Ethereum transaction. Quantities are hex encoded
// on the wire.
type Transaction struct {
	From                 *common.Address `json:"from,omitempty"`
	To                   *common.Address `json:"to,omitempty"`
	ChainID              *hexutil.Big    `json:"chain_id,omitempty"`
	Nonce                *hexutil.Uint64 `json:"nonce,omitempty"`
	Value                *hexutil.Big    `json:"value,omitempty"`
	Data                 hexutil.Bytes   `json:"data,omitempty"`
	GasLimit             *hexutil.Uint64 `json:"gas_limit,omitempty"`
	GasPrice             *hexutil.Big    `json:"gas_price,omitempty"`
	MaxFeePerGas         *hexutil.Big    `json:"max_fee_per_gas,omitempty"`
	MaxPriorityFeePerGas *hexutil.Big    `json:"max_priority_fee_per_gas,omitempty"`
	Type                 *int            `json:"type,omitempty"`
}

type TypedDataField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TypedData is an EIP-712 payload.
type TypedData struct {
	Domain      map[string]any              `json:"domain"`
	Types       map[string][]TypedDataField `json:"types"`
	PrimaryType string                      `json:"primary_type"`
	Message     map[string]any              `json:"message"`
}

// Authorization7702 is the input of an EIP-7702 authorization.
type Authorization7702 struct {
	Contract common.Address `json:"contract"`
	ChainID  uint64         `json:"chain_id"`
	Nonce    *uint64        `json:"nonce,omitempty"`
}

type SignatureResult struct {
	Signature string `json:"signature"`
	Encoding  string `json:"encoding"`
}

type SignedTransactionResult struct {
	SignedTransaction string `json:"signed_transaction"`
	Encoding          string `json:"encoding"`
}

type SendTransactionResult struct {
	Hash          string `json:"hash"`
	CAIP2         string `json:"caip2"`
	TransactionID string `json:"transaction_id,omitempty"`
}

func (s *EthereumService) call(ctx context.Context, walletID string, authCtx *authorization.AuthorizationContext, idempotencyKey string, req *api.RPCRequest, result any) error {
	req.ChainType = api.ChainTypeEthereum
	resp, err := s.wallets.RPC(ctx, walletID, authCtx, idempotencyKey, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Data, result); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", req.Method, err)
	}
	return nil
}

// SignMessage signs a UTF-8 message with personal_sign.
func (s *EthereumService) SignMessage(ctx context.Context, walletID, message string, authCtx *authorization.AuthorizationContext, idempotencyKey string) (*SignatureResult, error) {
	var result SignatureResult
	err := s.call(ctx, walletID, authCtx, idempotencyKey, &api.RPCRequest{
		Method: MethodPersonalSign,
		Params: map[string]string{"message": message, "encoding": encodingUTF8},
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// SignMessageBytes signs arbitrary bytes with personal_sign, hex encoded.
func (s *EthereumService) SignMessageBytes(ctx context.Context, walletID string, message []byte, authCtx *authorization.AuthorizationContext, idempotencyKey string) (*SignatureResult, error) {
	var result SignatureResult
	err := s.call(ctx, walletID, authCtx, idempotencyKey, &api.RPCRequest{
		Method: MethodPersonalSign,
		Params: map[string]string{"message": hexutil.Encode(message), "encoding": encodingHex},
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// SignSecp256k1 signs a precomputed 32 byte hash.
func (s *EthereumService) SignSecp256k1(ctx context.Context, walletID string, hash common.Hash, authCtx *authorization.AuthorizationContext, idempotencyKey string) (*SignatureResult, error) {
	var result SignatureResult
	err := s.call(ctx, walletID, authCtx, idempotencyKey, &api.RPCRequest{
		Method: MethodSecp256k1Sign,
		Params: map[string]string{"hash": hash.Hex()},
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Sign7702Authorization signs an EIP-7702 delegation to a contract.
func (s *EthereumService) Sign7702Authorization(ctx context.Context, walletID string, auth *Authorization7702, authCtx *authorization.AuthorizationContext, idempotencyKey string) (json.RawMessage, error) {
	var result struct {
		Authorization json.RawMessage `json:"authorization"`
	}
	err := s.call(ctx, walletID, authCtx, idempotencyKey, &api.RPCRequest{
		Method: MethodSign7702Authorization,
		Params: auth,
	}, &result)
	if err != nil {
		return nil, err
	}
	return result.Authorization, nil
}

func (s *EthereumService) SignTypedData(ctx context.Context, walletID string, typedData *TypedData, authCtx *authorization.AuthorizationContext, idempotencyKey string) (*SignatureResult, error) {
	var result SignatureResult
	err := s.call(ctx, walletID, authCtx, idempotencyKey, &api.RPCRequest{
		Method: MethodSignTypedDataV4,
		Params: map[string]any{"typed_data": typedData},
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// SignTransaction signs without broadcasting.
func (s *EthereumService) SignTransaction(ctx context.Context, walletID string, tx *Transaction, authCtx *authorization.AuthorizationContext, idempotencyKey string) (*SignedTransactionResult, error) {
	var result SignedTransactionResult
	err := s.call(ctx, walletID, authCtx, idempotencyKey, &api.RPCRequest{
		Method: MethodSignTransaction,
		Params: map[string]any{"transaction": tx},
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// SendTransaction signs and broadcasts on the network named by caip2, for
// example "eip155:1".
func (s *EthereumService) SendTransaction(ctx context.Context, walletID, caip2 string, tx *Transaction, authCtx *authorization.AuthorizationContext, idempotencyKey string) (*SendTransactionResult, error) {
	var result SendTransactionResult
	err := s.call(ctx, walletID, authCtx, idempotencyKey, &api.RPCRequest{
		Method: MethodSendTransaction,
		CAIP2:  caip2,
		Params: map[string]any{"transaction": tx},
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}
