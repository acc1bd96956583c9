package kms

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"
	"github.com/privy-io/privy-go/cryptoutils"
	"github.com/privy-io/privy-go/interfaces"
)

var (
	_ interfaces.Key             = (*VaultKey)(nil)
	_ interfaces.SecretKeySource = (*VaultKey)(nil)
)

// DefaultVaultField is the secret field holding the encoded key.
const DefaultVaultField = "private_key"

// ErrKeyNotFound is returned when the Vault secret or its field is missing.
var ErrKeyNotFound = errors.New("authorization key not found")

type VaultConfig struct {
	Address   string
	Token     string
	MountPath string
	Path      string
	// Field defaults to DefaultVaultField.
	Field string
	// KVVersion selects the KV secrets engine version, 1 or 2. Defaults to 2.
	KVVersion int
	Timeout   time.Duration
}

// VaultKey is an authorization key stored in a Vault KV secret.
type VaultKey struct {
	client *api.Client
	path   string
	field  string
	kvV2   bool
	log    *slog.Logger
}

func NewVaultKey(cfg VaultConfig, log *slog.Logger) (*VaultKey, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Field == "" {
		cfg.Field = DefaultVaultField
	}
	if cfg.KVVersion == 0 {
		cfg.KVVersion = 2
	}
	if cfg.KVVersion != 1 && cfg.KVVersion != 2 {
		return nil, fmt.Errorf("unsupported KV version %d", cfg.KVVersion)
	}

	config := api.DefaultConfig()
	config.Address = cfg.Address
	config.HttpClient = &http.Client{Timeout: cfg.Timeout}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}

	mountPath := strings.Trim(cfg.MountPath, "/")
	dataPath := strings.Trim(cfg.Path, "/")
	path := fmt.Sprintf("%s/%s", mountPath, dataPath)
	if cfg.KVVersion == 2 {
		path = fmt.Sprintf("%s/data/%s", mountPath, dataPath)
	}

	return &VaultKey{
		client: client,
		path:   path,
		field:  cfg.Field,
		kvV2:   cfg.KVVersion == 2,
		log:    log,
	}, nil
}

// SecretKey reads and parses the key from Vault.
func (k *VaultKey) SecretKey(ctx context.Context) (*ecdsa.PrivateKey, error) {
	secret, err := k.client.Logical().ReadWithContext(ctx, k.path)
	if err != nil {
		k.log.Error("Failed to read authorization key from Vault", slog.String("path", k.path), "err", err)
		return nil, fmt.Errorf("%w: %w", ErrKMSUnavailable, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, k.path)
	}

	data := secret.Data
	if k.kvV2 {
		inner, ok := secret.Data["data"].(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: invalid KV v2 response at %s", ErrKeyNotFound, k.path)
		}
		data = inner
	}

	encoded, ok := data[k.field].(string)
	if !ok || encoded == "" {
		return nil, fmt.Errorf("%w: field %q missing at %s", ErrKeyNotFound, k.field, k.path)
	}
	return cryptoutils.ParsePrivateKey(encoded)
}

func (k *VaultKey) PublicKey(ctx context.Context) (*ecdsa.PublicKey, error) {
	key, err := k.SecretKey(ctx)
	if err != nil {
		return nil, err
	}
	return &key.PublicKey, nil
}

func (k *VaultKey) Sign(ctx context.Context, message []byte) ([]byte, error) {
	key, err := k.SecretKey(ctx)
	if err != nil {
		return nil, err
	}
	return cryptoutils.SignMessage(key, message)
}

func (k *VaultKey) String() string {
	return fmt.Sprintf("VaultKey(%s)", k.path)
}
