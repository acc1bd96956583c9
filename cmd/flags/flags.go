package flags

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	awskms "github.com/aws/aws-sdk-go/service/kms"
	"github.com/google/uuid"
	"github.com/privy-io/privy-go/api/clients"
	"github.com/privy-io/privy-go/authorization"
	"github.com/privy-io/privy-go/common"
	"github.com/privy-io/privy-go/httpserver"
	"github.com/privy-io/privy-go/interfaces"
	"github.com/privy-io/privy-go/kms"
	"github.com/urfave/cli/v2"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String("log-service")

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger, listenAddr string) *httpserver.HTTPServerConfig {
	metricsAddr := cCtx.String("metrics-addr")
	enablePprof := cCtx.Bool("pprof")
	drainDuration := time.Duration(cCtx.Int64("drain-seconds")) * time.Second

	return &httpserver.HTTPServerConfig{
		ListenAddr:               listenAddr,
		MetricsAddr:              metricsAddr,
		Log:                      logger,
		EnablePprof:              enablePprof,
		DrainDuration:            drainDuration,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}
}

// NewClient builds an API client from the app credential flags.
func NewClient(cCtx *cli.Context, logger *slog.Logger) (*clients.Client, error) {
	return clients.NewClient(
		cCtx.String(AppIDFlag.Name),
		cCtx.String(AppSecretFlag.Name),
		clients.WithBaseURL(cCtx.String(BaseURLFlag.Name)),
		clients.WithLogger(logger),
	)
}

// AuthorizationContext collects every key given on the command line. Keys
// are grouped by source, in the order: key files, inline keys, AWS KMS keys,
// Vault key. Within a source they keep the order they were given in.
func AuthorizationContext(cCtx *cli.Context, logger *slog.Logger) (*authorization.AuthorizationContext, error) {
	authCtx := authorization.NewAuthorizationContext()

	for _, path := range cCtx.StringSlice(AuthKeyFileFlag.Name) {
		authCtx.Push(authorization.PrivateKeyFile(path))
	}
	for _, encoded := range cCtx.StringSlice(AuthKeyFlag.Name) {
		key, err := authorization.NewPrivateKey(encoded)
		if err != nil {
			return nil, fmt.Errorf("invalid --%s: %w", AuthKeyFlag.Name, err)
		}
		authCtx.Push(key)
	}

	if keyIDs := cCtx.StringSlice(AWSKMSKeyFlag.Name); len(keyIDs) > 0 {
		sess, err := session.NewSession(&aws.Config{
			Region: aws.String(cCtx.String(AWSRegionFlag.Name)),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create AWS session: %w", err)
		}
		client := awskms.New(sess)
		for _, keyID := range keyIDs {
			authCtx.Push(kms.NewAWSKey(client, keyID, logger))
		}
	}

	if path := cCtx.String(VaultPathFlag.Name); path != "" {
		vaultKey, err := kms.NewVaultKey(kms.VaultConfig{
			Address:   cCtx.String(VaultAddrFlag.Name),
			Token:     cCtx.String(VaultTokenFlag.Name),
			MountPath: cCtx.String(VaultMountFlag.Name),
			Path:      path,
		}, logger)
		if err != nil {
			return nil, err
		}
		// Avoid a Vault round trip per signature
		authCtx.Push(authorization.NewTimeCachingKey(vaultKey, authorization.DefaultKeyCacheTTL, interfaces.SystemClock{}))
	}

	return authCtx, nil
}

var AppIDFlag = &cli.StringFlag{
	Name:     "app-id",
	Usage:    "Privy app id",
	EnvVars:  []string{"PRIVY_APP_ID"},
	Required: true,
}
var AppSecretFlag = &cli.StringFlag{
	Name:     "app-secret",
	Usage:    "Privy app secret",
	EnvVars:  []string{"PRIVY_APP_SECRET"},
	Required: true,
}
var BaseURLFlag = &cli.StringFlag{
	Name:    "base-url",
	Value:   clients.DefaultBaseURL,
	Usage:   "API base URL",
	EnvVars: []string{"PRIVY_BASE_URL"},
}

var AuthKeyFileFlag = &cli.StringSliceFlag{
	Name:  "auth-key-file",
	Usage: "PEM file with a P-256 authorization key, repeatable; signs first, before --auth-key, --aws-kms-key and --vault-path keys",
}
var AuthKeyFlag = &cli.StringSliceFlag{
	Name:    "auth-key",
	Usage:   "authorization key, PEM or base64 with optional wallet-auth: prefix, repeatable; signs after --auth-key-file keys",
	EnvVars: []string{"PRIVY_AUTHORIZATION_KEY"},
}
var AWSKMSKeyFlag = &cli.StringSliceFlag{
	Name:  "aws-kms-key",
	Usage: "AWS KMS key id, ARN or alias of an ECC_NIST_P256 signing key, repeatable; signs after file and inline keys",
}
var AWSRegionFlag = &cli.StringFlag{
	Name:    "aws-region",
	Value:   "us-east-1",
	EnvVars: []string{"AWS_REGION"},
}
var VaultAddrFlag = &cli.StringFlag{
	Name:    "vault-addr",
	Value:   "http://127.0.0.1:8200",
	EnvVars: []string{"VAULT_ADDR"},
}
var VaultTokenFlag = &cli.StringFlag{
	Name:    "vault-token",
	EnvVars: []string{"VAULT_TOKEN"},
}
var VaultMountFlag = &cli.StringFlag{
	Name:  "vault-mount",
	Value: "secret",
	Usage: "KV secrets engine mount",
}
var VaultPathFlag = &cli.StringFlag{
	Name:  "vault-path",
	Usage: "KV path of a secret holding an authorization key; signs last",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}

var LogServiceFlagFn = func(service string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "log-service",
		Value: service,
		Usage: "add 'service' tag to logs",
	}
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to wait in drain HTTP request",
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:  "metrics-addr",
	Value: "127.0.0.1:8090",
	Usage: "address to listen on for Prometheus metrics",
}

var LogFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
}

var ServerFlags = []cli.Flag{
	PprofFlag,
	DrainSecondsFlag,
	MetricsAddrFlag,
}

var KeyFlags = []cli.Flag{
	AuthKeyFileFlag,
	AuthKeyFlag,
	AWSKMSKeyFlag,
	AWSRegionFlag,
	VaultAddrFlag,
	VaultTokenFlag,
	VaultMountFlag,
	VaultPathFlag,
}
