package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/privy-io/privy-go/api"
	"github.com/privy-io/privy-go/authorization"
	"github.com/privy-io/privy-go/cmd/flags"
	"github.com/privy-io/privy-go/cryptoutils"
	"github.com/privy-io/privy-go/interfaces"
	"github.com/urfave/cli/v2"
)

var flagPrivateKeyFile *cli.StringFlag = &cli.StringFlag{
	Name:  "private-key-file",
	Value: "authorization-key.pem",
	Usage: "Path to write the generated private key to",
}

var flagMethod *cli.StringFlag = &cli.StringFlag{
	Name:  "method",
	Value: "POST",
	Usage: "HTTP method of the request: POST, PUT, PATCH or DELETE",
}

var flagURL *cli.StringFlag = &cli.StringFlag{
	Name:     "url",
	Required: true,
	Usage:    "Full request URL, e.g. https://api.privy.io/v1/wallets/<id>",
}

var flagBody *cli.StringFlag = &cli.StringFlag{
	Name:  "body",
	Value: "{}",
	Usage: "JSON request body, '@path' to read it from a file or '-' for stdin",
}

var flagIdempotencyKey *cli.StringFlag = &cli.StringFlag{
	Name:  "idempotency-key",
	Usage: "Value of the privy-idempotency-key header, if sent",
}

var flagRecipient *cli.StringFlag = &cli.StringFlag{
	Name:     "recipient",
	Required: true,
	Usage:    "HPKE recipient public key, base64 SPKI or SEC1 point",
}

var flagWalletID *cli.StringFlag = &cli.StringFlag{
	Name:     "wallet-id",
	Required: true,
}

func main() {
	app := &cli.App{
		Name:  "privyctl",
		Usage: "Sign and send Privy wallet API requests",
		Flags: append([]cli.Flag{flags.LogServiceFlagFn("privyctl")}, flags.LogFlags...),
		Commands: []*cli.Command{
			{
				Name:  "generate-key",
				Usage: "Generate a P-256 authorization key",
				Flags: []cli.Flag{flagPrivateKeyFile},
				Action: func(cCtx *cli.Context) error {
					privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
					if err != nil {
						return fmt.Errorf("failed to generate ECDSA key: %w", err)
					}
					privateKeyPEM, err := cryptoutils.MarshalPrivateKeyPEM(privateKey)
					if err != nil {
						return err
					}
					if err := os.WriteFile(cCtx.String(flagPrivateKeyFile.Name), privateKeyPEM, 0600); err != nil {
						return err
					}

					publicKey, err := cryptoutils.MarshalPublicKeyBase64(&privateKey.PublicKey)
					if err != nil {
						return err
					}
					fmt.Println(publicKey)
					return nil
				},
			},
			{
				Name:  "public-key",
				Usage: "Print the base64 SPKI public key of every given key",
				Flags: flags.KeyFlags,
				Action: func(cCtx *cli.Context) error {
					authCtx, err := flags.AuthorizationContext(cCtx, flags.SetupLogger(cCtx))
					if err != nil {
						return err
					}
					if authCtx.Len() == 0 {
						return errors.New("no authorization key given")
					}
					for _, key := range authCtx.Keys() {
						pub, err := key.PublicKey(cCtx.Context)
						if err != nil {
							return err
						}
						encoded, err := cryptoutils.MarshalPublicKeyBase64(pub)
						if err != nil {
							return err
						}
						fmt.Println(encoded)
					}
					return nil
				},
			},
			{
				Name:  "canonicalize",
				Usage: "Print the canonical payload signed for a request",
				Flags: []cli.Flag{flags.AppIDFlag, flagMethod, flagURL, flagBody, flagIdempotencyKey},
				Action: func(cCtx *cli.Context) error {
					canonical, err := canonicalRequest(cCtx)
					if err != nil {
						return err
					}
					fmt.Println(string(canonical))
					return nil
				},
			},
			{
				Name:  "sign",
				Usage: "Print the privy-authorization-signature header value for a request",
				Flags: append([]cli.Flag{flags.AppIDFlag, flagMethod, flagURL, flagBody, flagIdempotencyKey}, flags.KeyFlags...),
				Action: func(cCtx *cli.Context) error {
					canonical, err := canonicalRequest(cCtx)
					if err != nil {
						return err
					}
					authCtx, err := flags.AuthorizationContext(cCtx, flags.SetupLogger(cCtx))
					if err != nil {
						return err
					}
					header, err := authorization.SignCanonical(cCtx.Context, authCtx, canonical)
					if err != nil {
						return err
					}
					fmt.Println(header)
					return nil
				},
			},
			{
				Name:  "hpke-seal",
				Usage: "Seal stdin to an HPKE recipient key, as done for wallet imports",
				Flags: []cli.Flag{flagRecipient},
				Action: func(cCtx *cli.Context) error {
					plaintext, err := io.ReadAll(os.Stdin)
					if err != nil {
						return err
					}
					encapsulatedKey, ciphertext, err := cryptoutils.Seal(cCtx.String(flagRecipient.Name), plaintext)
					if err != nil {
						return err
					}
					return printJSON(map[string]string{
						"encryption_type":  interfaces.EncryptionTypeHPKE,
						"encapsulated_key": encapsulatedKey,
						"ciphertext":       ciphertext,
					})
				},
			},
			walletCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func walletCommand() *cli.Command {
	clientFlags := []cli.Flag{flags.AppIDFlag, flags.AppSecretFlag, flags.BaseURLFlag}

	return &cli.Command{
		Name:  "wallet",
		Usage: "Wallet operations",
		Subcommands: []*cli.Command{
			{
				Name:  "get",
				Flags: append(clientFlags, flagWalletID),
				Action: func(cCtx *cli.Context) error {
					client, err := flags.NewClient(cCtx, flags.SetupLogger(cCtx))
					if err != nil {
						return err
					}
					wallet, err := client.Wallets().Get(cCtx.Context, cCtx.String(flagWalletID.Name))
					if err != nil {
						return err
					}
					return printJSON(wallet)
				},
			},
			{
				Name:  "list",
				Flags: clientFlags,
				Action: func(cCtx *cli.Context) error {
					client, err := flags.NewClient(cCtx, flags.SetupLogger(cCtx))
					if err != nil {
						return err
					}
					var wallets []api.Wallet
					opts := &api.ListOptions{}
					for {
						page, err := client.Wallets().List(cCtx.Context, opts)
						if err != nil {
							return err
						}
						wallets = append(wallets, page.Data...)
						if page.NextCursor == nil {
							break
						}
						opts.Cursor = *page.NextCursor
					}
					return printJSON(wallets)
				},
			},
			{
				Name:  "update",
				Usage: "Apply a JSON wallet update, signed with the given keys",
				Flags: append(append(clientFlags, flagWalletID, flagBody), flags.KeyFlags...),
				Action: func(cCtx *cli.Context) error {
					logger := flags.SetupLogger(cCtx)
					body, err := readBody(cCtx.String(flagBody.Name))
					if err != nil {
						return err
					}
					var update api.UpdateWalletRequest
					if err := json.Unmarshal(body, &update); err != nil {
						return fmt.Errorf("invalid wallet update: %w", err)
					}

					client, err := flags.NewClient(cCtx, logger)
					if err != nil {
						return err
					}
					authCtx, err := flags.AuthorizationContext(cCtx, logger)
					if err != nil {
						return err
					}
					wallet, err := client.Wallets().Update(cCtx.Context, cCtx.String(flagWalletID.Name), authCtx, &update)
					if err != nil {
						return err
					}
					return printJSON(wallet)
				},
			},
			{
				Name:  "export",
				Usage: "Export the wallet private key",
				Flags: append(append(clientFlags, flagWalletID), flags.KeyFlags...),
				Action: func(cCtx *cli.Context) error {
					logger := flags.SetupLogger(cCtx)
					client, err := flags.NewClient(cCtx, logger)
					if err != nil {
						return err
					}
					authCtx, err := flags.AuthorizationContext(cCtx, logger)
					if err != nil {
						return err
					}
					key, err := client.Wallets().Export(cCtx.Context, cCtx.String(flagWalletID.Name), authCtx)
					if err != nil {
						return err
					}
					fmt.Println(string(key))
					return nil
				},
			},
		},
	}
}

func canonicalRequest(cCtx *cli.Context) ([]byte, error) {
	method, ok := interfaces.ParseHTTPMethod(cCtx.String(flagMethod.Name))
	if !ok {
		return nil, fmt.Errorf("%w: %s", authorization.ErrMethodNotSigned, cCtx.String(flagMethod.Name))
	}
	body, err := readBody(cCtx.String(flagBody.Name))
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, errors.New("request body is not valid JSON")
	}
	return authorization.FormatRequest(cCtx.String(flags.AppIDFlag.Name), method, cCtx.String(flagURL.Name),
		json.RawMessage(body), cCtx.String(flagIdempotencyKey.Name))
}

func readBody(value string) ([]byte, error) {
	switch {
	case value == "-":
		return io.ReadAll(os.Stdin)
	case strings.HasPrefix(value, "@"):
		return os.ReadFile(strings.TrimPrefix(value, "@"))
	default:
		return []byte(value), nil
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
