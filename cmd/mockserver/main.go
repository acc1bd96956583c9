package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/privy-io/privy-go/api"
	"github.com/privy-io/privy-go/cmd/flags"
	"github.com/privy-io/privy-go/httpserver"
	"github.com/urfave/cli/v2"
)

var serverFlags []cli.Flag = []cli.Flag{
	&cli.StringFlag{
		Name:  "listen-addr",
		Value: "127.0.0.1:8080",
		Usage: "address to listen on for API",
	},
	&cli.StringFlag{
		Name:    "app-id",
		Value:   "mock-app",
		Usage:   "app id accepted by the server",
		EnvVars: []string{"PRIVY_APP_ID"},
	},
	&cli.StringFlag{
		Name:    "app-secret",
		Value:   "mock-secret",
		Usage:   "app secret accepted by the server",
		EnvVars: []string{"PRIVY_APP_SECRET"},
	},
	&cli.StringFlag{
		Name:  "public-url",
		Usage: "base URL clients use to reach the server, used for signature verification behind proxies",
	},
	&cli.DurationFlag{
		Name:  "authorization-key-ttl",
		Value: httpserver.DefaultAuthorizationKeyTTL,
		Usage: "lifetime of authorization keys issued for user JWTs",
	},
	&cli.BoolFlag{
		Name:  "unencrypted-authentication",
		Usage: "answer authenticate requests with plain authorization keys",
	},
	&cli.StringSliceFlag{
		Name:  "seed-user",
		Usage: "custom user id of a user to create at startup with one ethereum wallet; its JWT is logged",
	},
	flags.LogServiceFlagFn("privy-mock"),
}

func main() {
	app := &cli.App{
		Name:  "mockserver",
		Usage: "Serve an in-memory Privy wallet API for local development",
		Flags: append(append(serverFlags, flags.LogFlags...), flags.ServerFlags...),
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)

			handler, err := httpserver.NewHandler(httpserver.HandlerConfig{
				AppID:                     cCtx.String("app-id"),
				AppSecret:                 cCtx.String("app-secret"),
				BaseURL:                   cCtx.String("public-url"),
				UnencryptedAuthentication: cCtx.Bool("unencrypted-authentication"),
				AuthorizationKeyTTL:       cCtx.Duration("authorization-key-ttl"),
				Log:                       logger,
			})
			if err != nil {
				logger.Error("Failed to create handler", "err", err)
				return err
			}

			for _, customID := range cCtx.StringSlice("seed-user") {
				user, jwt, err := handler.SeedUser(&api.CreateUserRequest{
					LinkedAccounts: []api.LinkedAccount{{Type: "custom_auth", CustomUserID: customID, VerifiedAt: float64(time.Now().UnixMilli())}},
					Wallets:        []api.CreateUserWallet{{ChainType: api.ChainTypeEthereum}},
				})
				if err != nil {
					logger.Error("Failed to seed user", "customUserID", customID, "err", err)
					return err
				}
				logger.Info("Seeded user", "customUserID", customID, "userID", user.ID)
				fmt.Printf("%s\t%s\n", user.ID, jwt)
			}

			cfg := flags.ConfigureServer(cCtx, logger, cCtx.String("listen-addr"))
			server, err := httpserver.New(cfg, handler)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			logger.Info("Starting server")
			server.RunInBackground()

			// Wait for termination signal
			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

			logger.Info("Server is running, press Ctrl+C to stop")
			<-exit
			logger.Info("Shutdown signal received")

			server.Shutdown()
			logger.Info("Server shutdown complete")

			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
