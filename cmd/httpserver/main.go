package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ruteri/server-identity-backend/cmd/flags"
	"github.com/ruteri/server-identity-backend/config"
	"github.com/ruteri/server-identity-backend/globals"
	"github.com/ruteri/server-identity-backend/httpserver"
	"github.com/ruteri/server-identity-backend/interfaces"
	"github.com/ruteri/server-identity-backend/kvtree"
	"github.com/urfave/cli/v2"
)

var serverFlags []cli.Flag = append([]cli.Flag{
	&cli.StringFlag{
		Name:  "listen-addr",
		Value: "127.0.0.1:8080",
		Usage: "address to listen on for API",
	},
	flags.TreeFlag,
	flags.ServerNameFlag,
	flags.MaxRequestSizeFlag,
	flags.RegistrationDisabledFlag,
	flags.EncryptionDisabledFlag,
	flags.JwtSecretFlag,
}, flags.CommonFlags...)

func main() {
	app := &cli.App{
		Name:  "identity-server",
		Usage: "Serve the durable server identity and counter API",
		Flags: serverFlags,
		Action: func(cCtx *cli.Context) error {
			listenAddr := cCtx.String("listen-addr")
			logger := flags.SetupLogger(cCtx)

			cfg, err := config.Resolve(config.Options{
				ServerName:           cCtx.String(flags.ServerNameFlag.Name),
				MaxRequestSize:       cCtx.Int64(flags.MaxRequestSizeFlag.Name),
				RegistrationDisabled: cCtx.Bool(flags.RegistrationDisabledFlag.Name),
				EncryptionDisabled:   cCtx.Bool(flags.EncryptionDisabledFlag.Name),
				JWTSecret:            cCtx.String(flags.JwtSecretFlag.Name),
			})
			if err != nil {
				logger.Error("Invalid configuration", "err", err)
				return err
			}

			location, err := interfaces.NewTreeLocation(cCtx.String(flags.TreeFlag.Name))
			if err != nil {
				logger.Error("Invalid tree location", "err", err)
				return err
			}

			tree, err := kvtree.NewTreeBackendFactory(logger).TreeFor(location)
			if err != nil {
				logger.Error("Failed to create tree backend", "err", err)
				return err
			}
			defer tree.Close()

			if location.IsMemory() {
				logger.Warn("Using in-memory tree, identity and counter will not survive restarts")
			}

			if !tree.Available(cCtx.Context) {
				logger.Error("Tree backend is not available", "tree", tree.Name())
				return fmt.Errorf("tree backend %s is not available", tree.Name())
			}

			state, err := globals.Load(cCtx.Context, tree, cfg)
			if err != nil {
				logger.Error("Failed to load global state", "err", err)
				return err
			}

			logger.Info("Server identity loaded",
				"serverName", state.ServerName(),
				"keyID", state.Keypair().KeyID,
				"publicKey", state.Keypair().PublicKeyBase64(),
				"tree", tree.Name())

			handler := httpserver.NewHandler(state, logger)

			srvCfg := flags.ConfigureServer(cCtx, logger, listenAddr)
			server, err := httpserver.New(srvCfg, handler)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			server.RunInBackground()

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

	if err := app.RunContext(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
