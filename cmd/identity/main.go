package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/ruteri/server-identity-backend/cmd/flags"
	"github.com/ruteri/server-identity-backend/cryptoutils"
	"github.com/ruteri/server-identity-backend/globals"
	"github.com/ruteri/server-identity-backend/interfaces"
	"github.com/ruteri/server-identity-backend/kvtree"
	"github.com/urfave/cli/v2"
)

var identityFlags []cli.Flag = append([]cli.Flag{
	flags.TreeFlag,
	&cli.BoolFlag{
		Name:  "init",
		Value: false,
		Usage: "generate and commit an identity if the tree holds none",
	},
}, flags.CommonFlags...)

func main() {
	app := &cli.App{
		Name:  "identity",
		Usage: "Inspect the durable identity and counter held in a tree backend",
		Flags: identityFlags,
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)
			ctx := cCtx.Context

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

			var keypair *cryptoutils.SigningKeyPair
			if cCtx.Bool("init") {
				keypair, err = globals.LoadOrGenerateSigningKeyPair(ctx, tree)
				if err != nil {
					logger.Error("Failed to load or generate identity", "err", err)
					return err
				}
			} else {
				blob, err := tree.Get(ctx, []byte(globals.KeypairKey))
				if errors.Is(err, interfaces.ErrKeyNotFound) {
					return fmt.Errorf("tree %s holds no identity (use --init to create one)", tree.LocationURI())
				}
				if err != nil {
					logger.Error("Failed to read identity", "err", err)
					return err
				}
				keypair, err = cryptoutils.UnmarshalSigningKeyPair(blob)
				if err != nil {
					logger.Error("Stored identity is corrupt", "err", err)
					return err
				}
			}

			count, err := globals.CurrentCount(ctx, tree)
			if err != nil {
				logger.Error("Failed to read counter", "err", err)
				return err
			}

			fmt.Printf("tree:       %s\n", tree.LocationURI())
			fmt.Printf("key id:     %s\n", keypair.KeyID)
			fmt.Printf("public key: %s\n", keypair.PublicKeyBase64())
			fmt.Printf("count:      %d\n", count)

			return nil
		},
	}

	if err := app.RunContext(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
