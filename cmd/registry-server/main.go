package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ruteri/username-registry/api/handlers"
	"github.com/ruteri/username-registry/claims"
	"github.com/ruteri/username-registry/cmd/flags"
	"github.com/ruteri/username-registry/common"
	"github.com/ruteri/username-registry/httpserver"
	"github.com/ruteri/username-registry/interfaces"
	"github.com/ruteri/username-registry/registry"
)

var listenAddrFlag = &cli.StringFlag{
	Name:    "listen-addr",
	Value:   "127.0.0.1:8080",
	Usage:   "address to listen on for the dashboard and API",
	EnvVars: []string{"REGISTRY_LISTEN_ADDR"},
}

var devFlag = &cli.BoolFlag{
	Name:  "dev",
	Usage: "serve an in-memory registry with a demo registration period instead of connecting to a chain",
}

var devEntriesFlag = &cli.StringFlag{
	Name:  "dev-entries",
	Usage: "JSON file with [{address, username}] entries for the --dev period, the server key is used when unset",
}

var watchIntervalFlag = &cli.DurationFlag{
	Name:  "watch-interval",
	Value: 5 * time.Second,
	Usage: "how often to poll the chain for new registration periods",
}

func main() {
	serverFlags := []cli.Flag{
		listenAddrFlag,
		devFlag,
		devEntriesFlag,
		watchIntervalFlag,
		flags.LogServiceFlagFn("registry-server"),
	}
	serverFlags = append(serverFlags, flags.ChainFlags...)
	serverFlags = append(serverFlags, flags.ServerFlags...)
	serverFlags = append(serverFlags, flags.LogFlags...)

	app := &cli.App{
		Name:  "registry-server",
		Usage: "Serve the username registry dashboard and API",
		Flags: serverFlags,
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)
			cfg := flags.ConfigureServer(cCtx, logger, cCtx.String(listenAddrFlag.Name))

			ctx, cancel := context.WithCancel(cCtx.Context)
			defer cancel()

			var reg interfaces.UsernameRegistry
			var backend interfaces.ClaimBackend
			var err error

			if cCtx.Bool(devFlag.Name) {
				dev, err := setupDev(cCtx, logger)
				if err != nil {
					logger.Error("Failed to set up dev registry", "err", err)
					return err
				}
				reg, backend = dev.registry, dev.backend
			} else {
				backend, err = flags.ClaimBackend(cCtx, logger)
				if err != nil {
					logger.Error("Failed to create claim backend", "err", err)
					return err
				}

				ethClient, client, err := flags.ConnectRegistry(cCtx, logger)
				if err != nil {
					logger.Error("Failed to connect to registry", "err", err)
					return err
				}
				defer ethClient.Close()
				reg = client

				account, _ := client.Account()
				watcher := registry.NewWatcher(ethClient, client, account, cCtx.Duration(watchIntervalFlag.Name), logger)
				go func() {
					_ = watcher.Run(ctx, func(update registry.Update) {
						for _, root := range update.RootsAdded {
							logger.Info("Registration period open", "root", root.Hex(), "block", update.Block)
						}
					})
				}()
			}

			handler := handlers.NewHandler(reg, claims.NewResolver(backend, logger), logger)
			server, err := httpserver.New(cfg, handler)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			logger.Info("Starting server", "version", common.Version)
			server.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
			<-exit
			logger.Info("Shutdown signal received")

			cancel()
			server.Shutdown()
			logger.Info("Server shutdown complete")
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
