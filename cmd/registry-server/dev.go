package main

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/urfave/cli/v2"

	"github.com/ruteri/username-registry/claims"
	"github.com/ruteri/username-registry/cmd/flags"
	"github.com/ruteri/username-registry/interfaces"
	"github.com/ruteri/username-registry/registry"
	"github.com/ruteri/username-registry/storage"
)

type devEnv struct {
	registry *registry.MockRegistryClient
	backend  interfaces.ClaimBackend
	root     interfaces.Root
}

// setupDev prepares an in-memory registry administered by the server key.
// Claim sets go to --claims, or to a temporary directory when none is given.
func setupDev(cCtx *cli.Context, logger *slog.Logger) (*devEnv, error) {
	key, err := devKey(cCtx.String(flags.PrivkeyFileFlag.Name))
	if err != nil {
		return nil, err
	}
	admin := crypto.PubkeyToAddress(key.PublicKey)

	var backend interfaces.ClaimBackend
	if len(cCtx.StringSlice(flags.ClaimsFlag.Name)) > 0 {
		backend, err = flags.ClaimBackend(cCtx, logger)
	} else {
		var dir string
		dir, err = os.MkdirTemp("", "registry-claims-*")
		if err == nil {
			backend, err = storage.NewFileBackend(dir, logger)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("could not create claim backend: %w", err)
	}

	entries := []claims.Entry{{Address: admin, Username: "admin"}}
	if path := cCtx.String(devEntriesFlag.Name); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		entries, err = claims.ParseEntries(data)
		if err != nil {
			return nil, err
		}
	}

	env, err := newDevEnv(cCtx.Context, admin, entries, backend, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("Dev registry ready",
		"account", admin.Hex(),
		"root", env.root.Hex(),
		"claims", backend.LocationURI())
	return env, nil
}

// newDevEnv publishes a period built from entries and opens it on a fresh mock registry.
func newDevEnv(ctx context.Context, admin common.Address, entries []claims.Entry, backend interfaces.ClaimBackend, logger *slog.Logger) (*devEnv, error) {
	root, set, err := claims.BuildPeriod(entries)
	if err != nil {
		return nil, fmt.Errorf("could not build demo period: %w", err)
	}

	if err := claims.NewResolver(backend, logger).Publish(ctx, root, set); err != nil {
		return nil, fmt.Errorf("could not publish demo claims: %w", err)
	}

	reg := registry.NewMockRegistryClient(admin)
	reg.SetTransactOpts(admin)
	if _, err := reg.AddRoot(ctx, root); err != nil {
		return nil, err
	}

	return &devEnv{registry: reg, backend: backend, root: root}, nil
}

func devKey(path string) (*ecdsa.PrivateKey, error) {
	if path == "" {
		return crypto.GenerateKey()
	}
	return crypto.LoadECDSA(path)
}
