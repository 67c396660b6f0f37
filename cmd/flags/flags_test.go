package flags

import (
	"io"
	"log/slog"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

// run parses args with every shared flag and calls fn with the resulting context.
func run(t *testing.T, args []string, fn func(cCtx *cli.Context) error) {
	flags := append([]cli.Flag{LogServiceFlagFn("test")}, LogFlags...)
	flags = append(flags, ChainFlags...)
	flags = append(flags, ServerFlags...)

	app := &cli.App{
		Name:   "flags-test",
		Flags:  flags,
		Action: fn,
	}
	require.NoError(t, app.Run(append([]string{"flags-test"}, args...)))
}

func TestContractAddress(t *testing.T) {
	run(t, []string{"--contract", "0x5FbDB2315678afecb367f032d93F642f64180aa3"}, func(cCtx *cli.Context) error {
		addr, err := ContractAddress(cCtx)
		require.NoError(t, err)
		assert.Equal(t, "5fbdb2315678afecb367f032d93f642f64180aa3", addr.String())
		return nil
	})

	run(t, nil, func(cCtx *cli.Context) error {
		_, err := ContractAddress(cCtx)
		assert.ErrorIs(t, err, ErrNoContract)
		return nil
	})

	run(t, []string{"--contract", "0x1234"}, func(cCtx *cli.Context) error {
		_, err := ContractAddress(cCtx)
		assert.Error(t, err)
		return nil
	})
}

func TestTransactor(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	keyFile := filepath.Join(t.TempDir(), "key")
	require.NoError(t, crypto.SaveECDSA(keyFile, key))

	run(t, []string{"--privkey-file", keyFile}, func(cCtx *cli.Context) error {
		auth, err := Transactor(cCtx, big.NewInt(1337))
		require.NoError(t, err)
		assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), auth.From)
		return nil
	})

	run(t, nil, func(cCtx *cli.Context) error {
		auth, err := Transactor(cCtx, big.NewInt(1337))
		require.NoError(t, err)
		assert.Nil(t, auth)
		return nil
	})

	run(t, []string{"--privkey-file", filepath.Join(t.TempDir(), "missing")}, func(cCtx *cli.Context) error {
		_, err := Transactor(cCtx, big.NewInt(1337))
		assert.Error(t, err)
		return nil
	})
}

func TestClaimBackend(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()

	run(t, []string{"--claims", "file://" + dir, "--claims", "github://owner/repo/claims"}, func(cCtx *cli.Context) error {
		backend, err := ClaimBackend(cCtx, logger)
		require.NoError(t, err)
		assert.Contains(t, backend.LocationURI(), "file://"+dir)
		return nil
	})

	run(t, nil, func(cCtx *cli.Context) error {
		_, err := ClaimBackend(cCtx, logger)
		assert.Error(t, err)
		return nil
	})

	run(t, []string{"--claims", "ftp://example.com/claims"}, func(cCtx *cli.Context) error {
		_, err := ClaimBackend(cCtx, logger)
		assert.Error(t, err)
		return nil
	})
}

func TestConfigureServer(t *testing.T) {
	run(t, []string{"--pprof", "--drain-seconds", "3", "--metrics-addr", "127.0.0.1:9999"}, func(cCtx *cli.Context) error {
		cfg := ConfigureServer(cCtx, SetupLogger(cCtx), "127.0.0.1:8080")
		assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
		assert.Equal(t, "127.0.0.1:9999", cfg.MetricsAddr)
		assert.True(t, cfg.EnablePprof)
		assert.Equal(t, int64(3), int64(cfg.DrainDuration.Seconds()))
		return nil
	})
}
