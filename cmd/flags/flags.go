package flags

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/ruteri/username-registry/api"
	"github.com/ruteri/username-registry/common"
	"github.com/ruteri/username-registry/discovery"
	"github.com/ruteri/username-registry/interfaces"
	"github.com/ruteri/username-registry/registry"
	"github.com/ruteri/username-registry/storage"
)

var ErrNoContract = errors.New("either --contract or --contract-dns is required")

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

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger, listenAddr string) *api.HTTPServerConfig {
	metricsAddr := cCtx.String(MetricsAddrFlag.Name)
	enablePprof := cCtx.Bool(PprofFlag.Name)
	drainDuration := time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second

	return &api.HTTPServerConfig{
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

// ContractAddress returns --contract, or resolves --contract-dns when no address is given.
func ContractAddress(cCtx *cli.Context) (interfaces.ContractAddress, error) {
	if hex := cCtx.String(ContractFlag.Name); hex != "" {
		return interfaces.NewContractAddressFromHex(hex)
	}

	domain := cCtx.String(ContractDNSFlag.Name)
	if domain == "" {
		return interfaces.ContractAddress{}, ErrNoContract
	}

	resolver := discovery.NewResolver(cCtx.String(DNSServerFlag.Name), 5*time.Second)
	return resolver.ResolveContract(cCtx.Context, domain)
}

// Transactor loads --privkey-file. It returns nil options when no key file is configured.
func Transactor(cCtx *cli.Context, chainID *big.Int) (*bind.TransactOpts, error) {
	path := cCtx.String(PrivkeyFileFlag.Name)
	if path == "" {
		return nil, nil
	}

	key, err := crypto.LoadECDSA(path)
	if err != nil {
		return nil, fmt.Errorf("could not load private key: %w", err)
	}
	return bind.NewKeyedTransactorWithChainID(key, chainID)
}

// ChainID returns --chain-id, asking the node when it is unset.
func ChainID(ctx context.Context, cCtx *cli.Context, client *ethclient.Client) (*big.Int, error) {
	if id := cCtx.Uint64(ChainIDFlag.Name); id != 0 {
		return new(big.Int).SetUint64(id), nil
	}
	return client.ChainID(ctx)
}

// ConnectRegistry dials --rpc-addr and binds the registry contract.
// The returned registry can transact only when --privkey-file is set.
func ConnectRegistry(cCtx *cli.Context, logger *slog.Logger) (*ethclient.Client, interfaces.UsernameRegistry, error) {
	rpcAddress := cCtx.String(RpcAddrFlag.Name)
	logger.Info("Connecting to Ethereum RPC", "address", rpcAddress)

	ethClient, err := ethclient.DialContext(cCtx.Context, rpcAddress)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to dial RPC: %w", err)
	}

	address, err := ContractAddress(cCtx)
	if err != nil {
		ethClient.Close()
		return nil, nil, err
	}

	var auth *bind.TransactOpts
	if cCtx.String(PrivkeyFileFlag.Name) != "" {
		chainID, err := ChainID(cCtx.Context, cCtx, ethClient)
		if err != nil {
			ethClient.Close()
			return nil, nil, fmt.Errorf("could not determine chain id: %w", err)
		}
		auth, err = Transactor(cCtx, chainID)
		if err != nil {
			ethClient.Close()
			return nil, nil, err
		}
		logger.Info("Transactions enabled", "account", auth.From.Hex())
	}

	reg, err := registry.NewRegistryFactory(ethClient, auth).RegistryFor(address)
	if err != nil {
		ethClient.Close()
		return nil, nil, err
	}

	logger.Info("Registry bound", "contractAddress", address.Common().Hex())
	return ethClient, reg, nil
}

// ClaimBackend builds the claim backend from the repeated --claims flag.
func ClaimBackend(cCtx *cli.Context, logger *slog.Logger) (interfaces.ClaimBackend, error) {
	uris := cCtx.StringSlice(ClaimsFlag.Name)
	if len(uris) == 0 {
		return nil, errors.New("at least one --claims backend is required")
	}

	locations := make([]interfaces.StorageBackendLocation, 0, len(uris))
	for _, uri := range uris {
		location, err := interfaces.NewStorageBackendLocation(uri)
		if err != nil {
			return nil, err
		}
		locations = append(locations, location)
	}

	return storage.NewClaimBackendFactory(logger).CreateMultiBackend(locations)
}

var RpcAddrFlag = &cli.StringFlag{
	Name:    "rpc-addr",
	Value:   "http://127.0.0.1:8545",
	Usage:   "address to connect to RPC",
	EnvVars: []string{"REGISTRY_RPC_ADDR"},
}

var ContractFlag = &cli.StringFlag{
	Name:    "contract",
	Usage:   "username registry contract address, 40-char hex string",
	EnvVars: []string{"REGISTRY_CONTRACT"},
}

var ContractDNSFlag = &cli.StringFlag{
	Name:    "contract-dns",
	Usage:   "domain whose TXT record holds the registry contract address",
	EnvVars: []string{"REGISTRY_CONTRACT_DNS"},
}

var DNSServerFlag = &cli.StringFlag{
	Name:    "dns-server",
	Usage:   "DNS server (host:port) for --contract-dns, defaults to the system resolver",
	EnvVars: []string{"REGISTRY_DNS_SERVER"},
}

var PrivkeyFileFlag = &cli.StringFlag{
	Name:    "privkey-file",
	Usage:   "file with a hex-encoded secp256k1 key used to send transactions",
	EnvVars: []string{"REGISTRY_PRIVKEY_FILE"},
}

var ChainIDFlag = &cli.Uint64Flag{
	Name:    "chain-id",
	Usage:   "chain id for signing, queried from the node when unset",
	EnvVars: []string{"REGISTRY_CHAIN_ID"},
}

var ClaimsFlag = &cli.StringSliceFlag{
	Name:    "claims",
	Usage:   "claim set backend URI (file://, s3://, ipfs://, vault://, github://), repeatable",
	EnvVars: []string{"REGISTRY_CLAIMS"},
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
	Name:    "metrics-addr",
	Value:   "127.0.0.1:8090",
	Usage:   "address to listen on for Prometheus metrics",
	EnvVars: []string{"REGISTRY_METRICS_ADDR"},
}

var LogFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
}

var ChainFlags = []cli.Flag{
	RpcAddrFlag,
	ContractFlag,
	ContractDNSFlag,
	DNSServerFlag,
	PrivkeyFileFlag,
	ChainIDFlag,
	ClaimsFlag,
}

var ServerFlags = []cli.Flag{
	PprofFlag,
	DrainSecondsFlag,
	MetricsAddrFlag,
}
