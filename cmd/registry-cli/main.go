package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"

	"github.com/ruteri/username-registry/api/clients"
	"github.com/ruteri/username-registry/claims"
	"github.com/ruteri/username-registry/cmd/flags"
	"github.com/ruteri/username-registry/registry"
)

var accountFlag = &cli.StringFlag{
	Name:  "account",
	Usage: "account to inspect, defaults to the --privkey-file address",
}

var usernameFlag = &cli.StringFlag{
	Name:  "username",
	Usage: "username to register, looked up in the published claims when unset",
}

var proofFlag = &cli.StringSliceFlag{
	Name:  "proof",
	Usage: "merkle proof element (32-byte hex), repeatable, in order",
}

var inputFlag = &cli.StringFlag{
	Name:     "input",
	Required: true,
	Usage:    "JSON file with [{address, username}] entries",
}

var outFlag = &cli.StringFlag{
	Name:  "out",
	Value: ".",
	Usage: "directory to write the <root prefix>.json claim set to",
}

var intervalFlag = &cli.DurationFlag{
	Name:  "interval",
	Value: 5 * time.Second,
	Usage: "chain polling interval",
}

var serverAddrFlag = &cli.StringFlag{
	Name:    "server-addr",
	Value:   "http://127.0.0.1:8080",
	Usage:   "registry server to send requests to",
	EnvVars: []string{"REGISTRY_SERVER_ADDR"},
}

func main() {
	globalFlags := []cli.Flag{flags.LogServiceFlagFn("registry-cli")}
	globalFlags = append(globalFlags, flags.ChainFlags...)
	globalFlags = append(globalFlags, flags.LogFlags...)

	app := &cli.App{
		Name:  "registry-cli",
		Usage: "Inspect and use the username registry",
		Flags: globalFlags,
		Commands: []*cli.Command{
			{
				Name:  "roots",
				Usage: "list accepted registration periods",
				Action: withRunner(func(cCtx *cli.Context, r *runner) error {
					return r.roots(cCtx.Context)
				}),
			},
			{
				Name:  "whoami",
				Usage: "show the username and claims of an account",
				Flags: []cli.Flag{accountFlag},
				Action: withRunner(func(cCtx *cli.Context, r *runner) error {
					return r.whoami(cCtx.Context, cCtx.String(accountFlag.Name))
				}),
			},
			{
				Name:      "check",
				Usage:     "look up who owns a username",
				ArgsUsage: "<username>",
				Action: withRunner(func(cCtx *cli.Context, r *runner) error {
					if cCtx.NArg() != 1 {
						return errors.New("expected one username")
					}
					return r.check(cCtx.Context, cCtx.Args().First())
				}),
			},
			{
				Name:      "add-root",
				Usage:     "open a registration period (admin only)",
				ArgsUsage: "<root>",
				Action: withRunner(func(cCtx *cli.Context, r *runner) error {
					if cCtx.NArg() != 1 {
						return errors.New("expected one root")
					}
					return r.addRoot(cCtx.Context, cCtx.Args().First())
				}),
			},
			{
				Name:      "register",
				Usage:     "register the key holder in a period",
				ArgsUsage: "<root>",
				Flags:     []cli.Flag{usernameFlag, proofFlag},
				Action: withRunner(func(cCtx *cli.Context, r *runner) error {
					if cCtx.NArg() != 1 {
						return errors.New("expected one root")
					}
					return r.register(cCtx.Context, cCtx.Args().First(), cCtx.String(usernameFlag.Name), cCtx.StringSlice(proofFlag.Name))
				}),
			},
			{
				Name:      "register-claim",
				Usage:     "register with a pasted \"username<TAB>proof\" claim, read from stdin when not given",
				ArgsUsage: "<root> [claim]",
				Action: withRunner(func(cCtx *cli.Context, r *runner) error {
					paste, err := pasteArg(cCtx)
					if err != nil {
						return err
					}
					return r.registerClaim(cCtx.Context, cCtx.Args().First(), paste)
				}),
			},
			{
				Name:  "deregister",
				Usage: "release the key holder's username",
				Action: withRunner(func(cCtx *cli.Context, r *runner) error {
					return r.deregister(cCtx.Context)
				}),
			},
			{
				Name:  "period",
				Usage: "prepare registration periods",
				Subcommands: []*cli.Command{
					{
						Name:  "build",
						Usage: "compute the root and claim set of a list of entries",
						Flags: []cli.Flag{inputFlag, outFlag},
						Action: func(cCtx *cli.Context) error {
							logger := flags.SetupLogger(cCtx)
							root, path, err := buildPeriod(cCtx.Context, cCtx.String(inputFlag.Name), cCtx.String(outFlag.Name), logger)
							if err != nil {
								return err
							}
							fmt.Fprintf(cCtx.App.Writer, "root: %s\nclaims: %s\n", root.Hex(), path)
							return nil
						},
					},
					{
						Name:      "publish",
						Usage:     "store a claim set in the --claims backends and open its period",
						ArgsUsage: "<claim set file>",
						Action: withRunner(func(cCtx *cli.Context, r *runner) error {
							if cCtx.NArg() != 1 {
								return errors.New("expected one claim set file")
							}
							data, err := os.ReadFile(cCtx.Args().First())
							if err != nil {
								return err
							}
							return r.publish(cCtx.Context, data)
						}),
					},
				},
			},
			{
				Name:  "watch",
				Usage: "follow new periods and username changes",
				Flags: []cli.Flag{accountFlag, intervalFlag},
				Action: func(cCtx *cli.Context) error {
					logger := flags.SetupLogger(cCtx)
					ethClient, client, err := flags.ConnectRegistry(cCtx, logger)
					if err != nil {
						return err
					}
					defer ethClient.Close()

					account, _ := client.Account()
					if raw := cCtx.String(accountFlag.Name); raw != "" {
						if !common.IsHexAddress(raw) {
							return fmt.Errorf("invalid account %q", raw)
						}
						account = common.HexToAddress(raw)
					}

					watcher := registry.NewWatcher(ethClient, client, account, cCtx.Duration(intervalFlag.Name), logger)
					return watcher.Run(cCtx.Context, func(update registry.Update) {
						printUpdate(cCtx.App.Writer, update)
					})
				},
			},
			{
				Name:  "remote",
				Usage: "use a registry server instead of the chain",
				Flags: []cli.Flag{serverAddrFlag},
				Subcommands: []*cli.Command{
					{
						Name: "roots",
						Action: withRemote(func(cCtx *cli.Context, r *remoteRunner) error {
							return r.roots(cCtx.Context)
						}),
					},
					{
						Name:  "whoami",
						Flags: []cli.Flag{accountFlag},
						Action: withRemote(func(cCtx *cli.Context, r *remoteRunner) error {
							return r.whoami(cCtx.Context, cCtx.String(accountFlag.Name))
						}),
					},
					{
						Name:      "check",
						ArgsUsage: "<username>",
						Action: withRemote(func(cCtx *cli.Context, r *remoteRunner) error {
							return r.check(cCtx.Context, cCtx.Args().First())
						}),
					},
					{
						Name:      "add-root",
						ArgsUsage: "<root>",
						Action: withRemote(func(cCtx *cli.Context, r *remoteRunner) error {
							return r.addRoot(cCtx.Context, cCtx.Args().First())
						}),
					},
					{
						Name:      "register",
						ArgsUsage: "<root> [claim]",
						Action: withRemote(func(cCtx *cli.Context, r *remoteRunner) error {
							return r.register(cCtx.Context, cCtx.Args().First(), cCtx.Args().Get(1))
						}),
					},
					{
						Name: "deregister",
						Action: withRemote(func(cCtx *cli.Context, r *remoteRunner) error {
							return r.deregister(cCtx.Context)
						}),
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// withRunner connects to the registry before running action.
func withRunner(action func(*cli.Context, *runner) error) cli.ActionFunc {
	return func(cCtx *cli.Context) error {
		logger := flags.SetupLogger(cCtx)
		ethClient, client, err := flags.ConnectRegistry(cCtx, logger)
		if err != nil {
			return err
		}
		defer ethClient.Close()

		r := &runner{registry: client, out: cCtx.App.Writer, log: logger}
		if len(cCtx.StringSlice(flags.ClaimsFlag.Name)) > 0 {
			backend, err := flags.ClaimBackend(cCtx, logger)
			if err != nil {
				return err
			}
			r.resolver = claims.NewResolver(backend, logger)
		}
		return action(cCtx, r)
	}
}

func withRemote(action func(*cli.Context, *remoteRunner) error) cli.ActionFunc {
	return func(cCtx *cli.Context) error {
		return action(cCtx, &remoteRunner{
			provider: clients.NewRegistryClient(cCtx.String(serverAddrFlag.Name)),
			out:      cCtx.App.Writer,
		})
	}
}

func pasteArg(cCtx *cli.Context) (string, error) {
	switch cCtx.NArg() {
	case 2:
		return cCtx.Args().Get(1), nil
	case 1:
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	default:
		return "", errors.New("expected a root and an optional claim")
	}
}

func printUpdate(out io.Writer, update registry.Update) {
	for _, root := range update.RootsAdded {
		fmt.Fprintf(out, "block %d: period %s open\n", update.Block, root.Hex())
	}
	if update.UsernameChanged {
		if update.Username == "" {
			fmt.Fprintf(out, "block %d: not registered\n", update.Block)
		} else {
			fmt.Fprintf(out, "block %d: registered as %s\n", update.Block, update.Username)
		}
	}
}
