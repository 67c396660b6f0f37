package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ruteri/username-registry/api"
	"github.com/ruteri/username-registry/claims"
	"github.com/ruteri/username-registry/dashboard"
	"github.com/ruteri/username-registry/interfaces"
	"github.com/ruteri/username-registry/storage"
)

var ErrNoClaims = errors.New("no --claims backend configured")

// runner executes commands against the registry contract.
type runner struct {
	registry interfaces.UsernameRegistry
	resolver *claims.Resolver
	out      io.Writer
	log      *slog.Logger
}

func (r *runner) roots(ctx context.Context) error {
	roots, err := r.registry.Roots(ctx)
	if err != nil {
		return err
	}

	infos := make([]api.RootInfo, len(roots))
	for i, root := range roots {
		infos[i] = api.RootInfo{Index: i, Root: root, Prefix: interfaces.RootPrefix(root)}
	}
	printRoots(r.out, infos)
	return nil
}

// whoami prints the dashboard view of account, defaulting to the key holder.
func (r *runner) whoami(ctx context.Context, account string) error {
	if r.resolver == nil {
		return ErrNoClaims
	}
	if account == "" {
		if sender, ok := r.registry.Account(); ok {
			account = sender.Hex()
		}
	}

	view, err := dashboard.NewComposer(r.registry, r.resolver, r.log).Compose(ctx, dashboard.Request{Account: account})
	if err != nil {
		return err
	}
	printView(r.out, view)
	return nil
}

func (r *runner) check(ctx context.Context, username string) error {
	owner, err := r.registry.UsernameToOwner(ctx, username)
	if err != nil {
		return err
	}
	printOwner(r.out, api.OwnerResponse{
		Username:   username,
		Owner:      owner,
		Registered: owner != (common.Address{}),
	})
	return nil
}

func (r *runner) addRoot(ctx context.Context, rawRoot string) error {
	root, err := interfaces.NewRootFromHex(rawRoot)
	if err != nil {
		return err
	}
	tx, err := r.registry.AddRoot(ctx, root)
	if err != nil {
		return err
	}
	printTx(r.out, tx.Hash())
	return nil
}

// register registers the key holder under root. Without a username the
// key holder's claim is looked up in the published claim set.
func (r *runner) register(ctx context.Context, rawRoot, username string, rawProof []string) error {
	root, err := interfaces.NewRootFromHex(rawRoot)
	if err != nil {
		return err
	}

	var proof []common.Hash
	if username != "" {
		for _, p := range rawProof {
			h, err := interfaces.NewRootFromHex(p)
			if err != nil {
				return fmt.Errorf("invalid proof element %q: %w", p, err)
			}
			proof = append(proof, common.Hash(h))
		}
	} else {
		claim, err := r.ownClaim(ctx, root)
		if err != nil {
			return err
		}
		username, proof = claim.Username, claim.Proof
	}

	return r.sendRegister(ctx, root, username, proof)
}

// registerClaim registers with a pasted "username<TAB>proof" line.
func (r *runner) registerClaim(ctx context.Context, rawRoot, paste string) error {
	root, err := interfaces.NewRootFromHex(rawRoot)
	if err != nil {
		return err
	}
	username, proof, err := claims.ParseClaimPaste(strings.TrimRight(paste, "\r\n"))
	if err != nil {
		return err
	}
	return r.sendRegister(ctx, root, username, proof)
}

func (r *runner) deregister(ctx context.Context) error {
	tx, err := r.registry.DeregisterSelf(ctx)
	if err != nil {
		return err
	}
	printTx(r.out, tx.Hash())
	return nil
}

// publish stores a claim set file and opens its period on chain.
// The root is recomputed from the file's entries and every proof is checked against it.
func (r *runner) publish(ctx context.Context, data []byte) error {
	if r.resolver == nil {
		return ErrNoClaims
	}

	set, err := claims.ParseClaimSet(data)
	if err != nil {
		return err
	}

	entries := make([]claims.Entry, len(set))
	for i, claim := range set {
		entries[i] = claims.Entry{Address: claim.Address, Username: claim.Username}
	}
	root, _, err := claims.BuildPeriod(entries)
	if err != nil {
		return err
	}

	if err := r.resolver.Publish(ctx, root, set); err != nil {
		return err
	}
	r.log.Info("Claim set published", "root", root.Hex())

	tx, err := r.registry.AddRoot(ctx, root)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "root: %s\n", root.Hex())
	printTx(r.out, tx.Hash())
	return nil
}

func (r *runner) ownClaim(ctx context.Context, root interfaces.Root) (*claims.Claim, error) {
	if r.resolver == nil {
		return nil, ErrNoClaims
	}
	account, ok := r.registry.Account()
	if !ok {
		return nil, fmt.Errorf("no --privkey-file configured")
	}

	set, err := r.resolver.ClaimsFor(ctx, root)
	if err != nil {
		return nil, err
	}
	claim, found := set.Find(account)
	if !found {
		return nil, fmt.Errorf("no claim for %s under root %s", account.Hex(), interfaces.ShortRoot(root, 10))
	}
	return claim, nil
}

func (r *runner) sendRegister(ctx context.Context, root interfaces.Root, username string, proof []common.Hash) error {
	tx, err := r.registry.RegisterSelf(ctx, root, username, proof)
	if err != nil {
		return err
	}
	printTx(r.out, tx.Hash())
	return nil
}

// buildPeriod commits to the entries in input and writes the claim set to outDir.
func buildPeriod(ctx context.Context, input, outDir string, log *slog.Logger) (interfaces.Root, string, error) {
	data, err := os.ReadFile(input)
	if err != nil {
		return interfaces.Root{}, "", err
	}
	entries, err := claims.ParseEntries(data)
	if err != nil {
		return interfaces.Root{}, "", err
	}
	root, set, err := claims.BuildPeriod(entries)
	if err != nil {
		return interfaces.Root{}, "", err
	}

	backend, err := storage.NewFileBackend(outDir, log)
	if err != nil {
		return interfaces.Root{}, "", err
	}
	if err := claims.NewResolver(backend, log).Publish(ctx, root, set); err != nil {
		return interfaces.Root{}, "", err
	}
	return root, filepath.Join(outDir, interfaces.RootPrefix(root)+".json"), nil
}

func printRoots(out io.Writer, roots []api.RootInfo) {
	if len(roots) == 0 {
		fmt.Fprintln(out, "no registration periods")
		return
	}
	for _, root := range roots {
		fmt.Fprintf(out, "%d\t%s\t%s\n", root.Index, root.Prefix, root.Root.Hex())
	}
}

func printView(out io.Writer, view *dashboard.View) {
	if view.Account == "" {
		fmt.Fprintln(out, "account: none")
	} else {
		fmt.Fprintf(out, "account: %s\n", view.Account)
	}
	if view.Welcome != "" {
		fmt.Fprintf(out, "username: %s\n", view.Welcome)
	}

	for _, card := range view.Roots {
		fmt.Fprintf(out, "[%d] %s\n", card.Index, card.Short)
		for _, notice := range card.Notices {
			fmt.Fprintf(out, "    %s: %s\n", notice.Kind, notice.Text)
		}
		if card.CanRegister && card.Claim != nil {
			fmt.Fprintf(out, "    claim: %s\n", card.Claim.Paste())
		}
	}
}

func printOwner(out io.Writer, owner api.OwnerResponse) {
	if !owner.Registered {
		fmt.Fprintf(out, "%s: owner: none\n", owner.Username)
		return
	}
	fmt.Fprintf(out, "%s: owner: %s\n", owner.Username, owner.Owner.Hex())
}

func printTx(out io.Writer, hash common.Hash) {
	fmt.Fprintf(out, "tx: %s\n", hash.Hex())
}

