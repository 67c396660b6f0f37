package registry

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ruteri/username-registry/interfaces"
)

// HeadReader is the part of an Ethereum client the watcher needs.
// *ethclient.Client and the simulated backend client both satisfy it.
type HeadReader interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// Update describes registry changes observed at Block.
type Update struct {
	Block uint64

	// RootsCount is the number of accepted roots at Block.
	RootsCount uint64

	// RootsAdded holds the roots published since the previous update.
	RootsAdded []interfaces.Root

	// Username is the watched account's username at Block.
	Username string

	// UsernameChanged is set when the account registered or deregistered.
	UsernameChanged bool
}

// Watcher polls the chain head and reports root and username changes for one account.
type Watcher struct {
	heads    HeadReader
	registry interfaces.UsernameRegistry
	account  common.Address
	interval time.Duration
	log      *slog.Logger

	initialized bool
	lastBlock   uint64
	rootsCount  uint64
	username    string
}

// NewWatcher creates a watcher for account. The zero address disables username tracking.
func NewWatcher(heads HeadReader, registry interfaces.UsernameRegistry, account common.Address, interval time.Duration, log *slog.Logger) *Watcher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Watcher{
		heads:    heads,
		registry: registry,
		account:  account,
		interval: interval,
		log:      log,
	}
}

// Poll checks the chain once. It returns nil when nothing changed since the previous poll.
// The first successful poll always returns the full state.
func (w *Watcher) Poll(ctx context.Context) (*Update, error) {
	head, err := w.heads.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("could not get chain head: %w", err)
	}

	block := head.Number.Uint64()
	if w.initialized && block == w.lastBlock {
		return nil, nil
	}

	count, err := w.registry.RootsCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not get roots count: %w", err)
	}

	var username string
	if w.account != (common.Address{}) {
		username, err = w.registry.OwnerToUsername(ctx, w.account)
		if err != nil {
			return nil, fmt.Errorf("could not get username: %w", err)
		}
	}

	update := &Update{
		Block:           block,
		RootsCount:      count,
		Username:        username,
		UsernameChanged: !w.initialized || username != w.username,
	}

	from := w.rootsCount
	if !w.initialized || count < from {
		from = 0
	}
	for i := from; i < count; i++ {
		root, err := w.registry.Root(ctx, i)
		if err != nil {
			return nil, fmt.Errorf("could not get root %d: %w", i, err)
		}
		update.RootsAdded = append(update.RootsAdded, root)
	}

	changed := !w.initialized || count != w.rootsCount || update.UsernameChanged

	w.initialized = true
	w.lastBlock = block
	w.rootsCount = count
	w.username = username

	if !changed {
		return nil, nil
	}
	return update, nil
}

// Run polls until ctx is cancelled, calling fn for every update.
// Poll errors are logged and retried on the next tick.
func (w *Watcher) Run(ctx context.Context, fn func(Update)) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		update, err := w.Poll(ctx)
		if err != nil {
			w.log.Warn("Registry poll failed", "err", err)
		} else if update != nil {
			w.log.Debug("Registry changed",
				slog.Uint64("block", update.Block),
				slog.Uint64("rootsCount", update.RootsCount),
				slog.Int("rootsAdded", len(update.RootsAdded)),
				slog.Bool("usernameChanged", update.UsernameChanged))
			fn(*update)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
