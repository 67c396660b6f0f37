// Package registry provides an interface to interact with the on-chain
// username registry contract.
package registry

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ruteri/username-registry/bindings/registry"
	"github.com/ruteri/username-registry/interfaces"
	"github.com/ruteri/username-registry/metrics"
)

// ErrNoTransactOpts is returned when a transaction is attempted without first setting transaction options.
var ErrNoTransactOpts = errors.New("no authorized transactor available")

// OnchainRegistryClient implements the interfaces.UsernameRegistry interface for
// interacting with a Registry smart contract deployed on a blockchain.
type OnchainRegistryClient struct {
	contract *registry.Registry
	client   bind.ContractBackend
	address  common.Address
	auth     *bind.TransactOpts
}

// NewOnchainRegistryClient creates a new client for interacting with the Registry contract
// at the specified address.
func NewOnchainRegistryClient(client bind.ContractBackend, address common.Address) (*OnchainRegistryClient, error) {
	contract, err := registry.NewRegistry(address, client)
	if err != nil {
		return nil, err
	}

	return &OnchainRegistryClient{
		contract: contract,
		client:   client,
		address:  address,
	}, nil
}

// SetTransactOpts sets the transaction options required for functions that modify state.
// This must be called before using any methods that send transactions to the blockchain.
func (c *OnchainRegistryClient) SetTransactOpts(auth *bind.TransactOpts) {
	c.auth = auth
}

// Account returns the transactor address, if one is set.
func (c *OnchainRegistryClient) Account() (common.Address, bool) {
	if c.auth == nil {
		return common.Address{}, false
	}
	return c.auth.From, true
}

// Address returns the contract address.
func (c *OnchainRegistryClient) Address() common.Address {
	return c.address
}

// RootsCount returns the number of roots accepted by the contract.
func (c *OnchainRegistryClient) RootsCount(ctx context.Context) (uint64, error) {
	defer metrics.ObserveContractCall("getRootsCount")()

	count, err := c.contract.GetRootsCount(&bind.CallOpts{Context: ctx})
	if err != nil {
		metrics.ContractCallFailed("getRootsCount")
		return 0, err
	}
	if !count.IsUint64() {
		return 0, fmt.Errorf("roots count overflows uint64: %s", count)
	}
	return count.Uint64(), nil
}

// Root returns the root at index.
func (c *OnchainRegistryClient) Root(ctx context.Context, index uint64) (interfaces.Root, error) {
	defer metrics.ObserveContractCall("roots")()

	root, err := c.contract.Roots(&bind.CallOpts{Context: ctx}, new(big.Int).SetUint64(index))
	if err != nil {
		metrics.ContractCallFailed("roots")
		return interfaces.Root{}, err
	}
	return interfaces.Root(root), nil
}

// Roots reads the count and then every root, in index order.
func (c *OnchainRegistryClient) Roots(ctx context.Context) ([]interfaces.Root, error) {
	count, err := c.RootsCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not get roots count: %w", err)
	}

	roots := make([]interfaces.Root, 0, count)
	for i := uint64(0); i < count; i++ {
		root, err := c.Root(ctx, i)
		if err != nil {
			return nil, fmt.Errorf("could not get root %d: %w", i, err)
		}
		roots = append(roots, root)
	}
	return roots, nil
}

// OwnerToUsername returns the username registered by owner, or "" if none.
func (c *OnchainRegistryClient) OwnerToUsername(ctx context.Context, owner common.Address) (string, error) {
	defer metrics.ObserveContractCall("ownerToUsername")()

	raw, err := c.contract.OwnerToUsername(&bind.CallOpts{Context: ctx}, owner)
	if err != nil {
		metrics.ContractCallFailed("ownerToUsername")
		return "", err
	}
	return interfaces.DecodeUsername(raw), nil
}

// UsernameToOwner returns the owner of username, or the zero address if it is unowned.
func (c *OnchainRegistryClient) UsernameToOwner(ctx context.Context, username string) (common.Address, error) {
	encoded, err := interfaces.EncodeUsername(username)
	if err != nil {
		return common.Address{}, err
	}

	defer metrics.ObserveContractCall("usernameToOwner")()

	owner, err := c.contract.UsernameToOwner(&bind.CallOpts{Context: ctx}, encoded)
	if err != nil {
		metrics.ContractCallFailed("usernameToOwner")
		return common.Address{}, err
	}
	return owner, nil
}

// AddRoot submits a new registration period root.
// Returns the transaction and an error if the transaction could not be sent.
func (c *OnchainRegistryClient) AddRoot(ctx context.Context, root interfaces.Root) (*types.Transaction, error) {
	opts, err := c.transactOpts(ctx)
	if err != nil {
		return nil, err
	}

	defer metrics.ObserveContractCall("addRoot")()

	tx, err := c.contract.AddRoot(opts, root)
	if err != nil {
		metrics.ContractCallFailed("addRoot")
	}
	return tx, err
}

// RegisterSelf registers the transactor's account under username against root.
// Returns the transaction and an error if the transaction could not be sent.
func (c *OnchainRegistryClient) RegisterSelf(ctx context.Context, root interfaces.Root, username string, proof []common.Hash) (*types.Transaction, error) {
	opts, err := c.transactOpts(ctx)
	if err != nil {
		return nil, err
	}

	encoded, err := interfaces.EncodeUsername(username)
	if err != nil {
		return nil, err
	}

	contractProof := make([][32]byte, len(proof))
	for i, p := range proof {
		contractProof[i] = p
	}

	defer metrics.ObserveContractCall("registerSelf")()

	tx, err := c.contract.RegisterSelf(opts, root, encoded, contractProof)
	if err != nil {
		metrics.ContractCallFailed("registerSelf")
	}
	return tx, err
}

// DeregisterSelf releases the transactor's username.
// Returns the transaction and an error if the transaction could not be sent.
func (c *OnchainRegistryClient) DeregisterSelf(ctx context.Context) (*types.Transaction, error) {
	opts, err := c.transactOpts(ctx)
	if err != nil {
		return nil, err
	}

	defer metrics.ObserveContractCall("deregisterSelf")()

	tx, err := c.contract.DeregisterSelf(opts)
	if err != nil {
		metrics.ContractCallFailed("deregisterSelf")
	}
	return tx, err
}

// transactOpts returns a copy of the configured options bound to ctx.
func (c *OnchainRegistryClient) transactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	if c.auth == nil {
		return nil, ErrNoTransactOpts
	}

	opts := *c.auth
	opts.Context = ctx
	return &opts, nil
}

// RegistryFactory creates UsernameRegistry instances for different contract addresses.
type RegistryFactory struct {
	client bind.ContractBackend
	auth   *bind.TransactOpts
}

// NewRegistryFactory creates a new factory for registry clients.
// auth may be nil, in which case the produced clients are read-only.
func NewRegistryFactory(client bind.ContractBackend, auth *bind.TransactOpts) *RegistryFactory {
	return &RegistryFactory{client: client, auth: auth}
}

// RegistryFor returns a UsernameRegistry instance for the specified contract address.
func (f *RegistryFactory) RegistryFor(address interfaces.ContractAddress) (interfaces.UsernameRegistry, error) {
	client, err := NewOnchainRegistryClient(f.client, address.Common())
	if err != nil {
		return nil, err
	}
	if f.auth != nil {
		client.SetTransactOpts(f.auth)
	}
	return client, nil
}
