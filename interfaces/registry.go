package interfaces

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// RootReader exposes the registration periods published on-chain.
type RootReader interface {
	// RootsCount returns the number of accepted roots.
	RootsCount(ctx context.Context) (uint64, error)

	// Root returns the root at index.
	Root(ctx context.Context, index uint64) (Root, error)

	// Roots returns all accepted roots in publication order.
	Roots(ctx context.Context) ([]Root, error)
}

// UsernameDirectory resolves usernames and their owners.
type UsernameDirectory interface {
	// OwnerToUsername returns the username registered by owner, or "" if none.
	OwnerToUsername(ctx context.Context, owner common.Address) (string, error)

	// UsernameToOwner returns the owner of username, or the zero address if unowned.
	UsernameToOwner(ctx context.Context, username string) (common.Address, error)
}

// UsernameRegistry combines the read and write surface of the registry contract.
type UsernameRegistry interface {
	RootReader
	UsernameDirectory

	// AddRoot opens a new registration period. Restricted to the administrator role on-chain.
	AddRoot(ctx context.Context, root Root) (*types.Transaction, error)

	// RegisterSelf registers the sending account under username against root.
	RegisterSelf(ctx context.Context, root Root, username string, proof []common.Hash) (*types.Transaction, error)

	// DeregisterSelf releases the sending account's username.
	DeregisterSelf(ctx context.Context) (*types.Transaction, error)

	// Account returns the address transactions are sent from, if a transactor is configured.
	Account() (common.Address, bool)
}

// RegistryFactory creates UsernameRegistry instances.
type RegistryFactory interface {
	// RegistryFor returns a registry for the specified contract.
	RegistryFor(ContractAddress) (UsernameRegistry, error)
}
