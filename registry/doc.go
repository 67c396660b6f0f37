// Package registry provides access to the on-chain username registry contract.
//
// The registry stores an append-only list of merkle roots, one per registration
// period, and a two-way mapping between accounts and usernames. An account may
// claim the username committed to it under any accepted root by presenting the
// merkle proof of its (address, username) leaf.
//
// OnchainRegistryClient implements interfaces.UsernameRegistry on top of the
// generated contract binding. Read-only methods can be used right away;
// state-modifying methods require SetTransactOpts with a signing transactor
// and return ErrNoTransactOpts otherwise.
//
// MockRegistryClient is an in-memory registry enforcing the same rules as the
// contract. It backs tests and the development mode of the server.
//
// Watcher polls the chain head and reports new roots and changes of the
// watched account's username.
//
// # Usage Example
//
//	client, err := ethclient.Dial(rpcAddr)
//	if err != nil {
//	    return err
//	}
//
//	reg, err := registry.NewOnchainRegistryClient(client, contractAddress)
//	if err != nil {
//	    return err
//	}
//
//	auth, _ := bind.NewKeyedTransactorWithChainID(privateKey, chainID)
//	reg.SetTransactOpts(auth)
//
//	roots, err := reg.Roots(ctx)
//	tx, err := reg.RegisterSelf(ctx, roots[0], "peach", proof)
package registry
