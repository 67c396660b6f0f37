package main

import (
	"context"
	"io"

	"github.com/ruteri/username-registry/api"
	"github.com/ruteri/username-registry/interfaces"
)

// remoteRunner executes commands through a registry server's API.
type remoteRunner struct {
	provider api.RegistryProvider
	out      io.Writer
}

func (r *remoteRunner) roots(ctx context.Context) error {
	roots, err := r.provider.Roots(ctx)
	if err != nil {
		return err
	}
	printRoots(r.out, roots)
	return nil
}

func (r *remoteRunner) whoami(ctx context.Context, account string) error {
	view, err := r.provider.Dashboard(ctx, account)
	if err != nil {
		return err
	}
	printView(r.out, view)
	return nil
}

func (r *remoteRunner) check(ctx context.Context, username string) error {
	owner, err := r.provider.Owner(ctx, username)
	if err != nil {
		return err
	}
	printOwner(r.out, *owner)
	return nil
}

func (r *remoteRunner) addRoot(ctx context.Context, rawRoot string) error {
	root, err := interfaces.NewRootFromHex(rawRoot)
	if err != nil {
		return err
	}
	resp, err := r.provider.AddRoot(ctx, root)
	if err != nil {
		return err
	}
	printTx(r.out, resp.TxHash)
	return nil
}

// register lets the server pick the claim unless a paste is given.
func (r *remoteRunner) register(ctx context.Context, rawRoot, paste string) error {
	resp, err := r.provider.Register(ctx, api.RegisterRequest{Root: rawRoot, Claim: paste})
	if err != nil {
		return err
	}
	printTx(r.out, resp.TxHash)
	return nil
}

func (r *remoteRunner) deregister(ctx context.Context) error {
	resp, err := r.provider.Deregister(ctx)
	if err != nil {
		return err
	}
	printTx(r.out, resp.TxHash)
	return nil
}
