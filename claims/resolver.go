package claims

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ruteri/username-registry/interfaces"
)

// Resolver loads and publishes claim sets through a claim backend.
type Resolver struct {
	backend interfaces.ClaimBackend
	log     *slog.Logger
}

func NewResolver(backend interfaces.ClaimBackend, log *slog.Logger) *Resolver {
	return &Resolver{backend: backend, log: log}
}

// ClaimsFor returns the verified claim set of root.
// ErrNoClaimSet is returned when the backend holds nothing for the root.
func (r *Resolver) ClaimsFor(ctx context.Context, root interfaces.Root) (ClaimSet, error) {
	data, err := r.backend.Fetch(ctx, root)
	if errors.Is(err, interfaces.ErrContentNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNoClaimSet, interfaces.RootPrefix(root))
	}
	if err != nil {
		return nil, fmt.Errorf("could not fetch claim set from %s: %w", r.backend.Name(), err)
	}

	set, err := ParseClaimSet(data)
	if err != nil {
		return nil, err
	}

	if err := set.Verify(root); err != nil {
		r.log.Warn("Rejecting claim set", "root", root.Hex(), "backend", r.backend.Name(), "err", err)
		return nil, err
	}

	return set, nil
}

// Publish verifies set against root and stores it.
func (r *Resolver) Publish(ctx context.Context, root interfaces.Root, set ClaimSet) error {
	if err := set.Verify(root); err != nil {
		return err
	}

	data, err := set.Marshal()
	if err != nil {
		return fmt.Errorf("could not encode claim set: %w", err)
	}

	if err := r.backend.Store(ctx, root, data); err != nil {
		return fmt.Errorf("could not store claim set in %s: %w", r.backend.Name(), err)
	}

	r.log.Info("Published claim set", "root", root.Hex(), "claims", len(set), "backend", r.backend.Name())
	return nil
}
