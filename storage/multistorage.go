package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ruteri/username-registry/interfaces"
	"github.com/ruteri/username-registry/metrics"
)

// MultiClaimBackend implements interfaces.ClaimBackend over several backends with fallback.
type MultiClaimBackend struct {
	backends []interfaces.ClaimBackend
	log      *slog.Logger
}

// NewMultiClaimBackend creates a new multi-backend trying backends in order.
func NewMultiClaimBackend(backends []interfaces.ClaimBackend, logger *slog.Logger) *MultiClaimBackend {
	if logger == nil {
		logger = slog.Default()
	}

	return &MultiClaimBackend{
		backends: backends,
		log:      logger,
	}
}

// Fetch returns the claim set from the first available backend that has it.
// ErrContentNotFound is returned only when every reachable backend reported it missing.
func (m *MultiClaimBackend) Fetch(ctx context.Context, root interfaces.Root) ([]byte, error) {
	start := time.Now()
	prefix := interfaces.RootPrefix(root)

	var errs []error
	notFound := 0
	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			metrics.ClaimFetch(backend.Name(), "unavailable")
			m.log.Debug("Backend unavailable",
				slog.String("backend_name", backend.Name()),
				slog.String("root", prefix))
			continue
		}

		data, err := backend.Fetch(ctx, root)
		if err == nil {
			metrics.ClaimFetch(backend.Name(), "hit")
			m.log.Debug("Fetched claim set",
				slog.String("backend_name", backend.Name()),
				slog.String("root", prefix),
				slog.Duration("duration", time.Since(start)))
			return data, nil
		}

		if errors.Is(err, interfaces.ErrContentNotFound) {
			metrics.ClaimFetch(backend.Name(), "miss")
			notFound++
		} else {
			metrics.ClaimFetch(backend.Name(), "error")
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
		}
		m.log.Debug("Failed to fetch from backend",
			slog.String("backend_name", backend.Name()),
			slog.String("root", prefix),
			"err", err)
	}

	if len(errs) == 0 && notFound > 0 {
		return nil, interfaces.ErrContentNotFound
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: no backend reachable", interfaces.ErrBackendUnavailable)
	}

	m.log.Warn("All backends failed to fetch claim set",
		slog.String("root", prefix),
		slog.Int("failed_backends", len(errs)),
		slog.Duration("duration", time.Since(start)))

	return nil, fmt.Errorf("all backends failed to fetch %s: %w", prefix, errors.Join(errs...))
}

// Store saves the claim set to every available writable backend.
// It succeeds when at least one backend stored it.
func (m *MultiClaimBackend) Store(ctx context.Context, root interfaces.Root, data []byte) error {
	start := time.Now()
	var stored int
	var errs []error

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("Backend unavailable", slog.String("backend_name", backend.Name()))
			continue
		}

		if err := backend.Store(ctx, root, data); err != nil {
			if !errors.Is(err, interfaces.ErrReadOnlyBackend) {
				errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
			}
			m.log.Debug("Failed to store to backend",
				slog.String("backend_name", backend.Name()),
				"err", err)
			continue
		}
		stored++
	}

	if stored == 0 {
		m.log.Error("All backends failed to store claim set",
			slog.Int("failed_backends", len(errs)),
			slog.Duration("duration", time.Since(start)))
		if len(errs) == 0 {
			return fmt.Errorf("%w: no writable backend available", interfaces.ErrBackendUnavailable)
		}
		return fmt.Errorf("all backends failed to store claim set: %w", errors.Join(errs...))
	}

	m.log.Info("Stored claim set",
		slog.String("root", interfaces.RootPrefix(root)),
		slog.Int("backends", stored),
		slog.Duration("duration", time.Since(start)))

	return nil
}

// Available checks if any backend is available
func (m *MultiClaimBackend) Available(ctx context.Context) bool {
	for _, backend := range m.backends {
		if backend.Available(ctx) {
			return true
		}
	}
	return false
}

// Name returns the name of this backend
func (m *MultiClaimBackend) Name() string {
	return "multi-storage"
}

// LocationURI returns the combined location of all backends.
func (m *MultiClaimBackend) LocationURI() string {
	var locations []string
	for _, backend := range m.backends {
		locations = append(locations, backend.LocationURI())
	}

	return "multi:[" + strings.Join(locations, ",") + "]"
}
