package interfaces

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

var (
	// ErrContentNotFound is returned when requested content cannot be found in the storage backend.
	ErrContentNotFound = errors.New("content not found")

	// ErrBackendUnavailable is returned when a storage backend is not accessible.
	// This could be due to network issues, authentication failures, or service outages.
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrInvalidLocationURI is returned when a storage location URI is malformed or unsupported.
	// URIs must follow the format: [scheme]://[auth@]host[:port][/path][?params]
	ErrInvalidLocationURI = errors.New("invalid storage location URI")

	// ErrReadOnlyBackend is returned by Store on backends that cannot be written.
	ErrReadOnlyBackend = errors.New("storage backend is read-only")
)

// StorageBackendLocation is the URI of a claim backend.
type StorageBackendLocation string

// NewStorageBackendLocation validates a URI string.
func NewStorageBackendLocation(uri string) (StorageBackendLocation, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidLocationURI, err)
	}

	switch parsed.Scheme {
	case "file", "s3", "ipfs", "github", "vault":
	default:
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidLocationURI, parsed.Scheme)
	}

	return StorageBackendLocation(uri), nil
}

// ClaimBackend stores the registration claim set of each root.
// Claim sets are addressed by the root they commit to.
type ClaimBackend interface {
	// Fetch retrieves the serialized claim set of root.
	Fetch(ctx context.Context, root Root) ([]byte, error)

	// Store saves the serialized claim set of root.
	Store(ctx context.Context, root Root, data []byte) error

	// Available checks if backend is accessible.
	Available(ctx context.Context) bool

	// Name returns identifier for logging.
	Name() string

	// LocationURI returns URI identifying this backend.
	LocationURI() string
}

// ClaimBackendFactory creates claim backends.
type ClaimBackendFactory interface {
	// BackendFor creates backend from URI.
	// Supports file://, s3://, ipfs://, github://, vault://
	BackendFor(locationURI StorageBackendLocation) (ClaimBackend, error)

	// CreateMultiBackend creates aggregated storage backend.
	CreateMultiBackend(locationURIs []StorageBackendLocation) (ClaimBackend, error)
}
