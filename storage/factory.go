package storage

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/ruteri/username-registry/interfaces"
)

// objectName is the file name of a root's claim set in every backend.
func objectName(root interfaces.Root) string {
	return interfaces.RootPrefix(root) + ".json"
}

// ClaimBackendFactory creates claim backends from URI strings and manages
// multi-backend configurations for redundant storage.
type ClaimBackendFactory struct {
	log *slog.Logger
}

// NewClaimBackendFactory creates a new factory instance.
func NewClaimBackendFactory(logger *slog.Logger) *ClaimBackendFactory {
	return &ClaimBackendFactory{log: logger}
}

// BackendFor creates a claim backend from a location URI.
// The URI format should be [scheme]://[auth@]host[:port][/path][?params]
//
// Supported schemes:
//   - file:// - Local directory of <root prefix>.json files
//   - s3:// - Amazon S3 or compatible object storage
//   - ipfs:// - IPFS node mutable file system
//   - vault:// - HashiCorp Vault KV v2
//   - github:// - Read-only files in a GitHub repository
func (sf *ClaimBackendFactory) BackendFor(locationURI interfaces.StorageBackendLocation) (interfaces.ClaimBackend, error) {
	u, err := url.Parse(string(locationURI))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrInvalidLocationURI, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "github":
		return sf.createGitHubBackend(u)
	case "ipfs":
		return sf.createIPFSBackend(u)
	case "s3":
		return sf.createS3Backend(u)
	case "vault":
		return sf.createVaultBackend(u)
	case "file":
		return sf.createFileBackend(u)
	default:
		return nil, fmt.Errorf("%w: unsupported backend scheme %q", interfaces.ErrInvalidLocationURI, u.Scheme)
	}
}

// CreateMultiBackend creates a multi-backend from a list of location URIs.
// Invalid URIs are logged and skipped. Returns an error if no backend could be created.
func (sf *ClaimBackendFactory) CreateMultiBackend(locationURIs []interfaces.StorageBackendLocation) (interfaces.ClaimBackend, error) {
	backends := make([]interfaces.ClaimBackend, 0, len(locationURIs))

	for _, uri := range locationURIs {
		backend, err := sf.BackendFor(uri)
		if err != nil {
			sf.log.Warn("Failed to create claim backend",
				"err", err,
				slog.String("locationURI", string(uri)))
			continue
		}
		backends = append(backends, backend)
	}

	if len(backends) == 0 {
		return nil, fmt.Errorf("no valid claim backends created")
	}

	return NewMultiClaimBackend(backends, sf.log), nil
}

// createGitHubBackend creates a read-only GitHub backend.
// URI format: github://owner/repo/path/to/dir?ref=main
func (sf *ClaimBackendFactory) createGitHubBackend(u *url.URL) (interfaces.ClaimBackend, error) {
	sf.log.Debug("Creating GitHub backend", slog.String("uri", u.String()))

	owner := u.Host
	parts := strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)
	if owner == "" || parts[0] == "" {
		return nil, fmt.Errorf("%w: expected github://owner/repo[/path]", interfaces.ErrInvalidLocationURI)
	}

	var dir string
	if len(parts) == 2 {
		dir = parts[1]
	}

	return NewGitHubBackend(owner, parts[0], dir, u.Query().Get("ref"), sf.log), nil
}

// createIPFSBackend creates an IPFS backend.
// URI format: ipfs://host:port/?timeout=30s
func (sf *ClaimBackendFactory) createIPFSBackend(u *url.URL) (interfaces.ClaimBackend, error) {
	sf.log.Debug("Creating IPFS backend", slog.String("uri", u.String()))

	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("%w: missing IPFS host", interfaces.ErrInvalidLocationURI)
	}
	port := u.Port()
	if port == "" {
		port = "5001" // Default IPFS API port
	}

	timeout := 30 * time.Second
	if raw := u.Query().Get("timeout"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid timeout %q", interfaces.ErrInvalidLocationURI, raw)
		}
		timeout = parsed
	}

	return NewIPFSBackend(host, port, timeout, sf.log), nil
}

// createS3Backend creates an S3 or S3-compatible backend.
// URI format: s3://[ACCESS_KEY:SECRET_KEY@]bucket-name/path/?region=us-west-2&endpoint=custom.s3.com
func (sf *ClaimBackendFactory) createS3Backend(u *url.URL) (interfaces.ClaimBackend, error) {
	sf.log.Debug("Creating S3 backend", slog.String("bucket", u.Host))

	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing S3 bucket", interfaces.ErrInvalidLocationURI)
	}

	query := u.Query()
	region := query.Get("region")
	if region == "" {
		region = "us-east-1"
	}

	var accessKey, secretKey string
	if u.User != nil {
		accessKey = u.User.Username()
		secretKey, _ = u.User.Password()
	}

	return NewS3Backend(u.Host, u.Path, region, query.Get("endpoint"), accessKey, secretKey, sf.log)
}

// createVaultBackend creates a Vault KV v2 backend.
// URI format: vault://host:port/mount/path?token=...&tls=false
// Without a token parameter the client falls back to VAULT_TOKEN.
func (sf *ClaimBackendFactory) createVaultBackend(u *url.URL) (interfaces.ClaimBackend, error) {
	sf.log.Debug("Creating Vault backend", slog.String("host", u.Host))

	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing Vault host", interfaces.ErrInvalidLocationURI)
	}

	parts := strings.SplitN(strings.Trim(u.Path, "/"), "/", 2)
	if parts[0] == "" {
		return nil, fmt.Errorf("%w: missing Vault mount path", interfaces.ErrInvalidLocationURI)
	}
	var dataPath string
	if len(parts) == 2 {
		dataPath = parts[1]
	}

	query := u.Query()
	scheme := "https"
	if query.Get("tls") == "false" {
		scheme = "http"
	}

	return NewVaultBackend(fmt.Sprintf("%s://%s", scheme, u.Host), parts[0], dataPath, query.Get("token"), sf.log)
}

// createFileBackend creates a file system backend.
// URI format: file:///absolute/path/ or file://./relative/path/
func (sf *ClaimBackendFactory) createFileBackend(u *url.URL) (interfaces.ClaimBackend, error) {
	sf.log.Debug("Creating file backend", slog.String("uri", u.String()))

	path := u.Path
	if u.Host != "" {
		path = u.Host + "/" + strings.TrimPrefix(path, "/")
	}

	if path == "" {
		return nil, fmt.Errorf("%w: empty path in file URI %s", interfaces.ErrInvalidLocationURI, u.String())
	}

	return NewFileBackend(path, sf.log)
}
