// Package storage provides pluggable backends for distributing claim sets.
//
// Every registration period's claim set is addressed by the root it commits
// to. Backends store it under the root prefix (the 0x-prefixed first four
// bytes of the root) so files published for a period are easy to find by hand:
//
//   - File system storage for local development and bundled fixtures
//   - S3-compatible storage for cloud deployments
//   - IPFS mutable file system on a local or remote node
//   - GitHub repository files, read-only
//   - Vault KV v2 secrets with token authentication
//
// # Storage URI Format
//
// Backends are specified using URI format:
//
//	[scheme]://[auth@]host[:port][/path][?params]
//
// Supported URI schemes:
//
//   - file:///var/lib/registry/claims/
//   - s3://bucket-name/prefix/?region=us-west-2
//   - ipfs://127.0.0.1:5001/?timeout=30s
//   - github://owner/repo/registrations?ref=main
//   - vault://vault.example.com:8200/secret/registry?token=...
//
// Backends do not verify what they serve. Callers check claim sets against
// their root, see claims.Resolver.
//
// # Multi-backend
//
// MultiClaimBackend combines backends: fetches fall through to the next
// backend until one has the claim set, stores go to every writable backend.
//
//	factory := storage.NewClaimBackendFactory(logger)
//	backend, err := factory.CreateMultiBackend([]interfaces.StorageBackendLocation{
//	    "file:///var/lib/registry/claims",
//	    "github://acme/registrations/post",
//	})
package storage
