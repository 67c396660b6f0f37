// Package interfaces defines core interfaces and types for the username
// registry, separating interface definitions from implementations.
//
// # Registry Interfaces
//
// RootReader: lists the merkle roots accepted by the contract. Every root opens
// a registration period.
//
// UsernameDirectory: resolves usernames to owners and owners to usernames.
//
// UsernameRegistry: the full contract surface, adding the transactions
// AddRoot, RegisterSelf and DeregisterSelf.
//
// # Storage Interfaces
//
// ClaimBackend: stores the off-chain claim set of a root across multiple
// backend types (file, S3, IPFS, GitHub, Vault). Claim sets are addressed by
// the root they commit to, so fetched content can be verified by recomputing
// the root.
//
// ClaimBackendFactory: creates claim backends from URI strings and combines
// them into a fallback chain.
//
// # Types
//
//   - Root: 32-byte merkle root
//   - ContractAddress: 20-byte Ethereum address
//
// Usernames travel on-chain as their UTF-8 bytes; see EncodeUsername and
// DecodeUsername.
package interfaces
