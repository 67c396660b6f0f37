package api

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ruteri/username-registry/claims"
	"github.com/ruteri/username-registry/dashboard"
	"github.com/ruteri/username-registry/interfaces"
)

// RootInfo describes one accepted root.
type RootInfo struct {
	Index  int             `json:"index"`
	Root   interfaces.Root `json:"root"`
	Prefix string          `json:"prefix"`
}

// OwnerResponse is the result of a username ownership lookup.
type OwnerResponse struct {
	Username   string         `json:"username"`
	Owner      common.Address `json:"owner"`
	Registered bool           `json:"registered"`
}

// AddRootRequest opens a new registration period.
type AddRootRequest struct {
	Root string `json:"root"`
}

// RegisterRequest registers the server's account against Root.
//
// The username and proof are taken, in order of precedence, from Username and
// Proof, from Claim in the "username<TAB>proof" paste format, or from the
// published claim set of Root.
type RegisterRequest struct {
	Root     string        `json:"root"`
	Username string        `json:"username,omitempty"`
	Proof    []common.Hash `json:"proof,omitempty"`
	Claim    string        `json:"claim,omitempty"`
}

// TxResponse is returned by every state-changing endpoint.
type TxResponse struct {
	TxHash common.Hash `json:"tx_hash"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RegistryProvider is the registry server API as seen by its clients.
type RegistryProvider interface {
	Roots(ctx context.Context) ([]RootInfo, error)
	Dashboard(ctx context.Context, account string) (*dashboard.View, error)
	Owner(ctx context.Context, username string) (*OwnerResponse, error)
	Claims(ctx context.Context, root interfaces.Root) (claims.ClaimSet, error)
	AddRoot(ctx context.Context, root interfaces.Root) (*TxResponse, error)
	Register(ctx context.Context, req RegisterRequest) (*TxResponse, error)
	Deregister(ctx context.Context) (*TxResponse, error)
}
