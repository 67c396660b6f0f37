package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ruteri/username-registry/interfaces"
	"github.com/ruteri/username-registry/merkle"
)

var (
	ErrNotAdmin           = errors.New("sender is not the registry admin")
	ErrUnknownRoot        = errors.New("root not accepted")
	ErrRootExists         = errors.New("root already accepted")
	ErrUsernameTaken      = errors.New("username already registered")
	ErrAlreadyRegistered  = errors.New("account already registered")
	ErrNotRegistered      = errors.New("account not registered")
	ErrInvalidProof       = errors.New("invalid merkle proof")
	ErrRootIndexNotExists = errors.New("root index out of range")
)

// MockRegistryClient provides an in-memory implementation of the UsernameRegistry
// interface for testing and local development without a blockchain connection.
// It enforces the same rules the contract does.
type MockRegistryClient struct {
	mutex           sync.RWMutex
	admin           common.Address
	sender          common.Address
	roots           []interfaces.Root
	ownerToUsername map[common.Address]string
	usernameToOwner map[string]common.Address
	nonce           uint64

	allowTransacting bool
}

// NewMockRegistryClient creates a new mock registry client with empty initial state.
// The client starts in a read-only state - call SetTransactOpts to enable transaction operations.
func NewMockRegistryClient(admin common.Address) *MockRegistryClient {
	return &MockRegistryClient{
		admin:           admin,
		roots:           []interfaces.Root{},
		ownerToUsername: make(map[common.Address]string),
		usernameToOwner: make(map[string]common.Address),
	}
}

// SetTransactOpts enables transaction operations, sent from sender.
func (m *MockRegistryClient) SetTransactOpts(sender common.Address) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.sender = sender
	m.allowTransacting = true
}

// Account returns the sender set by SetTransactOpts.
func (m *MockRegistryClient) Account() (common.Address, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.sender, m.allowTransacting
}

func (m *MockRegistryClient) RootsCount(ctx context.Context) (uint64, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return uint64(len(m.roots)), nil
}

func (m *MockRegistryClient) Root(ctx context.Context, index uint64) (interfaces.Root, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if index >= uint64(len(m.roots)) {
		return interfaces.Root{}, fmt.Errorf("%w: %d", ErrRootIndexNotExists, index)
	}
	return m.roots[index], nil
}

func (m *MockRegistryClient) Roots(ctx context.Context) ([]interfaces.Root, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	// Return a copy to prevent modification of internal state
	roots := make([]interfaces.Root, len(m.roots))
	copy(roots, m.roots)
	return roots, nil
}

func (m *MockRegistryClient) OwnerToUsername(ctx context.Context, owner common.Address) (string, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.ownerToUsername[owner], nil
}

func (m *MockRegistryClient) UsernameToOwner(ctx context.Context, username string) (common.Address, error) {
	if _, err := interfaces.EncodeUsername(username); err != nil {
		return common.Address{}, err
	}

	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.usernameToOwner[username], nil
}

// AddRoot appends root. Only the admin may open registration periods.
func (m *MockRegistryClient) AddRoot(ctx context.Context, root interfaces.Root) (*types.Transaction, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if !m.allowTransacting {
		return nil, ErrNoTransactOpts
	}
	if m.sender != m.admin {
		return nil, ErrNotAdmin
	}
	for _, existing := range m.roots {
		if existing == root {
			return nil, ErrRootExists
		}
	}

	m.roots = append(m.roots, root)
	return m.tx(), nil
}

// RegisterSelf maps the sender to username after checking the proof against root.
func (m *MockRegistryClient) RegisterSelf(ctx context.Context, root interfaces.Root, username string, proof []common.Hash) (*types.Transaction, error) {
	encoded, err := interfaces.EncodeUsername(username)
	if err != nil {
		return nil, err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if !m.allowTransacting {
		return nil, ErrNoTransactOpts
	}
	if !m.hasRoot(root) {
		return nil, ErrUnknownRoot
	}
	if _, taken := m.usernameToOwner[username]; taken {
		return nil, ErrUsernameTaken
	}
	if _, registered := m.ownerToUsername[m.sender]; registered {
		return nil, ErrAlreadyRegistered
	}
	if !merkle.Verify(root, merkle.LeafHash(m.sender, encoded), proof) {
		return nil, ErrInvalidProof
	}

	m.ownerToUsername[m.sender] = username
	m.usernameToOwner[username] = m.sender
	return m.tx(), nil
}

// DeregisterSelf clears both mappings of the sender.
func (m *MockRegistryClient) DeregisterSelf(ctx context.Context) (*types.Transaction, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if !m.allowTransacting {
		return nil, ErrNoTransactOpts
	}

	username, registered := m.ownerToUsername[m.sender]
	if !registered {
		return nil, ErrNotRegistered
	}

	delete(m.ownerToUsername, m.sender)
	delete(m.usernameToOwner, username)
	return m.tx(), nil
}

func (m *MockRegistryClient) hasRoot(root interfaces.Root) bool {
	for _, existing := range m.roots {
		if existing == root {
			return true
		}
	}
	return false
}

// tx fabricates a unique placeholder transaction.
func (m *MockRegistryClient) tx() *types.Transaction {
	m.nonce++
	return types.NewTx(&types.LegacyTx{Nonce: m.nonce, To: &m.sender})
}
