package registry

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ruteri/username-registry/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockRegistry mocks the UsernameRegistry interface
type MockRegistry struct {
	mock.Mock
}

func (m *MockRegistry) RootsCount(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockRegistry) Root(ctx context.Context, index uint64) (interfaces.Root, error) {
	args := m.Called(ctx, index)
	return args.Get(0).(interfaces.Root), args.Error(1)
}

func (m *MockRegistry) Roots(ctx context.Context) ([]interfaces.Root, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]interfaces.Root), args.Error(1)
}

func (m *MockRegistry) OwnerToUsername(ctx context.Context, owner common.Address) (string, error) {
	args := m.Called(ctx, owner)
	return args.String(0), args.Error(1)
}

func (m *MockRegistry) UsernameToOwner(ctx context.Context, username string) (common.Address, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(common.Address), args.Error(1)
}

func (m *MockRegistry) AddRoot(ctx context.Context, root interfaces.Root) (*types.Transaction, error) {
	args := m.Called(ctx, root)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Transaction), args.Error(1)
}

func (m *MockRegistry) RegisterSelf(ctx context.Context, root interfaces.Root, username string, proof []common.Hash) (*types.Transaction, error) {
	args := m.Called(ctx, root, username, proof)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Transaction), args.Error(1)
}

func (m *MockRegistry) DeregisterSelf(ctx context.Context) (*types.Transaction, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Transaction), args.Error(1)
}

func (m *MockRegistry) Account() (common.Address, bool) {
	args := m.Called()
	return args.Get(0).(common.Address), args.Bool(1)
}
