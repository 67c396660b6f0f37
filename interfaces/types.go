// Package interfaces defines the core interfaces and types for the username registry.
// It provides the contract between different components without implementation details.
package interfaces

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
)

// Root is a merkle root committing to the registrants of one registration period.
type Root = common.Hash

// ContractAddress represents an Ethereum contract address.
type ContractAddress [20]byte

var (
	// ErrInvalidRoot is returned when a root is not a 32-byte hex string.
	ErrInvalidRoot = errors.New("invalid merkle root")

	// ErrEmptyUsername is returned when a username is required but empty.
	ErrEmptyUsername = errors.New("empty username")

	// ErrInvalidUsername is returned for usernames that are not valid UTF-8.
	ErrInvalidUsername = errors.New("invalid username")
)

// NewRootFromHex parses a 0x-prefixed or bare 64-character hex string.
func NewRootFromHex(s string) (Root, error) {
	clean := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(clean) != 64 {
		return Root{}, fmt.Errorf("%w: hex string must be 64 characters", ErrInvalidRoot)
	}

	raw, err := hex.DecodeString(clean)
	if err != nil {
		return Root{}, fmt.Errorf("%w: %v", ErrInvalidRoot, err)
	}
	return common.BytesToHash(raw), nil
}

// RootPrefix returns the 0x-prefixed first four bytes of the root.
// Claim fixtures are named after it.
func RootPrefix(root Root) string {
	return root.Hex()[:10]
}

// ShortRoot returns the first n characters of the root's hex form followed by an ellipsis.
func ShortRoot(root Root, n int) string {
	h := root.Hex()
	if n > len(h) {
		n = len(h)
	}
	return h[:n] + "..."
}

func NewContractAddressFromBytes(addr []byte) (ContractAddress, error) {
	if len(addr) != 20 {
		return ContractAddress{}, errors.New("invalid address length: must be 20 bytes")
	}

	var res ContractAddress
	copy(res[:], addr)
	return res, nil
}

func NewContractAddressFromHex(addr string) (ContractAddress, error) {
	clean := strings.TrimPrefix(addr, "0x")
	if len(clean) != 40 {
		return ContractAddress{}, errors.New("invalid address length: hex string must be 40 characters")
	}

	addrBytes, err := hex.DecodeString(clean)
	if err != nil {
		return ContractAddress{}, fmt.Errorf("invalid hex format: %w", err)
	}

	return NewContractAddressFromBytes(addrBytes)
}

// String returns the hex string representation of the contract address.
func (addr ContractAddress) String() string {
	return hex.EncodeToString(addr[:])
}

// Common converts the address to the go-ethereum representation.
func (addr ContractAddress) Common() common.Address {
	return common.Address(addr)
}

// EncodeUsername returns the on-chain representation of a username: its UTF-8 bytes.
func EncodeUsername(username string) ([]byte, error) {
	if username == "" {
		return nil, ErrEmptyUsername
	}
	if !utf8.ValidString(username) {
		return nil, ErrInvalidUsername
	}
	return []byte(username), nil
}

// DecodeUsername converts the on-chain bytes back to a string.
// Trailing NUL padding is dropped; an empty result means no username.
func DecodeUsername(raw []byte) string {
	return string(bytes.TrimRight(raw, "\x00"))
}
