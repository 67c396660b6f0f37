// Package merkle builds and verifies the merkle trees that commit to the
// registrants of a registration period.
//
// Leaves are keccak256(address || username). Internal nodes hash the two
// children in ascending byte order, so a proof is just the list of sibling
// hashes from leaf to root with no direction bits. A node without a sibling is
// promoted to the next level unchanged.
package merkle

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrNoLeaves     = errors.New("merkle tree needs at least one leaf")
	ErrLeafNotFound = errors.New("leaf index out of range")
)

// LeafHash computes the leaf committing account to username.
func LeafHash(account common.Address, username []byte) common.Hash {
	return crypto.Keccak256Hash(account.Bytes(), username)
}

// HashPair combines two nodes independent of their order.
func HashPair(a, b common.Hash) common.Hash {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return crypto.Keccak256Hash(a[:], b[:])
}

// Tree holds every level of a merkle tree, leaves first.
type Tree struct {
	levels [][]common.Hash
}

// New builds a tree over leaves in the given order.
func New(leaves []common.Hash) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, ErrNoLeaves
	}

	level := make([]common.Hash, len(leaves))
	copy(level, leaves)
	levels := [][]common.Hash{level}

	for len(level) > 1 {
		next := make([]common.Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			next = append(next, HashPair(level[i], level[i+1]))
		}
		levels = append(levels, next)
		level = next
	}

	return &Tree{levels: levels}, nil
}

// Root returns the tree root.
func (t *Tree) Root() common.Hash {
	return t.levels[len(t.levels)-1][0]
}

// Len returns the number of leaves.
func (t *Tree) Len() int {
	return len(t.levels[0])
}

// Proof returns the sibling path for the leaf at index.
func (t *Tree) Proof(index int) ([]common.Hash, error) {
	if index < 0 || index >= t.Len() {
		return nil, fmt.Errorf("%w: %d", ErrLeafNotFound, index)
	}

	proof := []common.Hash{}
	for _, level := range t.levels[:len(t.levels)-1] {
		sibling := index ^ 1
		if sibling < len(level) {
			proof = append(proof, level[sibling])
		}
		index /= 2
	}
	return proof, nil
}

// Verify checks that leaf is committed to by root through proof.
func Verify(root, leaf common.Hash, proof []common.Hash) bool {
	computed := leaf
	for _, sibling := range proof {
		computed = HashPair(computed, sibling)
	}
	return computed == root
}
