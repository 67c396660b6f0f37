// Package claims handles the registration claims published for each period.
//
// A claim set is the list of (address, username, proof) triples committed to
// by one merkle root. Claim sets are distributed off-chain through the storage
// backends, keyed by the root prefix, and are verified against the root before
// use.
package claims

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ruteri/username-registry/interfaces"
	"github.com/ruteri/username-registry/merkle"
)

var (
	// ErrNoClaimSet is returned when no claim set is published for a root.
	ErrNoClaimSet = errors.New("no claim set for root")

	// ErrInvalidClaimSet is returned when a claim set cannot be parsed or does not match its root.
	ErrInvalidClaimSet = errors.New("invalid claim set")

	// ErrInvalidPaste is returned for malformed "username<TAB>proof" input.
	ErrInvalidPaste = errors.New("invalid claim paste")
)

// Claim entitles Address to register Username under the root its Proof leads to.
type Claim struct {
	Address  common.Address `json:"address"`
	Username string         `json:"username"`
	Proof    []common.Hash  `json:"proof"`
}

// Leaf returns the merkle leaf committing to the claim.
func (c Claim) Leaf() common.Hash {
	return merkle.LeafHash(c.Address, []byte(c.Username))
}

// Verify checks the claim's proof against root.
func (c Claim) Verify(root interfaces.Root) bool {
	return merkle.Verify(root, c.Leaf(), c.Proof)
}

// Paste renders the claim in the form accepted by ParseClaimPaste.
func (c Claim) Paste() string {
	proof := c.Proof
	if proof == nil {
		proof = []common.Hash{}
	}
	encoded, _ := json.Marshal(proof)
	return c.Username + "\t" + string(encoded)
}

// ClaimSet is the ordered list of claims of one root.
type ClaimSet []Claim

// ParseClaimSet decodes a JSON claim set.
func ParseClaimSet(data []byte) (ClaimSet, error) {
	var set ClaimSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidClaimSet, err)
	}

	for i, claim := range set {
		if _, err := interfaces.EncodeUsername(claim.Username); err != nil {
			return nil, fmt.Errorf("%w: claim %d: %v", ErrInvalidClaimSet, i, err)
		}
	}
	return set, nil
}

// Marshal encodes the claim set as indented JSON.
func (s ClaimSet) Marshal() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// Find returns the claim of account, if any.
// Addresses are compared as bytes, so hex case does not matter.
func (s ClaimSet) Find(account common.Address) (*Claim, bool) {
	for i := range s {
		if s[i].Address == account {
			return &s[i], true
		}
	}
	return nil, false
}

// Verify checks every proof in the set against root.
func (s ClaimSet) Verify(root interfaces.Root) error {
	for i, claim := range s {
		if !claim.Verify(root) {
			return fmt.Errorf("%w: proof of claim %d (%s) does not match root %s",
				ErrInvalidClaimSet, i, claim.Address.Hex(), interfaces.ShortRoot(root, 10))
		}
	}
	return nil
}

// ParseClaimPaste parses the manual registration input "username<TAB>[proof json]".
func ParseClaimPaste(input string) (string, []common.Hash, error) {
	username, rawProof, found := strings.Cut(input, "\t")
	if !found {
		return "", nil, fmt.Errorf("%w: expected username and proof separated by a tab", ErrInvalidPaste)
	}
	if username == "" {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidPaste, interfaces.ErrEmptyUsername)
	}

	var proof []common.Hash
	if err := json.Unmarshal([]byte(strings.TrimSpace(rawProof)), &proof); err != nil {
		return "", nil, fmt.Errorf("%w: proof: %v", ErrInvalidPaste, err)
	}
	return username, proof, nil
}
