package claims

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ruteri/username-registry/interfaces"
	"github.com/ruteri/username-registry/merkle"
)

var (
	ErrDuplicateAddress  = errors.New("address listed more than once")
	ErrDuplicateUsername = errors.New("username listed more than once")
)

// Entry is one registrant of a registration period.
type Entry struct {
	Address  common.Address `json:"address"`
	Username string         `json:"username"`
}

// ParseEntries decodes a JSON list of entries.
func ParseEntries(data []byte) ([]Entry, error) {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("could not parse entries: %w", err)
	}
	return entries, nil
}

// BuildPeriod commits to entries in the given order and returns the root
// together with the claim set holding every registrant's proof.
func BuildPeriod(entries []Entry) (interfaces.Root, ClaimSet, error) {
	if len(entries) == 0 {
		return interfaces.Root{}, nil, merkle.ErrNoLeaves
	}

	seenAddresses := make(map[common.Address]struct{}, len(entries))
	seenUsernames := make(map[string]struct{}, len(entries))
	leaves := make([]common.Hash, len(entries))

	for i, entry := range entries {
		encoded, err := interfaces.EncodeUsername(entry.Username)
		if err != nil {
			return interfaces.Root{}, nil, fmt.Errorf("entry %d: %w", i, err)
		}
		if _, seen := seenAddresses[entry.Address]; seen {
			return interfaces.Root{}, nil, fmt.Errorf("entry %d: %w: %s", i, ErrDuplicateAddress, entry.Address.Hex())
		}
		if _, seen := seenUsernames[entry.Username]; seen {
			return interfaces.Root{}, nil, fmt.Errorf("entry %d: %w: %q", i, ErrDuplicateUsername, entry.Username)
		}
		seenAddresses[entry.Address] = struct{}{}
		seenUsernames[entry.Username] = struct{}{}

		leaves[i] = merkle.LeafHash(entry.Address, encoded)
	}

	tree, err := merkle.New(leaves)
	if err != nil {
		return interfaces.Root{}, nil, err
	}

	set := make(ClaimSet, len(entries))
	for i, entry := range entries {
		proof, err := tree.Proof(i)
		if err != nil {
			return interfaces.Root{}, nil, err
		}
		set[i] = Claim{Address: entry.Address, Username: entry.Username, Proof: proof}
	}

	return tree.Root(), set, nil
}
