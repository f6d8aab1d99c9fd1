// Package voting implements the Voting Manager: it aggregates per-member
// votes embedded in block coinbases into polls, finalizes polls on
// majority, and executes the resulting membership/whitelist changes after
// a reorg-safety delay.
package voting

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// Key identifies the kind of change a VotingData/poll governs.
type Key uint8

const (
	KeyAddMember Key = iota
	KeyKickMember
	KeyWhitelistHash
	KeyRemoveHash
)

func (k Key) String() string {
	switch k {
	case KeyAddMember:
		return "add_member"
	case KeyKickMember:
		return "kick_member"
	case KeyWhitelistHash:
		return "whitelist_hash"
	case KeyRemoveHash:
		return "remove_hash"
	default:
		return "unknown"
	}
}

// IsKnown reports whether k is one of the recognized vote kinds. Unknown
// keys are forward-compatible placeholders: the block that carries one is
// still valid, but the vote is skipped with a warning (§7, UnknownVote).
func (k Key) IsKnown() bool {
	switch k {
	case KeyAddMember, KeyKickMember, KeyWhitelistHash, KeyRemoveHash:
		return true
	default:
		return false
	}
}

// VotingData is the atomic unit of voting carried in block coinbases. For
// member votes, Payload is the canonical serialization of a federation
// member (pubkey plus type flag); for hash votes it is a 32-byte digest.
type VotingData struct {
	Key     Key
	Payload []byte
}

// Equal reports whether two VotingData values carry the same key and
// identical payload bytes, the equality rule the spec defines for polls.
func (v VotingData) Equal(other VotingData) bool {
	return v.Key == other.Key && bytes.Equal(v.Payload, other.Payload)
}

// dataKey returns a stable map/log key for v, used to find the poll (if
// any) currently tracking this exact VotingData.
func dataKey(v VotingData) string {
	return fmt.Sprintf("%d:%s", v.Key, hex.EncodeToString(v.Payload))
}
