// Package chain defines the narrow surface this module expects from its
// external collaborators: the block producer, the P2P sync layer, and the
// consensus header-validation engine (all out of scope per the purpose and
// scope section). Types here are intentionally minimal - just enough to
// drive the governance core's event handlers and coinbase encoding.
package chain

import (
	"encoding/hex"

	"github.com/bytom/federation/errors"
)

var errInvalidPubKeyLength = errors.New("chain: public key must be 32 bytes")

// HashSize is the width of a chain block hash, matching the teacher's
// protocol/bc.Hash (a 32-byte digest).
const HashSize = 32

// Hash is a block or transaction digest.
type Hash [HashSize]byte

func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// BlockHeader carries the fields the governance core reads off a block.
// The real header (signatures, merkle roots, witness commitments) lives
// entirely in the consensus header-validation engine, out of scope here.
type BlockHeader struct {
	Height            uint64
	Time              uint64 // unix seconds
	Hash              Hash
	PreviousBlockHash Hash
}

// ChainedHeader is the validated, chain-connected form of a BlockHeader
// the block-processing collaborator hands the governance core alongside
// BlockConnected/BlockDisconnected events.
type ChainedHeader struct {
	Header BlockHeader
}

// Block is the minimal block shape the Voting Manager needs: its header
// plus the raw coinbase voting-data payload extracted from the distinguished
// OP_RETURN output. Everything else about the block (transactions, witness,
// signatures) belongs to collaborators out of scope for this module.
type Block struct {
	Header            BlockHeader
	Miner             PubKey
	CoinbaseVoteBytes []byte // encoded per voting/script.go's wire format
}

// PubKey is a federation member's public key, hex-encoded at rest and over
// the admin API, matching the teacher's hex-keyed NumOfVote maps.
type PubKey [32]byte

func (k PubKey) String() string { return hex.EncodeToString(k[:]) }

// ParsePubKey decodes a hex-encoded 32-byte public key.
func ParsePubKey(s string) (PubKey, error) {
	var k PubKey
	b, err := hex.DecodeString(s)
	if err != nil {
		return k, err
	}
	if len(b) != len(k) {
		return k, errInvalidPubKeyLength
	}
	copy(k[:], b)
	return k, nil
}

// FederationMember is a public key authorized to produce blocks, optionally
// flagged multisig (structurally immutable: never targetable by votes).
type FederationMember struct {
	PubKey     PubKey
	IsMultisig bool
}

// Equal reports whether two members refer to the same pubkey.
func (m FederationMember) Equal(other FederationMember) bool {
	return m.PubKey == other.PubKey
}
