package voting

import (
	"github.com/bytom/federation/chain"
)

// opcode identifies the kind of mutation a logRecord replays.
type opcode uint8

const (
	opCreatePoll opcode = iota + 1
	opAddVote
	opApprove
	opExecute
	opRevertExecute
	opRevertApprove
	opRemoveVote
	opDeletePoll
)

// logRecord is one entry of the append-only poll log (polls.log). It is an
// event, not a snapshot: replaying every record in order from an empty
// state reconstructs the exact poll map a running node held (§6, §9 "an
// append-only log keyed by monotonically increasing record id; rebuild at
// startup by replay").
type logRecord struct {
	Opcode opcode `json:"op"`
	PollID uint64 `json:"id"`
	Height uint64 `json:"h,omitempty"`

	// opCreatePoll only.
	Data      *VotingData `json:"data,omitempty"`
	StartHash *chain.Hash `json:"start_hash,omitempty"`

	// opAddVote / opRemoveVote / the implicit first voter of opCreatePoll.
	Voter string `json:"voter,omitempty"`

	// opExecute of a KeyKickMember poll only: the roster slot the target
	// held just before removal, so a later opRevertExecute reseats it at
	// that slot after a process restart (§4.2).
	MemberIndex *int `json:"member_index,omitempty"`
}
