package voting

import (
	"github.com/bytom/federation/chain"
	"github.com/bytom/federation/common"
)

// State is a poll's position in its lifecycle: Pending -> Approved ->
// Executed, with Approved/Executed each revertible back down on a reorg.
type State int

const (
	StatePending State = iota
	StateApproved
	StateExecuted
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateApproved:
		return "approved"
	case StateExecuted:
		return "executed"
	default:
		return "unknown"
	}
}

// Poll tracks one VotingData value's accumulated votes and lifecycle
// state. A poll is created the first time a VotingData value is observed
// in a connected block's coinbase and lives until a reorg strips its only
// vote back out; executed polls are kept (§3, §4.1).
type Poll struct {
	ID          uint64
	Data        VotingData
	StartHeight uint64
	StartHash   chain.Hash

	// VotesInFavor holds the hex-encoded pubkeys that have voted for Data,
	// in the order their votes first appeared on the active chain.
	VotesInFavor *common.OrderedSet

	// voteHeights records the height at which each voter's vote first
	// appeared, so a disconnect can find exactly the voters to undo.
	voteHeights map[string]uint64

	// PollAppliedHeight is the height at which majority was reached and the
	// poll became Approved, or nil while still Pending.
	PollAppliedHeight *uint64

	// ExecutedHeight is the height at which the poll's side effect was
	// applied and the poll became Executed, or nil otherwise.
	ExecutedHeight *uint64

	// KickedMemberIndex is the roster slot a KeyKickMember poll's target
	// held just before it was removed, set by executeSideEffect and
	// consumed by undoSideEffect to reseat it at the same slot on revert.
	// nil for every other poll kind.
	KickedMemberIndex *int
}

func newPoll(id uint64, data VotingData, startHeight uint64, startHash chain.Hash) *Poll {
	return &Poll{
		ID:           id,
		Data:         data,
		StartHeight:  startHeight,
		StartHash:    startHash,
		VotesInFavor: common.NewOrderedSet(),
		voteHeights:  make(map[string]uint64),
	}
}

// State reports the poll's current lifecycle state from its field values,
// so the two never drift out of sync.
func (p *Poll) State() State {
	switch {
	case p.ExecutedHeight != nil:
		return StateExecuted
	case p.PollAppliedHeight != nil:
		return StateApproved
	default:
		return StatePending
	}
}

// addVote records voterHex's vote at height if not already present,
// reporting whether it was newly added.
func (p *Poll) addVote(voterHex string, height uint64) bool {
	if !p.VotesInFavor.Add(voterHex) {
		return false
	}
	p.voteHeights[voterHex] = height
	return true
}

// removeVotesAtHeight strips every vote that first appeared at height,
// returning the voters removed. Used by OnBlockDisconnected.
func (p *Poll) removeVotesAtHeight(height uint64) []string {
	var removed []string
	for voter, h := range p.voteHeights {
		if h == height {
			removed = append(removed, voter)
		}
	}
	for _, voter := range removed {
		p.VotesInFavor.Remove(voter)
		delete(p.voteHeights, voter)
	}
	return removed
}

// hasMajority reports whether the poll's vote count meets or exceeds the
// strict-majority threshold floor(n/2)+1 over a roster of size n (§3).
func hasMajority(votes, rosterSize int) bool {
	threshold := rosterSize/2 + 1
	return votes >= threshold
}
