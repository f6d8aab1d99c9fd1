package event

import "github.com/bytom/federation/chain"

// BlockConnectedEvent is published by the block-processing collaborator
// (out of scope, §1) whenever a block is attached to the best chain.
type BlockConnectedEvent struct {
	Block         *chain.Block
	ChainedHeader *chain.ChainedHeader
}

// BlockDisconnectedEvent is published whenever a block is detached from
// the best chain during a reorg, strictly before any BlockConnectedEvent
// for a replacement block at the same or greater height.
type BlockDisconnectedEvent struct {
	Block         *chain.Block
	ChainedHeader *chain.ChainedHeader
}

// MemberAddedEvent is published by the Voting Manager when an AddMember
// poll executes, or a KickMember poll's execution is reverted, and the
// Federation Manager has durably seated the member, at the height of the
// block being connected or disconnected.
type MemberAddedEvent struct {
	Member chain.FederationMember
	Height uint64
	Time   uint64 // unix seconds of the executing block's header
}

// MemberKickedEvent is published by the Voting Manager when a KickMember
// poll executes, or an AddMember poll's execution is reverted, and the
// Federation Manager has durably unseated the member, at the height of the
// block being connected or disconnected.
type MemberKickedEvent struct {
	Member chain.FederationMember
	Height uint64
	Time   uint64
}
