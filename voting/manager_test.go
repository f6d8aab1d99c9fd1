package voting

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bytom/federation/chain"
)

type fakeFederation struct {
	mu      sync.Mutex
	members []chain.FederationMember
}

func (f *fakeFederation) Members() []chain.FederationMember {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]chain.FederationMember, len(f.members))
	copy(out, f.members)
	return out
}

func (f *fakeFederation) IsMultisig(pk chain.PubKey) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.members {
		if m.PubKey == pk {
			return m.IsMultisig
		}
	}
	return false
}

func (f *fakeFederation) AddMember(m chain.FederationMember, height uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insertAtLocked(len(f.members), m)
}

func (f *fakeFederation) InsertMemberAt(index int, m chain.FederationMember, height uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insertAtLocked(index, m)
}

func (f *fakeFederation) insertAtLocked(index int, m chain.FederationMember) error {
	for _, existing := range f.members {
		if existing.PubKey == m.PubKey {
			return nil
		}
	}
	if index < 0 || index > len(f.members) {
		index = len(f.members)
	}
	f.members = append(f.members, chain.FederationMember{})
	copy(f.members[index+1:], f.members[index:])
	f.members[index] = m
	return nil
}

func (f *fakeFederation) RemoveMember(pk chain.PubKey, height uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, m := range f.members {
		if m.PubKey == pk {
			f.members = append(f.members[:i], f.members[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeFederation) IndexOf(pk chain.PubKey) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, m := range f.members {
		if m.PubKey == pk {
			return i, true
		}
	}
	return 0, false
}

type fakeWhitelist struct {
	mu     sync.Mutex
	hashes map[[32]byte]bool
}

func newFakeWhitelist() *fakeWhitelist { return &fakeWhitelist{hashes: make(map[[32]byte]bool)} }

func (w *fakeWhitelist) AddHash(h [32]byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.hashes[h] = true
	return nil
}

func (w *fakeWhitelist) RemoveHash(h [32]byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.hashes, h)
	return nil
}

func pk(b byte) chain.PubKey {
	var k chain.PubKey
	k[0] = b
	return k
}

func hash(h byte) chain.Hash {
	var out chain.Hash
	out[0] = h
	return out
}

func newTestManager(t *testing.T, fed *fakeFederation, wl *fakeWhitelist, maxReorg uint64, self chain.PubKey) *Manager {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "polls.log")
	m, err := NewManager(logPath, Config{
		Federation:     fed,
		FedMutator:     fed,
		Whitelist:      wl,
		MaxReorgLength: maxReorg,
		SelfPubKey:     self,
	})
	require.NoError(t, err)
	return m
}

func connectedBlock(t *testing.T, miner chain.PubKey, votes []VotingData) *chain.Block {
	t.Helper()
	var payload []byte
	if len(votes) > 0 {
		encoded, err := EncodeVotingData(votes)
		require.NoError(t, err)
		payload = encoded
	}
	return &chain.Block{Miner: miner, CoinbaseVoteBytes: payload}
}

func headerAt(height uint64) *chain.ChainedHeader {
	return &chain.ChainedHeader{Header: chain.BlockHeader{Height: height, Hash: hash(byte(height))}}
}

// TestVotingLifecycle walks a poll through pending -> approved -> executed
// and then reverses every step via disconnects, checking the poll's state
// and the candidate's roster membership at each stage.
func TestVotingLifecycle(t *testing.T) {
	memberA, memberB, memberC := pk(1), pk(2), pk(3)
	candidate := pk(9)

	fed := &fakeFederation{members: []chain.FederationMember{
		{PubKey: memberA}, {PubKey: memberB}, {PubKey: memberC},
	}}
	wl := newFakeWhitelist()
	m := newTestManager(t, fed, wl, 2, memberA)

	addCandidate := VotingData{Key: KeyAddMember, Payload: MemberPayload(candidate)}

	// Height 1: memberA votes. 1/3 is short of the 2-of-3 majority.
	require.NoError(t, m.OnBlockConnected(connectedBlock(t, memberA, []VotingData{addCandidate}), headerAt(1)))
	require.Len(t, m.GetPendingPolls(), 1)
	require.Len(t, m.GetApprovedPolls(), 0)

	// Height 2: memberB's vote reaches majority; poll becomes Approved.
	require.NoError(t, m.OnBlockConnected(connectedBlock(t, memberB, []VotingData{addCandidate}), headerAt(2)))
	require.Len(t, m.GetPendingPolls(), 0)
	require.Len(t, m.GetApprovedPolls(), 1)

	// Height 3: one block short of the reorg delay (maxReorgLength=2).
	require.NoError(t, m.OnBlockConnected(connectedBlock(t, memberC, nil), headerAt(3)))
	require.Len(t, m.GetApprovedPolls(), 1)
	require.Len(t, m.GetExecutedPolls(), 0)

	// Height 4: delay elapsed, side effect executes.
	require.NoError(t, m.OnBlockConnected(connectedBlock(t, memberC, nil), headerAt(4)))
	require.Len(t, m.GetExecutedPolls(), 1)
	require.True(t, fed.IsMemberOf(candidate))

	// Reverse height 4: execution undone, member removed again.
	require.NoError(t, m.OnBlockDisconnected(connectedBlock(t, memberC, nil), headerAt(4)))
	require.Len(t, m.GetApprovedPolls(), 1)
	require.Len(t, m.GetExecutedPolls(), 0)
	require.False(t, fed.IsMemberOf(candidate))

	// Reverse height 2: approval undone (back to Pending), memberB's vote
	// stripped, poll survives since memberA's height-1 vote remains.
	require.NoError(t, m.OnBlockDisconnected(connectedBlock(t, memberB, []VotingData{addCandidate}), headerAt(2)))
	require.Len(t, m.GetPendingPolls(), 1)
	require.Len(t, m.GetApprovedPolls(), 0)

	// Reverse height 1: memberA's vote stripped, poll's only vote is gone
	// and its start height matches, so the poll is deleted entirely.
	require.NoError(t, m.OnBlockDisconnected(connectedBlock(t, memberA, []VotingData{addCandidate}), headerAt(1)))
	require.Len(t, m.GetPendingPolls(), 0)
}

func (f *fakeFederation) IsMemberOf(pk chain.PubKey) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.members {
		if m.PubKey == pk {
			return true
		}
	}
	return false
}

func TestScheduleVoteRejectsDuplicate(t *testing.T) {
	fed := &fakeFederation{members: []chain.FederationMember{{PubKey: pk(1)}}}
	m := newTestManager(t, fed, newFakeWhitelist(), 1, pk(1))

	v := VotingData{Key: KeyWhitelistHash, Payload: MemberPayload(pk(5))}
	require.NoError(t, m.ScheduleVote(v))
	require.Error(t, m.ScheduleVote(v))
	require.Len(t, m.GetScheduledVotes(), 1)
}

func TestScheduleVoteRejectsAlreadyVotedInPoll(t *testing.T) {
	self := pk(1)
	fed := &fakeFederation{members: []chain.FederationMember{{PubKey: self}, {PubKey: pk(2)}, {PubKey: pk(3)}}}
	m := newTestManager(t, fed, newFakeWhitelist(), 5, self)

	v := VotingData{Key: KeyAddMember, Payload: MemberPayload(pk(9))}
	require.NoError(t, m.OnBlockConnected(connectedBlock(t, self, []VotingData{v}), headerAt(1)))

	require.Error(t, m.ScheduleVote(v))
}

func TestGetAndCleanScheduledVotesDrainsQueue(t *testing.T) {
	fed := &fakeFederation{members: []chain.FederationMember{{PubKey: pk(1)}}}
	m := newTestManager(t, fed, newFakeWhitelist(), 1, pk(1))

	v := VotingData{Key: KeyWhitelistHash, Payload: MemberPayload(pk(5))}
	require.NoError(t, m.ScheduleVote(v))

	drained := m.GetAndCleanScheduledVotes()
	require.Len(t, drained, 1)
	require.Len(t, m.GetScheduledVotes(), 0)
}

func TestKickMultisigMemberSkippedDefensively(t *testing.T) {
	target := pk(7)
	self := pk(1)
	fed := &fakeFederation{members: []chain.FederationMember{
		{PubKey: self}, {PubKey: pk(2)}, {PubKey: target, IsMultisig: true},
	}}
	m := newTestManager(t, fed, newFakeWhitelist(), 0, self)

	kick := VotingData{Key: KeyKickMember, Payload: MemberPayload(target)}
	require.NoError(t, m.OnBlockConnected(connectedBlock(t, self, []VotingData{kick}), headerAt(1)))
	require.NoError(t, m.OnBlockConnected(connectedBlock(t, pk(2), []VotingData{kick}), headerAt(2)))

	require.Len(t, m.GetExecutedPolls(), 1)
	require.True(t, fed.IsMemberOf(target))
}

// TestKickThenRevertRestoresRosterOrder checks that reverting an executed
// kick of a non-last, non-multisig member reseats it at its original slot
// rather than the tail: roster order is the PoA slot assignment (§4.2),
// so apply-then-revert must be the identity on order, not just membership.
func TestKickThenRevertRestoresRosterOrder(t *testing.T) {
	self := pk(1)
	k2, k3, k4 := pk(2), pk(3), pk(4)
	fed := &fakeFederation{members: []chain.FederationMember{
		{PubKey: self}, {PubKey: k2}, {PubKey: k3}, {PubKey: k4},
	}}
	m := newTestManager(t, fed, newFakeWhitelist(), 1, self)

	kick := VotingData{Key: KeyKickMember, Payload: MemberPayload(k2)}
	require.NoError(t, m.OnBlockConnected(connectedBlock(t, self, []VotingData{kick}), headerAt(1)))
	require.NoError(t, m.OnBlockConnected(connectedBlock(t, k3, []VotingData{kick}), headerAt(2)))
	// Third vote of four reaches the 4/2+1 = 3 majority at height 3;
	// maxReorgLength=1, so the kick executes at height 4.
	require.NoError(t, m.OnBlockConnected(connectedBlock(t, k4, []VotingData{kick}), headerAt(3)))
	require.NoError(t, m.OnBlockConnected(connectedBlock(t, self, nil), headerAt(4)))
	require.Len(t, m.GetExecutedPolls(), 1)
	require.Equal(t, []chain.PubKey{self, k3, k4}, fedOrder(fed))

	require.NoError(t, m.OnBlockDisconnected(connectedBlock(t, self, nil), headerAt(4)))
	require.Equal(t, []chain.PubKey{self, k2, k3, k4}, fedOrder(fed))
}

func fedOrder(f *fakeFederation) []chain.PubKey {
	members := f.Members()
	out := make([]chain.PubKey, len(members))
	for i, m := range members {
		out[i] = m.PubKey
	}
	return out
}

func TestUnknownVoteKindSkipped(t *testing.T) {
	fed := &fakeFederation{members: []chain.FederationMember{{PubKey: pk(1)}}}
	m := newTestManager(t, fed, newFakeWhitelist(), 1, pk(1))

	block := connectedBlock(t, pk(1), []VotingData{{Key: Key(250), Payload: []byte("x")}})
	require.NoError(t, m.OnBlockConnected(block, headerAt(1)))
	require.Len(t, m.GetPendingPolls(), 0)
}
