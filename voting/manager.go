package voting

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/bytom/federation/chain"
	"github.com/bytom/federation/errors"
	"github.com/bytom/federation/event"
)

// FederationView is the read-only roster surface the Voting Manager needs
// to compute majority thresholds and to defensively check a kick target's
// multisig status at execution time.
type FederationView interface {
	Members() []chain.FederationMember
	IsMultisig(pubKey chain.PubKey) bool

	// IndexOf reports a seated member's current slot position, so a kick
	// execution can remember where to reseat it if later reverted.
	IndexOf(pubKey chain.PubKey) (int, bool)
}

// FederationMutator is the write surface a poll's AddMember/KickMember
// side effect drives. Implemented by federation.Manager.
type FederationMutator interface {
	AddMember(member chain.FederationMember, height uint64) error
	RemoveMember(pubKey chain.PubKey, height uint64) error

	// InsertMemberAt reseats member at index rather than the tail, used to
	// undo a kick at the exact slot it held before being removed (§4.2).
	InsertMemberAt(index int, member chain.FederationMember, height uint64) error
}

// WhitelistMutator is the write surface a poll's WhitelistHash/RemoveHash
// side effect drives. Implemented by whitelist.Manager.
type WhitelistMutator interface {
	AddHash(hash [32]byte) error
	RemoveHash(hash [32]byte) error
}

// Manager is the Voting Manager: it owns poll bookkeeping, majority
// finalization, and the reorg-delayed execution of approved polls.
type Manager struct {
	mu sync.RWMutex

	log *PollLog

	federation FederationView
	fedMutator FederationMutator
	whitelist  WhitelistMutator
	dispatcher *event.Dispatcher

	maxReorgLength uint64
	selfPubKey     chain.PubKey

	nextPollID  uint64
	polls       map[uint64]*Poll
	pollsByData map[string]*Poll

	scheduled       []VotingData
	scheduledByData map[string]bool

	logger *logrus.Entry
}

// Config bundles a Manager's external collaborators and tunables.
type Config struct {
	Federation     FederationView
	FedMutator     FederationMutator
	Whitelist      WhitelistMutator
	Dispatcher     *event.Dispatcher
	MaxReorgLength uint64
	SelfPubKey     chain.PubKey
	Logger         *logrus.Entry
}

// NewManager constructs a Manager backed by the poll log at logPath,
// replaying any existing records before returning.
func NewManager(logPath string, cfg Config) (*Manager, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	m := &Manager{
		federation:      cfg.Federation,
		fedMutator:      cfg.FedMutator,
		whitelist:       cfg.Whitelist,
		dispatcher:      cfg.Dispatcher,
		maxReorgLength:  cfg.MaxReorgLength,
		selfPubKey:      cfg.SelfPubKey,
		nextPollID:      1,
		polls:           make(map[uint64]*Poll),
		pollsByData:     make(map[string]*Poll),
		scheduledByData: make(map[string]bool),
		logger:          cfg.Logger,
	}

	records, err := Replay(logPath)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		m.applyRecord(rec)
	}

	log, err := OpenPollLog(logPath)
	if err != nil {
		return nil, err
	}
	m.log = log
	return m, nil
}

// Close releases the poll log file handle.
func (m *Manager) Close() error {
	return m.log.Close()
}

// applyRecord mutates in-memory state per rec, used during startup replay
// (live block processing mutates polls directly). It never touches fedMutator or
// whitelist - those side effects are durable in their own stores already,
// and replaying them here would double-apply (§9).
func (m *Manager) applyRecord(rec logRecord) {
	switch rec.Opcode {
	case opCreatePoll:
		p := newPoll(rec.PollID, *rec.Data, rec.Height, *rec.StartHash)
		p.addVote(rec.Voter, rec.Height)
		m.polls[p.ID] = p
		m.pollsByData[dataKey(p.Data)] = p
		if p.ID >= m.nextPollID {
			m.nextPollID = p.ID + 1
		}
	case opAddVote:
		if p := m.polls[rec.PollID]; p != nil {
			p.addVote(rec.Voter, rec.Height)
		}
	case opApprove:
		if p := m.polls[rec.PollID]; p != nil {
			h := rec.Height
			p.PollAppliedHeight = &h
		}
	case opExecute:
		if p := m.polls[rec.PollID]; p != nil {
			h := rec.Height
			p.ExecutedHeight = &h
			p.KickedMemberIndex = rec.MemberIndex
		}
	case opRevertExecute:
		if p := m.polls[rec.PollID]; p != nil {
			p.ExecutedHeight = nil
			p.KickedMemberIndex = nil
		}
	case opRevertApprove:
		if p := m.polls[rec.PollID]; p != nil {
			p.PollAppliedHeight = nil
		}
	case opRemoveVote:
		if p := m.polls[rec.PollID]; p != nil {
			p.VotesInFavor.Remove(rec.Voter)
			delete(p.voteHeights, rec.Voter)
		}
	case opDeletePoll:
		if p := m.polls[rec.PollID]; p != nil {
			delete(m.polls, p.ID)
			delete(m.pollsByData, dataKey(p.Data))
		}
	}
}

// ScheduleVote enqueues v for embedding in the next block this node mines.
// It rejects v if it is already scheduled, or if this node has already
// voted for it in a pending or finished poll (I6).
func (m *Manager) ScheduleVote(v VotingData) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.alreadyVotedOrScheduledLocked(v) {
		return errors.DuplicateVote("vote already scheduled or already cast by this node")
	}
	key := dataKey(v)
	m.scheduled = append(m.scheduled, v)
	m.scheduledByData[key] = true
	return nil
}

// AlreadyVotedOrScheduled reports whether v is already scheduled by this
// node or already has this node's vote recorded in a pending or finished
// poll. Exposed so the Idle-Members Kicker can suppress duplicate kick
// votes without round-tripping through ScheduleVote's error path (§4.3).
func (m *Manager) AlreadyVotedOrScheduled(v VotingData) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.alreadyVotedOrScheduledLocked(v)
}

func (m *Manager) alreadyVotedOrScheduledLocked(v VotingData) bool {
	key := dataKey(v)
	if m.scheduledByData[key] {
		return true
	}
	if p, ok := m.pollsByData[key]; ok {
		return p.VotesInFavor.Has(m.selfPubKey.String())
	}
	return false
}

// GetScheduledVotes returns a snapshot of the scheduled queue without
// draining it.
func (m *Manager) GetScheduledVotes() []VotingData {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]VotingData, len(m.scheduled))
	copy(out, m.scheduled)
	return out
}

// GetAndCleanScheduledVotes atomically drains and returns the scheduled
// queue, for a block producer embedding them into a new block's coinbase.
func (m *Manager) GetAndCleanScheduledVotes() []VotingData {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.scheduled
	m.scheduled = nil
	m.scheduledByData = make(map[string]bool)
	return out
}

// GetPendingPolls returns all polls currently in StatePending.
func (m *Manager) GetPendingPolls() []*Poll { return m.pollsInState(StatePending) }

// GetApprovedPolls returns all polls currently in StateApproved.
func (m *Manager) GetApprovedPolls() []*Poll { return m.pollsInState(StateApproved) }

// GetExecutedPolls returns all polls currently in StateExecuted.
func (m *Manager) GetExecutedPolls() []*Poll { return m.pollsInState(StateExecuted) }

func (m *Manager) pollsInState(want State) []*Poll {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Poll
	for _, p := range m.polls {
		if p.State() == want {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// OnBlockConnected extracts the block's coinbase votes, folds each into
// its poll (creating one on first sight), finalizes polls that reach
// majority, and executes polls whose reorg-safety delay has elapsed - all
// in one deterministic pass (§4.1).
func (m *Manager) OnBlockConnected(block *chain.Block, header *chain.ChainedHeader) error {
	votes, err := DecodeVotingData(block.CoinbaseVoteBytes)
	if err != nil {
		return errors.Validation("malformed coinbase voting data: " + err.Error())
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	height := header.Header.Height
	rosterSize := len(m.federation.Members())
	minerHex := block.Miner.String()

	for _, v := range votes {
		if !v.Key.IsKnown() {
			m.logger.WithField("key", v.Key).Warn("voting: skipping unknown vote kind")
			continue
		}
		if err := m.foldVote(v, minerHex, height, header.Header.Hash, rosterSize); err != nil {
			return err
		}
	}

	return m.executeEligible(height, header.Header.Time)
}

// foldVote applies a single vote to its poll, creating the poll if this is
// the first time Data has been observed, and finalizing it if majority is
// reached.
func (m *Manager) foldVote(v VotingData, voterHex string, height uint64, blockHash chain.Hash, rosterSize int) error {
	key := dataKey(v)
	poll, exists := m.pollsByData[key]

	if !exists {
		id := m.nextPollID
		m.nextPollID++
		poll = newPoll(id, v, height, blockHash)
		poll.addVote(voterHex, height)
		m.polls[id] = poll
		m.pollsByData[key] = poll

		hash := blockHash
		if err := m.log.Append(logRecord{Opcode: opCreatePoll, PollID: id, Height: height, Data: &v, StartHash: &hash, Voter: voterHex}); err != nil {
			return err
		}
	} else if poll.State() == StatePending {
		if !poll.VotesInFavor.Has(voterHex) {
			poll.addVote(voterHex, height)
			if err := m.log.Append(logRecord{Opcode: opAddVote, PollID: poll.ID, Height: height, Voter: voterHex}); err != nil {
				return err
			}
		}
	} else {
		// Poll already finalized; further votes for the same VotingData
		// don't affect any invariant.
		return nil
	}

	if poll.State() == StatePending && hasMajority(poll.VotesInFavor.Size(), rosterSize) {
		h := height
		poll.PollAppliedHeight = &h
		if err := m.log.Append(logRecord{Opcode: opApprove, PollID: poll.ID, Height: height}); err != nil {
			return err
		}
	}
	return nil
}

// executeEligible runs the side effect of every Approved poll whose
// reorg-safety delay has elapsed as of height, in the deterministic order
// they were approved (ties broken by poll id).
func (m *Manager) executeEligible(height, blockTime uint64) error {
	var eligible []*Poll
	for _, p := range m.polls {
		if p.State() != StateApproved {
			continue
		}
		if height-*p.PollAppliedHeight == m.maxReorgLength {
			eligible = append(eligible, p)
		}
	}
	sort.Slice(eligible, func(i, j int) bool {
		if *eligible[i].PollAppliedHeight != *eligible[j].PollAppliedHeight {
			return *eligible[i].PollAppliedHeight < *eligible[j].PollAppliedHeight
		}
		return eligible[i].ID < eligible[j].ID
	})

	for _, p := range eligible {
		if err := m.executeSideEffect(p, height, blockTime); err != nil {
			return err
		}
		h := height
		p.ExecutedHeight = &h
		if err := m.log.Append(logRecord{Opcode: opExecute, PollID: p.ID, Height: height, MemberIndex: p.KickedMemberIndex}); err != nil {
			return err
		}
	}
	return nil
}

// post publishes ev on the dispatcher if one is configured. A nil
// dispatcher (e.g. in tests) simply means nobody is listening.
func (m *Manager) post(ev interface{}) {
	if m.dispatcher == nil {
		return
	}
	if err := m.dispatcher.Post(ev); err != nil {
		m.logger.WithError(err).Warn("voting: failed to publish event")
	}
}

// executeSideEffect applies a poll's durable effect to the federation
// roster or whitelist. A kick whose target has since become multisig is a
// defensive no-op: it must never happen, but chain data from a misbehaving
// peer still has to be processed identically by every honest node (§3).
func (m *Manager) executeSideEffect(p *Poll, height, blockTime uint64) error {
	switch p.Data.Key {
	case KeyAddMember:
		pubKey, err := DecodePayload32(p.Data.Payload)
		if err != nil {
			return err
		}
		member := chain.FederationMember{PubKey: chain.PubKey(pubKey)}
		if err := m.fedMutator.AddMember(member, height); err != nil {
			return err
		}
		m.post(event.MemberAddedEvent{Member: member, Height: height, Time: blockTime})
		return nil
	case KeyKickMember:
		pubKey, err := DecodePayload32(p.Data.Payload)
		if err != nil {
			return err
		}
		if m.federation.IsMultisig(chain.PubKey(pubKey)) {
			m.logger.WithField("pubkey", chain.PubKey(pubKey).String()).
				Warn("voting: ignoring kick execution against multisig member")
			return nil
		}
		// Remember the member's slot before removing it: roster order is
		// the PoA slot assignment (§4.2), so a later revert must reseat it
		// here rather than at the tail.
		if idx, ok := m.federation.IndexOf(chain.PubKey(pubKey)); ok {
			p.KickedMemberIndex = &idx
		}
		member := chain.FederationMember{PubKey: chain.PubKey(pubKey)}
		if err := m.fedMutator.RemoveMember(chain.PubKey(pubKey), height); err != nil {
			return err
		}
		m.post(event.MemberKickedEvent{Member: member, Height: height, Time: blockTime})
		return nil
	case KeyWhitelistHash:
		hash, err := DecodePayload32(p.Data.Payload)
		if err != nil {
			return err
		}
		return m.whitelist.AddHash(hash)
	case KeyRemoveHash:
		hash, err := DecodePayload32(p.Data.Payload)
		if err != nil {
			return err
		}
		return m.whitelist.RemoveHash(hash)
	default:
		return errors.InvariantViolation("unreachable: unknown vote key reached execution")
	}
}

// OnBlockDisconnected undoes everything block contributed at its height,
// in the reverse order it was applied: executions first, then approvals,
// then votes (deleting polls whose only votes came from this height), so
// that a following OnBlockConnected replaying the same or a different
// block reaches the same deterministic state (§4.1).
func (m *Manager) OnBlockDisconnected(block *chain.Block, header *chain.ChainedHeader) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	height := header.Header.Height
	blockTime := header.Header.Time

	var executed []*Poll
	for _, p := range m.polls {
		if p.ExecutedHeight != nil && *p.ExecutedHeight == height {
			executed = append(executed, p)
		}
	}
	sort.Slice(executed, func(i, j int) bool { return executed[i].ID > executed[j].ID })
	for _, p := range executed {
		if err := m.undoSideEffect(p, height, blockTime); err != nil {
			return err
		}
		p.ExecutedHeight = nil
		if err := m.log.Append(logRecord{Opcode: opRevertExecute, PollID: p.ID, Height: height}); err != nil {
			return err
		}
	}

	for _, p := range m.polls {
		if p.PollAppliedHeight != nil && *p.PollAppliedHeight == height {
			p.PollAppliedHeight = nil
			if err := m.log.Append(logRecord{Opcode: opRevertApprove, PollID: p.ID, Height: height}); err != nil {
				return err
			}
		}
	}

	for _, p := range pollsSortedByID(m.polls) {
		removed := p.removeVotesAtHeight(height)
		for _, voter := range removed {
			if err := m.log.Append(logRecord{Opcode: opRemoveVote, PollID: p.ID, Height: height, Voter: voter}); err != nil {
				return err
			}
		}
		if p.VotesInFavor.Size() == 0 && p.StartHeight == height {
			delete(m.polls, p.ID)
			delete(m.pollsByData, dataKey(p.Data))
			if err := m.log.Append(logRecord{Opcode: opDeletePoll, PollID: p.ID, Height: height}); err != nil {
				return err
			}
		}
	}
	return nil
}

func pollsSortedByID(polls map[uint64]*Poll) []*Poll {
	out := make([]*Poll, 0, len(polls))
	for _, p := range polls {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// undoSideEffect reverses executeSideEffect's durable write.
func (m *Manager) undoSideEffect(p *Poll, height, blockTime uint64) error {
	switch p.Data.Key {
	case KeyAddMember:
		pubKey, err := DecodePayload32(p.Data.Payload)
		if err != nil {
			return err
		}
		member := chain.FederationMember{PubKey: chain.PubKey(pubKey)}
		if err := m.fedMutator.RemoveMember(chain.PubKey(pubKey), height); err != nil {
			return err
		}
		m.post(event.MemberKickedEvent{Member: member, Height: height, Time: blockTime})
		return nil
	case KeyKickMember:
		pubKey, err := DecodePayload32(p.Data.Payload)
		if err != nil {
			return err
		}
		member := chain.FederationMember{PubKey: chain.PubKey(pubKey)}
		// Reseat at the slot the member held before the kick rather than
		// the tail, so apply-then-revert is the identity on roster order
		// (§4.2). Fall back to the tail if the index was never captured
		// (e.g. a log written before this field existed).
		index := len(m.federation.Members())
		if p.KickedMemberIndex != nil {
			index = *p.KickedMemberIndex
		}
		if err := m.fedMutator.InsertMemberAt(index, member, height); err != nil {
			return err
		}
		p.KickedMemberIndex = nil
		m.post(event.MemberAddedEvent{Member: member, Height: height, Time: blockTime})
		return nil
	case KeyWhitelistHash:
		hash, err := DecodePayload32(p.Data.Payload)
		if err != nil {
			return err
		}
		return m.whitelist.RemoveHash(hash)
	case KeyRemoveHash:
		hash, err := DecodePayload32(p.Data.Payload)
		if err != nil {
			return err
		}
		return m.whitelist.AddHash(hash)
	default:
		return errors.InvariantViolation("unreachable: unknown vote key reached execution undo")
	}
}
