// Package idlekicker implements the Idle-Members Kicker: it watches which
// members have produced blocks recently and schedules a KickMember vote
// for any member that has gone idle past the configured threshold.
package idlekicker

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/bytom/federation/chain"
	"github.com/bytom/federation/event"
	"github.com/bytom/federation/voting"
)

// FederationView is the read-only roster surface the Kicker scans each
// block to find idle, kickable (non-multisig) members.
type FederationView interface {
	Members() []chain.FederationMember
	IsMultisig(pubKey chain.PubKey) bool
	IsFederationMember(pubKey chain.PubKey) bool
}

// VoteScheduler is the subset of *voting.Manager the Kicker drives.
type VoteScheduler interface {
	ScheduleVote(v voting.VotingData) error
	AlreadyVotedOrScheduled(v voting.VotingData) bool
}

// Kicker tracks each member's last-active unix time and proposes a kick
// once a member has gone silent for more than MaxIdleSeconds.
type Kicker struct {
	mu   sync.Mutex
	path string

	lastActive map[chain.PubKey]uint64

	maxIdleSeconds uint64
	slotOracle     chain.SlotOracle
	selfPubKey     chain.PubKey
	federation     FederationView
	voting         VoteScheduler
	logger         *logrus.Entry
}

// Config bundles a Kicker's external collaborators and tunables.
type Config struct {
	Path           string
	MaxIdleSeconds uint64
	SlotOracle     chain.SlotOracle
	SelfPubKey     chain.PubKey
	Federation     FederationView
	Voting         VoteScheduler
	Dispatcher     *event.Dispatcher
}

// New constructs a Kicker backed by the last-active snapshot at cfg.Path
// and subscribes it to the roster-change events it needs to stay
// consistent: a newly added member starts its idle clock at the time it
// joined, and a kicked member is dropped from tracking so it is never
// proposed twice.
func New(cfg Config) (*Kicker, error) {
	if err := ensureDir(cfg.Path); err != nil {
		return nil, err
	}
	snap, err := loadSnapshot(cfg.Path)
	if err != nil {
		return nil, err
	}

	k := &Kicker{
		path:           cfg.Path,
		lastActive:     snap.toMap(),
		maxIdleSeconds: cfg.MaxIdleSeconds,
		slotOracle:     cfg.SlotOracle,
		selfPubKey:     cfg.SelfPubKey,
		federation:     cfg.Federation,
		voting:         cfg.Voting,
		logger:         logrus.WithField("module", "idlekicker"),
	}

	if cfg.Dispatcher != nil {
		if _, err := cfg.Dispatcher.SubscribeFunc(event.MemberAddedEvent{}, k.handleMemberAdded); err != nil {
			return nil, err
		}
		if _, err := cfg.Dispatcher.SubscribeFunc(event.MemberKickedEvent{}, k.handleMemberKicked); err != nil {
			return nil, err
		}
	}
	return k, nil
}

// SeedMember seeds pubKey's idle clock with wallClock if it isn't already
// tracked, for the cold-start case (§4.3: "seed lastActive for every
// current member with the node's current wall-clock time").
func (k *Kicker) SeedMember(pubKey chain.PubKey, wallClock uint64) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if _, tracked := k.lastActive[pubKey]; tracked {
		return nil
	}
	k.lastActive[pubKey] = wallClock
	return k.persistLocked()
}

// handleMemberAdded seeds a newly seated member's idle clock so it isn't
// immediately eligible for kicking. Invoked synchronously by the
// Dispatcher, guaranteeing this runs before the next block is processed.
func (k *Kicker) handleMemberAdded(raw interface{}) {
	ev, ok := raw.(event.MemberAddedEvent)
	if !ok {
		return
	}
	k.mu.Lock()
	defer k.mu.Unlock()

	if _, tracked := k.lastActive[ev.Member.PubKey]; tracked {
		return
	}
	k.lastActive[ev.Member.PubKey] = ev.Time
	if err := k.persistLocked(); err != nil {
		k.logger.WithError(err).Error("idlekicker: failed to persist after member added")
	}
}

// handleMemberKicked stops tracking a member once it leaves the roster.
func (k *Kicker) handleMemberKicked(raw interface{}) {
	ev, ok := raw.(event.MemberKickedEvent)
	if !ok {
		return
	}
	k.mu.Lock()
	defer k.mu.Unlock()

	delete(k.lastActive, ev.Member.PubKey)
	if err := k.persistLocked(); err != nil {
		k.logger.WithError(err).Error("idlekicker: failed to persist after member kicked")
	}
}

// OnBlockConnected credits the block's assigned slot-holder with the
// block's header time, then, only if this node itself currently holds a
// federation seat (the fairness constraint in §4.3), scans the roster for
// members idle past MaxIdleSeconds and schedules a kick vote for each,
// skipping multisig members and any vote already scheduled or already
// cast by this node.
func (k *Kicker) OnBlockConnected(block *chain.Block, header *chain.ChainedHeader) error {
	blockTime := header.Header.Time

	producer, err := k.slotOracle.SlotAssignment(blockTime)
	if err != nil {
		producer = block.Miner
	}

	k.mu.Lock()
	k.lastActive[producer] = blockTime
	if err := k.persistLocked(); err != nil {
		k.mu.Unlock()
		return err
	}
	k.mu.Unlock()

	if !k.federation.IsFederationMember(k.selfPubKey) {
		return nil
	}

	for _, member := range k.federation.Members() {
		if member.IsMultisig {
			continue
		}
		k.mu.Lock()
		last, tracked := k.lastActive[member.PubKey]
		k.mu.Unlock()
		if !tracked {
			continue
		}
		if blockTime-last <= k.maxIdleSeconds {
			continue
		}

		kick := voting.VotingData{Key: voting.KeyKickMember, Payload: voting.MemberPayload(member.PubKey)}
		if k.voting.AlreadyVotedOrScheduled(kick) {
			continue
		}
		if err := k.voting.ScheduleVote(kick); err != nil {
			k.logger.WithError(err).WithField("pubkey", member.PubKey.String()).
				Warn("idlekicker: failed to schedule kick vote")
		}
	}
	return nil
}

// OnBlockDisconnected drops the slot-holder's last-active entry if it was
// set by exactly this block; another block at the same height may already
// have re-credited a different time, which this leaves alone. The earlier
// last-active time is not restored: the member stays untracked (and so is
// not considered for kicking) until a later block credits it again.
func (k *Kicker) OnBlockDisconnected(block *chain.Block, header *chain.ChainedHeader) error {
	blockTime := header.Header.Time
	producer, err := k.slotOracle.SlotAssignment(blockTime)
	if err != nil {
		producer = block.Miner
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if k.lastActive[producer] == blockTime {
		delete(k.lastActive, producer)
	}
	return k.persistLocked()
}

func (k *Kicker) persistLocked() error {
	return saveSnapshot(k.path, snapshotFromMap(k.lastActive))
}
