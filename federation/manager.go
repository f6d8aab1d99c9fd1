package federation

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/bytom/federation/chain"
	"github.com/bytom/federation/errors"
)

// Manager is the Federation Manager: the authoritative, disk-backed roster
// of members authorized to produce blocks and vote. It implements
// voting.FederationView and voting.FederationMutator.
type Manager struct {
	mu   sync.RWMutex
	path string

	members map[chain.PubKey]chain.FederationMember
	// order is the roster's slot order (the PoA slot assignment). It is
	// persisted as the snapshot's Members slice order and rebuilt from it
	// on load.
	order []chain.PubKey

	// history is the durable roster-mutation log GetMembersAt replays.
	history []RosterChange

	selfPubKey chain.PubKey
	hasSelfKey bool

	logger *logrus.Entry
}

// NewManager loads the roster from path (federation.json), creating an
// empty one if the file does not exist yet. selfPubKey identifies this
// process's own federation identity, or is nil for an observer node with
// no voting identity loaded (§4.2: CurrentKey() "the node's own pubkey,
// or absent").
func NewManager(path string, selfPubKey *chain.PubKey) (*Manager, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	snap, err := loadSnapshot(path)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		path:    path,
		members: make(map[chain.PubKey]chain.FederationMember),
		history: snap.History,
		logger:  logrus.WithField("module", "federation"),
	}
	if selfPubKey != nil {
		m.selfPubKey = *selfPubKey
		m.hasSelfKey = true
	}
	for _, rec := range snap.Members {
		member, err := rec.toChain()
		if err != nil {
			return nil, errors.Wrap(err, "federation: loading snapshot member")
		}
		m.members[member.PubKey] = member
		m.order = append(m.order, member.PubKey)
	}
	// A hand-edited genesis file carries Members with no History: treat
	// every one of them as having joined at height 0, in snapshot order,
	// so GetMembersAt can still replay them.
	if len(m.history) == 0 {
		for i, pk := range m.order {
			m.history = append(m.history, RosterChange{
				Height:     0,
				PubKey:     pk.String(),
				IsMultisig: m.members[pk].IsMultisig,
				Index:      i,
			})
		}
	}
	return m, nil
}

// CurrentKey returns this process's own federation pubkey, and whether one
// is configured (§4.2).
func (m *Manager) CurrentKey() (chain.PubKey, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.selfPubKey, m.hasSelfKey
}

// Members returns the current roster in stable (insertion) order.
func (m *Manager) Members() []chain.FederationMember {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]chain.FederationMember, 0, len(m.order))
	for _, pk := range m.order {
		out = append(out, m.members[pk])
	}
	return out
}

// IsFederationMember reports whether pubKey currently holds a seat.
func (m *Manager) IsFederationMember(pubKey chain.PubKey) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.members[pubKey]
	return ok
}

// IsMultisig reports whether pubKey is currently a seated multisig member.
// Unseated keys (including kicked or never-seated ones) report false.
func (m *Manager) IsMultisig(pubKey chain.PubKey) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	member, ok := m.members[pubKey]
	return ok && member.IsMultisig
}

// AddMember seats member at the tail of the roster, persisting the
// updated roster. Re-adding an already-seated member is a no-op
// (idempotent, matching the Voting Manager's crash-recovery replay
// expectations). height is the block height the seating took effect at,
// recorded for GetMembersAt.
func (m *Manager) AddMember(member chain.FederationMember, height uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.members[member.PubKey]; ok {
		return nil
	}
	return m.insertLocked(member, len(m.order), height)
}

// InsertMemberAt reseats member at index instead of the tail, restoring
// the exact slot it held before being kicked: roster order is the PoA
// slot assignment (§4.2), so undoing a kick must not shift every other
// member's slot the way appending at the tail would. Re-adding an
// already-seated member is a no-op.
func (m *Manager) InsertMemberAt(index int, member chain.FederationMember, height uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.members[member.PubKey]; ok {
		return nil
	}
	if index < 0 || index > len(m.order) {
		index = len(m.order)
	}
	return m.insertLocked(member, index, height)
}

func (m *Manager) insertLocked(member chain.FederationMember, index int, height uint64) error {
	m.members[member.PubKey] = member
	m.order = insertPubKeyAt(m.order, index, member.PubKey)
	m.history = append(m.history, RosterChange{
		Height:     height,
		PubKey:     member.PubKey.String(),
		IsMultisig: member.IsMultisig,
		Index:      index,
	})

	if err := m.persistLocked(); err != nil {
		m.rollbackAddLocked(member.PubKey)
		return err
	}
	m.logger.WithField("pubkey", member.PubKey.String()).Info("federation: member added")
	return nil
}

// IndexOf reports pubKey's current seat position, used by the Voting
// Manager to remember where a kicked member sat so a later reorg revert
// can restore it to that exact slot via InsertMemberAt (§4.2).
func (m *Manager) IndexOf(pubKey chain.PubKey) (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i, pk := range m.order {
		if pk == pubKey {
			return i, true
		}
	}
	return 0, false
}

// RemoveMember unseats pubKey, persisting the updated roster. Removing an
// already-absent member is a no-op. A multisig member can never be
// removed through this path; it is a programmer error, not recoverable
// chain data, so it is reported as an invariant violation. height is the
// block height the removal took effect at, recorded for GetMembersAt.
func (m *Manager) RemoveMember(pubKey chain.PubKey, height uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	member, ok := m.members[pubKey]
	if !ok {
		return nil
	}
	if member.IsMultisig {
		return errors.InvariantViolation("multisig members can never be removed from the roster")
	}

	index := -1
	for i, pk := range m.order {
		if pk == pubKey {
			index = i
			break
		}
	}

	delete(m.members, pubKey)
	m.order = append(m.order[:index], m.order[index+1:]...)
	m.history = append(m.history, RosterChange{Height: height, PubKey: pubKey.String(), Removed: true})

	if err := m.persistLocked(); err != nil {
		m.members[pubKey] = member
		m.order = insertPubKeyAt(m.order, index, pubKey)
		m.history = m.history[:len(m.history)-1]
		return err
	}
	m.logger.WithField("pubkey", pubKey.String()).Info("federation: member removed")
	return nil
}

// GetMembersAt returns the roster as it stood at height, replaying the
// durable roster-mutation history rather than the live in-memory roster.
// Used to validate that a past block was signed by the slot-holder
// authorized at the time it was produced (§6).
func (m *Manager) GetMembersAt(height uint64) ([]chain.FederationMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	members := make(map[chain.PubKey]chain.FederationMember)
	var order []chain.PubKey
	for _, ch := range m.history {
		if ch.Height > height {
			continue
		}
		pk, err := chain.ParsePubKey(ch.PubKey)
		if err != nil {
			return nil, errors.Wrap(err, "federation: decoding roster history entry")
		}
		if ch.Removed {
			delete(members, pk)
			for i, p := range order {
				if p == pk {
					order = append(order[:i], order[i+1:]...)
					break
				}
			}
			continue
		}
		if _, ok := members[pk]; ok {
			continue
		}
		members[pk] = chain.FederationMember{PubKey: pk, IsMultisig: ch.IsMultisig}
		idx := ch.Index
		if idx < 0 || idx > len(order) {
			idx = len(order)
		}
		order = insertPubKeyAt(order, idx, pk)
	}

	out := make([]chain.FederationMember, 0, len(order))
	for _, pk := range order {
		out = append(out, members[pk])
	}
	return out, nil
}

func (m *Manager) rollbackAddLocked(pubKey chain.PubKey) {
	delete(m.members, pubKey)
	for i, pk := range m.order {
		if pk == pubKey {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.history = m.history[:len(m.history)-1]
}

// insertPubKeyAt splices pk into order at index, shifting the remainder
// right by one rather than appending at the tail.
func insertPubKeyAt(order []chain.PubKey, index int, pk chain.PubKey) []chain.PubKey {
	order = append(order, chain.PubKey{})
	copy(order[index+1:], order[index:])
	order[index] = pk
	return order
}

func (m *Manager) persistLocked() error {
	snap := Snapshot{Members: make([]MemberRecord, 0, len(m.order)), History: m.history}
	for _, pk := range m.order {
		snap.Members = append(snap.Members, fromChain(m.members[pk]))
	}
	if err := saveSnapshot(m.path, snap); err != nil {
		return errors.Persistence(err, "federation: saving snapshot")
	}
	return nil
}
