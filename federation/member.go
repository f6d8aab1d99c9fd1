// Package federation implements the Federation Manager: it owns the
// authoritative roster of block-producing members (plus the fixed
// multisig members injected at genesis) and persists it to disk.
package federation

import "github.com/bytom/federation/chain"

// Snapshot is the roster's on-disk shape, serialized to federation.json.
// Field names are kept stable since this file is also hand-edited at
// genesis time to seed the initial multisig members.
type Snapshot struct {
	Members []MemberRecord `json:"members"`

	// History is the durable roster-mutation log GetMembersAt replays.
	// It is additive and never hand-edited; a genesis file with no
	// history entries is simply one whose Members are all taken to have
	// joined at height 0.
	History []RosterChange `json:"history,omitempty"`
}

// MemberRecord is one roster entry as persisted to disk.
type MemberRecord struct {
	PubKey     string `json:"pubkey"`
	IsMultisig bool   `json:"is_multisig"`
}

// RosterChange records one AddMember/InsertMemberAt/RemoveMember
// mutation, tagged with the height it took effect at and, for additions,
// the index the member was seated at. Replaying the log in order
// reconstructs the roster as it stood at any earlier height (§6), and
// preserves the exact slot a kicked member is reseated at on revert
// rather than appending it back at the tail.
type RosterChange struct {
	Height     uint64 `json:"height"`
	PubKey     string `json:"pubkey"`
	IsMultisig bool   `json:"is_multisig,omitempty"`
	Removed    bool   `json:"removed,omitempty"`
	Index      int    `json:"index,omitempty"`
}

func (r MemberRecord) toChain() (chain.FederationMember, error) {
	pk, err := chain.ParsePubKey(r.PubKey)
	if err != nil {
		return chain.FederationMember{}, err
	}
	return chain.FederationMember{PubKey: pk, IsMultisig: r.IsMultisig}, nil
}

func fromChain(m chain.FederationMember) MemberRecord {
	return MemberRecord{PubKey: m.PubKey.String(), IsMultisig: m.IsMultisig}
}
