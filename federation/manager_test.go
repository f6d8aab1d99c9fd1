package federation

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bytom/federation/chain"
)

func memberKey(b byte) chain.PubKey {
	var k chain.PubKey
	k[0] = b
	return k
}

func TestNewManagerEmptyWhenNoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "federation.json")
	m, err := NewManager(path, nil)
	require.NoError(t, err)
	require.Empty(t, m.Members())
}

func TestAddAndRemoveMemberPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "federation.json")
	m, err := NewManager(path, nil)
	require.NoError(t, err)

	member := chain.FederationMember{PubKey: memberKey(1)}
	require.NoError(t, m.AddMember(member, 1))
	require.True(t, m.IsFederationMember(member.PubKey))

	reopened, err := NewManager(path, nil)
	require.NoError(t, err)
	require.True(t, reopened.IsFederationMember(member.PubKey))

	require.NoError(t, m.RemoveMember(member.PubKey, 2))
	require.False(t, m.IsFederationMember(member.PubKey))

	reopened2, err := NewManager(path, nil)
	require.NoError(t, err)
	require.False(t, reopened2.IsFederationMember(member.PubKey))
}

func TestAddMemberIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "federation.json")
	m, err := NewManager(path, nil)
	require.NoError(t, err)

	member := chain.FederationMember{PubKey: memberKey(2)}
	require.NoError(t, m.AddMember(member, 1))
	require.NoError(t, m.AddMember(member, 1))
	require.Len(t, m.Members(), 1)
}

func TestRemoveMultisigMemberRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "federation.json")
	m, err := NewManager(path, nil)
	require.NoError(t, err)

	multisig := chain.FederationMember{PubKey: memberKey(3), IsMultisig: true}
	require.NoError(t, m.AddMember(multisig, 0))

	err = m.RemoveMember(multisig.PubKey, 1)
	require.Error(t, err)
	require.True(t, m.IsFederationMember(multisig.PubKey))
}

func TestIsMultisig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "federation.json")
	m, err := NewManager(path, nil)
	require.NoError(t, err)

	require.NoError(t, m.AddMember(chain.FederationMember{PubKey: memberKey(4), IsMultisig: true}, 0))
	require.NoError(t, m.AddMember(chain.FederationMember{PubKey: memberKey(5)}, 0))

	require.True(t, m.IsMultisig(memberKey(4)))
	require.False(t, m.IsMultisig(memberKey(5)))
	require.False(t, m.IsMultisig(memberKey(99)))
}

func TestCurrentKeyAbsentWithoutSelfPubKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "federation.json")
	m, err := NewManager(path, nil)
	require.NoError(t, err)

	_, ok := m.CurrentKey()
	require.False(t, ok)
}

func TestCurrentKeyReturnsConfiguredIdentity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "federation.json")
	self := memberKey(7)
	m, err := NewManager(path, &self)
	require.NoError(t, err)

	got, ok := m.CurrentKey()
	require.True(t, ok)
	require.Equal(t, self, got)
}

func TestInsertMemberAtRestoresOriginalPosition(t *testing.T) {
	path := filepath.Join(t.TempDir(), "federation.json")
	m, err := NewManager(path, nil)
	require.NoError(t, err)

	k1, k2, k3, k4 := memberKey(1), memberKey(2), memberKey(3), memberKey(4)
	require.NoError(t, m.AddMember(chain.FederationMember{PubKey: k1}, 0))
	require.NoError(t, m.AddMember(chain.FederationMember{PubKey: k2}, 0))
	require.NoError(t, m.AddMember(chain.FederationMember{PubKey: k3}, 0))
	require.NoError(t, m.AddMember(chain.FederationMember{PubKey: k4}, 0))

	idx, ok := m.IndexOf(k2)
	require.True(t, ok)
	require.Equal(t, 1, idx)

	require.NoError(t, m.RemoveMember(k2, 1))
	require.Equal(t, []chain.PubKey{k1, k3, k4}, pubKeysOf(m.Members()))

	require.NoError(t, m.InsertMemberAt(idx, chain.FederationMember{PubKey: k2}, 2))
	require.Equal(t, []chain.PubKey{k1, k2, k3, k4}, pubKeysOf(m.Members()))
}

func TestGetMembersAtReplaysHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "federation.json")
	m, err := NewManager(path, nil)
	require.NoError(t, err)

	k1, k2 := memberKey(1), memberKey(2)
	require.NoError(t, m.AddMember(chain.FederationMember{PubKey: k1}, 1))
	require.NoError(t, m.AddMember(chain.FederationMember{PubKey: k2}, 5))
	require.NoError(t, m.RemoveMember(k2, 9))

	at0, err := m.GetMembersAt(0)
	require.NoError(t, err)
	require.Empty(t, at0)

	at1, err := m.GetMembersAt(1)
	require.NoError(t, err)
	require.Equal(t, []chain.PubKey{k1}, pubKeysOf(at1))

	at5, err := m.GetMembersAt(5)
	require.NoError(t, err)
	require.Equal(t, []chain.PubKey{k1, k2}, pubKeysOf(at5))

	at9, err := m.GetMembersAt(9)
	require.NoError(t, err)
	require.Equal(t, []chain.PubKey{k1}, pubKeysOf(at9))
}

func pubKeysOf(members []chain.FederationMember) []chain.PubKey {
	out := make([]chain.PubKey, len(members))
	for i, m := range members {
		out[i] = m.PubKey
	}
	return out
}
