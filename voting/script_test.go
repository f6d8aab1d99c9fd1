package voting

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeVotingDataRoundTrip(t *testing.T) {
	votes := []VotingData{
		{Key: KeyAddMember, Payload: MemberPayload([32]byte{1, 2, 3})},
		{Key: KeyWhitelistHash, Payload: MemberPayload([32]byte{4, 5, 6})},
	}

	encoded, err := EncodeVotingData(votes)
	require.NoError(t, err)

	decoded, err := DecodeVotingData(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	for i := range votes {
		require.True(t, votes[i].Equal(decoded[i]))
	}
}

func TestDecodeVotingDataEmptyPayload(t *testing.T) {
	decoded, err := DecodeVotingData(nil)
	require.NoError(t, err)
	require.Nil(t, decoded)
}

func TestDecodeVotingDataBadMagic(t *testing.T) {
	_, err := DecodeVotingData([]byte("nope"))
	require.Error(t, err)
}

func TestDecodeVotingDataUnknownKeyKept(t *testing.T) {
	votes := []VotingData{{Key: Key(200), Payload: []byte("future")}}
	encoded, err := EncodeVotingData(votes)
	require.NoError(t, err)

	decoded, err := DecodeVotingData(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	require.False(t, decoded[0].Key.IsKnown())
}
