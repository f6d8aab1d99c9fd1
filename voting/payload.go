package voting

import (
	"encoding/hex"

	"github.com/bytom/federation/errors"
)

var errBadPayloadLength = errors.New("voting: payload must be 32 bytes")

// MemberPayload returns the VotingData payload for an AddMember/KickMember
// vote: the target's raw 32-byte pubkey. Membership votes never carry the
// multisig flag - multisig members are injected at genesis and are never
// themselves votable (§3).
func MemberPayload(pubKey [32]byte) []byte {
	out := make([]byte, 32)
	copy(out, pubKey[:])
	return out
}

// DecodePayload32 decodes a 32-byte VotingData payload (a pubkey for
// member votes, a digest for whitelist votes).
func DecodePayload32(payload []byte) ([32]byte, error) {
	var out [32]byte
	if len(payload) != 32 {
		return out, errBadPayloadLength
	}
	copy(out[:], payload)
	return out, nil
}

// DecodePayload32FromHex decodes a hex-encoded 32-byte value, as accepted
// at the admin HTTP edge for whitelist hash votes.
func DecodePayload32FromHex(s string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	return DecodePayload32(b)
}
