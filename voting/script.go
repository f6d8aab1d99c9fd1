package voting

import (
	"bytes"
	"io"

	"github.com/bytom/federation/encoding/blockchain"
	"github.com/bytom/federation/errors"
)

// voteMagic distinguishes the governance core's coinbase payload from any
// other use a miner might make of the distinguished output (§6). The real
// OP_RETURN opcode framing belongs to the transaction-script collaborator,
// out of scope here; this package only owns the bytes that sit behind it.
var voteMagic = [4]byte{'V', 'O', 'T', 'E'}

var (
	errBadMagic  = errors.New("voting: coinbase payload missing vote magic")
	errBadEntry  = errors.New("voting: malformed vote entry")
	errTooLarge  = errors.New("voting: vote payload exceeds maximum size")
	maxPayload   = 4096 // generous upper bound on a single VotingData payload
	maxEntries   = 64   // a block's coinbase is not expected to carry more
)

// EncodeVotingData serializes a sequence of votes into the coinbase wire
// format: magic, varint entry count, then per entry
// key:uint8 | len:varint | payload:bytes.
func EncodeVotingData(votes []VotingData) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(voteMagic[:])
	if _, err := blockchain.WriteVarint63(buf, uint64(len(votes))); err != nil {
		return nil, err
	}
	for _, v := range votes {
		if len(v.Payload) > maxPayload {
			return nil, errTooLarge
		}
		buf.WriteByte(byte(v.Key))
		if _, err := blockchain.WriteVarint63(buf, uint64(len(v.Payload))); err != nil {
			return nil, err
		}
		buf.Write(v.Payload)
	}
	return buf.Bytes(), nil
}

// DecodeVotingData parses a coinbase payload produced by EncodeVotingData.
// Entries with a key byte outside the known range are kept (with
// Key.IsKnown() false) rather than rejected, so callers can skip them with
// an UnknownVote warning instead of failing the whole block (§7).
func DecodeVotingData(data []byte) ([]VotingData, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if len(data) < len(voteMagic) || !bytes.Equal(data[:len(voteMagic)], voteMagic[:]) {
		return nil, errBadMagic
	}
	r := bytes.NewReader(data[len(voteMagic):])

	count, err := blockchain.ReadVarint63(r)
	if err != nil {
		return nil, errors.Wrap(err, "voting: reading entry count")
	}
	if count > uint64(maxEntries) {
		return nil, errTooLarge
	}

	votes := make([]VotingData, 0, count)
	for i := uint64(0); i < count; i++ {
		key, err := r.ReadByte()
		if err != nil {
			return nil, errBadEntry
		}
		n, err := blockchain.ReadVarint63(r)
		if err != nil {
			return nil, errBadEntry
		}
		if n > uint64(maxPayload) {
			return nil, errTooLarge
		}
		payload := make([]byte, n)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, errBadEntry
		}
		votes = append(votes, VotingData{Key: Key(key), Payload: payload})
	}
	return votes, nil
}
