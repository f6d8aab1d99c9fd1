// Package blockchain provides the varint read/write primitives used to
// encode the coinbase voting-data script. It is a minimal reconstruction of
// the teacher's own github.com/vapor/encoding/blockchain package, whose call
// shape (ReadVarint63/WriteVarint63) is visible from its use sites in
// protocol/bc/types/txinput.go but whose source wasn't part of the
// retrieval pack.
package blockchain

import (
	"encoding/binary"
	"io"

	"github.com/bytom/federation/errors"
)

var errRange = errors.New("blockchain: varint out of range")

// WriteVarint63 writes v (which must fit in 63 bits) to w as a standard
// LEB128 varint, returning the number of bytes written.
func WriteVarint63(w io.Writer, v uint64) (int, error) {
	if v>>63 != 0 {
		return 0, errRange
	}
	buf := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(buf, v)
	return w.Write(buf[:n])
}

// ReadVarint63 reads a LEB128 varint from r, rejecting values that don't
// fit in 63 bits (the top bit is reserved the way the teacher's bc package
// reserves it for future wire extensions).
func ReadVarint63(r io.ByteReader) (uint64, error) {
	v, err := binary.ReadUvarint(r)
	if err != nil {
		return 0, err
	}
	if v>>63 != 0 {
		return 0, errRange
	}
	return v, nil
}
