// Package payload builds the messages pushed through the shared segment.
// The first stamp.HeaderSize bytes of every message are left for the
// timestamp header.
package payload

import (
	"encoding/binary"
	"math/rand/v2"

	"github.com/pkg/errors"

	"gosuda.org/shmlat/internal/stamp"
)

// ErrTorn is returned by Check when a message mixes bytes of two iterations.
var ErrTorn = errors.New("payload: torn message")

// markerSize is the sequence number written right after the header by Pattern.
const markerSize = 8

// Random returns a size-byte message whose body is drawn from r.
// The header region is zeroed.
func Random(r *rand.Rand, size int) []byte {
	buf := make([]byte, size)
	if size <= stamp.HeaderSize {
		return buf
	}

	body := buf[stamp.HeaderSize:]
	i := 0
	for ; i+8 <= len(body); i += 8 {
		binary.LittleEndian.PutUint64(body[i:], r.Uint64())
	}
	if i < len(body) {
		var tail [8]byte
		binary.LittleEndian.PutUint64(tail[:], r.Uint64())
		copy(body[i:], tail[:])
	}

	return buf
}

// Pattern returns a size-byte message stamped for iteration seq: the
// sequence number follows the header and every remaining byte holds byte(seq).
func Pattern(size int, seq uint64) []byte {
	buf := make([]byte, size)
	if size < stamp.HeaderSize+markerSize {
		return buf
	}

	binary.BigEndian.PutUint64(buf[stamp.HeaderSize:], seq)
	fill := byte(seq)
	for i := stamp.HeaderSize + markerSize; i < size; i++ {
		buf[i] = fill
	}

	return buf
}

// Check verifies that msg is an intact Pattern message for iteration seq.
func Check(msg []byte, seq uint64) error {
	if len(msg) < stamp.HeaderSize+markerSize {
		return nil
	}

	if got := binary.BigEndian.Uint64(msg[stamp.HeaderSize:]); got != seq {
		return errors.Wrapf(ErrTorn, "marker %d, want %d", got, seq)
	}

	fill := byte(seq)
	for i := stamp.HeaderSize + markerSize; i < len(msg); i++ {
		if msg[i] != fill {
			return errors.Wrapf(ErrTorn, "byte %d is %#x, want %#x", i, msg[i], fill)
		}
	}

	return nil
}
