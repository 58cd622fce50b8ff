package protocol

import (
	"strings"
	"sync/atomic"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/mod/semver"
)

// Segment Layout:
//
// <<<< CONTROL PAGE
// HEADER (128 bytes)                   // Magic, version, capacity, current message
// RING "ready" @ ReadyRingOffset       // Producer to consumer notices
// RING "done"  @ DoneRingOffset        // Consumer to producer notices
// <<<< DATA (ControlSize onwards)
// MESSAGE                              // Current message, header + payload

const (
	Magic   = "SHMLAT\x00\x00"
	Version = "v1.0.0"

	ControlSize     = 4096
	HeaderSize      = 128
	ReadyRingOffset = 512
	DoneRingOffset  = 2048
)

var (
	ErrBadSegment = errors.New("protocol: not a shmlat segment")
	ErrVersion    = errors.New("protocol: incompatible segment version")
)

// Header is the control block at the start of the segment.
type Header struct {
	magic       [8]byte  // 0x00: Magic
	version     [16]byte // 0x08: semantic version, NUL padded
	capacity    uint64   // 0x18: data region size in bytes
	producerPID uint32   // 0x20
	consumerPID uint32   // 0x24
	seq         uint64   // 0x28: sequence of the message in the data region
	size        uint64   // 0x30: length of the message in the data region
	reserved    [72]byte // 0x38-0x7F
}

// HeaderAt returns the header view over the control page of mem.
func HeaderAt(mem []byte) (*Header, error) {
	if len(mem) < ControlSize {
		return nil, errors.Wrapf(ErrBadSegment, "segment of %d bytes has no control page", len(mem))
	}
	return (*Header)(unsafe.Pointer(&mem[0])), nil
}

// Init writes a fresh header. The magic is written last so that a reader
// never accepts a half-initialized page.
func (h *Header) Init(capacity uint64, producerPID uint32) {
	h.magic = [8]byte{}
	h.version = [16]byte{}
	copy(h.version[:], Version)
	atomic.StoreUint64(&h.capacity, capacity)
	atomic.StoreUint32(&h.producerPID, producerPID)
	atomic.StoreUint32(&h.consumerPID, 0)
	atomic.StoreUint64(&h.seq, 0)
	atomic.StoreUint64(&h.size, 0)
	copy(h.magic[:], Magic)
}

// Validate checks the magic and that the segment speaks our major version.
func (h *Header) Validate() error {
	if string(h.magic[:]) != Magic {
		return errors.Wrapf(ErrBadSegment, "magic %q", h.magic[:])
	}

	v := h.Version()
	if !semver.IsValid(v) || semver.Major(v) != semver.Major(Version) {
		return errors.Wrapf(ErrVersion, "segment %q, local %q", v, Version)
	}

	return nil
}

// Version returns the version string recorded by the producer.
func (h *Header) Version() string {
	return strings.TrimRight(string(h.version[:]), "\x00")
}

// Capacity returns the size of the data region
func (h *Header) Capacity() uint64 {
	return atomic.LoadUint64(&h.capacity)
}

// ProducerPID returns the pid of the process that created the segment
func (h *Header) ProducerPID() uint32 {
	return atomic.LoadUint32(&h.producerPID)
}

// ConsumerPID returns the pid of the attached consumer, 0 if none
func (h *Header) ConsumerPID() uint32 {
	return atomic.LoadUint32(&h.consumerPID)
}

// SetConsumerPID records the attached consumer
func (h *Header) SetConsumerPID(pid uint32) {
	atomic.StoreUint32(&h.consumerPID, pid)
}

// Publish records the message now held in the data region.
func (h *Header) Publish(seq, size uint64) {
	atomic.StoreUint64(&h.size, size)
	atomic.StoreUint64(&h.seq, seq)
}

// Current returns the sequence and length of the message in the data region.
func (h *Header) Current() (seq, size uint64) {
	return atomic.LoadUint64(&h.seq), atomic.LoadUint64(&h.size)
}
