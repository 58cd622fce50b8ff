package shmlat

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"gosuda.org/shmlat/internal/log"
	"gosuda.org/shmlat/internal/protocol"
	"gosuda.org/shmlat/internal/stamp"
)

// Exchange Memory Layout:
//
// <<<< SEGMENT_START
// CONTROL PAGE (protocol.ControlSize)  // Header, plus the notice rings of the ring gate
// <<<< DATA_START
// DATA REGION (capacity)               // One message at a time, 19-byte timestamp first
// <<<< SEGMENT_END

// Producer is the writing side of an exchange.
type Producer struct {
	Timeout time.Duration // Limit for each handshake wait, 0 waits forever
	Logger  *log.Logger

	hdr   *protocol.Header
	data  []byte
	gate  Gate
	seq   uint64
	phase atomic.Int32
}

// NewProducer initializes the control header in mem and returns the writer
// of the data region that follows it.
func NewProducer(mem []byte, gate Gate) (*Producer, error) {
	hdr, err := protocol.HeaderAt(mem)
	if err != nil {
		return nil, err
	}

	data := mem[protocol.ControlSize:]
	hdr.Init(uint64(len(data)), uint32(os.Getpid()))
	return &Producer{hdr: hdr, data: data, gate: gate}, nil
}

// Capacity returns the largest message Send accepts
func (p *Producer) Capacity() int {
	return len(p.data)
}

// Phase returns where the producer is in the handshake
func (p *Producer) Phase() protocol.Phase {
	return protocol.Phase(p.phase.Load())
}

// Sent returns the number of messages handed to the consumer
func (p *Producer) Sent() uint64 {
	return p.seq
}

// Send waits for the data region to be released, copies msg into it and
// hands it to the consumer. It does not wait for the consumer to read it.
func (p *Producer) Send(ctx context.Context, msg []byte) error {
	if len(msg) > len(p.data) {
		return errors.Wrapf(ErrBufferOverflow, "%d bytes into %d", len(msg), len(p.data))
	}

	seq := p.seq + 1
	ctx, cancel := withTimeout(ctx, p.Timeout)
	defer cancel()

	if err := p.gate.WaitProducer(ctx); err != nil {
		return errors.Wrapf(err, "message %d: waiting for the region", seq)
	}

	p.setPhase(protocol.PhaseProducerWriting)
	copy(p.data, msg)
	p.hdr.Publish(seq, uint64(len(msg)))

	if err := p.gate.SignalConsumer(seq, uint64(len(msg))); err != nil {
		return errors.Wrapf(err, "message %d: signalling consumer", seq)
	}
	p.seq = seq
	p.setPhase(protocol.PhaseWaitingForConsumer)
	p.Logger.Debugf("message %d: %d bytes published", seq, len(msg))

	return nil
}

func (p *Producer) setPhase(ph protocol.Phase) {
	p.phase.Store(int32(ph))
}

// Consumer is the reading side of an exchange.
type Consumer struct {
	Timeout time.Duration // Limit for each handshake wait, 0 waits forever
	Logger  *log.Logger

	hdr   *protocol.Header
	data  []byte
	gate  Gate
	seq   uint64
	phase atomic.Int32
}

// Delivery describes one received message.
type Delivery struct {
	Seq  uint64          // Sequence assigned by the producer, from 1
	Size int             // Length of the message in the data region
	N    int             // Bytes copied into the caller's buffer
	At   stamp.Timestamp // Clock sampled right after the copy
}

// NewConsumer checks the control header the producer wrote to mem and
// returns the reader of its data region.
func NewConsumer(mem []byte, gate Gate) (*Consumer, error) {
	hdr, err := protocol.HeaderAt(mem)
	if err != nil {
		return nil, err
	}
	if err := hdr.Validate(); err != nil {
		return nil, err
	}

	data := mem[protocol.ControlSize:]
	if c := hdr.Capacity(); c > uint64(len(data)) {
		return nil, errors.Wrapf(protocol.ErrBadSegment, "header claims %d data bytes, segment holds %d", c, len(data))
	}
	hdr.SetConsumerPID(uint32(os.Getpid()))

	return &Consumer{hdr: hdr, data: data[:hdr.Capacity()], gate: gate}, nil
}

// Capacity returns the size of the data region
func (c *Consumer) Capacity() int {
	return len(c.data)
}

// Phase returns where the consumer is in the handshake
func (c *Consumer) Phase() protocol.Phase {
	return protocol.Phase(c.phase.Load())
}

// Received returns the number of messages read so far
func (c *Consumer) Received() uint64 {
	return c.seq
}

// Receive waits for the next message, copies up to len(dst) bytes of it
// into dst, samples the clock and releases the region to the producer.
func (c *Consumer) Receive(ctx context.Context, dst []byte) (Delivery, error) {
	want := c.seq + 1
	ctx, cancel := withTimeout(ctx, c.Timeout)
	defer cancel()

	if err := c.gate.WaitConsumer(ctx); err != nil {
		return Delivery{}, errors.Wrapf(err, "message %d: waiting for the producer", want)
	}

	c.setPhase(protocol.PhaseConsumerReading)
	seq, size := c.hdr.Current()
	if seq != want {
		return Delivery{}, errors.Wrapf(ErrProtocol, "region holds message %d, want %d", seq, want)
	}
	if size > uint64(len(c.data)) {
		return Delivery{}, errors.Wrapf(ErrBufferOverflow, "message %d claims %d bytes of %d", seq, size, len(c.data))
	}

	n := copy(dst, c.data[:size])
	at := stamp.Sample()

	if err := c.gate.SignalProducer(seq); err != nil {
		return Delivery{}, errors.Wrapf(err, "message %d: releasing the region", seq)
	}
	c.seq = seq
	c.setPhase(protocol.PhaseWaitingForProducer)
	c.Logger.Debugf("message %d: %d of %d bytes copied", seq, n, size)

	return Delivery{Seq: seq, Size: int(size), N: n, At: at}, nil
}

func (c *Consumer) setPhase(ph protocol.Phase) {
	c.phase.Store(int32(ph))
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
