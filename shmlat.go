// Package shmlat measures how long it takes to move a message from one
// process to another through a SysV shared memory segment.
//
// A producer writes messages of growing size into a single segment, each
// carrying the wall-clock time at which it was written in its first 19
// bytes. A consumer in a second process copies every message out, samples
// the clock again and reports the difference. The two sides strictly
// alternate on the segment through a two-counter handshake (see Gate).
package shmlat

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/pkg/errors"

	"gosuda.org/shmlat/internal/config"
	"gosuda.org/shmlat/internal/log"
	"gosuda.org/shmlat/internal/payload"
	"gosuda.org/shmlat/internal/stamp"
)

// MiB is the size unit of the benchmark.
const MiB = 1 << 20

// Gate kinds
const (
	GateSemaphore = config.GateSemaphore // SysV semaphore pair, works across processes
	GateRing      = config.GateRing      // Spinning rings in the control page, works across processes
	GateChannel   = config.GateChannel   // Go channels, one process only
)

// Error definitions
var (
	ErrBufferOverflow = errors.New("shmlat: message larger than segment")
	ErrProtocol       = errors.New("shmlat: handshake out of order")
	ErrSizeMismatch   = errors.New("shmlat: message size mismatch")
	ErrTimeout        = errors.New("shmlat: handshake timed out")
	ErrUnknownGate    = errors.New("shmlat: unknown gate")
	ErrOptions        = errors.New("shmlat: invalid options")
	ErrTorn           = payload.ErrTorn
)

// Options describes one run. The zero value is not usable; start from
// DefaultOptions.
type Options struct {
	Iterations int           // Number of messages
	Step       int           // Message i is Step*Unit*i bytes
	Unit       int           // Bytes per size step unit
	Gate       string        // GateSemaphore, GateRing or GateChannel
	Timeout    time.Duration // Limit for every handshake wait, 0 waits forever
	Verify     bool          // Send sequence patterns and check them on receipt
	Seed       uint64        // Payload RNG seed, 0 seeds from the clock

	Logger *log.Logger  // Diagnostics, nil discards
	Report func(Report) // Called by the consumer for every message
	Spawn  SpawnFunc    // Starts the consumer process, nil re-executes this binary
}

// SpawnFunc builds the consumer process. env holds the SHMLAT_* variables
// the child needs on top of the parent environment. The command must be
// bound to ctx so that it is killed when the run is abandoned.
type SpawnFunc func(ctx context.Context, env []string) (*exec.Cmd, error)

// DefaultOptions returns the fixed benchmark: ten messages of 2..20 MiB
// over SysV semaphores with no timeout.
func DefaultOptions() Options {
	return Options{
		Iterations: 10,
		Step:       2,
		Unit:       MiB,
		Gate:       GateSemaphore,
	}
}

// Size returns the length of message i, counting from 1
func (o Options) Size(i int) int {
	return o.Step * o.Unit * i
}

// Capacity returns the data region size: the largest message
func (o Options) Capacity() int {
	return o.Size(o.Iterations)
}

func (o Options) validate() error {
	if o.Iterations <= 0 || o.Step <= 0 || o.Unit <= 0 {
		return errors.Wrapf(ErrOptions, "iterations %d, step %d, unit %d", o.Iterations, o.Step, o.Unit)
	}
	if min := stamp.HeaderSize + 8; o.Size(1) < min {
		return errors.Wrapf(ErrOptions, "first message of %d bytes is shorter than %d", o.Size(1), min)
	}
	if o.Timeout < 0 {
		return errors.Wrapf(ErrOptions, "negative timeout %v", o.Timeout)
	}
	switch o.Gate {
	case GateSemaphore, GateRing, GateChannel:
	default:
		return errors.Wrapf(ErrUnknownGate, "%q", o.Gate)
	}
	return nil
}

// Report is the latency measured for one message.
type Report struct {
	Index    int             // Message number, from 1
	Elapsed  float64         // Seconds from the producer's stamp to the consumer's
	SizeMB   int             // Message size in MiB
	Bytes    int             // Message size in bytes
	Sent     stamp.Timestamp // Producer clock, taken from the message header
	Received stamp.Timestamp // Consumer clock, sampled after the copy
}

// String formats r as one console line
func (r Report) String() string {
	return fmt.Sprintf("Message %d:\t\t%.9f s (%d MB)", r.Index, r.Elapsed, r.SizeMB)
}
