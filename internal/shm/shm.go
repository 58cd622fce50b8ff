// Package shm manages the SysV shared memory segment the two sides of a run
// exchange messages through.
//
// A segment is created once by the producer with a private key, attached by
// each process that takes part, detached by each of them independently and
// removed exactly once. Only the integer segment id crosses the process
// boundary.
package shm

import (
	"github.com/pkg/errors"
)

var (
	ErrNotFound    = errors.New("shm: segment not found")
	ErrUnsupported = errors.New("shm: SysV shared memory not supported on this platform")
)

// Segment is a shared memory segment attached to this process.
type Segment struct {
	id   int    // Kernel segment identifier
	size int    // Size requested at creation or reported at attach
	mem  []byte // Attached mapping, nil after Detach
}

// Info is what the kernel reports about a segment.
type Info struct {
	Size       int // Segment size in bytes
	Attached   int // Number of current attaches
	CreatorPID int
}

// ID returns the kernel identifier other processes attach by
func (s *Segment) ID() int {
	return s.id
}

// Size returns the segment size in bytes
func (s *Segment) Size() int {
	return s.size
}

// Bytes returns the attached mapping. It is nil once the segment is detached.
func (s *Segment) Bytes() []byte {
	return s.mem
}

// Attached reports whether the segment is still mapped in this process
func (s *Segment) Attached() bool {
	return s.mem != nil
}
