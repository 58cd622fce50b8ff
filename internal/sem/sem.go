// Package sem wraps a SysV semaphore set: a small array of kernel counters
// shared by id between processes, decremented with a blocking wait and
// incremented with a post.
package sem

import (
	"time"

	"github.com/pkg/errors"
)

var (
	ErrNotFound    = errors.New("sem: semaphore set not found")
	ErrTimeout     = errors.New("sem: wait timed out")
	ErrRange       = errors.New("sem: semaphore index out of range")
	ErrUnsupported = errors.New("sem: SysV semaphores not supported on this platform")
)

// pollSlice bounds a single kernel wait when the caller's context can be
// cancelled, so cancellation is noticed within one slice.
const pollSlice = 100 * time.Millisecond

// Set is a SysV semaphore set.
type Set struct {
	id int // Kernel semaphore set identifier
	n  int // Number of semaphores in the set
}

// ID returns the kernel identifier other processes open the set by
func (s *Set) ID() int {
	return s.id
}

// Len returns the number of semaphores in the set
func (s *Set) Len() int {
	return s.n
}

func (s *Set) check(num int) error {
	if num < 0 || num >= s.n {
		return errors.Wrapf(ErrRange, "index %d of %d", num, s.n)
	}
	return nil
}
