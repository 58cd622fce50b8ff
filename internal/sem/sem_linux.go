//go:build linux && (amd64 || arm64)

package sem

import (
	"context"
	"time"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// semctl commands not exported by x/sys/unix
const (
	_GETVAL = 12
	_SETVAL = 16
)

// sembuf mirrors struct sembuf from <sys/sem.h>.
type sembuf struct {
	num uint16
	op  int16
	flg int16
}

// Create allocates a private set with one semaphore per initial value,
// accessible by the owner only.
func Create(initial ...int) (*Set, error) {
	if len(initial) == 0 {
		return nil, errors.Wrap(ErrRange, "empty semaphore set")
	}

	r1, _, errno := unix.Syscall(unix.SYS_SEMGET, uintptr(unix.IPC_PRIVATE), uintptr(len(initial)), uintptr(unix.IPC_CREAT|unix.IPC_EXCL|0o600))
	if errno != 0 {
		return nil, errors.Wrapf(errno, "semget %d semaphores", len(initial))
	}

	s := &Set{id: int(r1), n: len(initial)}
	for i, v := range initial {
		if _, err := semctl(s.id, i, _SETVAL, uintptr(v)); err != nil {
			_ = s.Remove()
			return nil, errors.Wrapf(err, "semctl SETVAL sem %d", i)
		}
	}

	return s, nil
}

// Open returns a handle to an existing set of n semaphores.
func Open(id, n int) (*Set, error) {
	if n <= 0 {
		return nil, errors.Wrap(ErrRange, "empty semaphore set")
	}

	// The last index must resolve; a removed set fails with EINVAL or EIDRM.
	if _, err := semctl(id, n-1, _GETVAL, 0); err != nil {
		return nil, lookupError(err, "semctl GETVAL", id)
	}

	return &Set{id: id, n: n}, nil
}

// Wait decrements semaphore num, blocking in the kernel while it is zero.
//
// A context that can never be cancelled waits indefinitely in a single
// semop. Otherwise the wait is split into bounded semtimedop calls and the
// context is checked in between. An expired deadline yields ErrTimeout.
func (s *Set) Wait(ctx context.Context, num int) error {
	if err := s.check(num); err != nil {
		return err
	}

	ops := []sembuf{{num: uint16(num), op: -1}}
	if ctx.Done() == nil {
		return s.semop(ops, nil)
	}

	for {
		if err := ctx.Err(); err != nil {
			return s.doneError(ctx, num)
		}

		slice := pollSlice
		if deadline, ok := ctx.Deadline(); ok {
			if d := time.Until(deadline); d < slice {
				slice = d
			}
		}
		if slice <= 0 {
			// The deadline has passed but ctx may not have noticed yet.
			return errors.Wrapf(ErrTimeout, "semop id %d sem %d", s.id, num)
		}

		ts := unix.NsecToTimespec(int64(slice))
		err := s.semop(ops, &ts)
		if err == nil {
			return nil
		}
		if !errors.Is(err, unix.EAGAIN) {
			return err
		}
	}
}

// doneError never returns nil: a wait that did not decrement the semaphore
// must not look like one that did.
func (s *Set) doneError(ctx context.Context, num int) error {
	err := ctx.Err()
	if err == nil || errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrapf(ErrTimeout, "semop id %d sem %d", s.id, num)
	}
	return errors.Wrapf(err, "semop id %d sem %d", s.id, num)
}

// Post increments semaphore num, waking one waiter.
func (s *Set) Post(num int) error {
	if err := s.check(num); err != nil {
		return err
	}
	return s.semop([]sembuf{{num: uint16(num), op: 1}}, nil)
}

// Value returns the current count of semaphore num.
func (s *Set) Value(num int) (int, error) {
	if err := s.check(num); err != nil {
		return 0, err
	}

	v, err := semctl(s.id, num, _GETVAL, 0)
	if err != nil {
		return 0, lookupError(err, "semctl GETVAL", s.id)
	}
	return v, nil
}

// Remove destroys the set. Waiters in other processes wake with EIDRM.
func (s *Set) Remove() error {
	return Remove(s.id)
}

// Remove destroys the set with the given id.
func Remove(id int) error {
	if _, err := semctl(id, 0, unix.IPC_RMID, 0); err != nil {
		return lookupError(err, "semctl IPC_RMID", id)
	}
	return nil
}

// semop applies ops atomically. A nil timeout blocks without limit. EINTR
// restarts the call; EAGAIN is returned when the timeout expires.
func (s *Set) semop(ops []sembuf, timeout *unix.Timespec) error {
	for {
		_, _, errno := unix.Syscall6(
			unix.SYS_SEMTIMEDOP,
			uintptr(s.id),                    // semid
			uintptr(unsafe.Pointer(&ops[0])), // sops
			uintptr(len(ops)),                // nsops
			uintptr(unsafe.Pointer(timeout)), // timeout, NULL blocks
			0,
			0,
		)

		switch errno {
		case 0:
			return nil
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			return errno
		default:
			return lookupError(errno, "semop", s.id)
		}
	}
}

func semctl(id, num, cmd int, arg uintptr) (int, error) {
	r1, _, errno := unix.Syscall6(unix.SYS_SEMCTL, uintptr(id), uintptr(num), uintptr(cmd), arg, 0, 0)
	if errno != 0 {
		return 0, errno
	}
	return int(r1), nil
}

// lookupError maps the errnos the kernel returns for a removed or unknown
// id to ErrNotFound.
func lookupError(err error, op string, id int) error {
	if errors.Is(err, unix.EINVAL) || errors.Is(err, unix.EIDRM) {
		return errors.Wrapf(ErrNotFound, "%s id %d: %v", op, id, err)
	}
	return errors.Wrapf(err, "%s id %d", op, id)
}
