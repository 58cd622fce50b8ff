//go:build linux

package shm

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Create allocates a new private segment of size bytes, readable and
// writable by the owner only, and attaches it.
func Create(size int) (*Segment, error) {
	id, err := unix.SysvShmGet(unix.IPC_PRIVATE, size, unix.IPC_CREAT|unix.IPC_EXCL|0o600)
	if err != nil {
		return nil, errors.Wrapf(err, "shmget %d bytes", size)
	}

	seg, err := Attach(id)
	if err != nil {
		_ = Remove(id)
		return nil, err
	}

	return seg, nil
}

// Attach maps an existing segment into this process.
func Attach(id int) (*Segment, error) {
	mem, err := unix.SysvShmAttach(id, 0, 0)
	if err != nil {
		return nil, lookupError(err, "shmat", id)
	}

	return &Segment{id: id, size: len(mem), mem: mem}, nil
}

// Detach unmaps the segment from this process. Detaching twice is a no-op.
func (s *Segment) Detach() error {
	if s.mem == nil {
		return nil
	}

	err := unix.SysvShmDetach(s.mem)
	s.mem = nil
	if err != nil {
		return errors.Wrapf(err, "shmdt id %d", s.id)
	}

	return nil
}

// Remove marks the segment for destruction. The kernel frees it once the
// last process has detached; after that the id no longer resolves.
func Remove(id int) error {
	if _, err := unix.SysvShmCtl(id, unix.IPC_RMID, nil); err != nil {
		return lookupError(err, "shmctl IPC_RMID", id)
	}
	return nil
}

// Stat queries the kernel about a segment.
func Stat(id int) (Info, error) {
	var desc unix.SysvShmDesc
	if _, err := unix.SysvShmCtl(id, unix.IPC_STAT, &desc); err != nil {
		return Info{}, lookupError(err, "shmctl IPC_STAT", id)
	}

	return Info{
		Size:       int(desc.Segsz),
		Attached:   int(desc.Nattch),
		CreatorPID: int(desc.Cpid),
	}, nil
}

// lookupError maps the errnos the kernel returns for a removed or unknown
// id to ErrNotFound.
func lookupError(err error, op string, id int) error {
	if errors.Is(err, unix.EINVAL) || errors.Is(err, unix.EIDRM) {
		return errors.Wrapf(ErrNotFound, "%s id %d: %v", op, id, err)
	}
	return errors.Wrapf(err, "%s id %d", op, id)
}
