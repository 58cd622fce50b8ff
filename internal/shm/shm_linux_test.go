//go:build linux

package shm

import (
	"testing"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// createOrSkip creates a segment, skipping the test where the kernel refuses SysV IPC
func createOrSkip(t *testing.T, size int) *Segment {
	t.Helper()

	seg, err := Create(size)
	if errors.Is(err, unix.ENOSYS) || errors.Is(err, unix.EPERM) || errors.Is(err, unix.EACCES) {
		t.Skipf("SysV shared memory unavailable: %v", err)
	}
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return seg
}

func TestCreateAttachShare(t *testing.T) {
	const size = 1 << 20

	seg := createOrSkip(t, size)
	defer func() {
		_ = seg.Detach()
		_ = Remove(seg.ID())
	}()

	if seg.Size() < size || len(seg.Bytes()) < size {
		t.Fatalf("segment is %d bytes, want at least %d", seg.Size(), size)
	}

	second, err := Attach(seg.ID())
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer second.Detach()

	copy(seg.Bytes()[size-5:], "hello")
	if got := string(second.Bytes()[size-5 : size]); got != "hello" {
		t.Errorf("second mapping reads %q", got)
	}

	info, err := Stat(seg.ID())
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Attached != 2 {
		t.Errorf("Attached = %d, want 2", info.Attached)
	}
	if info.Size < size {
		t.Errorf("Stat size = %d", info.Size)
	}
}

func TestDetachTwice(t *testing.T) {
	seg := createOrSkip(t, 4096)
	defer Remove(seg.ID())

	if err := seg.Detach(); err != nil {
		t.Fatalf("Detach: %v", err)
	}
	if seg.Attached() || seg.Bytes() != nil {
		t.Error("segment still reports a mapping after Detach")
	}
	if err := seg.Detach(); err != nil {
		t.Errorf("second Detach: %v", err)
	}
}

// TestRemovedIsNotFound verifies that a destroyed segment cannot be reacquired by id
func TestRemovedIsNotFound(t *testing.T) {
	seg := createOrSkip(t, 4096)
	id := seg.ID()

	if err := seg.Detach(); err != nil {
		t.Fatalf("Detach: %v", err)
	}
	if err := Remove(id); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	if _, err := Attach(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Attach after Remove returned %v, want ErrNotFound", err)
	}
	if _, err := Stat(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Stat after Remove returned %v, want ErrNotFound", err)
	}
	if err := Remove(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Remove returned %v, want ErrNotFound", err)
	}
}
