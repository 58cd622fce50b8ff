package mpmc

import (
	"context"
	"runtime"
	"sync/atomic"
	"unsafe"

	"github.com/pkg/errors"
)

var (
	ErrTooSmall = errors.New("mpmc: memory too small for ring")
	ErrNotReady = errors.New("mpmc: ring not initialized")
)

// Ring is a bounded Multi-Producer Multi-Consumer queue that lives in caller
// supplied memory, typically a shared memory segment mapped by several
// processes. Each process attaches its own Ring view to the same bytes.
//
// T is copied into the shared bytes as is, so it must not contain pointers.
//
// The algorithm is the sequence-numbered bounded queue by D. Vyukov: every
// slot carries a sequence that tells producers and consumers whose turn it is.
type Ring[T any] struct {
	hdr  *_mring
	data unsafe.Pointer
	mask uint64
	mem  []byte
}

// Init lays out a ring of at least n slots (rounded up to a power of two,
// minimum 2) at the start of mem. It returns false if mem already holds an
// initialized ring.
//
// The memory layout is:
//
//	[Header (256 bytes)][Slots]
func Init[T any](mem []byte, n uint64) (bool, error) {
	n = _RoundUpPowerOf2(max(n, 2))
	if uintptr(len(mem)) < Size[T](n) {
		return false, errors.Wrapf(ErrTooSmall, "%d slots need %d bytes, have %d", n, Size[T](n), len(mem))
	}

	_r := (*_mring)(unsafe.Pointer(&mem[0]))
	magic := atomic.LoadUint64(&_r._magic)
	if magic == _mpmc_magic {
		return false, nil
	}
	if !atomic.CompareAndSwapUint64(&_r._magic, magic, _mpmc_magic) {
		return false, nil
	}

	atomic.StoreUint64(&_r._size, n)
	data := unsafe.Pointer(&mem[_headerSize])
	for i := uint64(0); i < n; i++ {
		e := _slot[T](data, i)
		e._data = *new(T)
		atomic.StoreUint64(&e._seq, i)
	}
	atomic.StoreUint64(&_r.r, 0)
	atomic.StoreUint64(&_r.w, 0)

	// Publish: attachers spin on this flag.
	atomic.StoreUint64(&_r._flag, uint64(_mpmc_init))
	return true, nil
}

// Attach waits until the ring at the start of mem is initialized and
// returns a view of it. The wait ends with ErrNotReady when ctx is done.
func Attach[T any](ctx context.Context, mem []byte) (*Ring[T], error) {
	if len(mem) < _headerSize {
		return nil, errors.Wrapf(ErrTooSmall, "%d bytes", len(mem))
	}

	_r := (*_mring)(unsafe.Pointer(&mem[0]))
	done := ctx.Done()
	for {
		if atomic.LoadUint64(&_r._magic) == _mpmc_magic && atomic.LoadUint64(&_r._flag)&uint64(_mpmc_init) != 0 {
			size := atomic.LoadUint64(&_r._size)
			if uintptr(len(mem)) < Size[T](size) {
				return nil, errors.Wrapf(ErrTooSmall, "ring of %d slots in %d bytes", size, len(mem))
			}
			return &Ring[T]{
				hdr:  _r,
				data: unsafe.Pointer(&mem[_headerSize]),
				mask: size - 1,
				mem:  mem,
			}, nil
		}

		select {
		case <-done:
			return nil, errors.Wrap(ErrNotReady, ctx.Err().Error())
		default:
		}
		runtime.Gosched()
	}
}

// Cap returns the number of slots.
func (m *Ring[T]) Cap() int {
	return int(m.mask + 1)
}

// TryPut enqueues v unless the ring is full.
func (m *Ring[T]) TryPut(v T) bool {
	p := atomic.LoadUint64(&m.hdr.w)
	for {
		c := _slot[T](m.data, p&m.mask)
		diff := int64(atomic.LoadUint64(&c._seq)) - int64(p)
		switch {
		case diff == 0:
			if atomic.CompareAndSwapUint64(&m.hdr.w, p, p+1) {
				c._data = v
				// Release the slot to consumers only after the data is in place.
				atomic.StoreUint64(&c._seq, p+1)
				return true
			}
			p = atomic.LoadUint64(&m.hdr.w)
		case diff < 0:
			return false
		default:
			// Another producer claimed this slot first.
			p = atomic.LoadUint64(&m.hdr.w)
		}
	}
}

// TryTake dequeues the oldest element unless the ring is empty.
func (m *Ring[T]) TryTake() (v T, ok bool) {
	p := atomic.LoadUint64(&m.hdr.r)
	for {
		c := _slot[T](m.data, p&m.mask)
		diff := int64(atomic.LoadUint64(&c._seq)) - int64(p+1)
		switch {
		case diff == 0:
			if atomic.CompareAndSwapUint64(&m.hdr.r, p, p+1) {
				v = c._data
				atomic.StoreUint64(&c._seq, p+m.mask+1)
				return v, true
			}
			p = atomic.LoadUint64(&m.hdr.r)
		case diff < 0:
			return v, false
		default:
			p = atomic.LoadUint64(&m.hdr.r)
		}
	}
}

// Put enqueues v, spinning while the ring is full. It returns ctx.Err()
// if ctx is done first.
func (m *Ring[T]) Put(ctx context.Context, v T) error {
	done := ctx.Done()
	for !m.TryPut(v) {
		select {
		case <-done:
			return ctx.Err()
		default:
		}
		runtime.Gosched()
	}
	return nil
}

// Take dequeues the oldest element, spinning while the ring is empty. It
// returns ctx.Err() if ctx is done first.
func (m *Ring[T]) Take(ctx context.Context) (T, error) {
	done := ctx.Done()
	for {
		if v, ok := m.TryTake(); ok {
			return v, nil
		}
		select {
		case <-done:
			var zero T
			return zero, ctx.Err()
		default:
		}
		runtime.Gosched()
	}
}

// Magic number to identify initialized rings
const _mpmc_magic uint64 = 0x53484d4c52494e47

type _mpmcflag uint64

const (
	_mpmc_reserved = _mpmcflag(1) << iota
	_mpmc_init
)

const (
	_headerSize = 256
	_CACHE_LINE = 16
)

// _mring is the ring header stored at the start of the memory.
// Read and write positions sit on separate cache lines.
type _mring struct {
	_magic uint64
	_size  uint64
	_flag  uint64
	/* ======== Cache line boundary ======== */
	r   uint64
	_p0 [_CACHE_LINE - 4]uint64
	w   uint64
	_p1 [_CACHE_LINE - 1]uint64
}

type _melem[T any] struct {
	_data T
	_seq  uint64
}

func _slot[T any](data unsafe.Pointer, i uint64) *_melem[T] {
	return (*_melem[T])(unsafe.Add(data, uintptr(i)*unsafe.Sizeof(_melem[T]{})))
}

// _RoundUpPowerOf2 rounds v up to the next power of 2.
//
// Algorithm from: https://graphics.stanford.edu/~seander/bithacks.html#RoundUpPowerOf2
func _RoundUpPowerOf2(v uint64) uint64 {
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v |= v >> 32
	v++
	return v
}

// Size returns the bytes needed for a ring of n slots, n a power of two.
func Size[T any](n uint64) uintptr {
	return _headerSize + unsafe.Sizeof(_melem[T]{})*uintptr(n)
}
