package shmlat

import (
	"context"

	"github.com/pkg/errors"

	"gosuda.org/shmlat/internal/mpmc"
	"gosuda.org/shmlat/internal/protocol"
	"gosuda.org/shmlat/internal/sem"
)

// Gate is the two-counter handshake that decides whose turn it is to touch
// the data region. It starts with the producer holding the turn.
//
//	producer: WaitProducer -> write -> SignalConsumer
//	consumer: WaitConsumer -> read  -> SignalProducer
//
// Waits block until the turn arrives or ctx is done.
type Gate interface {
	WaitProducer(ctx context.Context) error
	SignalConsumer(seq, size uint64) error
	WaitConsumer(ctx context.Context) error
	SignalProducer(seq uint64) error
}

// Semaphore indices in the set created by Create.
const (
	semReadyForProducer = 0
	semReadyForConsumer = 1
)

// semGate waits on a SysV semaphore pair initialized to {1, 0}.
type semGate struct {
	set *sem.Set
}

// NewSemGate returns a gate over set, whose semaphore 0 must start at 1
// (ready for producer) and semaphore 1 at 0 (ready for consumer).
func NewSemGate(set *sem.Set) Gate {
	return &semGate{set: set}
}

func (g *semGate) WaitProducer(ctx context.Context) error {
	return waitError(ctx, g.set.Wait(ctx, semReadyForProducer))
}

func (g *semGate) SignalConsumer(seq, size uint64) error {
	return g.set.Post(semReadyForConsumer)
}

func (g *semGate) WaitConsumer(ctx context.Context) error {
	return waitError(ctx, g.set.Wait(ctx, semReadyForConsumer))
}

func (g *semGate) SignalProducer(seq uint64) error {
	return g.set.Post(semReadyForProducer)
}

// ringGate passes notices through the two rings of the control page. The
// done ring holds one notice initially, which is the producer's first turn.
// Waits spin with runtime.Gosched instead of sleeping in the kernel.
type ringGate struct {
	ready *mpmc.Ring[protocol.Notice] // producer to consumer
	done  *mpmc.Ring[protocol.Notice] // consumer to producer
}

// NewRingGate lays out (producer) or attaches to (consumer) the notice rings
// in the control page of mem. The consumer side waits for the producer's
// layout until ctx is done.
func NewRingGate(ctx context.Context, mem []byte, role protocol.Role) (Gate, error) {
	if len(mem) < protocol.ControlSize {
		return nil, errors.Wrapf(protocol.ErrBadSegment, "segment of %d bytes has no control page", len(mem))
	}
	readyMem := mem[protocol.ReadyRingOffset:protocol.DoneRingOffset]
	doneMem := mem[protocol.DoneRingOffset:protocol.ControlSize]

	if role == protocol.RoleProducer {
		for _, m := range [][]byte{readyMem, doneMem} {
			ok, err := mpmc.Init[protocol.Notice](m, 2)
			if err != nil {
				return nil, errors.Wrap(err, "notice ring")
			}
			if !ok {
				return nil, errors.Wrap(ErrProtocol, "notice ring already initialized")
			}
		}
	}

	ready, err := mpmc.Attach[protocol.Notice](ctx, readyMem)
	if err != nil {
		return nil, errors.Wrap(err, "ready ring")
	}
	done, err := mpmc.Attach[protocol.Notice](ctx, doneMem)
	if err != nil {
		return nil, errors.Wrap(err, "done ring")
	}

	g := &ringGate{ready: ready, done: done}
	if role == protocol.RoleProducer {
		if !g.done.TryPut(protocol.Notice{Op: protocol.OpDone}) {
			return nil, errors.Wrap(ErrProtocol, "done ring full at start")
		}
	}

	return g, nil
}

func (g *ringGate) WaitProducer(ctx context.Context) error {
	return g.take(ctx, g.done, protocol.OpDone)
}

func (g *ringGate) SignalConsumer(seq, size uint64) error {
	return g.put(g.ready, protocol.Notice{Op: protocol.OpReady, Seq: seq, Size: size})
}

func (g *ringGate) WaitConsumer(ctx context.Context) error {
	return g.take(ctx, g.ready, protocol.OpReady)
}

func (g *ringGate) SignalProducer(seq uint64) error {
	return g.put(g.done, protocol.Notice{Op: protocol.OpDone, Seq: seq})
}

func (g *ringGate) take(ctx context.Context, r *mpmc.Ring[protocol.Notice], want protocol.OpCode) error {
	n, err := r.Take(ctx)
	if err != nil {
		return waitError(ctx, err)
	}
	if n.Op != want {
		return errors.Wrapf(ErrProtocol, "got %v notice for message %d, want %v", n.Op, n.Seq, want)
	}
	return nil
}

// put never has to wait: with strict alternation at most one notice is in
// flight per ring.
func (g *ringGate) put(r *mpmc.Ring[protocol.Notice], n protocol.Notice) error {
	if !r.TryPut(n) {
		return errors.Wrapf(ErrProtocol, "%v notice for message %d: ring full", n.Op, n.Seq)
	}
	return nil
}

// chanGate is the in-process gate: one buffered channel per direction.
type chanGate struct {
	producer chan uint64
	consumer chan uint64
}

// NewChanGate returns a gate for a producer and consumer that share one
// process.
func NewChanGate() Gate {
	g := &chanGate{
		producer: make(chan uint64, 1),
		consumer: make(chan uint64, 1),
	}
	g.producer <- 0
	return g
}

func (g *chanGate) WaitProducer(ctx context.Context) error {
	select {
	case <-g.producer:
		return nil
	case <-ctx.Done():
		return waitError(ctx, ctx.Err())
	}
}

func (g *chanGate) SignalConsumer(seq, size uint64) error {
	select {
	case g.consumer <- seq:
		return nil
	default:
		return errors.Wrapf(ErrProtocol, "message %d: consumer already signalled", seq)
	}
}

func (g *chanGate) WaitConsumer(ctx context.Context) error {
	select {
	case <-g.consumer:
		return nil
	case <-ctx.Done():
		return waitError(ctx, ctx.Err())
	}
}

func (g *chanGate) SignalProducer(seq uint64) error {
	select {
	case g.producer <- seq:
		return nil
	default:
		return errors.Wrapf(ErrProtocol, "message %d: producer already signalled", seq)
	}
}

// waitError reports an expired deadline as ErrTimeout, whichever backend
// noticed it.
func waitError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sem.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Wrapf(ErrTimeout, "%v", err)
	}
	return err
}
