package shmlat

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"gosuda.org/shmlat/internal/log"
	"gosuda.org/shmlat/internal/protocol"
	"gosuda.org/shmlat/internal/sem"
	"gosuda.org/shmlat/internal/shm"
)

// Session is one process's attachment to the segment and gate of a run.
//
// The producer creates both with Create and is the only side that destroys
// them. The consumer joins by id with Join. Each side detaches on its own.
type Session struct {
	role protocol.Role
	seg  *shm.Segment
	sems *sem.Set // nil unless the gate is GateSemaphore
	gate Gate
	log  *log.Logger

	producer *Producer
	consumer *Consumer

	destroyOnce sync.Once
	destroyErr  error
}

// Create allocates a segment with room for the largest message of o, the
// gate o names, and initializes the producer side of the exchange.
func Create(ctx context.Context, o Options) (*Session, error) {
	return create(ctx, o, nil)
}

// create lets an in-process consumer share a chan gate with the producer.
func create(ctx context.Context, o Options, gate Gate) (*Session, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}

	seg, err := shm.Create(protocol.ControlSize + o.Capacity())
	if err != nil {
		return nil, errors.Wrap(err, "creating segment")
	}
	s := &Session{role: protocol.RoleProducer, seg: seg, gate: gate, log: o.Logger}

	if err := s.openGate(ctx, o.Gate, -1); err != nil {
		s.cleanup()
		return nil, err
	}

	s.producer, err = NewProducer(seg.Bytes(), s.gate)
	if err != nil {
		s.cleanup()
		return nil, err
	}
	s.producer.Timeout = o.Timeout
	s.producer.Logger = o.Logger

	s.log.Infof("created segment %d (%d bytes), gate %s", seg.ID(), seg.Size(), o.Gate)
	return s, nil
}

// Join attaches to the segment and gate a producer created and initializes
// the consumer side of the exchange. semID is ignored unless the gate is
// GateSemaphore.
func Join(ctx context.Context, o Options, segID, semID int) (*Session, error) {
	return join(ctx, o, segID, semID, nil)
}

func join(ctx context.Context, o Options, segID, semID int, gate Gate) (*Session, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}

	seg, err := shm.Attach(segID)
	if err != nil {
		return nil, errors.Wrap(err, "attaching segment")
	}
	s := &Session{role: protocol.RoleConsumer, seg: seg, gate: gate, log: o.Logger}

	if err := s.openGate(ctx, o.Gate, semID); err != nil {
		_ = seg.Detach()
		return nil, err
	}

	s.consumer, err = NewConsumer(seg.Bytes(), s.gate)
	if err != nil {
		_ = seg.Detach()
		return nil, err
	}
	s.consumer.Timeout = o.Timeout
	s.consumer.Logger = o.Logger

	s.log.Infof("joined segment %d (%d bytes), gate %s", seg.ID(), seg.Size(), o.Gate)
	return s, nil
}

func (s *Session) openGate(ctx context.Context, kind string, semID int) error {
	if s.gate != nil {
		return nil
	}

	var err error
	switch kind {
	case GateSemaphore:
		if s.role == protocol.RoleProducer {
			s.sems, err = sem.Create(1, 0)
		} else {
			s.sems, err = sem.Open(semID, 2)
		}
		if err != nil {
			return errors.Wrap(err, "semaphore gate")
		}
		s.gate = NewSemGate(s.sems)
	case GateRing:
		s.gate, err = NewRingGate(ctx, s.seg.Bytes(), s.role)
		if err != nil {
			return errors.Wrap(err, "ring gate")
		}
	case GateChannel:
		if s.role == protocol.RoleConsumer {
			return errors.Wrapf(ErrUnknownGate, "%q cannot be joined from another process", kind)
		}
		s.gate = NewChanGate()
	default:
		return errors.Wrapf(ErrUnknownGate, "%q", kind)
	}

	return nil
}

// cleanup releases what create got before failing.
func (s *Session) cleanup() {
	_ = s.seg.Detach()
	_ = shm.Remove(s.seg.ID())
	if s.sems != nil {
		_ = s.sems.Remove()
	}
}

// Producer returns the writing side, nil for a joined session
func (s *Session) Producer() *Producer {
	return s.producer
}

// Consumer returns the reading side, nil for a created session
func (s *Session) Consumer() *Consumer {
	return s.consumer
}

// Gate returns the handshake in use
func (s *Session) Gate() Gate {
	return s.gate
}

// SegmentID returns the id a consumer joins by
func (s *Session) SegmentID() int {
	return s.seg.ID()
}

// SemaphoreID returns the id of the semaphore set, -1 for other gates
func (s *Session) SemaphoreID() int {
	if s.sems == nil {
		return -1
	}
	return s.sems.ID()
}

// Detach unmaps the segment from this process. It is safe to call more than
// once.
func (s *Session) Detach() error {
	if !s.seg.Attached() {
		return nil
	}
	if err := s.seg.Detach(); err != nil {
		return err
	}
	s.log.Debugf("detached segment %d", s.seg.ID())
	return nil
}

// Destroy detaches and removes the segment and the semaphore set. Only the
// creating side may destroy; later calls return the first result.
func (s *Session) Destroy() error {
	if s.role != protocol.RoleProducer {
		return errors.Wrap(ErrProtocol, "only the producer destroys a session")
	}

	s.destroyOnce.Do(func() {
		var errs []error
		if err := s.Detach(); err != nil {
			errs = append(errs, err)
		}
		if err := shm.Remove(s.seg.ID()); err != nil {
			errs = append(errs, errors.Wrap(err, "removing segment"))
		}
		if s.sems != nil {
			if err := s.sems.Remove(); err != nil {
				errs = append(errs, errors.Wrap(err, "removing semaphores"))
			}
		}

		for _, err := range errs[min(len(errs), 1):] {
			s.log.Warnf("destroy: %v", err)
		}
		if len(errs) > 0 {
			s.destroyErr = errs[0]
			return
		}
		s.log.Infof("destroyed segment %d", s.seg.ID())
	})

	return s.destroyErr
}
