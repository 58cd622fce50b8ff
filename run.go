package shmlat

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/pkg/errors"

	"gosuda.org/shmlat/internal/payload"
	"gosuda.org/shmlat/internal/stamp"
)

// Produce sends o.Iterations messages of o.Size(1), o.Size(2), ... bytes.
// Each message is stamped with the clock right before it is sent.
func Produce(ctx context.Context, p *Producer, o Options) error {
	if err := o.validate(); err != nil {
		return err
	}
	if o.Capacity() > p.Capacity() {
		return errors.Wrapf(ErrBufferOverflow, "largest message %d bytes, region %d", o.Capacity(), p.Capacity())
	}

	seed := o.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	for i := 1; i <= o.Iterations; i++ {
		size := o.Size(i)

		var msg []byte
		if o.Verify {
			msg = payload.Pattern(size, uint64(i))
		} else {
			msg = payload.Random(rng, size)
		}

		stamp.Put(msg, stamp.Sample())
		if err := p.Send(ctx, msg); err != nil {
			return err
		}
		o.Logger.Infof("message %d: sent %d bytes", i, size)
	}

	return nil
}

// Consume receives o.Iterations messages and returns one Report per message,
// in order. Each report is also passed to o.Report as soon as it is made.
func Consume(ctx context.Context, c *Consumer, o Options) ([]Report, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}

	reports := make([]Report, 0, o.Iterations)
	for i := 1; i <= o.Iterations; i++ {
		size := o.Size(i)
		msg := make([]byte, size)

		d, err := c.Receive(ctx, msg)
		if err != nil {
			return reports, err
		}
		if d.Size != size || d.N != size {
			return reports, errors.Wrapf(ErrSizeMismatch, "message %d: got %d bytes, copied %d, want %d", i, d.Size, d.N, size)
		}
		if o.Verify {
			if err := payload.Check(msg, uint64(i)); err != nil {
				return reports, errors.Wrapf(err, "message %d", i)
			}
		}

		sent := stamp.Parse(msg)
		r := Report{
			Index:    i,
			Elapsed:  stamp.Elapsed(sent, d.At),
			SizeMB:   size / MiB,
			Bytes:    size,
			Sent:     sent,
			Received: d.At,
		}
		reports = append(reports, r)
		if o.Report != nil {
			o.Report(r)
		}
		o.Logger.Infof("message %d: %.9f s", i, r.Elapsed)
	}

	return reports, nil
}
