package shmlat

import (
	"context"
	"os"
	"os/exec"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"gosuda.org/shmlat/internal/config"
)

// RunProducer is the producer process of a two-process run: it creates the
// session, starts the consumer process, sends every message and waits for
// the consumer to exit. The segment and semaphores are destroyed on every
// return path.
func RunProducer(ctx context.Context, o Options) (err error) {
	if o.Gate == GateChannel {
		return errors.Wrapf(ErrUnknownGate, "%q cannot reach another process", o.Gate)
	}

	s, err := Create(ctx, o)
	if err != nil {
		return err
	}
	defer func() {
		if derr := s.Destroy(); err == nil {
			err = derr
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	spawn := o.Spawn
	if spawn == nil {
		spawn = Reexec
	}
	cmd, err := spawn(gctx, consumerEnv(o, s))
	if err != nil {
		return errors.Wrap(err, "building consumer command")
	}
	if err := cmd.Start(); err != nil {
		return errors.Wrap(err, "starting consumer")
	}
	o.Logger.Infof("consumer started, pid %d", cmd.Process.Pid)

	g.Go(func() error {
		return Produce(gctx, s.Producer(), o)
	})
	g.Go(func() error {
		if err := cmd.Wait(); err != nil {
			return errors.Wrap(err, "consumer process")
		}
		return nil
	})

	return g.Wait()
}

// RunConsumer is the consumer process of a two-process run: it joins the
// session by id, receives every message and detaches.
func RunConsumer(ctx context.Context, o Options, segID, semID int) ([]Report, error) {
	s, err := Join(ctx, o, segID, semID)
	if err != nil {
		return nil, err
	}

	reports, err := Consume(ctx, s.Consumer(), o)
	if derr := s.Detach(); err == nil {
		err = derr
	}
	return reports, err
}

// RunLocal runs both sides in this process, each in its own goroutine, over
// a real segment. It is the only mode that accepts GateChannel.
func RunLocal(ctx context.Context, o Options) (reports []Report, err error) {
	s, err := Create(ctx, o)
	if err != nil {
		return nil, err
	}
	defer func() {
		if derr := s.Destroy(); err == nil {
			err = derr
		}
	}()

	var shared Gate
	if o.Gate == GateChannel {
		shared = s.Gate()
	}
	peer, err := join(ctx, o, s.SegmentID(), s.SemaphoreID(), shared)
	if err != nil {
		return nil, err
	}
	defer func() {
		if derr := peer.Detach(); err == nil {
			err = derr
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return Produce(gctx, s.Producer(), o)
	})
	g.Go(func() error {
		var err error
		reports, err = Consume(gctx, peer.Consumer(), o)
		return err
	})

	err = g.Wait()
	return reports, err
}

// Reexec starts this binary again with the same arguments and env added to
// the current environment. It is the default SpawnFunc.
func Reexec(ctx context.Context, env []string) (*exec.Cmd, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, errors.Wrap(err, "locating executable")
	}

	cmd := exec.CommandContext(ctx, exe, os.Args[1:]...)
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd, nil
}

// consumerEnv carries the session ids and the run shape to the child.
func consumerEnv(o Options, s *Session) []string {
	return []string{
		config.EnvPair(config.KeyRole, config.RoleConsumer),
		config.EnvPair(config.KeySegmentID, s.SegmentID()),
		config.EnvPair(config.KeySemaphoreID, s.SemaphoreID()),
		config.EnvPair(config.KeyGate, o.Gate),
		config.EnvPair(config.KeyIterations, o.Iterations),
		config.EnvPair(config.KeyStepMB, o.Step),
		config.EnvPair(config.KeyUnit, o.Unit),
		config.EnvPair(config.KeyTimeout, o.Timeout),
		config.EnvPair(config.KeyVerify, o.Verify),
	}
}
