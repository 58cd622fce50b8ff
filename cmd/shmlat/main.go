// Command shmlat measures producer-to-consumer latency through SysV shared
// memory. Run it without configuration for the standard ten-message
// benchmark; the consumer is started automatically as a second copy of
// this binary.
//
// Settings come from SHMLAT_* environment variables or from the file named
// by SHMLAT_CONFIG. See package gosuda.org/shmlat/internal/config for the
// keys.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-colorable"
	"github.com/mgutz/ansi"

	"gosuda.org/shmlat"
	"gosuda.org/shmlat/internal/config"
	"gosuda.org/shmlat/internal/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Stderr(log.ERR, true).Emergf("%+v", err)
		os.Exit(1)
	}

	level, err := log.ParsePriority(cfg.LogLevel)
	if err != nil {
		log.Stderr(log.ERR, cfg.Color).Emergf("%+v", err)
		os.Exit(1)
	}
	logger := log.Stderr(level, cfg.Color).With(fmt.Sprintf("%s pid=%d", cfg.Role, os.Getpid()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, colorable.NewColorableStdout()); err != nil {
		logger.Emergf("%+v", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger, stdout io.Writer) error {
	o := shmlat.Options{
		Iterations: cfg.Iterations,
		Step:       cfg.StepMB,
		Unit:       cfg.Unit,
		Gate:       cfg.Gate,
		Timeout:    cfg.Timeout,
		Verify:     cfg.Verify,
		Seed:       cfg.Seed,
		Logger:     logger,
		Report: func(r shmlat.Report) {
			fmt.Fprintln(stdout, reportLine(r, cfg.Color))
		},
	}

	switch cfg.Role {
	case config.RoleProducer:
		return shmlat.RunProducer(ctx, o)
	case config.RoleConsumer:
		_, err := shmlat.RunConsumer(ctx, o, cfg.SegmentID, cfg.SemaphoreID)
		return err
	default:
		_, err := shmlat.RunLocal(ctx, o)
		return err
	}
}

// reportLine is Report.String with the elapsed time highlighted.
func reportLine(r shmlat.Report, color bool) string {
	if !color {
		return r.String()
	}
	return fmt.Sprintf("Message %d:\t\t%s s (%d MB)", r.Index, ansi.Color(fmt.Sprintf("%.9f", r.Elapsed), "cyan+b"), r.SizeMB)
}
