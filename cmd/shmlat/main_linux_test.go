//go:build linux && (amd64 || arm64)

package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"gosuda.org/shmlat/internal/config"
	"gosuda.org/shmlat/internal/shm"
)

func testConfig(role, gate string) *config.Config {
	return &config.Config{
		Role:        role,
		Iterations:  3,
		StepMB:      2,
		Unit:        1 << 10,
		Gate:        gate,
		Timeout:     10 * time.Second,
		Verify:      true,
		LogLevel:    "warning",
		SegmentID:   -1,
		SemaphoreID: -1,
	}
}

func TestRunLocal(t *testing.T) {
	for _, gate := range []string{config.GateSemaphore, config.GateChannel} {
		t.Run(gate, func(t *testing.T) {
			var out bytes.Buffer
			err := run(context.Background(), testConfig(config.RoleLocal, gate), nil, &out)
			if errors.Is(err, unix.ENOSYS) || errors.Is(err, unix.EPERM) || errors.Is(err, unix.EACCES) {
				t.Skipf("SysV IPC unavailable: %v", err)
			}
			if err != nil {
				t.Fatalf("run: %+v", err)
			}

			lines := strings.Split(strings.TrimSpace(out.String()), "\n")
			if len(lines) != 3 {
				t.Fatalf("%d report lines, want 3:\n%s", len(lines), out.String())
			}
			for i, line := range lines {
				if !strings.HasPrefix(line, "Message "+string(rune('1'+i))+":\t\t") || !strings.HasSuffix(line, " s (0 MB)") {
					t.Errorf("line %d = %q", i, line)
				}
			}
		})
	}
}

func TestRunConsumerMissingSegment(t *testing.T) {
	cfg := testConfig(config.RoleConsumer, config.GateRing)
	seg, err := shm.Create(4096)
	if errors.Is(err, unix.ENOSYS) || errors.Is(err, unix.EPERM) || errors.Is(err, unix.EACCES) {
		t.Skipf("SysV IPC unavailable: %v", err)
	}
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_ = seg.Detach()
	if err := shm.Remove(seg.ID()); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	cfg.SegmentID = seg.ID()

	var out bytes.Buffer
	if err := run(context.Background(), cfg, nil, &out); !errors.Is(err, shm.ErrNotFound) {
		t.Errorf("consumer on a removed segment returned %v, want shm.ErrNotFound", err)
	}
	if out.Len() != 0 {
		t.Errorf("reports written: %q", out.String())
	}
}
