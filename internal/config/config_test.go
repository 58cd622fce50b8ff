package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
)

func TestDefaults(t *testing.T) {
	c, err := Decode(New())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if c.Role != RoleProducer || c.Gate != GateSemaphore {
		t.Errorf("role/gate = %q/%q", c.Role, c.Gate)
	}
	if c.Iterations != 10 || c.StepMB != 2 || c.Unit != 1<<20 {
		t.Errorf("sizes = %d x %d x %d", c.Iterations, c.StepMB, c.Unit)
	}
	if c.Timeout != 0 || c.Verify {
		t.Errorf("timeout/verify = %v/%v", c.Timeout, c.Verify)
	}
	if c.SegmentID != -1 || c.SemaphoreID != -1 {
		t.Errorf("ids = %d/%d", c.SegmentID, c.SemaphoreID)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv(Env(KeyRole), RoleConsumer)
	t.Setenv(Env(KeySegmentID), "17")
	t.Setenv(Env(KeySemaphoreID), "23")
	t.Setenv(Env(KeyTimeout), "1500ms")
	t.Setenv(Env(KeyVerify), "true")
	t.Setenv(Env(KeySeed), "99")

	c, err := Decode(New())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if c.Role != RoleConsumer || c.SegmentID != 17 || c.SemaphoreID != 23 {
		t.Errorf("role/ids = %q/%d/%d", c.Role, c.SegmentID, c.SemaphoreID)
	}
	if c.Timeout != 1500*time.Millisecond {
		t.Errorf("timeout = %v", c.Timeout)
	}
	if !c.Verify || c.Seed != 99 {
		t.Errorf("verify/seed = %v/%d", c.Verify, c.Seed)
	}
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shmlat.yaml")
	if err := os.WriteFile(path, []byte("iterations: 3\ngate: ring\nlog_level: debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(Env(KeyConfigFile), path)
	t.Setenv(Env(KeyIterations), "4")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Gate != GateRing || c.LogLevel != "debug" {
		t.Errorf("gate/log level = %q/%q", c.Gate, c.LogLevel)
	}
	if c.Iterations != 4 {
		t.Errorf("environment did not win over file: iterations = %d", c.Iterations)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{Role: RoleProducer, Iterations: 10, StepMB: 2, Unit: 1 << 20, Gate: GateSemaphore}
	}

	bad := map[string]func(*Config){
		"role":          func(c *Config) { c.Role = "observer" },
		"gate":          func(c *Config) { c.Gate = "pipe" },
		"chan producer": func(c *Config) { c.Gate = GateChannel },
		"iterations":    func(c *Config) { c.Iterations = 0 },
		"unit":          func(c *Config) { c.Unit = -1 },
		"timeout":       func(c *Config) { c.Timeout = -time.Second },
		"consumer ids":  func(c *Config) { c.Role = RoleConsumer; c.SegmentID = -1 },
		"consumer sem":  func(c *Config) { c.Role = RoleConsumer; c.SegmentID = 1; c.SemaphoreID = -1 },
	}
	for name, mutate := range bad {
		c := base()
		mutate(&c)
		if err := c.Validate(); !errors.Is(err, ErrInvalid) {
			t.Errorf("%s: Validate returned %v, want ErrInvalid", name, err)
		}
	}

	c := base()
	c.Role = RoleLocal
	c.Gate = GateChannel
	if err := c.Validate(); err != nil {
		t.Errorf("local chan config rejected: %v", err)
	}
}

func TestEnvPair(t *testing.T) {
	if got := EnvPair(KeySegmentID, 42); got != "SHMLAT_SEGMENT_ID=42" {
		t.Errorf("EnvPair = %q", got)
	}
	if got := EnvPair(KeyTimeout, 2*time.Second); got != "SHMLAT_TIMEOUT=2s" {
		t.Errorf("EnvPair = %q", got)
	}
}
