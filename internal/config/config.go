// Package config loads run settings from defaults, an optional config file
// and SHMLAT_* environment variables. The defaults are the fixed benchmark:
// ten messages of 2, 4, ..., 20 MiB over SysV semaphores.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every key to form its environment variable
const EnvPrefix = "SHMLAT"

// Keys
const (
	KeyRole        = "role"
	KeyIterations  = "iterations"
	KeyStepMB      = "step_mb"
	KeyUnit        = "unit"
	KeyGate        = "gate"
	KeyTimeout     = "timeout"
	KeyVerify      = "verify"
	KeySeed        = "seed"
	KeyLogLevel    = "log_level"
	KeyColor       = "color"
	KeySegmentID   = "segment_id"
	KeySemaphoreID = "semaphore_id"

	// KeyConfigFile names an optional config file; it is read from the environment only.
	KeyConfigFile = "config"
)

// Roles
const (
	RoleProducer = "producer"
	RoleConsumer = "consumer"
	RoleLocal    = "local"
)

// Gates
const (
	GateSemaphore = "sem"
	GateRing      = "ring"
	GateChannel   = "chan"
)

var ErrInvalid = errors.New("config: invalid configuration")

// Config is the decoded run configuration.
type Config struct {
	Role        string        `mapstructure:"role"`
	Iterations  int           `mapstructure:"iterations"`
	StepMB      int           `mapstructure:"step_mb"`
	Unit        int           `mapstructure:"unit"`
	Gate        string        `mapstructure:"gate"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Verify      bool          `mapstructure:"verify"`
	Seed        uint64        `mapstructure:"seed"`
	LogLevel    string        `mapstructure:"log_level"`
	Color       bool          `mapstructure:"color"`
	SegmentID   int           `mapstructure:"segment_id"`
	SemaphoreID int           `mapstructure:"semaphore_id"`
}

// Defaults sets the fixed benchmark parameters on v.
func Defaults(v *viper.Viper) {
	v.SetDefault(KeyRole, RoleProducer)
	v.SetDefault(KeyIterations, 10)
	v.SetDefault(KeyStepMB, 2)
	v.SetDefault(KeyUnit, 1<<20)
	v.SetDefault(KeyGate, GateSemaphore)
	v.SetDefault(KeyTimeout, time.Duration(0))
	v.SetDefault(KeyVerify, false)
	v.SetDefault(KeySeed, uint64(0))
	v.SetDefault(KeyLogLevel, "warning")
	v.SetDefault(KeyColor, true)
	v.SetDefault(KeySegmentID, -1)
	v.SetDefault(KeySemaphoreID, -1)
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	Defaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// Load builds the configuration. If SHMLAT_CONFIG names a file it is read
// first; environment variables take precedence over it.
func Load() (*Config, error) {
	v := New()
	if path := v.GetString(KeyConfigFile); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "config: reading %s", path)
		}
	}
	return Decode(v)
}

// Decode unmarshals v into a Config and validates it.
func Decode(v *viper.Viper) (*Config, error) {
	var c Config
	hook := viper.DecodeHook(mapstructure.StringToTimeDurationHookFunc())
	if err := v.Unmarshal(&c, hook); err != nil {
		return nil, errors.Wrap(err, "config: decode")
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects settings no run can use.
func (c *Config) Validate() error {
	switch c.Role {
	case RoleProducer, RoleConsumer, RoleLocal:
	default:
		return errors.Wrapf(ErrInvalid, "unknown role %q", c.Role)
	}

	switch c.Gate {
	case GateSemaphore, GateRing:
	case GateChannel:
		if c.Role != RoleLocal {
			return errors.Wrapf(ErrInvalid, "gate %q only works with role %q", c.Gate, RoleLocal)
		}
	default:
		return errors.Wrapf(ErrInvalid, "unknown gate %q", c.Gate)
	}

	if c.Iterations <= 0 || c.StepMB <= 0 || c.Unit <= 0 {
		return errors.Wrapf(ErrInvalid, "iterations %d, step %d, unit %d must be positive", c.Iterations, c.StepMB, c.Unit)
	}
	if c.Timeout < 0 {
		return errors.Wrapf(ErrInvalid, "negative timeout %v", c.Timeout)
	}

	if c.Role == RoleConsumer {
		if c.SegmentID < 0 {
			return errors.Wrap(ErrInvalid, "consumer needs a segment id")
		}
		if c.Gate == GateSemaphore && c.SemaphoreID < 0 {
			return errors.Wrap(ErrInvalid, "consumer needs a semaphore id")
		}
	}

	return nil
}

// Env returns the environment variable name for key
func Env(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(key)
}

// EnvPair returns "NAME=value" for key, for a child process environment
func EnvPair(key string, value interface{}) string {
	return Env(key) + "=" + fmt.Sprint(value)
}
