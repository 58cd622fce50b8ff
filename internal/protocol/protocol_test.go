package protocol

import (
	"testing"

	"github.com/pkg/errors"
)

func TestHeaderInitValidate(t *testing.T) {
	mem := make([]byte, ControlSize)

	h, err := HeaderAt(mem)
	if err != nil {
		t.Fatalf("HeaderAt: %v", err)
	}

	if err := h.Validate(); !errors.Is(err, ErrBadSegment) {
		t.Fatalf("Validate on zeroed page returned %v, want ErrBadSegment", err)
	}

	h.Init(20<<20, 1234)
	if err := h.Validate(); err != nil {
		t.Fatalf("Validate after Init: %v", err)
	}
	if h.Version() != Version {
		t.Errorf("Version() = %q, want %q", h.Version(), Version)
	}
	if h.Capacity() != 20<<20 {
		t.Errorf("Capacity() = %d", h.Capacity())
	}
	if h.ProducerPID() != 1234 || h.ConsumerPID() != 0 {
		t.Errorf("pids = %d/%d", h.ProducerPID(), h.ConsumerPID())
	}

	h.Publish(3, 6<<20)
	if seq, size := h.Current(); seq != 3 || size != 6<<20 {
		t.Errorf("Current() = %d, %d", seq, size)
	}

	// A second view over the same memory sees the same state.
	h2, _ := HeaderAt(mem)
	h2.SetConsumerPID(99)
	if h.ConsumerPID() != 99 {
		t.Error("consumer pid not visible through the first view")
	}
}

func TestHeaderVersionMismatch(t *testing.T) {
	mem := make([]byte, ControlSize)
	h, _ := HeaderAt(mem)
	h.Init(1, 1)

	h.version = [16]byte{}
	copy(h.version[:], "v2.0.0")
	if err := h.Validate(); !errors.Is(err, ErrVersion) {
		t.Errorf("Validate with v2 returned %v, want ErrVersion", err)
	}

	h.version = [16]byte{}
	copy(h.version[:], "garbage")
	if err := h.Validate(); !errors.Is(err, ErrVersion) {
		t.Errorf("Validate with invalid version returned %v, want ErrVersion", err)
	}

	h.version = [16]byte{}
	copy(h.version[:], "v1.4.2")
	if err := h.Validate(); err != nil {
		t.Errorf("Validate with minor bump: %v", err)
	}
}

func TestHeaderAtShort(t *testing.T) {
	if _, err := HeaderAt(make([]byte, ControlSize-1)); !errors.Is(err, ErrBadSegment) {
		t.Errorf("HeaderAt on short memory returned %v", err)
	}
}

func TestStrings(t *testing.T) {
	if OpReady.String() != "OpReady" || OpCode(9).String() != "OpCode(9)" {
		t.Errorf("OpCode strings: %s, %s", OpReady, OpCode(9))
	}
	if OpDone.String() != "OpDone" || OpCode(0).String() != "OpCode(0)" {
		t.Errorf("OpCode strings: %s, %s", OpDone, OpCode(0))
	}
	if PhaseWaitingForConsumer.String() != "WaitingForConsumer" {
		t.Errorf("Phase string: %s", PhaseWaitingForConsumer)
	}
	if RoleConsumer.String() != "Consumer" {
		t.Errorf("Role string: %s", RoleConsumer)
	}
}
