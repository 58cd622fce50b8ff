package stamp

import (
	"math/rand/v2"
	"testing"
	"time"
)

// TestEncodeKnownHeader checks the header bytes for a fixed instant
func TestEncodeKnownHeader(t *testing.T) {
	ts := Timestamp{Sec: 1700000000, Nsec: 123456789}

	h := Encode(ts)
	if got := string(h[:]); got != "1700000000123456789" {
		t.Fatalf("unexpected header %q", got)
	}

	back := Parse(h[:])
	if back != ts {
		t.Errorf("Parse returned %+v, want %+v", back, ts)
	}
}

// TestEncodePadsShortValues verifies that short values are zero padded
func TestEncodePadsShortValues(t *testing.T) {
	h := Encode(Timestamp{Sec: 5, Nsec: 42})
	if got := string(h[:]); got != "0000000005000000042" {
		t.Fatalf("unexpected header %q", got)
	}
}

// TestRoundTrip runs decode(encode(T)) over the field boundaries and random values
func TestRoundTrip(t *testing.T) {
	cases := []Timestamp{
		{0, 0},
		{9999999999, 999999999},
		{1, 1},
		{1700000000, 0},
		{0, 999999999},
	}

	r := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 1000; i++ {
		cases = append(cases, Timestamp{
			Sec:  r.Int64N(10000000000),
			Nsec: r.Int64N(1000000000),
		})
	}

	for _, ts := range cases {
		h := Encode(ts)
		if got := Parse(h[:]); got != ts {
			t.Fatalf("round trip of %+v gave %+v", ts, got)
		}
	}
}

// TestPutInsideMessage checks that Put only touches the header region
func TestPutInsideMessage(t *testing.T) {
	msg := make([]byte, 64)
	for i := range msg {
		msg[i] = 0xAA
	}

	Put(msg, Timestamp{Sec: 1234567890, Nsec: 1})
	if string(msg[:HeaderSize]) != "1234567890000000001" {
		t.Fatalf("unexpected header %q", msg[:HeaderSize])
	}
	for i := HeaderSize; i < len(msg); i++ {
		if msg[i] != 0xAA {
			t.Fatalf("byte %d overwritten", i)
		}
	}
}

// TestDecodeGarbage documents that non-digit input is not rejected
func TestDecodeGarbage(t *testing.T) {
	// 'A' - '0' == 17, so "1A" folds to 1*10 + 17.
	if got := Decode([]byte("1A"), 2); got != 27 {
		t.Errorf("Decode(1A) = %d, want 27", got)
	}
}

func TestElapsed(t *testing.T) {
	t1 := Timestamp{Sec: 10, Nsec: 900000000}
	t2 := Timestamp{Sec: 12, Nsec: 100000000}

	if got := Elapsed(t1, t2); got < 1.1999999 || got > 1.2000001 {
		t.Errorf("Elapsed = %.9f, want 1.2", got)
	}
	if got := Elapsed(t1, t1); got != 0 {
		t.Errorf("Elapsed(t, t) = %v, want 0", got)
	}
}

// TestElapsedAntisymmetric checks elapsed(a, b) == -elapsed(b, a)
func TestElapsedAntisymmetric(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	for i := 0; i < 1000; i++ {
		a := Timestamp{Sec: r.Int64N(10000000000), Nsec: r.Int64N(1000000000)}
		b := Timestamp{Sec: r.Int64N(10000000000), Nsec: r.Int64N(1000000000)}

		if Elapsed(a, b) != -Elapsed(b, a) {
			t.Fatalf("Elapsed not antisymmetric for %+v, %+v", a, b)
		}
	}
}

func TestSample(t *testing.T) {
	before := time.Now()
	ts := Sample()
	after := time.Now()

	if ts.Nsec < 0 || ts.Nsec >= 1e9 {
		t.Fatalf("nanoseconds out of range: %d", ts.Nsec)
	}
	if ts.Time().Before(before.Truncate(time.Nanosecond)) || ts.Time().After(after) {
		t.Errorf("sample %v outside [%v, %v]", ts.Time(), before, after)
	}
}
