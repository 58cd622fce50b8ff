// Package stamp samples the real-time clock and carries the sample inside a
// message as a fixed-width run of ASCII digits.
//
// Header layout (19 bytes, no separators, no terminator):
//
//	[0,10)  seconds since the Unix epoch, zero padded
//	[10,19) nanoseconds within the second, zero padded
package stamp

import "time"

const (
	SecondsWidth = 10 // Digits used for the seconds field
	NanosWidth   = 9  // Digits used for the nanoseconds field

	// HeaderSize is the number of bytes a timestamp occupies at the head of a message.
	HeaderSize = SecondsWidth + NanosWidth
)

// Timestamp is a wall-clock instant split into whole seconds and nanoseconds.
// Nsec is always in [0, 1e9).
type Timestamp struct {
	Sec  int64
	Nsec int64
}

// Sample reads the real-time clock.
func Sample() Timestamp {
	now := time.Now()
	return Timestamp{Sec: now.Unix(), Nsec: int64(now.Nanosecond())}
}

// Time converts t back to a time.Time.
func (t Timestamp) Time() time.Time {
	return time.Unix(t.Sec, t.Nsec)
}

// Encode returns the 19-byte header for t.
func Encode(t Timestamp) [HeaderSize]byte {
	var h [HeaderSize]byte
	Put(h[:], t)
	return h
}

// Put writes the header for t into dst[:HeaderSize].
// Values wider than their field keep their low-order digits.
func Put(dst []byte, t Timestamp) {
	_ = dst[HeaderSize-1]
	putDigits(dst[:SecondsWidth], uint64(t.Sec))
	putDigits(dst[SecondsWidth:HeaderSize], uint64(t.Nsec))
}

func putDigits(dst []byte, v uint64) {
	for i := len(dst) - 1; i >= 0; i-- {
		dst[i] = '0' + byte(v%10)
		v /= 10
	}
}

// Decode folds the first width bytes of src into an integer, treating every
// byte as a decimal digit. Bytes outside '0'..'9' are not rejected; they
// produce a meaningless value.
func Decode(src []byte, width int) int64 {
	var v int64
	for i := 0; i < width; i++ {
		v = v*10 + int64(src[i]) - '0'
	}
	return v
}

// Parse reads the timestamp embedded at the head of msg.
func Parse(msg []byte) Timestamp {
	return Timestamp{
		Sec:  Decode(msg[:SecondsWidth], SecondsWidth),
		Nsec: Decode(msg[SecondsWidth:HeaderSize], NanosWidth),
	}
}

// Elapsed returns t2 - t1 in seconds. The result is negative when t2
// precedes t1.
func Elapsed(t1, t2 Timestamp) float64 {
	// Second and nanosecond deltas are kept apart: seconds*1e9 overflows
	// int64 for 10-digit second values.
	return float64(t2.Sec-t1.Sec) + float64(t2.Nsec-t1.Nsec)/1e9
}
