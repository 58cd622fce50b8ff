//go:build !linux

package shm

// Create is not available on this platform
func Create(size int) (*Segment, error) {
	return nil, ErrUnsupported
}

// Attach is not available on this platform
func Attach(id int) (*Segment, error) {
	return nil, ErrUnsupported
}

// Detach is a no-op on this platform
func (s *Segment) Detach() error {
	s.mem = nil
	return nil
}

// Remove is not available on this platform
func Remove(id int) error {
	return ErrUnsupported
}

// Stat is not available on this platform
func Stat(id int) (Info, error) {
	return Info{}, ErrUnsupported
}
