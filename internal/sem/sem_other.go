//go:build !linux || !(amd64 || arm64)

package sem

import "context"

// Create is not available on this platform
func Create(initial ...int) (*Set, error) {
	return nil, ErrUnsupported
}

// Open is not available on this platform
func Open(id, n int) (*Set, error) {
	return nil, ErrUnsupported
}

// Wait is not available on this platform
func (s *Set) Wait(ctx context.Context, num int) error {
	return ErrUnsupported
}

// Post is not available on this platform
func (s *Set) Post(num int) error {
	return ErrUnsupported
}

// Value is not available on this platform
func (s *Set) Value(num int) (int, error) {
	return 0, ErrUnsupported
}

// Remove is not available on this platform
func (s *Set) Remove() error {
	return ErrUnsupported
}

// Remove is not available on this platform
func Remove(id int) error {
	return ErrUnsupported
}
