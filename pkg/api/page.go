package api

import "fmt"

// Pageable requests one page of a result set.
type Pageable struct {
	Offset int
	Size   int
}

// PageOf is a convenience constructor for Pageable.
func PageOf(offset, size int) Pageable {
	return Pageable{Offset: offset, Size: size}
}

// Validate rejects negative offsets and non-positive sizes.
func (p Pageable) Validate() error {
	if p.Offset < 0 {
		return fmt.Errorf("%w: negative offset %d", ErrInvalidPageable, p.Offset)
	}
	if p.Size <= 0 {
		return fmt.Errorf("%w: size must be positive, got %d", ErrInvalidPageable, p.Size)
	}
	return nil
}

// Page is one page of an ordered result set. TotalItems counts every
// matching item across all pages.
type Page[T any] struct {
	Content    []T
	TotalItems int
}
