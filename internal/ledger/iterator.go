package ledger

// cursor adapts a pull function into the HasNext/Next/Close protocol.
// It buffers one item so HasNext can look ahead. An error from advance is
// delivered by the following Next call, after which the cursor is done.
type cursor[T any] struct {
	advance func() (T, bool, error)
	release func() error

	next   *T
	err    error
	done   bool
	closed bool
}

func newCursor[T any](advance func() (T, bool, error), release func() error) *cursor[T] {
	return &cursor[T]{advance: advance, release: release}
}

// sliceCursor iterates over a materialized slice.
func sliceCursor[T any](items []T) *cursor[T] {
	i := 0
	return newCursor(func() (T, bool, error) {
		var zero T
		if i >= len(items) {
			return zero, false, nil
		}
		item := items[i]
		i++
		return item, true, nil
	}, nil)
}

func (c *cursor[T]) HasNext() bool {
	if c.next != nil || c.err != nil {
		return true
	}
	if c.done || c.closed {
		return false
	}
	item, ok, err := c.advance()
	if err != nil {
		c.err = err
		return true
	}
	if !ok {
		c.done = true
		return false
	}
	c.next = &item
	return true
}

func (c *cursor[T]) Next() (*T, error) {
	if !c.HasNext() {
		return nil, ErrIteratorExhausted
	}
	if c.err != nil {
		err := c.err
		c.err = nil
		c.done = true
		return nil, err
	}
	item := c.next
	c.next = nil
	return item, nil
}

// Close releases the underlying resource. Safe to call more than once.
func (c *cursor[T]) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.next = nil
	if c.release != nil {
		return c.release()
	}
	return nil
}
