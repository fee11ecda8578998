package resource

import (
	"sync"

	"github.com/hupe1980/vecann/matrix"
)

// Alloc allocates an accounted rows x cols matrix. The returned release func
// returns the reservation; calling it more than once is a no-op.
func Alloc[T matrix.Element](c *Context, rows, cols int) (*matrix.Matrix[T], func(), error) {
	bytes := matrix.BytesFor[T](rows, cols)
	if err := c.AcquireMemory(bytes); err != nil {
		return nil, nil, err
	}

	m, err := matrix.New[T](rows, cols)
	if err != nil {
		c.ReleaseMemory(bytes)
		return nil, nil, err
	}

	var once sync.Once
	return m, func() { once.Do(func() { c.ReleaseMemory(bytes) }) }, nil
}

// Reserve accounts bytes held by a structure the caller allocates itself.
func Reserve(c *Context, bytes int64) (func(), error) {
	if err := c.AcquireMemory(bytes); err != nil {
		return nil, err
	}
	var once sync.Once
	return func() { once.Do(func() { c.ReleaseMemory(bytes) }) }, nil
}
