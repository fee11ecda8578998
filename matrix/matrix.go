// Package matrix provides dense, row-major, owned buffers with an explicit shape.
//
// Datasets, query batches and graph adjacency arenas are all stored as a
// Matrix. Rows are addressed by integer position, which doubles as the stable
// id of the vector stored in that row.
package matrix

import (
	"errors"
	"fmt"
	"unsafe"
)

// ErrShape is returned when a matrix shape is invalid or inconsistent.
var ErrShape = errors.New("matrix: invalid shape")

// Element is the set of element types a Matrix can hold.
type Element interface {
	~float32 | ~uint32 | ~int32
}

// Matrix is a dense row-major buffer of rows x cols elements.
type Matrix[T Element] struct {
	rows int
	cols int
	data []T
}

// New allocates a zeroed rows x cols matrix.
func New[T Element](rows, cols int) (*Matrix[T], error) {
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrShape, rows, cols)
	}
	return &Matrix[T]{
		rows: rows,
		cols: cols,
		data: make([]T, rows*cols),
	}, nil
}

// Wrap takes ownership of data as a rows x cols matrix without copying.
func Wrap[T Element](data []T, rows, cols int) (*Matrix[T], error) {
	if rows < 0 || cols < 0 || len(data) != rows*cols {
		return nil, fmt.Errorf("%w: %d elements for %dx%d", ErrShape, len(data), rows, cols)
	}
	return &Matrix[T]{rows: rows, cols: cols, data: data}, nil
}

// FromRows copies rows into a new matrix. All rows must have the same length.
func FromRows[T Element](rows [][]T) (*Matrix[T], error) {
	if len(rows) == 0 {
		return &Matrix[T]{}, nil
	}
	cols := len(rows[0])
	m, err := New[T](len(rows), cols)
	if err != nil {
		return nil, err
	}
	for i, r := range rows {
		if len(r) != cols {
			return nil, fmt.Errorf("%w: row %d has %d columns, expected %d", ErrShape, i, len(r), cols)
		}
		copy(m.data[i*cols:(i+1)*cols], r)
	}
	return m, nil
}

// Rows returns the number of rows.
func (m *Matrix[T]) Rows() int { return m.rows }

// Cols returns the number of columns.
func (m *Matrix[T]) Cols() int { return m.cols }

// Data returns the backing slice.
func (m *Matrix[T]) Data() []T { return m.data }

// Row returns a view of row i. The view's capacity ends at the row boundary,
// so appending to it never overwrites the next row.
func (m *Matrix[T]) Row(i int) []T {
	off := i * m.cols
	return m.data[off : off+m.cols : off+m.cols]
}

// SetRow copies v into row i.
func (m *Matrix[T]) SetRow(i int, v []T) error {
	if len(v) != m.cols {
		return fmt.Errorf("%w: row of length %d, expected %d", ErrShape, len(v), m.cols)
	}
	copy(m.Row(i), v)
	return nil
}

// SizeBytes returns the size of the backing buffer in bytes.
func (m *Matrix[T]) SizeBytes() int64 {
	var zero T
	return int64(len(m.data)) * int64(unsafe.Sizeof(zero))
}

// Clone returns a deep copy.
func (m *Matrix[T]) Clone() *Matrix[T] {
	data := make([]T, len(m.data))
	copy(data, m.data)
	return &Matrix[T]{rows: m.rows, cols: m.cols, data: data}
}

// BytesFor returns the buffer size of a rows x cols matrix of T.
func BytesFor[T Element](rows, cols int) int64 {
	var zero T
	return int64(rows) * int64(cols) * int64(unsafe.Sizeof(zero))
}
