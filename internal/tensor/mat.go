package tensor

import (
	"errors"
	"fmt"
	"math"
)

// Mat is a dense row-major float32 matrix with R rows of C contiguous
// values. Row indices out of range panic.
type Mat struct {
	R, C int
	Data []float32
}

var errShape = errors.New("tensor: bad matrix shape")

// NewMat allocates a zeroed r x c matrix.
func NewMat(r, c int) Mat {
	if r < 0 || c < 0 {
		panic(fmt.Errorf("%w: %dx%d", errShape, r, c))
	}
	return Mat{R: r, C: c, Data: make([]float32, r*c)}
}

// NewMatFromData wraps data as an r x c matrix without copying.
func NewMatFromData(r, c int, data []float32) (Mat, error) {
	switch {
	case r < 0 || c < 0:
		return Mat{}, fmt.Errorf("%w: %dx%d", errShape, r, c)
	case c != 0 && r > math.MaxInt/c:
		return Mat{}, fmt.Errorf("%w: %dx%d overflows", errShape, r, c)
	case r*c != len(data):
		return Mat{}, fmt.Errorf("%w: %dx%d needs %d values, got %d", errShape, r, c, r*c, len(data))
	}
	return Mat{R: r, C: c, Data: data}, nil
}

// Row returns row i as a view into m.
func (m *Mat) Row(i int) []float32 {
	if uint(i) >= uint(m.R) {
		panic(fmt.Sprintf("tensor: row %d of %d", i, m.R))
	}
	return m.Data[i*m.C : (i+1)*m.C]
}

// Transpose returns a new C x R matrix.
func (m *Mat) Transpose() Mat {
	out := NewMat(m.C, m.R)
	for i := range m.R {
		for j, v := range m.Row(i) {
			out.Data[j*m.R+i] = v
		}
	}
	return out
}
