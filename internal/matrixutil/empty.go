package matrixutil

import "gonum.org/v1/gonum/mat"

// Empty is a quality matrix with zero ground-truth rows and a fixed number
// of prediction columns. mat.Dense cannot represent zero-row shapes, so the
// "no ground truth present" state gets its own explicit type.
type Empty struct {
	cols int
}

// NewEmpty returns an empty quality matrix with the given column count.
func NewEmpty(cols int) Empty {
	return Empty{cols: cols}
}

// Dims returns 0 rows and the configured number of columns.
func (e Empty) Dims() (r, c int) {
	return 0, e.cols
}

// At always panics: an empty matrix has no elements.
func (e Empty) At(i, j int) float64 {
	panic(mat.ErrRowAccess)
}

// T returns the transpose view of the matrix.
func (e Empty) T() mat.Matrix {
	return mat.Transpose{Matrix: e}
}
