package ports

import "gonum.org/v1/gonum/mat"

// Reducer defines the interface for the matrix reductions the matcher needs.
// Implementations must keep the first-maximum tie-break: when two rows hold
// the same quality for a column, ColumnMax reports the lower row index.
type Reducer interface {
	// ColumnMax reduces an M×N matrix column-wise, returning for each of the
	// N columns the row index of its maximum and the maximum value itself.
	ColumnMax(quality mat.Matrix) (bestIndex []int, bestQuality []float64)

	// RowMax reduces an M×N matrix row-wise, returning the maximum value of
	// each of the M rows.
	RowMax(quality mat.Matrix) []float64

	// Min returns the smallest element of the matrix.
	Min(quality mat.Matrix) float64
}
