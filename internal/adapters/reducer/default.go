package reducer

import (
	"gonum.org/v1/gonum/mat"

	"github.com/baditaflorin/go_quality_matcher/internal/ports"
)

// DefaultReducer implements the matrix reductions with portable scalar loops.
// It works on any mat.Matrix implementation.
type DefaultReducer struct{}

// NewDefaultReducer creates a new default reducer.
func NewDefaultReducer() ports.Reducer {
	return &DefaultReducer{}
}

// ColumnMax scans rows in order and keeps the strictly greater value, so the
// lowest row index wins ties.
func (r *DefaultReducer) ColumnMax(quality mat.Matrix) ([]int, []float64) {
	rows, cols := quality.Dims()
	bestIndex := make([]int, cols)
	bestQuality := make([]float64, cols)

	for j := 0; j < cols; j++ {
		bestQuality[j] = quality.At(0, j)
	}
	for i := 1; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if v := quality.At(i, j); v > bestQuality[j] {
				bestQuality[j] = v
				bestIndex[j] = i
			}
		}
	}
	return bestIndex, bestQuality
}

// RowMax returns the maximum value of each row.
func (r *DefaultReducer) RowMax(quality mat.Matrix) []float64 {
	rows, cols := quality.Dims()
	rowBest := make([]float64, rows)

	for i := 0; i < rows; i++ {
		best := quality.At(i, 0)
		for j := 1; j < cols; j++ {
			if v := quality.At(i, j); v > best {
				best = v
			}
		}
		rowBest[i] = best
	}
	return rowBest
}

// Min returns the smallest element of the matrix.
func (r *DefaultReducer) Min(quality mat.Matrix) float64 {
	rows, cols := quality.Dims()
	min := quality.At(0, 0)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if v := quality.At(i, j); v < min {
				min = v
			}
		}
	}
	return min
}
