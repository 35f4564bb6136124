package reducer

import (
	"github.com/viterin/vek"
	"gonum.org/v1/gonum/mat"

	"github.com/baditaflorin/go_quality_matcher/internal/ports"
)

// OptimizedReducer implements the matrix reductions with vectorized row
// passes. Rows of a *mat.Dense are contiguous, so the row-wise reductions run
// through vek's SIMD kernels; other matrix implementations fall back to the
// scalar reducer.
type OptimizedReducer struct {
	fallback ports.Reducer
}

// NewOptimizedReducer creates a new optimized reducer.
func NewOptimizedReducer() ports.Reducer {
	return &OptimizedReducer{fallback: NewDefaultReducer()}
}

// ColumnMax merges rows into a running best with a scalar comparison per
// element. The merge uses strict greater-than, so the lowest row index wins
// ties no matter how rows are traversed.
func (r *OptimizedReducer) ColumnMax(quality mat.Matrix) ([]int, []float64) {
	dense, ok := quality.(*mat.Dense)
	if !ok {
		return r.fallback.ColumnMax(quality)
	}
	rows, cols := dense.Dims()
	bestIndex := make([]int, cols)
	bestQuality := make([]float64, cols)

	copy(bestQuality, dense.RawRowView(0))
	for i := 1; i < rows; i++ {
		row := dense.RawRowView(i)
		for j, v := range row {
			if v > bestQuality[j] {
				bestQuality[j] = v
				bestIndex[j] = i
			}
		}
	}
	return bestIndex, bestQuality
}

// RowMax reduces each contiguous row with vek.Max.
func (r *OptimizedReducer) RowMax(quality mat.Matrix) []float64 {
	dense, ok := quality.(*mat.Dense)
	if !ok {
		return r.fallback.RowMax(quality)
	}
	rows, _ := dense.Dims()
	rowBest := make([]float64, rows)
	for i := 0; i < rows; i++ {
		rowBest[i] = vek.Max(dense.RawRowView(i))
	}
	return rowBest
}

// Min reduces each contiguous row with vek.Min and folds the row minima.
func (r *OptimizedReducer) Min(quality mat.Matrix) float64 {
	dense, ok := quality.(*mat.Dense)
	if !ok {
		return r.fallback.Min(quality)
	}
	rows, _ := dense.Dims()
	min := vek.Min(dense.RawRowView(0))
	for i := 1; i < rows; i++ {
		if v := vek.Min(dense.RawRowView(i)); v < min {
			min = v
		}
	}
	return min
}
