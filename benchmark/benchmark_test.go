package benchmark

import (
	"context"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/baditaflorin/go_quality_matcher/internal/adapters/reducer"
	core "github.com/baditaflorin/go_quality_matcher/internal/core/matcher"
	"github.com/baditaflorin/go_quality_matcher/internal/ports"
	"github.com/baditaflorin/go_quality_matcher/pkg/batch"
)

type nopLogger struct{}

func (nopLogger) Debug(msg string, keysAndValues ...interface{}) {}
func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}
func (nopLogger) Close() error                                   { return nil }

// randomQuality builds a non-negative matrix shaped like a typical
// single-image anchor matching problem.
func randomQuality(rng *rand.Rand, rows, cols int) *mat.Dense {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = rng.Float64()
	}
	return mat.NewDense(rows, cols, data)
}

func newMatcher(b *testing.B, r ports.Reducer) *core.Matcher {
	b.Helper()
	m, err := core.NewMatcher(core.Config{
		Thresholds:             []float64{0.4, 0.5},
		Labels:                 []int{-1, 0, 1},
		AllowLowQualityMatches: true,
	}, nopLogger{}, r)
	if err != nil {
		b.Fatalf("NewMatcher: %v", err)
	}
	return m
}

func benchmarkMatch(b *testing.B, r ports.Reducer, rows, cols int) {
	m := newMatcher(b, r)
	quality := randomQuality(rand.New(rand.NewSource(1)), rows, cols)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := m.Match(ctx, quality); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkMatchDefaultSmall(b *testing.B) {
	benchmarkMatch(b, reducer.NewDefaultReducer(), 8, 1024)
}

func BenchmarkMatchOptimizedSmall(b *testing.B) {
	benchmarkMatch(b, reducer.NewOptimizedReducer(), 8, 1024)
}

func BenchmarkMatchDefaultLarge(b *testing.B) {
	benchmarkMatch(b, reducer.NewDefaultReducer(), 64, 16384)
}

func BenchmarkMatchOptimizedLarge(b *testing.B) {
	benchmarkMatch(b, reducer.NewOptimizedReducer(), 64, 16384)
}

func BenchmarkBatchMatchAll(b *testing.B) {
	m := newMatcher(b, reducer.NewOptimizedReducer())
	engine, err := batch.NewEngine(m)
	if err != nil {
		b.Fatalf("NewEngine: %v", err)
	}

	rng := rand.New(rand.NewSource(2))
	matrices := make([]mat.Matrix, 16)
	for i := range matrices {
		matrices[i] = randomQuality(rng, 8, 4096)
	}
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.MatchAll(ctx, matrices); err != nil {
			b.Fatal(err)
		}
	}
}
