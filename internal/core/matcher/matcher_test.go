package matcher

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/baditaflorin/go_quality_matcher/internal/adapters/reducer"
	"github.com/baditaflorin/go_quality_matcher/internal/core/domain"
	"github.com/baditaflorin/go_quality_matcher/internal/matrixutil"
)

// nopLogger satisfies ports.Logger without producing output.
type nopLogger struct{}

func (nopLogger) Debug(msg string, keysAndValues ...interface{}) {}
func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}
func (nopLogger) Close() error                                   { return nil }

func newTestMatcher(t *testing.T, config Config) *Matcher {
	t.Helper()
	m, err := NewMatcher(config, nopLogger{}, reducer.NewDefaultReducer())
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}
	return m
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:   "Valid two-threshold ladder",
			config: Config{Thresholds: []float64{0.4, 0.5}, Labels: []int{-1, 0, 1}},
		},
		{
			name:   "Valid single threshold",
			config: Config{Thresholds: []float64{0.5}, Labels: []int{0, 1}},
		},
		{
			name:    "No thresholds",
			config:  Config{Labels: []int{0}},
			wantErr: true,
		},
		{
			name:    "Negative first threshold",
			config:  Config{Thresholds: []float64{-0.1, 0.5}, Labels: []int{-1, 0, 1}},
			wantErr: true,
		},
		{
			name:    "Zero first threshold",
			config:  Config{Thresholds: []float64{0, 0.5}, Labels: []int{-1, 0, 1}},
			wantErr: true,
		},
		{
			name:    "Decreasing thresholds",
			config:  Config{Thresholds: []float64{0.5, 0.4}, Labels: []int{-1, 0, 1}},
			wantErr: true,
		},
		{
			name:    "Invalid label value",
			config:  Config{Thresholds: []float64{0.5}, Labels: []int{-1, 2}},
			wantErr: true,
		},
		{
			name:    "Label count mismatch",
			config:  Config{Thresholds: []float64{0.4, 0.5}, Labels: []int{-1, 0}},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.config.Validate()
			if tc.wantErr {
				var configErr *domain.ConfigError
				if !errors.As(err, &configErr) {
					t.Fatalf("expected ConfigError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestConfigLadder(t *testing.T) {
	config := Config{Thresholds: []float64{0.4, 0.5}, Labels: []int{-1, 0, 1}}
	got := config.ladder()
	want := []float64{math.Inf(-1), 0.4, 0.5, math.Inf(1)}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ladder = %v, want %v", got, want)
	}
}

func TestNewMatcherRejectsInvalidConfig(t *testing.T) {
	_, err := NewMatcher(Config{Thresholds: []float64{0.5, 0.4}, Labels: []int{-1, 0, 1}}, nopLogger{}, reducer.NewDefaultReducer())
	var configErr *domain.ConfigError
	if !errors.As(err, &configErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestMatchStratification(t *testing.T) {
	m := newTestMatcher(t, Config{Thresholds: []float64{0.4, 0.5}, Labels: []int{-1, 0, 1}})

	quality := mat.NewDense(1, 3, []float64{0.3, 0.45, 0.9})
	result, err := m.Match(context.Background(), quality)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}

	if want := []int{0, 0, 0}; !reflect.DeepEqual(result.Matches, want) {
		t.Errorf("Matches = %v, want %v", result.Matches, want)
	}
	if want := []int{-1, 0, 1}; !reflect.DeepEqual(result.Labels, want) {
		t.Errorf("Labels = %v, want %v", result.Labels, want)
	}
}

func TestMatchBoundaryValues(t *testing.T) {
	// Intervals are half-open: a best quality exactly on a threshold belongs
	// to the upper band.
	m := newTestMatcher(t, Config{Thresholds: []float64{0.4, 0.5}, Labels: []int{-1, 0, 1}})

	quality := mat.NewDense(1, 2, []float64{0.4, 0.5})
	result, err := m.Match(context.Background(), quality)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if want := []int{0, 1}; !reflect.DeepEqual(result.Labels, want) {
		t.Errorf("Labels = %v, want %v", result.Labels, want)
	}
}

func TestMatchEmptyGroundTruth(t *testing.T) {
	tests := []struct {
		name      string
		labels    []int
		wantLabel int
	}{
		{name: "Negative lowest band", labels: []int{0, -1, 1}, wantLabel: 0},
		{name: "Ignore lowest band", labels: []int{-1, 0, 1}, wantLabel: -1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := newTestMatcher(t, Config{Thresholds: []float64{0.4, 0.5}, Labels: tc.labels})

			result, err := m.Match(context.Background(), matrixutil.NewEmpty(5))
			if err != nil {
				t.Fatalf("Match: %v", err)
			}
			if want := []int{0, 0, 0, 0, 0}; !reflect.DeepEqual(result.Matches, want) {
				t.Errorf("Matches = %v, want %v", result.Matches, want)
			}
			for n, label := range result.Labels {
				if label != tc.wantLabel {
					t.Errorf("Labels[%d] = %d, want %d", n, label, tc.wantLabel)
				}
			}
		})
	}
}

func TestMatchTieBreak(t *testing.T) {
	m := newTestMatcher(t, Config{Thresholds: []float64{0.4, 0.5}, Labels: []int{-1, 0, 1}})

	quality := mat.NewDense(2, 1, []float64{0.6, 0.6})
	for i := 0; i < 10; i++ {
		result, err := m.Match(context.Background(), quality)
		if err != nil {
			t.Fatalf("Match: %v", err)
		}
		if result.Matches[0] != 0 {
			t.Fatalf("call %d: Matches[0] = %d, want 0 (first maximum)", i, result.Matches[0])
		}
	}
}

func TestLowQualityRescue(t *testing.T) {
	// Ground-truth row 1 never reaches 0.4; its best prediction is column 2
	// at quality 0.2.
	quality := mat.NewDense(2, 3, []float64{
		0.6, 0.55, 0.05,
		0.1, 0.15, 0.2,
	})

	t.Run("Enabled promotes the row best", func(t *testing.T) {
		m := newTestMatcher(t, Config{
			Thresholds:             []float64{0.4, 0.5},
			Labels:                 []int{-1, 0, 1},
			AllowLowQualityMatches: true,
		})
		result, err := m.Match(context.Background(), quality)
		if err != nil {
			t.Fatalf("Match: %v", err)
		}
		if want := []int{1, 1, 1}; !reflect.DeepEqual(result.Labels, want) {
			t.Errorf("Labels = %v, want %v", result.Labels, want)
		}
		if result.Rescued != 1 {
			t.Errorf("Rescued = %d, want 1", result.Rescued)
		}
		// The matched index stays driven by the column argmax.
		if want := []int{0, 0, 1}; !reflect.DeepEqual(result.Matches, want) {
			t.Errorf("Matches = %v, want %v", result.Matches, want)
		}
	})

	t.Run("Disabled keeps the stratified label", func(t *testing.T) {
		m := newTestMatcher(t, Config{
			Thresholds: []float64{0.4, 0.5},
			Labels:     []int{-1, 0, 1},
		})
		result, err := m.Match(context.Background(), quality)
		if err != nil {
			t.Fatalf("Match: %v", err)
		}
		if want := []int{1, 1, -1}; !reflect.DeepEqual(result.Labels, want) {
			t.Errorf("Labels = %v, want %v", result.Labels, want)
		}
		if result.Rescued != 0 {
			t.Errorf("Rescued = %d, want 0", result.Rescued)
		}
	})
}

func TestRescuePromotesTiedRowsOnce(t *testing.T) {
	// Both rows share the exact same maximum, held by column 0. The column
	// is promoted once.
	m := newTestMatcher(t, Config{
		Thresholds:             []float64{0.4, 0.5},
		Labels:                 []int{-1, 0, 1},
		AllowLowQualityMatches: true,
	})

	quality := mat.NewDense(2, 2, []float64{
		0.2, 0.1,
		0.2, 0.05,
	})
	result, err := m.Match(context.Background(), quality)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if want := []int{1, -1}; !reflect.DeepEqual(result.Labels, want) {
		t.Errorf("Labels = %v, want %v", result.Labels, want)
	}
	if result.Rescued != 1 {
		t.Errorf("Rescued = %d, want 1", result.Rescued)
	}
}

func TestMatchNegativeEntry(t *testing.T) {
	m := newTestMatcher(t, Config{Thresholds: []float64{0.4, 0.5}, Labels: []int{-1, 0, 1}})

	quality := mat.NewDense(2, 2, []float64{
		0.3, 0.7,
		-0.1, 0.5,
	})
	_, err := m.Match(context.Background(), quality)
	var invariantErr *domain.InvariantError
	if !errors.As(err, &invariantErr) {
		t.Fatalf("expected InvariantError, got %v", err)
	}
}

func TestMatchNilMatrix(t *testing.T) {
	m := newTestMatcher(t, Config{Thresholds: []float64{0.4, 0.5}, Labels: []int{-1, 0, 1}})

	_, err := m.Match(context.Background(), nil)
	var invariantErr *domain.InvariantError
	if !errors.As(err, &invariantErr) {
		t.Fatalf("expected InvariantError, got %v", err)
	}
}

func TestMatchIdempotence(t *testing.T) {
	m := newTestMatcher(t, Config{
		Thresholds:             []float64{0.4, 0.5},
		Labels:                 []int{-1, 0, 1},
		AllowLowQualityMatches: true,
	})

	quality := mat.NewDense(3, 4, []float64{
		0.1, 0.8, 0.3, 0.45,
		0.2, 0.2, 0.6, 0.45,
		0.9, 0.1, 0.6, 0.05,
	})

	first, err := m.Match(context.Background(), quality)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	second, err := m.Match(context.Background(), quality)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}

	if !reflect.DeepEqual(first.Matches, second.Matches) {
		t.Errorf("Matches drifted: %v then %v", first.Matches, second.Matches)
	}
	if !reflect.DeepEqual(first.Labels, second.Labels) {
		t.Errorf("Labels drifted: %v then %v", first.Labels, second.Labels)
	}
}

func TestMatchCancelledContext(t *testing.T) {
	m := newTestMatcher(t, Config{Thresholds: []float64{0.4, 0.5}, Labels: []int{-1, 0, 1}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Match(ctx, mat.NewDense(1, 1, []float64{0.5}))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
