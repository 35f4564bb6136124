package matcher

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/baditaflorin/go_quality_matcher/internal/core/domain"
	"github.com/baditaflorin/go_quality_matcher/internal/matrixutil"
	"github.com/baditaflorin/go_quality_matcher/internal/ports"
)

// Config holds configuration for the quality matcher.
//
// Thresholds are the K-1 finite interval boundaries; together with the -Inf
// and +Inf sentinels they partition the quality range into K half-open bands
// [t_i, t_i+1). Labels assigns one label per band. Labels[0] — the label of
// the lowest band — doubles as the fill label when no ground truth is
// present; callers configure it, nothing is hardcoded.
type Config struct {
	Thresholds []float64
	Labels     []int
	// AllowLowQualityMatches enables the rescue pass that forces a positive
	// label on every prediction tied for some ground truth's best quality.
	AllowLowQualityMatches bool
}

// DefaultConfig returns the classic RPN two-threshold configuration:
// quality below 0.3 is negative, between 0.3 and 0.7 ignored, 0.7 and above
// positive.
func DefaultConfig() Config {
	return Config{
		Thresholds: []float64{0.3, 0.7},
		Labels:     []int{domain.LabelNegative, domain.LabelIgnore, domain.LabelPositive},
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if len(c.Thresholds) == 0 {
		return &domain.ConfigError{Field: "thresholds", Reason: "at least one threshold is required"}
	}
	if !(c.Thresholds[0] > 0) {
		return &domain.ConfigError{
			Field:  "thresholds",
			Reason: fmt.Sprintf("first threshold must be > 0, got %v", c.Thresholds[0]),
		}
	}
	ladder := c.ladder()
	for i := 1; i < len(ladder); i++ {
		if ladder[i] < ladder[i-1] {
			return &domain.ConfigError{
				Field:  "thresholds",
				Reason: fmt.Sprintf("thresholds must be non-decreasing, got %v before %v", ladder[i-1], ladder[i]),
			}
		}
	}
	for _, label := range c.Labels {
		if label != domain.LabelIgnore && label != domain.LabelNegative && label != domain.LabelPositive {
			return &domain.ConfigError{
				Field:  "labels",
				Reason: fmt.Sprintf("label must be -1, 0 or 1, got %d", label),
			}
		}
	}
	if len(c.Labels) != len(ladder)-1 {
		return &domain.ConfigError{
			Field:  "labels",
			Reason: fmt.Sprintf("need one label per interval: %d labels for %d intervals", len(c.Labels), len(ladder)-1),
		}
	}
	return nil
}

// ladder returns the thresholds with the -Inf and +Inf sentinels attached.
func (c Config) ladder() []float64 {
	ladder := make([]float64, 0, len(c.Thresholds)+2)
	ladder = append(ladder, math.Inf(-1))
	ladder = append(ladder, c.Thresholds...)
	ladder = append(ladder, math.Inf(1))
	return ladder
}

// Matcher assigns each prediction column of a quality matrix to at most one
// ground-truth row. It holds only immutable configuration, so one instance
// may be shared across goroutines matching independent matrices.
type Matcher struct {
	config  Config
	ladder  []float64
	logger  ports.Logger
	reducer ports.Reducer
}

// NewMatcher creates a new quality matcher.
func NewMatcher(config Config, logger ports.Logger, reducer ports.Reducer) (*Matcher, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Matcher{
		config:  config,
		ladder:  config.ladder(),
		logger:  logger,
		reducer: reducer,
	}, nil
}

// Match assigns every prediction column of the M×N quality matrix a
// ground-truth row index and a stratified label. Every entry of the matrix
// must be non-negative; a negative entry fails the call with an
// InvariantError rather than being clamped.
func (m *Matcher) Match(ctx context.Context, quality mat.Matrix) (domain.MatchResult, error) {
	if quality == nil {
		return domain.MatchResult{}, &domain.InvariantError{Reason: "matrix is nil"}
	}

	select {
	case <-ctx.Done():
		return domain.MatchResult{}, ctx.Err()
	default:
	}

	rows, cols := quality.Dims()
	m.logger.Debug("Starting quality matching",
		"ground_truths", rows,
		"predictions", cols,
	)

	details := make(map[string]interface{})
	details["thresholds"] = m.config.Thresholds
	details["allow_low_quality_matches"] = m.config.AllowLowQualityMatches

	matches := make([]int, cols)
	labels := make([]int, cols)

	// No ground truth present: every prediction keeps index 0 and the label
	// of the lowest band.
	if rows == 0 {
		for n := range labels {
			labels[n] = m.config.Labels[0]
		}
		m.logger.Debug("No ground-truth rows, filled degenerate result",
			"fill_label", m.config.Labels[0],
		)
		return domain.MatchResult{
			Matches:      matches,
			Labels:       labels,
			GroundTruths: rows,
			Predictions:  cols,
			Details:      details,
		}, nil
	}

	if cols > 0 {
		if min := m.reducer.Min(quality); min < 0 {
			m.logger.Error("Quality matrix has a negative entry", "min", min)
			return domain.MatchResult{}, &domain.InvariantError{
				Reason: fmt.Sprintf("entries must be non-negative, found %v", min),
			}
		}
	}

	bestIndex, bestQuality := m.reducer.ColumnMax(quality)
	copy(matches, bestIndex)

	for n := range labels {
		labels[n] = domain.LabelPositive
	}
	for i := 0; i < len(m.ladder)-1; i++ {
		lo, hi := m.ladder[i], m.ladder[i+1]
		for n, q := range bestQuality {
			if q >= lo && q < hi {
				labels[n] = m.config.Labels[i]
			}
		}
	}

	rescued := 0
	if m.config.AllowLowQualityMatches && cols > 0 {
		rescued = m.rescueLowQuality(quality, labels)
		details["rescued"] = rescued
	}

	m.logger.Debug("Computed quality matching",
		"ground_truths", rows,
		"predictions", cols,
		"rescued", rescued,
	)

	return domain.MatchResult{
		Matches:      matches,
		Labels:       labels,
		GroundTruths: rows,
		Predictions:  cols,
		Rescued:      rescued,
		Details:      details,
	}, nil
}

// rescueLowQuality forces a positive label on every prediction whose quality
// exactly equals some ground-truth row's best quality. The row maxima are
// elements of the matrix itself, so exact equality is well-defined; no
// tolerance is involved. Only labels change, never the matched indices.
func (m *Matcher) rescueLowQuality(quality mat.Matrix, labels []int) int {
	rows, cols := quality.Dims()
	rowBest := m.reducer.RowMax(quality)

	mask := make([]bool, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if quality.At(i, j) == rowBest[i] {
				mask[i*cols+j] = true
			}
		}
	}

	rescued := 0
	for _, p := range matrixutil.TruePositions(mask, cols) {
		if labels[p.Col] != domain.LabelPositive {
			labels[p.Col] = domain.LabelPositive
			rescued++
		}
	}
	return rescued
}
