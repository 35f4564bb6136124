// quality_matcher.go
// Package qualitymatcher assigns predicted elements to ground-truth elements
// from a pairwise quality matrix.
// Each of the N prediction columns receives the row index of its best-scoring
// ground truth and a label in {-1 ignore, 0 negative, 1 positive} determined
// by an ordered threshold ladder over the best score:
//
//	ladder = [-inf, t1, ..., tK-1, +inf]   labels = [l1, ..., lK]
//
// A prediction whose best quality falls in [t_i, t_i+1) receives label l_i.
// With low-quality matches allowed, predictions tied for a ground truth's
// best quality are promoted to positive even below the positive threshold.
//
// This is the root-level convenience API; pkg/matcher exposes the same
// matcher with the full option surface.
package qualitymatcher

import (
	"context"

	"github.com/baditaflorin/l"
	"gonum.org/v1/gonum/mat"

	"github.com/baditaflorin/go_quality_matcher/internal/adapters/logger"
	"github.com/baditaflorin/go_quality_matcher/internal/adapters/reducer"
	"github.com/baditaflorin/go_quality_matcher/internal/core/domain"
	core "github.com/baditaflorin/go_quality_matcher/internal/core/matcher"
	"github.com/baditaflorin/go_quality_matcher/internal/matrixutil"
	"github.com/baditaflorin/go_quality_matcher/internal/ports"
)

// Result is the outcome of one matching call.
type Result = domain.MatchResult

// EmptyQuality returns a quality matrix with zero ground-truth rows and the
// given number of prediction columns.
func EmptyQuality(predictions int) mat.Matrix {
	return matrixutil.NewEmpty(predictions)
}

// Config holds configuration options for the quality matcher.
type Config struct {
	Thresholds             []float64
	Labels                 []int
	AllowLowQualityMatches bool
	// Logger for tracing computation steps.
	Logger l.Logger
}

// Option defines a functional option for configuring the matcher.
type Option func(*Config)

// WithThresholds sets the interval boundaries of the threshold ladder.
func WithThresholds(thresholds ...float64) Option {
	return func(cfg *Config) {
		cfg.Thresholds = thresholds
	}
}

// WithLabels sets the label assigned to each ladder interval.
func WithLabels(labels ...int) Option {
	return func(cfg *Config) {
		cfg.Labels = labels
	}
}

// WithAllowLowQualityMatches enables the low-quality rescue pass.
func WithAllowLowQualityMatches(allow bool) Option {
	return func(cfg *Config) {
		cfg.AllowLowQualityMatches = allow
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger l.Logger) Option {
	return func(cfg *Config) {
		cfg.Logger = logger
	}
}

// QualityMatcher matches predictions against ground-truth elements using
// configurable parameters. It is immutable after construction and safe for
// concurrent use.
type QualityMatcher struct {
	matcher ports.Matcher
}

// New creates a new QualityMatcher with the provided functional options.
// If no logger is provided, a default logger is created.
func New(opts ...Option) (*QualityMatcher, error) {
	defaults := core.DefaultConfig()
	cfg := Config{
		Thresholds:             defaults.Thresholds,
		Labels:                 defaults.Labels,
		AllowLowQualityMatches: defaults.AllowLowQualityMatches,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	var log ports.Logger
	if cfg.Logger != nil {
		log = logger.FromExisting(cfg.Logger)
	} else {
		defaultLogger, err := createDefaultLogger()
		if err != nil {
			return nil, err
		}
		log = logger.FromExisting(defaultLogger)
	}

	m, err := core.NewMatcher(core.Config{
		Thresholds:             cfg.Thresholds,
		Labels:                 cfg.Labels,
		AllowLowQualityMatches: cfg.AllowLowQualityMatches,
	}, log, reducer.NewDefaultReducer())
	if err != nil {
		return nil, err
	}

	return &QualityMatcher{matcher: m}, nil
}

// Match assigns every prediction column of the M×N quality matrix a
// ground-truth row index and a label. Entries must be non-negative.
func (qm *QualityMatcher) Match(ctx context.Context, quality mat.Matrix) (Result, error) {
	return qm.matcher.Match(ctx, quality)
}
