// Package matcher exposes the quality matcher with functional options.
//
// A QualityMatcher assigns each of N predicted elements (anchors, proposals)
// to at most one of M ground-truth elements based on an M×N non-negative
// pairwise quality matrix such as IoU, following the matching scheme of
// Faster R-CNN §3.1.2: a column-wise argmax picks the best ground truth per
// prediction, an ordered threshold ladder stratifies predictions into
// ignore/negative/positive bands, and an optional rescue pass guarantees
// every ground truth at least one positive prediction.
package matcher

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
	"github.com/baditaflorin/go_quality_matcher/internal/warmup"
)

// Label values re-exported for callers configuring label ladders.
const (
	LabelIgnore   = domain.LabelIgnore
	LabelNegative = domain.LabelNegative
	LabelPositive = domain.LabelPositive
)

// EmptyQuality returns a quality matrix with zero ground-truth rows and the
// given number of prediction columns. Matching it yields the degenerate
// result: all indices 0 and every label equal to the lowest band's label.
func EmptyQuality(predictions int) mat.Matrix {
	return matrixutil.NewEmpty(predictions)
}

// QualityMatcher provides methods to match predictions against ground-truth
// elements from a pairwise quality matrix.
type QualityMatcher struct {
	matcher ports.Matcher
	logger  ports.Logger
	warmed  bool
}

// QualityMatcherOption defines a functional option for configuring QualityMatcher.
type QualityMatcherOption func(*qualityMatcherConfig)

type qualityMatcherConfig struct {
	Thresholds             []float64
	Labels                 []int
	AllowLowQualityMatches bool
	Logger                 ports.Logger
	Reducer                ports.Reducer
	WarmUp                 bool
	WarmUpConfig           warmup.Config
}

// WithThresholds sets the interval boundaries of the threshold ladder.
func WithThresholds(thresholds ...float64) QualityMatcherOption {
	return func(cfg *qualityMatcherConfig) {
		cfg.Thresholds = thresholds
	}
}

// WithLabels sets the label assigned to each ladder interval.
func WithLabels(labels ...int) QualityMatcherOption {
	return func(cfg *qualityMatcherConfig) {
		cfg.Labels = labels
	}
}

// WithAllowLowQualityMatches enables the low-quality rescue pass.
func WithAllowLowQualityMatches(allow bool) QualityMatcherOption {
	return func(cfg *qualityMatcherConfig) {
		cfg.AllowLowQualityMatches = allow
	}
}

// WithLogger sets a custom logger for the matcher.
func WithLogger(l l.Logger) QualityMatcherOption {
	return func(cfg *qualityMatcherConfig) {
		cfg.Logger = logger.FromExisting(l)
	}
}

// WithOptimizedReducer switches the matrix reductions to the vectorized
// implementation.
func WithOptimizedReducer() QualityMatcherOption {
	return func(cfg *qualityMatcherConfig) {
		cfg.Reducer = reducer.NewOptimizedReducer()
	}
}

// WithWarmUp enables system warmup on creation.
func WithWarmUp(enable bool) QualityMatcherOption {
	return func(cfg *qualityMatcherConfig) {
		cfg.WarmUp = enable
		cfg.WarmUpConfig = warmup.DefaultConfig()
	}
}

// WithWarmUpConfig enables warmup with a custom configuration.
func WithWarmUpConfig(config warmup.Config) QualityMatcherOption {
	return func(cfg *qualityMatcherConfig) {
		cfg.WarmUp = true
		cfg.WarmUpConfig = config
	}
}

// New creates a new QualityMatcher instance.
func New(opts ...QualityMatcherOption) (*QualityMatcher, error) {
	defaultConfig := core.DefaultConfig()

	config := &qualityMatcherConfig{
		Thresholds:             defaultConfig.Thresholds,
		Labels:                 defaultConfig.Labels,
		AllowLowQualityMatches: defaultConfig.AllowLowQualityMatches,
	}

	for _, opt := range opts {
		opt(config)
	}

	if config.Logger == nil {
		var err error
		config.Logger, err = logger.NewStdLogger()
		if err != nil {
			return nil, err
		}
	}

	if config.Reducer == nil {
		config.Reducer = reducer.NewDefaultReducer()
	}

	coreConfig := core.Config{
		Thresholds:             config.Thresholds,
		Labels:                 config.Labels,
		AllowLowQualityMatches: config.AllowLowQualityMatches,
	}
	m, err := core.NewMatcher(coreConfig, config.Logger, config.Reducer)
	if err != nil {
		return nil, err
	}

	qm := &QualityMatcher{
		matcher: m,
		logger:  config.Logger,
	}

	if config.WarmUp {
		manager := warmup.NewManager(config.Logger, config.WarmUpConfig)
		manager.RegisterMatcher(m)
		manager.WarmUp(context.Background())
		qm.warmed = true
	}

	return qm, nil
}

// Match assigns every prediction column of the quality matrix a ground-truth
// row index and a label.
func (qm *QualityMatcher) Match(ctx context.Context, quality mat.Matrix) (domain.MatchResult, error) {
	return qm.matcher.Match(ctx, quality)
}

// Warmed reports whether the instance ran a warmup on creation.
func (qm *QualityMatcher) Warmed() bool {
	return qm.warmed
}
