package warmup

import (
	"context"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/baditaflorin/go_quality_matcher/internal/pool"
	"github.com/baditaflorin/go_quality_matcher/internal/ports"
)

// Config defines configuration for warming up the system.
type Config struct {
	// Number of concurrent warmup routines to run
	Concurrency int
	// Number of iterations per routine
	Iterations int
	// Synthetic matrix shape used during warmup
	GroundTruths int
	Predictions  int
	// Warmup duration (0 means no time limit)
	Duration time.Duration
	// Whether to perform GC after warmup
	ForceGC bool
}

// DefaultConfig returns the default warmup configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency:  runtime.NumCPU(),
		Iterations:   1000,
		GroundTruths: 8,
		Predictions:  256,
		Duration:     5 * time.Second,
		ForceGC:      true,
	}
}

// Manager handles system warmup operations. Running each registered matcher
// over synthetic quality matrices faults in code paths, pools and allocator
// size classes before real traffic arrives.
type Manager struct {
	logger   ports.Logger
	matchers []ports.Matcher
	config   Config
	scratch  *pool.Float64Pool
}

// NewManager creates a new warmup manager.
func NewManager(logger ports.Logger, config Config) *Manager {
	return &Manager{
		logger:  logger,
		config:  config,
		scratch: pool.NewFloat64Pool(config.GroundTruths * config.Predictions),
	}
}

// RegisterMatcher adds a matcher to be warmed up.
func (wm *Manager) RegisterMatcher(m ports.Matcher) {
	wm.matchers = append(wm.matchers, m)
}

// WarmUp runs the warmup process for all registered matchers.
func (wm *Manager) WarmUp(ctx context.Context) {
	if len(wm.matchers) == 0 {
		return
	}

	startTime := time.Now()
	wm.logger.Info("Starting system warmup",
		"matchers", len(wm.matchers),
		"concurrency", wm.config.Concurrency,
		"iterations", wm.config.Iterations,
	)

	warmupCtx := ctx
	var cancel context.CancelFunc
	if wm.config.Duration > 0 {
		warmupCtx, cancel = context.WithTimeout(ctx, wm.config.Duration)
		defer cancel()
	}

	var wg sync.WaitGroup
	for i := 0; i < wm.config.Concurrency; i++ {
		wg.Add(1)
		go func(routineID int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(int64(routineID) + 1))

			for j := 0; j < wm.config.Iterations; j++ {
				select {
				case <-warmupCtx.Done():
					return
				default:
				}

				quality := wm.syntheticMatrix(rng)
				for _, m := range wm.matchers {
					_, _ = m.Match(warmupCtx, quality)
				}
				wm.release(quality)
			}
		}(i)
	}
	wg.Wait()

	if wm.config.ForceGC {
		wm.logger.Debug("Forcing garbage collection after warmup")
		runtime.GC()
	}

	wm.logger.Info("System warmup completed",
		"duration", time.Since(startTime),
	)
}

// syntheticMatrix builds a random non-negative quality matrix on a pooled
// backing slice. The matrix must be released before the slice is reused.
func (wm *Manager) syntheticMatrix(rng *rand.Rand) *mat.Dense {
	rows, cols := wm.config.GroundTruths, wm.config.Predictions
	bufp := wm.scratch.Get()
	buf := *bufp
	for i := 0; i < rows*cols; i++ {
		buf = append(buf, rng.Float64())
	}
	*bufp = buf
	return mat.NewDense(rows, cols, buf)
}

func (wm *Manager) release(quality *mat.Dense) {
	data := quality.RawMatrix().Data
	wm.scratch.Put(&data)
}
