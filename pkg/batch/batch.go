// Package batch runs a quality matcher over many independent quality
// matrices (typically one per batch element) with a worker pool. The matcher
// holds only immutable configuration, so workers share one instance without
// coordination and results are assembled back in input order.
package batch

import (
	"context"
	"runtime"
	"sync"

	"github.com/baditaflorin/l"
	"gonum.org/v1/gonum/mat"

	"github.com/baditaflorin/go_quality_matcher/internal/adapters/logger"
	"github.com/baditaflorin/go_quality_matcher/internal/core/domain"
	"github.com/baditaflorin/go_quality_matcher/internal/ports"
)

// Constants for parallel processing
const (
	// DefaultWorkers is the default number of worker goroutines
	DefaultWorkers = 0 // 0 means use runtime.NumCPU()

	// MaxJobQueueSize limits the number of pending jobs
	MaxJobQueueSize = 32
)

// job carries one matrix and its position in the input slice.
type job struct {
	quality mat.Matrix
	index   int
}

// jobResult carries one match result back to the collector.
type jobResult struct {
	result domain.MatchResult
	index  int
	err    error
}

// Engine fans matching calls out over a pool of workers.
type Engine struct {
	matcher ports.Matcher
	logger  ports.Logger
	workers int
}

// EngineOption defines a functional option for configuring the Engine.
type EngineOption func(*Engine)

// WithWorkers sets the number of worker goroutines (0 = runtime.NumCPU()).
func WithWorkers(n int) EngineOption {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithLogger sets a custom logger for the engine.
func WithLogger(lg l.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger.FromExisting(lg)
	}
}

// NewEngine creates a batch engine around an existing matcher.
func NewEngine(m ports.Matcher, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		matcher: m,
		workers: DefaultWorkers,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		lg, err := logger.NewStdLogger()
		if err != nil {
			return nil, err
		}
		e.logger = lg
	}
	return e, nil
}

// MatchAll matches every matrix in the slice and returns the results in the
// same order. The first failing matrix fails the whole call; in-flight work
// is cancelled.
func (e *Engine) MatchAll(ctx context.Context, matrices []mat.Matrix) ([]domain.MatchResult, error) {
	if len(matrices) == 0 {
		return nil, nil
	}

	workers := e.workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(matrices) {
		workers = len(matrices)
	}

	e.logger.Debug("Starting batch matching",
		"matrices", len(matrices),
		"workers", workers,
	)

	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan job, MaxJobQueueSize)
	results := make(chan jobResult, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				result, err := e.matcher.Match(workCtx, j.quality)
				select {
				case results <- jobResult{result: result, index: j.index, err: err}:
				case <-workCtx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, q := range matrices {
			select {
			case jobs <- job{quality: q, index: i}:
			case <-workCtx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([]domain.MatchResult, len(matrices))
	received := 0
	for received < len(matrices) {
		select {
		case r, ok := <-results:
			if !ok {
				return nil, workCtx.Err()
			}
			if r.err != nil {
				e.logger.Error("Batch matching failed",
					"index", r.index,
					"error", r.err,
				)
				cancel()
				return nil, r.err
			}
			out[r.index] = r.result
			received++
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	e.logger.Debug("Batch matching completed", "matrices", len(matrices))
	return out, nil
}
