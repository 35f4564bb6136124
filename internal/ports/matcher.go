package ports

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"github.com/baditaflorin/go_quality_matcher/internal/core/domain"
)

// Matcher defines the interface for assigning predictions to ground-truth
// elements from a pairwise quality matrix.
type Matcher interface {
	Match(ctx context.Context, quality mat.Matrix) (domain.MatchResult, error)
}
