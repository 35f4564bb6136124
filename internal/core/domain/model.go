package domain

import "fmt"

// Labels assigned to predictions after stratification.
const (
	// LabelIgnore marks predictions excluded from training.
	LabelIgnore = -1
	// LabelNegative marks background predictions.
	LabelNegative = 0
	// LabelPositive marks foreground predictions.
	LabelPositive = 1
)

// MatchResult holds the outcome of one matching call over an M×N quality
// matrix. Both slices have length N (one entry per prediction) and are owned
// by the caller; the matcher never retains them.
type MatchResult struct {
	// Matches[n] is the ground-truth row index assigned to prediction n.
	// When no ground truth is present it is 0 for every prediction.
	Matches []int
	// Labels[n] is the stratified label of prediction n, one of
	// LabelIgnore, LabelNegative, LabelPositive.
	Labels []int
	// GroundTruths is M, the number of ground-truth rows seen.
	GroundTruths int
	// Predictions is N, the number of prediction columns seen.
	Predictions int
	// Rescued counts predictions promoted by the low-quality rescue pass.
	Rescued int
	// Details holds additional diagnostic information.
	Details map[string]interface{}
}

// ConfigError reports an invalid threshold/label configuration detected at
// construction time. Construction never produces a partial matcher.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("matcher config: %s: %s", e.Field, e.Reason)
}

// InvariantError reports a quality matrix that violates the call-time
// preconditions (nil matrix, or a negative entry). The call fails as a
// whole; no partial result is produced.
type InvariantError struct {
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("quality matrix: %s", e.Reason)
}
