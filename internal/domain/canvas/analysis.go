package canvas

import "fmt"

// AnalysisResult is what the analysis service says about a drawing.
type AnalysisResult struct {
	Description     string   `json:"description"`
	Tags            []string `json:"tags"`
	ConfidenceScore float64  `json:"confidence_score"`
}

// Validate checks the invariants clients rely on.
func (r AnalysisResult) Validate() error {
	if r.ConfidenceScore < 0 || r.ConfidenceScore > 1 {
		return fmt.Errorf("confidence_score %v is out of range [0, 1]", r.ConfidenceScore)
	}
	return nil
}
