// Package brand runs the deterministic brand-compliance rulebook over email
// HTML and in-app images. Scoring is fixed: a critical violation deducts 20
// points, a warning 5, an info 1, floored at zero.
package brand

import (
	"fmt"

	"github.com/orqestra/campaign-hub/internal/config"
)

// Severity levels for violations.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// Violation is one failed rule.
type Violation struct {
	Rule     string `json:"rule"`
	Category string `json:"category"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Value    string `json:"value,omitempty"`
}

// Summary counts violations by severity.
type Summary struct {
	Critical int `json:"critical"`
	Warning  int `json:"warning"`
	Info     int `json:"info"`
	Total    int `json:"total"`
}

// Result is the brand validator outcome.
type Result struct {
	Compliant  bool        `json:"compliant"`
	Score      int         `json:"score"`
	Violations []Violation `json:"violations"`
	Summary    Summary     `json:"summary"`
}

// Validator applies the configured rulebook.
type Validator struct {
	cfg config.BrandConfig
}

// New creates a brand validator.
func New(cfg config.BrandConfig) *Validator { return &Validator{cfg: cfg} }

// score folds the violations into the final result. Compliance requires zero
// critical and zero warning violations; infos alone only cost points.
func score(violations []Violation) *Result {
	res := &Result{Score: 100, Violations: violations}
	if res.Violations == nil {
		res.Violations = []Violation{}
	}
	for _, v := range violations {
		switch v.Severity {
		case SeverityCritical:
			res.Summary.Critical++
			res.Score -= 20
		case SeverityWarning:
			res.Summary.Warning++
			res.Score -= 5
		case SeverityInfo:
			res.Summary.Info++
			res.Score--
		}
	}
	res.Summary.Total = len(violations)
	if res.Score < 0 {
		res.Score = 0
	}
	res.Compliant = res.Summary.Critical == 0 && res.Summary.Warning == 0
	return res
}

func violationf(rule, category, severity, value, format string, args ...interface{}) Violation {
	return Violation{
		Rule:     rule,
		Category: category,
		Severity: severity,
		Message:  fmt.Sprintf(format, args...),
		Value:    value,
	}
}
