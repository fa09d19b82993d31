package gate

import (
	"fmt"
	"strings"
)

// Baseline carries the production model's metrics, or marks their absence.
// The zero value means "no baseline": the bootstrap case where no model has
// ever been promoted. Absence is deliberately a distinct state rather than an
// empty MetricSet so a broken registry connection can never masquerade as a
// first run.
type Baseline struct {
	Metrics MetricSet
	Exists  bool
}

// NoBaseline is the sentinel for the first-ever training run of a model.
var NoBaseline = Baseline{}

// WithBaseline wraps recorded production metrics.
func WithBaseline(metrics MetricSet) Baseline {
	return Baseline{Metrics: metrics.Clone(), Exists: true}
}

// MetricResult records one tracked metric's comparison.
type MetricResult struct {
	Name     string  `json:"name"`
	New      float64 `json:"new"`
	Baseline float64 `json:"baseline"`
	Delta    float64 `json:"delta"`
	Improved bool    `json:"improved"`
}

// Decision is the quality gate's verdict for one training run.
type Decision struct {
	ShouldPromote bool           `json:"should_promote"`
	Bootstrap     bool           `json:"bootstrap"`
	New           MetricSet      `json:"new_metrics"`
	Baseline      MetricSet      `json:"baseline_metrics,omitempty"`
	Results       []MetricResult `json:"results,omitempty"`
	Justification string         `json:"justification"`
}

// Decide computes the promotion decision for newMetrics against baseline
// over the fixed tracked metric set.
//
// Bootstrap: with no baseline, any model beats no model and the decision is
// unconditionally promote. Otherwise the rule is conjunctive and strict:
// every tracked metric must exceed its baseline value. A tie or a regression
// on any one metric blocks promotion — dice and iou can disagree on edge
// cases, and partial improvement is not a reliable signal of overall quality.
//
// Decide is pure and never fails for well-formed inputs; a tracked metric
// missing from either set is an ErrMetricMismatch naming the absent metrics.
func Decide(newMetrics MetricSet, baseline Baseline, tracked []string) (Decision, error) {
	if len(tracked) == 0 {
		return Decision{}, fmt.Errorf("%w: no tracked metrics configured", ErrMetricMismatch)
	}
	if missing := newMetrics.Missing(tracked); len(missing) > 0 {
		return Decision{}, fmt.Errorf("%w: new metrics missing %s", ErrMetricMismatch, strings.Join(missing, ", "))
	}

	if !baseline.Exists {
		return Decision{
			ShouldPromote: true,
			Bootstrap:     true,
			New:           newMetrics.Clone(),
			Justification: "no production baseline exists; bootstrapping with the first trained model",
		}, nil
	}

	if missing := baseline.Metrics.Missing(tracked); len(missing) > 0 {
		return Decision{}, fmt.Errorf("%w: baseline metrics missing %s", ErrMetricMismatch, strings.Join(missing, ", "))
	}

	decision := Decision{
		ShouldPromote: true,
		New:           newMetrics.Clone(),
		Baseline:      baseline.Metrics.Clone(),
		Results:       make([]MetricResult, 0, len(tracked)),
	}

	var lines []string
	for _, name := range tracked {
		newValue := newMetrics[name]
		baseValue := baseline.Metrics[name]
		result := MetricResult{
			Name:     name,
			New:      newValue,
			Baseline: baseValue,
			Delta:    newValue - baseValue,
			Improved: newValue > baseValue,
		}
		decision.Results = append(decision.Results, result)
		if !result.Improved {
			decision.ShouldPromote = false
		}

		verdict := "improved"
		switch {
		case newValue == baseValue:
			verdict = "tied"
		case newValue < baseValue:
			verdict = "regressed"
		}
		lines = append(lines, fmt.Sprintf("%s %s %+.4f (new %.4f vs baseline %.4f)",
			name, verdict, result.Delta, newValue, baseValue))
	}

	outcome := "all tracked metrics improved; promoting"
	if !decision.ShouldPromote {
		outcome = "not every tracked metric improved; keeping the current production model"
	}
	decision.Justification = fmt.Sprintf("%s: %s", outcome, strings.Join(lines, "; "))
	return decision, nil
}
