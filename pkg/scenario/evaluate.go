package scenario

import (
	"fmt"
	"math"

	"github.com/rmax-ai/platformsim/pkg/scoring"
)

// lowerIsBetter lists the metrics whose objectives are upper bounds.
var lowerIsBetter = map[string]bool{
	"totalCost":     true,
	"technicalDebt": true,
}

// ConditionFor returns the comparison an objective uses.
func ConditionFor(o Objective) string {
	if o.Condition != "" {
		return o.Condition
	}
	if lowerIsBetter[o.TargetMetric] {
		return "<="
	}
	return ">="
}

// Evaluate checks every objective of s against m. The score is the sum of
// the weights of the met objectives, scaled to 0-100.
func Evaluate(s Scenario, m scoring.GlobalMetrics) Progress {
	p := Progress{ScenarioID: s.ID, Objectives: make([]ObjectiveResult, 0, len(s.Objectives))}
	var score float64
	met := 0
	for _, o := range s.Objectives {
		cond := ConditionFor(o)
		actual, known := m.Value(o.TargetMetric)
		passed := known && compare(actual, cond, o.TargetValue)
		if passed {
			score += o.Weight
			met++
		}
		p.Objectives = append(p.Objectives, ObjectiveResult{
			ID:       o.ID,
			Metric:   o.TargetMetric,
			Expected: fmt.Sprintf("%s %g", cond, o.TargetValue),
			Actual:   actual,
			Weight:   o.Weight,
			Met:      passed,
		})
	}
	p.Score = math.Round(score*1000) / 10
	p.Completed = len(s.Objectives) > 0 && met == len(s.Objectives)
	return p
}

func compare(actual float64, cond string, target float64) bool {
	switch cond {
	case ">":
		return actual > target
	case ">=":
		return actual >= target
	case "<":
		return actual < target
	case "<=":
		return actual <= target
	case "==":
		return math.Abs(actual-target) < 0.0001
	}
	return false
}
