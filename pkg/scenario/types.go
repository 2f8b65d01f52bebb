// Package scenario holds the guided exercises a simulation can be reset to:
// a set of pre-built components plus weighted objectives over the global
// metrics.
package scenario

import (
	"github.com/rmax-ai/platformsim/pkg/scoring"
)

type Difficulty string

const (
	Beginner     Difficulty = "beginner"
	Intermediate Difficulty = "intermediate"
	Advanced     Difficulty = "advanced"
)

type Scenario struct {
	ID                string              `json:"id" yaml:"id" validate:"required"`
	Title             string              `json:"title" yaml:"title" validate:"required"`
	Description       string              `json:"description" yaml:"description"`
	Difficulty        Difficulty          `json:"difficulty" yaml:"difficulty" validate:"required,oneof=beginner intermediate advanced"`
	InitialComponents []scoring.Component `json:"initialComponents" yaml:"initialComponents"`
	Objectives        []Objective         `json:"objectives" yaml:"objectives" validate:"required,min=1,dive"`
	TimeLimit         int                 `json:"timeLimit" yaml:"timeLimit" validate:"gte=0"` // minutes
	Budget            float64             `json:"budget" yaml:"budget" validate:"gte=0"`
}

// Ref is the short form stored on the simulation state.
func (s Scenario) Ref() scoring.ScenarioRef {
	return scoring.ScenarioRef{ID: s.ID, Title: s.Title}
}

// Objective is met when the target metric compares to TargetValue by
// Condition. An empty condition means ">=" except for metrics where lower
// is better.
type Objective struct {
	ID           string  `json:"id" yaml:"id" validate:"required"`
	Description  string  `json:"description" yaml:"description"`
	TargetMetric string  `json:"targetMetric" yaml:"targetMetric" validate:"required"`
	TargetValue  float64 `json:"targetValue" yaml:"targetValue"`
	Weight       float64 `json:"weight" yaml:"weight" validate:"gte=0,lte=1"`
	Condition    string  `json:"condition,omitempty" yaml:"condition,omitempty" validate:"omitempty,oneof=> >= < <= =="`
}

type ObjectiveResult struct {
	ID       string  `json:"id"`
	Metric   string  `json:"metric"`
	Expected string  `json:"expected"` // e.g. ">= 80"
	Actual   float64 `json:"actual"`
	Weight   float64 `json:"weight"`
	Met      bool    `json:"met"`
}

// Progress is the evaluation of a scenario against the current metrics.
type Progress struct {
	ScenarioID string            `json:"scenarioId"`
	Objectives []ObjectiveResult `json:"objectives"`
	Score      float64           `json:"score"` // 0-100
	Completed  bool              `json:"completed"`
}
