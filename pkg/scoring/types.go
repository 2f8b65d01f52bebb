package scoring

import (
	"github.com/rmax-ai/platformsim/pkg/catalog"
)

type IssueType string

const (
	IssueSecurity      IssueType = "security"
	IssuePerformance   IssueType = "performance"
	IssueReliability   IssueType = "reliability"
	IssueCompliance    IssueType = "compliance"
	IssueScalability   IssueType = "scalability"
	IssueTechnicalDebt IssueType = "technicalDebt"
)

func (t IssueType) Valid() bool {
	switch t {
	case IssueSecurity, IssuePerformance, IssueReliability, IssueCompliance, IssueScalability, IssueTechnicalDebt:
		return true
	}
	return false
}

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Severities lists the severities from least to most serious.
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Multiplier is the factor applied to an issue's raw impact during
// aggregation.
func (s Severity) Multiplier() float64 {
	switch s {
	case SeverityLow:
		return 0.5
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 4
	}
	return 1
}

// ResolveHours is the simulated effort to fix an issue of this severity.
func (s Severity) ResolveHours() float64 {
	switch s {
	case SeverityLow:
		return 4
	case SeverityMedium:
		return 8
	case SeverityHigh:
		return 24
	case SeverityCritical:
		return 72
	}
	return 8
}

// IssueImpact holds raw, unweighted deltas against the global metrics.
type IssueImpact struct {
	UserSatisfaction  float64 `json:"userSatisfaction" yaml:"userSatisfaction"`
	DeveloperVelocity float64 `json:"developerVelocity" yaml:"developerVelocity"`
	SecurityScore     float64 `json:"securityScore" yaml:"securityScore"`
	PerformanceScore  float64 `json:"performanceScore" yaml:"performanceScore"`
	Cost              float64 `json:"cost" yaml:"cost"`
}

// IsZero reports whether the impact carries no deltas at all.
func (i IssueImpact) IsZero() bool {
	return i == IssueImpact{}
}

type Issue struct {
	ID            string      `json:"id"`
	Type          IssueType   `json:"type"`
	Severity      Severity    `json:"severity"`
	Title         string      `json:"title"`
	Description   string      `json:"description"`
	Component     string      `json:"component"`
	Rule          string      `json:"rule,omitempty"`
	Impact        IssueImpact `json:"impact"`
	TimeToResolve float64     `json:"timeToResolve"`
	Cost          float64     `json:"cost"`
}

type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Component is a flat platform building block.
type Component struct {
	ID          string                   `json:"id" yaml:"id"`
	Type        catalog.ComponentType    `json:"type" yaml:"type"`
	Name        string                   `json:"name" yaml:"name"`
	Position    Position                 `json:"position" yaml:"position"`
	Config      catalog.ComponentConfig  `json:"config" yaml:"config"`
	Connections []string                 `json:"connections" yaml:"connections"`
	Issues      []Issue                  `json:"issues" yaml:"-"`
	Metrics     catalog.ComponentMetrics `json:"metrics" yaml:"metrics"`
}

func (c Component) clone() Component {
	c.Connections = append([]string(nil), c.Connections...)
	c.Issues = append([]Issue(nil), c.Issues...)
	return c
}

// ComponentUpdate is a partial update; nil fields are left unchanged.
type ComponentUpdate struct {
	Name        *string                  `json:"name,omitempty"`
	Position    *Position                `json:"position,omitempty"`
	Config      *catalog.ComponentConfig `json:"config,omitempty"`
	Connections *[]string                `json:"connections,omitempty"`
}

// GlobalMetrics is the aggregate over every component and active issue.
type GlobalMetrics struct {
	UserSatisfaction  float64 `json:"userSatisfaction"`
	DeveloperVelocity float64 `json:"developerVelocity"`
	SecurityScore     float64 `json:"securityScore"`
	TechnicalDebt     float64 `json:"technicalDebt"`
	PerformanceScore  float64 `json:"performanceScore"`
	AdoptionRate      float64 `json:"adoptionRate"`
	TotalCost         float64 `json:"totalCost"`
	TimeToMarket      float64 `json:"timeToMarket"`
}

// Value returns the metric named by its JSON key.
func (m GlobalMetrics) Value(name string) (float64, bool) {
	switch name {
	case "userSatisfaction":
		return m.UserSatisfaction, true
	case "developerVelocity":
		return m.DeveloperVelocity, true
	case "securityScore":
		return m.SecurityScore, true
	case "technicalDebt":
		return m.TechnicalDebt, true
	case "performanceScore":
		return m.PerformanceScore, true
	case "adoptionRate":
		return m.AdoptionRate, true
	case "totalCost":
		return m.TotalCost, true
	case "timeToMarket":
		return m.TimeToMarket, true
	}
	return 0, false
}

// AsMap returns the metrics keyed by their JSON names.
func (m GlobalMetrics) AsMap() map[string]float64 {
	return map[string]float64{
		"userSatisfaction":  m.UserSatisfaction,
		"developerVelocity": m.DeveloperVelocity,
		"securityScore":     m.SecurityScore,
		"technicalDebt":     m.TechnicalDebt,
		"performanceScore":  m.PerformanceScore,
		"adoptionRate":      m.AdoptionRate,
		"totalCost":         m.TotalCost,
		"timeToMarket":      m.TimeToMarket,
	}
}

// ScenarioRef identifies the scenario a simulation was seeded from.
type ScenarioRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// SimulationState is an immutable snapshot of the engine.
type SimulationState struct {
	Components  []Component   `json:"components"`
	Metrics     GlobalMetrics `json:"metrics"`
	Issues      []Issue       `json:"issues"`
	Checkpoints []Checkpoint  `json:"secrelCheckpoints"`
	Scenario    *ScenarioRef  `json:"currentScenario,omitempty"`
	Speed       int           `json:"simulationSpeed"`
	Running     bool          `json:"isRunning"`
	TotalTime   float64       `json:"totalTime"`
	Resolving   []string      `json:"resolving,omitempty"`
}
