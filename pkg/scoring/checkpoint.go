package scoring

import (
	"fmt"

	"github.com/google/uuid"
)

// CheckpointType is one of the fixed governance gates.
type CheckpointType string

const (
	CheckpointSecurityReview    CheckpointType = "securityReview"
	CheckpointEngineeringReview CheckpointType = "engineeringReview"
	CheckpointComplianceCheck   CheckpointType = "complianceCheck"
	CheckpointReliabilityTest   CheckpointType = "reliabilityTest"
	CheckpointEthicsReview      CheckpointType = "ethicsReview"
	CheckpointLegalReview       CheckpointType = "legalReview"
)

// CheckpointTypes lists the gates in pipeline order.
var CheckpointTypes = []CheckpointType{
	CheckpointSecurityReview,
	CheckpointEngineeringReview,
	CheckpointComplianceCheck,
	CheckpointReliabilityTest,
	CheckpointEthicsReview,
	CheckpointLegalReview,
}

func (t CheckpointType) Valid() bool {
	for _, c := range CheckpointTypes {
		if c == t {
			return true
		}
	}
	return false
}

// Name is the human readable gate title.
func (t CheckpointType) Name() string {
	switch t {
	case CheckpointSecurityReview:
		return "Security Review"
	case CheckpointEngineeringReview:
		return "Engineering Review"
	case CheckpointComplianceCheck:
		return "Compliance Check"
	case CheckpointReliabilityTest:
		return "Reliability Test"
	case CheckpointEthicsReview:
		return "Ethics Review"
	case CheckpointLegalReview:
		return "Legal Review"
	}
	return "Unknown Checkpoint"
}

// Requirements lists what the gate covers.
func (t CheckpointType) Requirements() []string {
	switch t {
	case CheckpointSecurityReview:
		return []string{"Security architecture review", "Vulnerability assessment", "Access control validation"}
	case CheckpointEngineeringReview:
		return []string{"Code quality check", "Performance benchmarks", "Scalability assessment"}
	case CheckpointComplianceCheck:
		return []string{"Data privacy compliance", "Regulatory requirements", "Audit trail setup"}
	case CheckpointReliabilityTest:
		return []string{"Load testing", "Failure scenario testing", "Recovery procedures"}
	case CheckpointEthicsReview:
		return []string{"Bias assessment", "Privacy impact analysis", "Fairness evaluation"}
	case CheckpointLegalReview:
		return []string{"Terms of service", "Privacy policy", "Intellectual property clearance"}
	}
	return nil
}

// Deterministic reports whether the gate outcome is a pure function of the
// component.
func (t CheckpointType) Deterministic() bool {
	return t != CheckpointEthicsReview && t != CheckpointLegalReview
}

// FailureImpact is the impact estimate when the gate fails.
func (t CheckpointType) FailureImpact() IssueImpact {
	switch t {
	case CheckpointSecurityReview:
		return IssueImpact{UserSatisfaction: 25, DeveloperVelocity: 10, SecurityScore: 40, PerformanceScore: 5, Cost: 100000}
	case CheckpointEngineeringReview:
		return IssueImpact{UserSatisfaction: 15, DeveloperVelocity: 30, SecurityScore: 5, PerformanceScore: 25, Cost: 75000}
	}
	return IssueImpact{UserSatisfaction: 10, DeveloperVelocity: 5, SecurityScore: 10, PerformanceScore: 5, Cost: 25000}
}

// randomPassThreshold gives the 70% pass rate of the non-deterministic gates.
const randomPassThreshold = 0.3

// RandSource is the randomness used for non-deterministic gates.
// *math/rand.Rand satisfies it.
type RandSource interface {
	Float64() float64
}

type Checkpoint struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Type         CheckpointType `json:"type"`
	Component    string         `json:"component,omitempty"`
	Required     bool           `json:"required"`
	Passed       bool           `json:"passed"`
	Running      bool           `json:"running,omitempty"`
	Impact       IssueImpact    `json:"impact"`
	Requirements []string       `json:"requirements"`
}

// Passes evaluates gate t against c, drawing from rng for the
// non-deterministic gates.
func Passes(t CheckpointType, c Component, rng RandSource) bool {
	switch t {
	case CheckpointSecurityReview:
		return c.Config.Security.SecurityReview
	case CheckpointEngineeringReview:
		return c.Metrics.Performance > 70 && c.Metrics.Reliability > 70
	case CheckpointComplianceCheck:
		return c.Config.Security.Encryption && c.Config.Security.Authorization
	case CheckpointReliabilityTest:
		return c.Config.Reliability.HealthChecks && c.Config.Reliability.Monitoring
	}
	return rng.Float64() > randomPassThreshold
}

// NewCheckpoint evaluates gate t against c and returns the result without
// touching any engine state.
func NewCheckpoint(t CheckpointType, c Component, rng RandSource) (Checkpoint, error) {
	if !t.Valid() {
		return Checkpoint{}, fmt.Errorf("unknown checkpoint type %q", t)
	}
	cp := Checkpoint{
		ID:           fmt.Sprintf("chk-%s", uuid.NewString()),
		Name:         t.Name(),
		Type:         t,
		Component:    c.ID,
		Required:     true,
		Requirements: t.Requirements(),
	}
	cp.setOutcome(Passes(t, c, rng))
	return cp, nil
}

func (cp *Checkpoint) setOutcome(passed bool) {
	cp.Passed = passed
	cp.Running = false
	if passed {
		cp.Impact = IssueImpact{}
	} else {
		cp.Impact = cp.Type.FailureImpact()
	}
}

func (cp Checkpoint) clone() Checkpoint {
	cp.Requirements = append([]string(nil), cp.Requirements...)
	return cp
}
