package scoring

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/rmax-ai/platformsim/pkg/catalog"
)

// IssueSpec describes the issue a violated rule raises.
type IssueSpec struct {
	Type        IssueType   `json:"type" yaml:"type" validate:"required"`
	Severity    Severity    `json:"severity" yaml:"severity" validate:"required"`
	Title       string      `json:"title" yaml:"title" validate:"required"`
	Description string      `json:"description" yaml:"description"`
	Impact      IssueImpact `json:"impact" yaml:"impact"`
}

// Rule is a configuration policy check run against a single component.
type Rule interface {
	Name() string
	// Check returns the issue to raise, or false if the component complies.
	Check(c Component) (IssueSpec, bool)
}

// PredicateRule pairs a predicate with the issue it raises when the
// predicate holds.
type PredicateRule struct {
	ID        string
	Violation func(Component) bool
	Issue     IssueSpec
}

func (r PredicateRule) Name() string { return r.ID }

func (r PredicateRule) Check(c Component) (IssueSpec, bool) {
	if r.Violation == nil || !r.Violation(c) {
		return IssueSpec{}, false
	}
	return r.Issue, true
}

// Built-in rule identifiers.
const (
	RuleAPISecurityReview = "api-security-review"
	RuleAPIRateLimit      = "api-rate-limit"
)

// DefaultRules returns the built-in rule set.
func DefaultRules() []Rule {
	return []Rule{
		PredicateRule{
			ID: RuleAPISecurityReview,
			Violation: func(c Component) bool {
				return c.Type == catalog.ComponentAPI && !c.Config.Security.SecurityReview
			},
			Issue: IssueSpec{
				Type:        IssueSecurity,
				Severity:    SeverityHigh,
				Title:       "API without Security Review",
				Description: "This API has not gone through security review, creating potential vulnerabilities.",
				Impact:      IssueImpact{UserSatisfaction: 20, SecurityScore: 30, Cost: 50000},
			},
		},
		PredicateRule{
			ID: RuleAPIRateLimit,
			Violation: func(c Component) bool {
				return c.Type == catalog.ComponentAPI && c.Config.RateLimit == 0
			},
			Issue: IssueSpec{
				Type:        IssuePerformance,
				Severity:    SeverityMedium,
				Title:       "No Rate Limiting",
				Description: "API lacks rate limiting, potentially causing performance issues under load.",
				Impact:      IssueImpact{UserSatisfaction: 15, DeveloperVelocity: 5, SecurityScore: 5, PerformanceScore: 25, Cost: 10000},
			},
		},
	}
}

// newIssue materialises an IssueSpec raised by rule against componentID.
func newIssue(rule string, spec IssueSpec, componentID string) Issue {
	return Issue{
		ID:            fmt.Sprintf("issue-%s", uuid.NewString()),
		Type:          spec.Type,
		Severity:      spec.Severity,
		Title:         spec.Title,
		Description:   spec.Description,
		Component:     componentID,
		Rule:          rule,
		Impact:        spec.Impact,
		TimeToResolve: spec.Severity.ResolveHours(),
		Cost:          spec.Impact.Cost,
	}
}

// runRules evaluates every rule against c. Violations are not deduplicated
// against issues already raised for c.
func runRules(rules []Rule, c Component) []Issue {
	var out []Issue
	for _, r := range rules {
		if spec, ok := r.Check(c); ok {
			out = append(out, newIssue(r.Name(), spec, c.ID))
		}
	}
	return out
}
