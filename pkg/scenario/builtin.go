package scenario

import (
	"github.com/rmax-ai/platformsim/pkg/catalog"
	"github.com/rmax-ai/platformsim/pkg/scoring"
)

var builtins = []Scenario{
	{
		ID:          "getting-started",
		Title:       "Getting Started: Build Your First API",
		Description: "Learn the basics of platform development by building a simple API and understanding how it affects your metrics.",
		Difficulty:  Beginner,
		Objectives: []Objective{
			{ID: "create-api", Description: "Add a REST API component to your platform", TargetMetric: "performanceScore", TargetValue: 60, Weight: 0.3},
			{ID: "keep-security", Description: "Maintain security score above 50%", TargetMetric: "securityScore", TargetValue: 50, Weight: 0.3},
			{ID: "user-satisfaction", Description: "Achieve user satisfaction of at least 70%", TargetMetric: "userSatisfaction", TargetValue: 70, Weight: 0.4},
		},
		TimeLimit: 15,
		Budget:    2000,
	},
	{
		ID:          "security-crisis",
		Title:       "Security Crisis: Secure Your Platform",
		Description: "Your platform has security vulnerabilities! Learn how to implement proper security measures and pass security reviews.",
		Difficulty:  Intermediate,
		InitialComponents: []scoring.Component{
			{
				ID:       "vulnerable-api",
				Type:     catalog.ComponentAPI,
				Name:     "Vulnerable API",
				Position: scoring.Position{X: 200, Y: 150},
				Config:   catalog.ComponentConfig{RateLimit: 10000},
				Metrics:  catalog.ComponentMetrics{Performance: 60, Security: 20, Reliability: 40, Cost: 500, Complexity: 30},
			},
		},
		Objectives: []Objective{
			{ID: "fix-security", Description: "Achieve security score above 80%", TargetMetric: "securityScore", TargetValue: 80, Weight: 0.5},
			{ID: "pass-security-review", Description: "Pass security review checkpoint", TargetMetric: "userSatisfaction", TargetValue: 75, Weight: 0.3},
			{ID: "maintain-performance", Description: "Keep performance score above 65%", TargetMetric: "performanceScore", TargetValue: 65, Weight: 0.2},
		},
		TimeLimit: 25,
		Budget:    5000,
	},
	{
		ID:          "scaling-challenge",
		Title:       "Scaling Challenge: Handle the Traffic Spike",
		Description: "Your platform is getting popular! Learn how to scale your infrastructure to handle increased traffic while maintaining performance.",
		Difficulty:  Intermediate,
		InitialComponents: []scoring.Component{
			{
				ID:       "basic-api",
				Type:     catalog.ComponentAPI,
				Name:     "Basic API",
				Position: scoring.Position{X: 150, Y: 100},
				Config: catalog.ComponentConfig{
					RateLimit:   100,
					Security:    catalog.SecurityConfig{Encryption: true, Authentication: true, InputValidation: true, SecurityReview: true},
					Reliability: catalog.ReliabilityConfig{ErrorHandling: true},
				},
				Metrics: catalog.ComponentMetrics{Performance: 45, Security: 80, Reliability: 55, Cost: 500, Complexity: 30},
			},
			{
				ID:       "basic-db",
				Type:     catalog.ComponentDatabase,
				Name:     "Database",
				Position: scoring.Position{X: 150, Y: 250},
				Config: catalog.ComponentConfig{
					Security:    catalog.SecurityConfig{Authentication: true},
					Reliability: catalog.ReliabilityConfig{Backups: true},
				},
				Metrics: catalog.ComponentMetrics{Performance: 50, Security: 60, Reliability: 70, Cost: 800, Complexity: 40},
			},
		},
		Objectives: []Objective{
			{ID: "improve-performance", Description: "Achieve performance score above 85%", TargetMetric: "performanceScore", TargetValue: 85, Weight: 0.4},
			{ID: "high-user-satisfaction", Description: "Reach user satisfaction of 85%", TargetMetric: "userSatisfaction", TargetValue: 85, Weight: 0.3},
			{ID: "control-costs", Description: "Keep monthly costs under $3000", TargetMetric: "totalCost", TargetValue: 3000, Weight: 0.3},
		},
		TimeLimit: 30,
		Budget:    4000,
	},
	{
		ID:          "enterprise-platform",
		Title:       "Enterprise Platform: Build for Scale",
		Description: "Build a comprehensive enterprise platform with all the bells and whistles - monitoring, caching, load balancing, and more!",
		Difficulty:  Advanced,
		Objectives: []Objective{
			{ID: "comprehensive-architecture", Description: "Deploy at least 6 different component types", TargetMetric: "performanceScore", TargetValue: 90, Weight: 0.2},
			{ID: "excellent-performance", Description: "Achieve performance score above 90%", TargetMetric: "performanceScore", TargetValue: 90, Weight: 0.25},
			{ID: "top-security", Description: "Maintain security score above 95%", TargetMetric: "securityScore", TargetValue: 95, Weight: 0.25},
			{ID: "high-reliability", Description: "Achieve user satisfaction above 90%", TargetMetric: "userSatisfaction", TargetValue: 90, Weight: 0.2},
			{ID: "low-tech-debt", Description: "Keep technical debt below 15%", TargetMetric: "technicalDebt", TargetValue: 15, Weight: 0.1},
		},
		TimeLimit: 45,
		Budget:    10000,
	},
	{
		ID:          "cost-optimization",
		Title:       "Cost Optimization: Do More with Less",
		Description: "You have budget constraints! Build an effective platform while keeping costs under control.",
		Difficulty:  Intermediate,
		Objectives: []Objective{
			{ID: "performance-target", Description: "Achieve performance score above 75%", TargetMetric: "performanceScore", TargetValue: 75, Weight: 0.3},
			{ID: "security-target", Description: "Maintain security score above 70%", TargetMetric: "securityScore", TargetValue: 70, Weight: 0.3},
			{ID: "strict-budget", Description: "Keep monthly costs under $1500", TargetMetric: "totalCost", TargetValue: 1500, Weight: 0.4},
		},
		TimeLimit: 20,
		Budget:    2500,
	},
	{
		ID:          "incident-response",
		Title:       "Incident Response: Fix the Outage",
		Description: "Your platform is down! Multiple critical issues need immediate attention. Learn to prioritize and resolve problems quickly.",
		Difficulty:  Advanced,
		InitialComponents: []scoring.Component{
			{
				ID:       "failing-api",
				Type:     catalog.ComponentAPI,
				Name:     "Failing API",
				Position: scoring.Position{X: 100, Y: 100},
				Config:   catalog.ComponentConfig{RateLimit: 50},
				Metrics:  catalog.ComponentMetrics{Performance: 25, Security: 20, Reliability: 30, Cost: 500, Complexity: 60},
			},
			{
				ID:       "unstable-db",
				Type:     catalog.ComponentDatabase,
				Name:     "Unstable Database",
				Position: scoring.Position{X: 300, Y: 150},
				Metrics:  catalog.ComponentMetrics{Performance: 30, Security: 25, Reliability: 20, Cost: 800, Complexity: 70},
			},
		},
		Objectives: []Objective{
			{ID: "restore-service", Description: "Achieve user satisfaction above 60%", TargetMetric: "userSatisfaction", TargetValue: 60, Weight: 0.4},
			{ID: "improve-reliability", Description: "Get performance score above 70%", TargetMetric: "performanceScore", TargetValue: 70, Weight: 0.3},
			{ID: "quick-recovery", Description: "Complete recovery in under 20 minutes", TargetMetric: "developerVelocity", TargetValue: 50, Weight: 0.3},
		},
		TimeLimit: 20,
		Budget:    3000,
	},
}

// Builtins returns copies of the bundled scenarios in presentation order.
func Builtins() []Scenario {
	out := make([]Scenario, 0, len(builtins))
	for _, s := range builtins {
		out = append(out, s.clone())
	}
	return out
}

func (s Scenario) clone() Scenario {
	comps := make([]scoring.Component, 0, len(s.InitialComponents))
	for _, c := range s.InitialComponents {
		c.Connections = append([]string{}, c.Connections...)
		comps = append(comps, c)
	}
	s.InitialComponents = comps
	s.Objectives = append([]Objective(nil), s.Objectives...)
	return s
}
