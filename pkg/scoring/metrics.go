package scoring

import (
	"math"

	"github.com/rmax-ai/platformsim/pkg/catalog"
)

const (
	baseScore = 60
	maxScore  = 100
)

// DeriveMetrics recomputes a component's performance, security and
// reliability from its configuration. Cost and complexity are carried over
// from current unchanged.
func DeriveMetrics(cfg catalog.ComponentConfig, current catalog.ComponentMetrics) catalog.ComponentMetrics {
	sec := float64(baseScore)
	if cfg.Security.Encryption {
		sec += 10
	}
	if cfg.Security.Authentication {
		sec += 10
	}
	if cfg.Security.Authorization {
		sec += 10
	}
	if cfg.Security.InputValidation {
		sec += 5
	}
	if cfg.Security.SecurityReview {
		sec += 5
	}

	perf := float64(baseScore)
	if cfg.Performance.Caching {
		perf += 15
	}
	if cfg.Performance.Compression {
		perf += 10
	}
	if cfg.Performance.OptimizedQueries {
		perf += 10
	}
	if cfg.Performance.LoadBalancing {
		perf += 5
	}

	rel := float64(baseScore)
	if cfg.Reliability.HealthChecks {
		rel += 10
	}
	if cfg.Reliability.Monitoring {
		rel += 10
	}
	if cfg.Reliability.Backups {
		rel += 15
	}
	if cfg.Reliability.ErrorHandling {
		rel += 5
	}

	return catalog.ComponentMetrics{
		Performance: math.Min(maxScore, perf),
		Security:    math.Min(maxScore, sec),
		Reliability: math.Min(maxScore, rel),
		Cost:        current.Cost,
		Complexity:  current.Complexity,
	}
}

// DefaultGlobalMetrics is reported for an empty platform.
func DefaultGlobalMetrics() GlobalMetrics {
	return GlobalMetrics{
		UserSatisfaction:  80,
		DeveloperVelocity: 80,
		SecurityScore:     80,
		TechnicalDebt:     20,
		PerformanceScore:  80,
		AdoptionRate:      50,
		TotalCost:         0,
		TimeToMarket:      30,
	}
}

// WeightedImpact sums the severity-weighted impact of issues.
func WeightedImpact(issues []Issue) IssueImpact {
	var sum IssueImpact
	for _, is := range issues {
		m := is.Severity.Multiplier()
		sum.UserSatisfaction += is.Impact.UserSatisfaction * m
		sum.DeveloperVelocity += is.Impact.DeveloperVelocity * m
		sum.SecurityScore += is.Impact.SecurityScore * m
		sum.PerformanceScore += is.Impact.PerformanceScore * m
		sum.Cost += is.Impact.Cost * m
	}
	return sum
}

// Aggregate computes the global metrics from the component list, the active
// issues and the elapsed simulated time in days.
func Aggregate(components []Component, issues []Issue, totalTime float64) GlobalMetrics {
	n := float64(len(components))
	if n == 0 {
		return DefaultGlobalMetrics()
	}

	var perf, sec, complexity, cost float64
	for _, c := range components {
		perf += c.Metrics.Performance
		sec += c.Metrics.Security
		complexity += c.Metrics.Complexity
		cost += c.Metrics.Cost
	}
	avgPerf := perf / n
	avgSec := sec / n
	avgComplexity := complexity / n

	impact := WeightedImpact(issues)
	issueCount := float64(len(issues))

	userSatisfaction := math.Max(0, avgPerf-impact.UserSatisfaction)
	developerVelocity := math.Max(0, 80-avgComplexity-impact.DeveloperVelocity)
	securityScore := math.Max(0, avgSec-impact.SecurityScore)
	performanceScore := math.Max(0, avgPerf-impact.PerformanceScore)

	technicalDebt := math.Min(100, avgComplexity+issueCount*5)
	adoptionRate := math.Max(0, userSatisfaction*0.8+performanceScore*0.2)
	timeToMarket := math.Max(1, totalTime+issueCount*0.5)

	return GlobalMetrics{
		UserSatisfaction:  round(userSatisfaction),
		DeveloperVelocity: round(developerVelocity),
		SecurityScore:     round(securityScore),
		TechnicalDebt:     round(technicalDebt),
		PerformanceScore:  round(performanceScore),
		AdoptionRate:      round(adoptionRate),
		TotalCost:         round(cost),
		TimeToMarket:      round(timeToMarket*10) / 10,
	}
}

// round is half-up rounding; every input is non-negative here.
func round(v float64) float64 {
	return math.Floor(v + 0.5)
}
