package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rmax-ai/platformsim/pkg/catalog"
)

func allFlags() catalog.ComponentConfig {
	return catalog.ComponentConfig{
		Security:    catalog.SecurityConfig{Encryption: true, Authentication: true, Authorization: true, InputValidation: true, SecurityReview: true},
		Performance: catalog.PerformanceConfig{Caching: true, Compression: true, OptimizedQueries: true, LoadBalancing: true},
		Reliability: catalog.ReliabilityConfig{HealthChecks: true, Monitoring: true, Backups: true, ErrorHandling: true},
	}
}

func TestDeriveMetrics_Base(t *testing.T) {
	m := DeriveMetrics(catalog.ComponentConfig{}, catalog.ComponentMetrics{Cost: 500, Complexity: 30})
	assert.Equal(t, catalog.ComponentMetrics{Performance: 60, Security: 60, Reliability: 60, Cost: 500, Complexity: 30}, m)
}

func TestDeriveMetrics_Idempotent(t *testing.T) {
	cfg := catalog.ComponentConfig{
		Security:    catalog.SecurityConfig{Encryption: true},
		Performance: catalog.PerformanceConfig{Caching: true},
	}
	first := DeriveMetrics(cfg, catalog.ComponentMetrics{Cost: 10, Complexity: 5})
	second := DeriveMetrics(cfg, first)
	assert.Equal(t, first, second)
}

func TestDeriveMetrics_ClampedAt100(t *testing.T) {
	m := DeriveMetrics(allFlags(), catalog.ComponentMetrics{})
	assert.Equal(t, 100.0, m.Security)
	assert.Equal(t, 100.0, m.Performance)
	assert.Equal(t, 100.0, m.Reliability)
}

func TestDeriveMetrics_Monotonic(t *testing.T) {
	toggles := []struct {
		name   string
		enable func(*catalog.ComponentConfig)
		metric func(catalog.ComponentMetrics) float64
	}{
		{"encryption", func(c *catalog.ComponentConfig) { c.Security.Encryption = true }, sec},
		{"authentication", func(c *catalog.ComponentConfig) { c.Security.Authentication = true }, sec},
		{"authorization", func(c *catalog.ComponentConfig) { c.Security.Authorization = true }, sec},
		{"inputValidation", func(c *catalog.ComponentConfig) { c.Security.InputValidation = true }, sec},
		{"securityReview", func(c *catalog.ComponentConfig) { c.Security.SecurityReview = true }, sec},
		{"caching", func(c *catalog.ComponentConfig) { c.Performance.Caching = true }, perf},
		{"compression", func(c *catalog.ComponentConfig) { c.Performance.Compression = true }, perf},
		{"optimizedQueries", func(c *catalog.ComponentConfig) { c.Performance.OptimizedQueries = true }, perf},
		{"loadBalancing", func(c *catalog.ComponentConfig) { c.Performance.LoadBalancing = true }, perf},
		{"healthChecks", func(c *catalog.ComponentConfig) { c.Reliability.HealthChecks = true }, rel},
		{"monitoring", func(c *catalog.ComponentConfig) { c.Reliability.Monitoring = true }, rel},
		{"backups", func(c *catalog.ComponentConfig) { c.Reliability.Backups = true }, rel},
		{"errorHandling", func(c *catalog.ComponentConfig) { c.Reliability.ErrorHandling = true }, rel},
	}

	// Start from every combination produced by enabling a prefix of toggles.
	for start := 0; start <= len(toggles); start++ {
		var base catalog.ComponentConfig
		for _, tg := range toggles[:start] {
			tg.enable(&base)
		}
		for _, tg := range toggles {
			t.Run(tg.name, func(t *testing.T) {
				before := tg.metric(DeriveMetrics(base, catalog.ComponentMetrics{}))
				after := base
				tg.enable(&after)
				got := tg.metric(DeriveMetrics(after, catalog.ComponentMetrics{}))
				assert.GreaterOrEqual(t, got, before)
				assert.LessOrEqual(t, got, 100.0)
			})
		}
	}
}

func sec(m catalog.ComponentMetrics) float64  { return m.Security }
func perf(m catalog.ComponentMetrics) float64 { return m.Performance }
func rel(m catalog.ComponentMetrics) float64  { return m.Reliability }

func TestAggregate_EmptyIsDefault(t *testing.T) {
	got := Aggregate(nil, nil, 0)
	assert.Equal(t, GlobalMetrics{
		UserSatisfaction:  80,
		DeveloperVelocity: 80,
		SecurityScore:     80,
		TechnicalDebt:     20,
		PerformanceScore:  80,
		AdoptionRate:      50,
		TotalCost:         0,
		TimeToMarket:      30,
	}, got)

	// Issues without components still yield the default.
	got = Aggregate(nil, []Issue{{Severity: SeverityCritical, Impact: IssueImpact{SecurityScore: 100}}}, 10)
	assert.Equal(t, DefaultGlobalMetrics(), got)
}

func TestAggregate_SeverityMultipliers(t *testing.T) {
	comps := []Component{{Metrics: catalog.ComponentMetrics{Performance: 100, Security: 100, Reliability: 100}}}
	tests := []struct {
		sev  Severity
		want float64
	}{
		{SeverityLow, 95},
		{SeverityMedium, 90},
		{SeverityHigh, 80},
		{SeverityCritical, 60},
	}
	for _, tt := range tests {
		t.Run(string(tt.sev), func(t *testing.T) {
			issues := []Issue{{Severity: tt.sev, Impact: IssueImpact{SecurityScore: 10}}}
			assert.Equal(t, tt.want, Aggregate(comps, issues, 0).SecurityScore)
		})
	}
}

func TestAggregate_Derived(t *testing.T) {
	comps := []Component{
		{Metrics: catalog.ComponentMetrics{Performance: 80, Security: 70, Reliability: 90, Cost: 100.4, Complexity: 20}},
		{Metrics: catalog.ComponentMetrics{Performance: 60, Security: 50, Reliability: 50, Cost: 200, Complexity: 40}},
	}
	issues := []Issue{
		{Severity: SeverityLow, Impact: IssueImpact{UserSatisfaction: 10, DeveloperVelocity: 4}},
	}
	got := Aggregate(comps, issues, 2.25)

	assert.Equal(t, 65.0, got.UserSatisfaction)  // 70 - 5
	assert.Equal(t, 48.0, got.DeveloperVelocity) // 80 - 30 - 2
	assert.Equal(t, 60.0, got.SecurityScore)
	assert.Equal(t, 70.0, got.PerformanceScore)
	assert.Equal(t, 35.0, got.TechnicalDebt)  // 30 + 5
	assert.Equal(t, 66.0, got.AdoptionRate)   // 52 + 14
	assert.Equal(t, 300.0, got.TotalCost)     // 300.4 rounded
	assert.Equal(t, 2.8, got.TimeToMarket)    // 2.25 + 0.5 = 2.75 -> 2.8
	assert.GreaterOrEqual(t, got.TimeToMarket, 1.0)
}

func TestAggregate_FloorsAndCaps(t *testing.T) {
	comps := []Component{{Metrics: catalog.ComponentMetrics{Performance: 10, Security: 10, Complexity: 90}}}
	var issues []Issue
	for i := 0; i < 10; i++ {
		issues = append(issues, Issue{Severity: SeverityCritical, Impact: IssueImpact{UserSatisfaction: 50, DeveloperVelocity: 50, SecurityScore: 50, PerformanceScore: 50}})
	}
	got := Aggregate(comps, issues, 0)
	assert.Equal(t, 0.0, got.UserSatisfaction)
	assert.Equal(t, 0.0, got.DeveloperVelocity)
	assert.Equal(t, 0.0, got.SecurityScore)
	assert.Equal(t, 0.0, got.PerformanceScore)
	assert.Equal(t, 0.0, got.AdoptionRate)
	assert.Equal(t, 100.0, got.TechnicalDebt)
	assert.Equal(t, 5.0, got.TimeToMarket)
}

func TestAggregate_TimeToMarketFloor(t *testing.T) {
	comps := []Component{{Metrics: catalog.ComponentMetrics{Performance: 50}}}
	assert.Equal(t, 1.0, Aggregate(comps, nil, 0).TimeToMarket)
}

func TestGlobalMetrics_Value(t *testing.T) {
	m := DefaultGlobalMetrics()
	v, ok := m.Value("timeToMarket")
	assert.True(t, ok)
	assert.Equal(t, 30.0, v)
	_, ok = m.Value("nope")
	assert.False(t, ok)
	assert.Len(t, m.AsMap(), 8)
}
