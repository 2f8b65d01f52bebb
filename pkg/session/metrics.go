package session

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rmax-ai/platformsim/pkg/catalog"
	"github.com/rmax-ai/platformsim/pkg/hierarchy"
	"github.com/rmax-ai/platformsim/pkg/scoring"
)

var (
	// GlobalMetric tracks the scoring aggregates (userSatisfaction, securityScore, ...)
	GlobalMetric = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "platformsim_global_metric",
			Help: "Current value of a simulation-wide metric",
		},
		[]string{"metric"},
	)

	ActiveIssues = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "platformsim_active_issues",
			Help: "Number of unresolved issues by severity",
		},
		[]string{"severity"},
	)

	Components = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "platformsim_components",
			Help: "Number of components in the simulation",
		},
	)

	Nodes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "platformsim_nodes",
			Help: "Number of platform nodes by layer",
		},
		[]string{"layer"},
	)

	// PlatformMetric tracks the hierarchy aggregates (totalCost, serviceHealth, ...)
	PlatformMetric = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "platformsim_platform_metric",
			Help: "Current value of a platform hierarchy metric",
		},
		[]string{"metric"},
	)

	NodeRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "platformsim_node_rejections_total",
			Help: "Total number of rejected node insertions",
		},
		[]string{"reason"},
	)

	// Deployments counts deployment requests by result (created, invalid)
	Deployments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "platformsim_deployments_total",
			Help: "Total number of deployment requests",
		},
		[]string{"result"},
	)

	JournalErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "platformsim_journal_errors_total",
			Help: "Total number of journal writes that failed",
		},
	)
)

func init() {
	prometheus.MustRegister(GlobalMetric)
	prometheus.MustRegister(ActiveIssues)
	prometheus.MustRegister(Components)
	prometheus.MustRegister(Nodes)
	prometheus.MustRegister(PlatformMetric)
	prometheus.MustRegister(NodeRejections)
	prometheus.MustRegister(Deployments)
	prometheus.MustRegister(JournalErrors)
}

func observeSimulation(st scoring.SimulationState) {
	for name, v := range st.Metrics.AsMap() {
		GlobalMetric.WithLabelValues(name).Set(v)
	}
	counts := make(map[scoring.Severity]int, len(scoring.Severities))
	for _, is := range st.Issues {
		counts[is.Severity]++
	}
	for _, sev := range scoring.Severities {
		ActiveIssues.WithLabelValues(string(sev)).Set(float64(counts[sev]))
	}
	Components.Set(float64(len(st.Components)))
}

func observePlatform(st hierarchy.PlatformState) {
	counts := make(map[catalog.Layer]int, len(catalog.Layers))
	for _, n := range st.Nodes {
		counts[n.Layer]++
	}
	for _, l := range catalog.Layers {
		Nodes.WithLabelValues(string(l)).Set(float64(counts[l]))
	}
	for name, v := range st.Metrics.AsMap() {
		PlatformMetric.WithLabelValues(name).Set(v)
	}
}
