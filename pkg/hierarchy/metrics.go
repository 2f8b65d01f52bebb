package hierarchy

import (
	"math"

	"github.com/rmax-ai/platformsim/pkg/catalog"
)

// CalculateGlobalMetrics aggregates cost, capacity, health and efficiency
// over the whole tree.
func (s *Store) CalculateGlobalMetrics() PlatformMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metricsLocked()
}

func (s *Store) metricsLocked() PlatformMetrics {
	var (
		m          PlatformMetrics
		cost       float64
		total      catalog.Resources
		allocated  catalog.Resources
		health     float64
		efficiency float64
	)
	for _, id := range s.order {
		n := s.nodes[id]
		switch n.Layer {
		case catalog.LayerInfrastructure:
			cost += n.Metrics.Cost
			total = total.Add(staticRequirement(n))
		case catalog.LayerPlatform, catalog.LayerService:
			cost += n.Metrics.Cost
		case catalog.LayerApplication:
			m.ApplicationCount++
		}
		health += n.Status.Health.Score()
		efficiency += n.Metrics.Efficiency
	}
	for _, d := range s.deployments {
		if d.Status == DeploymentRunning {
			allocated = allocated.Add(d.Footprint())
		}
	}

	count := len(s.order)
	div := float64(max(count, 1))
	m.TotalCost = round(cost)
	m.TotalResources = capacityOf(total, allocated)
	m.ServiceHealth = round(health / div)
	m.PlatformMaturity = math.Min(100, float64(count*5))
	m.OperationalExcellence = round(efficiency / div)
	return m
}

func round(v float64) float64 {
	return math.Floor(v + 0.5)
}
