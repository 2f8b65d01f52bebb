package hierarchy

import (
	"github.com/rmax-ai/platformsim/pkg/catalog"
)

// staticRequirement is the template resource footprint of n, or zero.
func staticRequirement(n *Node) catalog.Resources {
	if n.Resources == nil {
		return catalog.Resources{}
	}
	return n.Resources.Total()
}

// allocatedLocked sums the static requirement of every direct child plus
// every running deployment on n, scaled by replicas.
func (s *Store) allocatedLocked(n *Node) catalog.Resources {
	var total catalog.Resources
	for _, cid := range n.ChildIDs {
		if c, ok := s.nodes[cid]; ok {
			total = total.Add(staticRequirement(c))
		}
	}
	for _, d := range s.deployments {
		if d.TargetID == n.ID && d.Status == DeploymentRunning {
			total = total.Add(d.Footprint())
		}
	}
	return total
}

// GetNodeResources returns the node's totals with its direct allocation.
// Grandchildren are not counted. It reports false for unknown nodes and for
// nodes whose type carries no resources.
func (s *Store) GetNodeResources(id string) (ResourceCapacity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok || n.Resources == nil {
		return ResourceCapacity{}, false
	}
	return capacityOf(n.Resources.Total(), s.allocatedLocked(n)), true
}

// SubtreeResources is the transitive counterpart of GetNodeResources: the
// allocation counts the static requirement of every descendant and every
// running deployment targeting the node or any descendant.
func (s *Store) SubtreeResources(id string) (ResourceCapacity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok || n.Resources == nil {
		return ResourceCapacity{}, false
	}
	inSubtree := map[string]bool{id: true}
	var alloc catalog.Resources
	var walk func(*Node)
	walk = func(p *Node) {
		for _, cid := range p.ChildIDs {
			c, ok := s.nodes[cid]
			if !ok {
				continue
			}
			inSubtree[cid] = true
			alloc = alloc.Add(staticRequirement(c))
			walk(c)
		}
	}
	walk(n)
	for _, d := range s.deployments {
		if inSubtree[d.TargetID] && d.Status == DeploymentRunning {
			alloc = alloc.Add(d.Footprint())
		}
	}
	return capacityOf(n.Resources.Total(), alloc), true
}
