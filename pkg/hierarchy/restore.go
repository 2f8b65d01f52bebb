package hierarchy

import "github.com/rmax-ai/platformsim/pkg/catalog"

// WithState restores the store from a snapshot taken by Snapshot. Nodes
// whose parent is missing from the snapshot are dropped together with
// their subtree. Deployments still deploying settle again after the
// settle delay.
func WithState(st PlatformState) Option {
	return func(s *Store) { s.restore = &st }
}

func (s *Store) applyRestore(st PlatformState) {
	byID := make(map[string]Node, len(st.Nodes))
	for _, n := range st.Nodes {
		byID[n.ID] = n
	}
	for _, n := range st.Nodes {
		if !s.restorable(n, byID) {
			s.logger.Warn("node_restore_skipped", "node_id", n.ID)
			continue
		}
		v := n.clone()
		if v.Resources != nil {
			rc := capacityOf(v.Resources.Total(), catalog.Resources{})
			v.Resources = &rc
		}
		s.nodes[v.ID] = &v
		s.order = append(s.order, v.ID)
	}
	for _, n := range s.nodes {
		kept := make([]string, 0, len(n.ChildIDs))
		for _, c := range n.ChildIDs {
			if _, ok := s.nodes[c]; ok {
				kept = append(kept, c)
			}
		}
		n.ChildIDs = kept
	}
	for _, d := range st.Deployments {
		if s.nodes[d.ApplicationID] == nil || s.nodes[d.TargetID] == nil {
			continue
		}
		s.deployments = append(s.deployments, d)
		if d.Status == DeploymentDeploying {
			id := d.ID
			s.timers.Schedule(deployPrefix+id, s.settle, func() { s.settleDeployment(id) })
		}
	}
	if _, ok := s.nodes[st.Selected]; ok {
		s.selected = st.Selected
	}
}

// restorable reports whether every ancestor of n is in the snapshot.
func (s *Store) restorable(n Node, byID map[string]Node) bool {
	seen := map[string]bool{n.ID: true}
	for p := n.ParentID; p != ""; {
		parent, ok := byID[p]
		if !ok || seen[p] {
			return false
		}
		seen[p] = true
		p = parent.ParentID
	}
	return true
}
