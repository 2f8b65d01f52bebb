package hierarchy

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmax-ai/platformsim/pkg/catalog"
)

func TestWithState_RoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	_, zone, _, k8s := buildCluster(t, s)
	app := mustAdd(t, s, catalog.NodeWebApp, k8s)
	d, err := s.DeployApplication(app, k8s, "staging")
	require.NoError(t, err)
	require.True(t, s.SelectNode(zone))

	want := s.Snapshot()
	raw, err := json.Marshal(want)
	require.NoError(t, err)
	var decoded PlatformState
	require.NoError(t, json.Unmarshal(raw, &decoded))

	restored, clock := newTestStore(t, WithState(decoded))
	got := restored.Snapshot()
	assert.Equal(t, want.Metrics, got.Metrics)
	assert.Equal(t, zone, got.Selected)
	require.Len(t, got.Nodes, len(want.Nodes))
	for i := range want.Nodes {
		assert.Equal(t, want.Nodes[i].ID, got.Nodes[i].ID)
		assert.Equal(t, want.Nodes[i].ChildIDs, got.Nodes[i].ChildIDs)
		assert.Equal(t, want.Nodes[i].Resources, got.Nodes[i].Resources)
	}

	// The deployment was still deploying and settles again.
	dep, ok := restored.Deployment(d.ID)
	require.True(t, ok)
	assert.Equal(t, DeploymentDeploying, dep.Status)
	clock.Advance(DefaultSettleDelay)
	dep, _ = restored.Deployment(d.ID)
	assert.Equal(t, DeploymentRunning, dep.Status)

	res, _ := restored.GetNodeResources(k8s)
	assert.Equal(t, 20.0, res.AllocatedCPU)
}

func TestWithState_DropsOrphans(t *testing.T) {
	st := PlatformState{
		Nodes: []Node{
			{ID: "region", Layer: catalog.LayerInfrastructure, Type: catalog.NodeRegion, ChildIDs: []string{"lost"}},
			{ID: "orphan", Layer: catalog.LayerPlatform, Type: catalog.NodeKubernetes, ParentID: "gone", ChildIDs: []string{"app"}},
			{ID: "app", Layer: catalog.LayerApplication, Type: catalog.NodeWebApp, ParentID: "orphan"},
		},
		Deployments: []Deployment{{ID: "d1", ApplicationID: "app", TargetID: "orphan", Status: DeploymentRunning, Replicas: 1}},
		Selected:    "orphan",
	}
	s, clock := newTestStore(t, WithState(st))
	got := s.Snapshot()
	require.Len(t, got.Nodes, 1)
	assert.Equal(t, "region", got.Nodes[0].ID)
	assert.Empty(t, got.Nodes[0].ChildIDs)
	assert.Empty(t, got.Deployments)
	assert.Empty(t, got.Selected)
	assert.Zero(t, clock.Pending())

	_, err := s.AddNode(NodeSpec{Type: catalog.NodeAvailabilityZone}, "region")
	assert.NoError(t, err)
}
