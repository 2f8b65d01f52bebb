package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmax-ai/platformsim/pkg/catalog"
)

func TestPasses_Deterministic(t *testing.T) {
	bare := Component{Type: catalog.ComponentAPI, Metrics: catalog.ComponentMetrics{Performance: 60, Security: 60, Reliability: 60}}
	strong := Component{
		Type:    catalog.ComponentAPI,
		Config:  allFlags(),
		Metrics: catalog.ComponentMetrics{Performance: 71, Reliability: 71},
	}
	edge := Component{Metrics: catalog.ComponentMetrics{Performance: 70, Reliability: 90}}

	tests := []struct {
		typ  CheckpointType
		c    Component
		want bool
	}{
		{CheckpointSecurityReview, bare, false},
		{CheckpointSecurityReview, strong, true},
		{CheckpointEngineeringReview, bare, false},
		{CheckpointEngineeringReview, strong, true},
		{CheckpointEngineeringReview, edge, false},
		{CheckpointComplianceCheck, bare, false},
		{CheckpointComplianceCheck, strong, true},
		{CheckpointReliabilityTest, bare, false},
		{CheckpointReliabilityTest, strong, true},
	}
	rng := &seqRand{vals: []float64{0}}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			assert.Equal(t, tt.want, Passes(tt.typ, tt.c, rng))
		})
	}
	assert.Equal(t, 0, rng.i, "deterministic gates never draw")
}

func TestPasses_Random(t *testing.T) {
	rng := &seqRand{vals: []float64{0.31, 0.3, 0.05, 0.99}}
	c := Component{}
	assert.True(t, Passes(CheckpointEthicsReview, c, rng))
	assert.False(t, Passes(CheckpointLegalReview, c, rng))
	assert.False(t, Passes(CheckpointEthicsReview, c, rng))
	assert.True(t, Passes(CheckpointLegalReview, c, rng))
}

func TestNewCheckpoint(t *testing.T) {
	c := Component{ID: "api-1", Type: catalog.ComponentAPI}

	failed, err := NewCheckpoint(CheckpointSecurityReview, c, &seqRand{vals: []float64{0}})
	require.NoError(t, err)
	assert.False(t, failed.Passed)
	assert.True(t, failed.Required)
	assert.Equal(t, "Security Review", failed.Name)
	assert.Equal(t, "api-1", failed.Component)
	assert.Equal(t, 40.0, failed.Impact.SecurityScore)
	assert.Equal(t, 100000.0, failed.Impact.Cost)
	assert.Len(t, failed.Requirements, 3)

	eng, err := NewCheckpoint(CheckpointEngineeringReview, c, nil)
	require.NoError(t, err)
	assert.Equal(t, 30.0, eng.Impact.DeveloperVelocity)
	assert.Equal(t, 75000.0, eng.Impact.Cost)

	comp, err := NewCheckpoint(CheckpointComplianceCheck, c, nil)
	require.NoError(t, err)
	assert.Equal(t, IssueImpact{UserSatisfaction: 10, DeveloperVelocity: 5, SecurityScore: 10, PerformanceScore: 5, Cost: 25000}, comp.Impact)

	passed, err := NewCheckpoint(CheckpointEthicsReview, c, &seqRand{vals: []float64{0.9}})
	require.NoError(t, err)
	assert.True(t, passed.Passed)
	assert.True(t, passed.Impact.IsZero())

	_, err = NewCheckpoint("haruspicy", c, nil)
	assert.Error(t, err)
}

func TestEngine_CreateCheckpointIsPure(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.AddComponent(bareAPI("api-1"))
	require.NoError(t, err)
	before := e.State()

	cp, err := e.CheckComponent(CheckpointReliabilityTest, "api-1")
	require.NoError(t, err)
	assert.False(t, cp.Passed)

	_, err = e.CheckComponent(CheckpointReliabilityTest, "missing")
	assert.ErrorIs(t, err, ErrComponentNotFound)

	_, err = e.CreateCheckpoint(CheckpointSecurityReview, Component{Config: allFlags()})
	require.NoError(t, err)

	after := e.State()
	assert.Equal(t, before.Metrics, after.Metrics)
	assert.Empty(t, after.Checkpoints)
}

func TestEngine_EvaluatePipeline(t *testing.T) {
	e, _ := newTestEngine(t, WithRand(&seqRand{vals: []float64{0.9}}))
	_, err := e.AddComponent(bareAPI("api-1"))
	require.NoError(t, err)
	db, _ := NewComponent(catalog.ComponentDatabase)
	_, err = e.AddComponent(db)
	require.NoError(t, err)

	cps := e.EvaluatePipeline()
	require.Len(t, cps, 2*len(CheckpointTypes))
	assert.Equal(t, "Security Review - api", cps[0].Name)
	assert.Equal(t, "Legal Review - Database", cps[len(cps)-1].Name)

	passed := 0
	for _, cp := range cps {
		if cp.Passed {
			passed++
		}
	}
	// Only the random gates pass for these two components.
	assert.Equal(t, 4, passed)

	again := e.EvaluatePipeline()
	assert.Len(t, again, len(cps))
	assert.NotEqual(t, cps[0].ID, again[0].ID)
	assert.Len(t, e.Checkpoints(), len(cps))
}

func TestEngine_RerunCheckpoint(t *testing.T) {
	e, clock := newTestEngine(t, WithRand(&seqRand{vals: []float64{0.9}}))
	_, err := e.AddComponent(bareAPI("api-1"))
	require.NoError(t, err)
	cps := e.EvaluatePipeline()
	sec := cps[0]
	require.Equal(t, CheckpointSecurityReview, sec.Type)
	require.False(t, sec.Passed)

	cfg := catalog.ComponentConfig{Security: catalog.SecurityConfig{SecurityReview: true}}
	require.True(t, e.UpdateComponent("api-1", ComponentUpdate{Config: &cfg}))

	require.True(t, e.RerunCheckpoint(sec.ID))
	assert.False(t, e.RerunCheckpoint(sec.ID))
	assert.False(t, e.RerunCheckpoint("chk-missing"))
	assert.True(t, e.Checkpoints()[0].Running)

	clock.Advance(2 * time.Second)
	got := e.Checkpoints()[0]
	assert.False(t, got.Running)
	assert.True(t, got.Passed)
	assert.True(t, got.Impact.IsZero())
}

func TestEngine_RerunDroppedWithComponent(t *testing.T) {
	e, clock := newTestEngine(t)
	_, err := e.AddComponent(bareAPI("api-1"))
	require.NoError(t, err)
	cps := e.EvaluatePipeline()
	require.True(t, e.RerunCheckpoint(cps[0].ID))

	require.True(t, e.RemoveComponent("api-1"))
	clock.Advance(5 * time.Second)
	assert.Empty(t, e.Checkpoints())
}
