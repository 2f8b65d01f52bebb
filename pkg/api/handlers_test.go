package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmax-ai/platformsim/pkg/hierarchy"
	"github.com/rmax-ai/platformsim/pkg/sched"
	"github.com/rmax-ai/platformsim/pkg/scenario"
	"github.com/rmax-ai/platformsim/pkg/scoring"
	"github.com/rmax-ai/platformsim/pkg/session"
	"github.com/rmax-ai/platformsim/pkg/store"
)

type testEnv struct {
	t     *testing.T
	sess  *session.Session
	clock *sched.Manual
	srv   *Server
	ts    *httptest.Server
}

func newTestEnv(t *testing.T, journal bool) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := sched.NewManual()
	opts := []session.Option{
		session.WithLogger(logger),
		session.WithScoringOptions(scoring.WithScheduler(clock), scoring.WithSeed(1)),
		session.WithHierarchyOptions(hierarchy.WithScheduler(clock)),
	}
	if journal {
		st, err := store.NewStore(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { st.Close() })
		opts = append(opts, session.WithJournal(st))
	}
	sess := session.New(opts...)
	t.Cleanup(sess.Close)

	srv := NewServer(sess, "", WithLogger(logger))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{t: t, sess: sess, clock: clock, srv: srv, ts: ts}
}

// do sends body as JSON and decodes a JSON response into out when non-nil.
func (e *testEnv) do(method, path string, body any, out any) *http.Response {
	e.t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, r)
	require.NoError(e.t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Trace-ID", "test-trace")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(e.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)
	if out != nil && len(data) > 0 {
		require.NoError(e.t, json.Unmarshal(data, out), string(data))
	}
	return resp
}

func errorBody(t *testing.T, e *testEnv, method, path string, body any) (int, map[string]string) {
	t.Helper()
	var out map[string]string
	resp := e.do(method, path, body, &out)
	return resp.StatusCode, out
}

func TestComponents(t *testing.T) {
	e := newTestEnv(t, false)

	var c scoring.Component
	resp := e.do("POST", "/v1/components", map[string]any{"type": "api", "name": "Orders API"}, &c)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Orders API", c.Name)
	assert.Regexp(t, `^comp-`, c.ID)
	require.Len(t, c.Issues, 1)
	assert.Equal(t, "API without Security Review", c.Issues[0].Title)

	var got scoring.Component
	resp = e.do("GET", "/v1/components/"+c.ID, nil, &got)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, c.ID, got.ID)

	name := "Checkout API"
	resp = e.do("PATCH", "/v1/components/"+c.ID, scoring.ComponentUpdate{Name: &name}, &got)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Checkout API", got.Name)

	var list []scoring.Component
	e.do("GET", "/v1/components", nil, &list)
	assert.Len(t, list, 1)

	resp = e.do("DELETE", "/v1/components/"+c.ID, nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = e.do("DELETE", "/v1/components/"+c.ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = e.do("PATCH", "/v1/components/"+c.ID, scoring.ComponentUpdate{Name: &name}, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Empty(t, e.sess.Simulation().Issues)
}

func TestComponents_Errors(t *testing.T) {
	e := newTestEnv(t, false)

	code, body := errorBody(t, e, "POST", "/v1/components", map[string]any{"type": "mainframe"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "unknown_component_type", body["error"])

	code, body = errorBody(t, e, "POST", "/v1/components", map[string]any{"name": "no type"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_field", body["error"])
	assert.Equal(t, "Type", body["field"])

	req, _ := http.NewRequest("POST", e.ts.URL+"/v1/components", strings.NewReader("{"))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	e.do("POST", "/v1/components", map[string]any{"type": "cache", "id": "cache-1"}, nil)
	code, body = errorBody(t, e, "POST", "/v1/components", map[string]any{"type": "cache", "id": "cache-1"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "component_exists", body["error"])

	resp = e.do("PUT", "/v1/components", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestResolveIssue(t *testing.T) {
	e := newTestEnv(t, false)
	var c scoring.Component
	e.do("POST", "/v1/components", map[string]any{"type": "api"}, &c)
	issueID := c.Issues[0].ID

	var res ResolveResponse
	resp := e.do("POST", "/v1/issues/"+issueID+"/resolve?wait=false", nil, &res)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.True(t, res.Scheduled)
	assert.Contains(t, e.sess.Simulation().Resolving, issueID)

	e.clock.Advance(scoring.DefaultResolveDelay)
	assert.Empty(t, e.sess.Simulation().Issues)

	resp = e.do("POST", "/v1/issues/"+issueID+"/resolve", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = e.do("POST", "/v1/issues/"+issueID+"/close", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestResolveIssue_Immediate(t *testing.T) {
	e := newTestEnv(t, false)
	e.do("POST", "/v1/components", map[string]any{"type": "api"}, nil)
	e.do("POST", "/v1/components", map[string]any{"type": "api"}, nil)

	var issues []scoring.Issue
	e.do("GET", "/v1/issues?severity=high", nil, &issues)
	require.Len(t, issues, 2)

	resp := e.do("POST", "/v1/issues/"+issues[0].ID+"/resolve", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, e.sess.Simulation().Issues, 1)
}

func TestCheckpoints(t *testing.T) {
	e := newTestEnv(t, false)
	var c scoring.Component
	e.do("POST", "/v1/components", map[string]any{"type": "api"}, &c)

	var cp scoring.Checkpoint
	resp := e.do("POST", "/v1/checkpoints/evaluate", CheckpointRequest{Type: scoring.CheckpointSecurityReview, ComponentID: c.ID}, &cp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, scoring.CheckpointSecurityReview, cp.Type)
	assert.Equal(t, c.ID, cp.Component)

	resp = e.do("POST", "/v1/checkpoints/evaluate", CheckpointRequest{Type: scoring.CheckpointSecurityReview, ComponentID: "nope"}, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = e.do("POST", "/v1/checkpoints/evaluate", CheckpointRequest{Type: "vibeCheck", ComponentID: c.ID}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var cps []scoring.Checkpoint
	resp = e.do("POST", "/v1/checkpoints", nil, &cps)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, cps, len(scoring.CheckpointTypes))

	e.do("GET", "/v1/checkpoints", nil, &cps)
	require.Len(t, cps, len(scoring.CheckpointTypes))

	resp = e.do("POST", "/v1/checkpoints/"+cps[0].ID+"/rerun", nil, nil)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp = e.do("POST", "/v1/checkpoints/nope/rerun", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSimulationControls(t *testing.T) {
	e := newTestEnv(t, false)

	var st scoring.SimulationState
	resp := e.do("PATCH", "/v1/simulation", map[string]any{"running": true, "speed": 4}, &st)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, st.Running)
	assert.Equal(t, 4, st.Speed)

	resp = e.do("PATCH", "/v1/simulation", map[string]any{"speed": 3}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	e.do("PATCH", "/v1/simulation", map[string]any{"running": false}, &st)
	assert.False(t, st.Running)
	assert.Equal(t, 4, st.Speed)
}

func TestNodes(t *testing.T) {
	e := newTestEnv(t, false)

	var region NodeResponse
	resp := e.do("POST", "/v1/nodes", map[string]any{"type": "region", "name": "eu-west"}, &region)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "eu-west", region.Node.Name)

	var zone NodeResponse
	resp = e.do("POST", "/v1/nodes", map[string]any{"type": "availabilityZone", "parentId": region.ID}, &zone)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, region.ID, zone.Node.ParentID)

	code, body := errorBody(t, e, "POST", "/v1/nodes", map[string]any{"type": "compute"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "rejected", body["error"])
	assert.Equal(t, "requires_parent", body["reason"])

	code, body = errorBody(t, e, "POST", "/v1/nodes", map[string]any{"type": "kubernetes", "parentId": "node-nope"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "missing_parent", body["reason"])

	var accept AcceptResponse
	e.do("GET", "/v1/nodes/"+zone.ID+"/accept?type=compute", nil, &accept)
	assert.True(t, accept.Accept)
	e.do("GET", "/v1/nodes/"+zone.ID+"/accept?type=webApp", nil, &accept)
	assert.False(t, accept.Accept)
	assert.Equal(t, "containment", accept.Reason)

	compute := addNode(t, e, "compute", zone.ID)
	var res ResourcesResponse
	resp = e.do("GET", "/v1/nodes/"+compute+"/resources?deep=true", nil, &res)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, res.Deep)
	assert.Greater(t, res.Resources.CPU, 0.0)
	resp = e.do("GET", "/v1/nodes/"+region.ID+"/resources", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var n hierarchy.Node
	resp = e.do("PUT", "/v1/nodes/"+zone.ID+"/health", HealthRequest{Health: hierarchy.HealthDegraded}, &n)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, hierarchy.HealthDegraded, n.Status.Health)
	resp = e.do("PUT", "/v1/nodes/"+zone.ID+"/health", HealthRequest{Health: "on-fire"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	name := "zone-a"
	resp = e.do("PATCH", "/v1/nodes/"+zone.ID, hierarchy.NodeUpdate{Name: &name}, &n)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "zone-a", n.Name)

	resp = e.do("POST", "/v1/nodes/"+zone.ID+"/select", nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, zone.ID, e.sess.Platform().Selected)

	resp = e.do("DELETE", "/v1/nodes/"+region.ID, nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = e.do("GET", "/v1/nodes/"+zone.ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = e.do("GET", "/v1/nodes/"+compute+"/resources", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Empty(t, e.sess.Platform().Nodes)
}

func addNode(t *testing.T, e *testEnv, typ, parent string) string {
	t.Helper()
	var out NodeResponse
	resp := e.do("POST", "/v1/nodes", map[string]any{"type": typ, "parentId": parent}, &out)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return out.ID
}

func TestDeployments(t *testing.T) {
	e := newTestEnv(t, false)
	region := addNode(t, e, "region", "")
	zone := addNode(t, e, "availabilityZone", region)
	compute := addNode(t, e, "compute", zone)
	k8s := addNode(t, e, "kubernetes", compute)
	app := addNode(t, e, "webApp", k8s)

	var d hierarchy.Deployment
	resp := e.do("POST", "/v1/deployments", DeployRequest{ApplicationID: app, TargetID: k8s, Environment: "staging"}, &d)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, hierarchy.DeploymentDeploying, d.Status)

	e.clock.Advance(hierarchy.DefaultSettleDelay)
	resp = e.do("GET", "/v1/deployments/"+d.ID, nil, &d)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, hierarchy.DeploymentRunning, d.Status)

	resp = e.do("POST", "/v1/deployments", DeployRequest{ApplicationID: k8s, TargetID: app}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	resp = e.do("POST", "/v1/deployments", map[string]string{"applicationId": app}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	version := "2.0.0"
	resp = e.do("PATCH", "/v1/deployments/"+d.ID, hierarchy.DeploymentUpdate{Version: &version}, &d)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "2.0.0", d.Version)
	resp = e.do("PATCH", "/v1/deployments/"+d.ID, map[string]string{"status": "exploded"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var list []hierarchy.Deployment
	e.do("GET", "/v1/deployments", nil, &list)
	assert.Len(t, list, 1)

	resp = e.do("DELETE", "/v1/deployments/"+d.ID, nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = e.do("DELETE", "/v1/deployments/"+d.ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestScenarios(t *testing.T) {
	e := newTestEnv(t, false)

	var list []scenario.Scenario
	e.do("GET", "/v1/scenarios", nil, &list)
	assert.Len(t, list, len(scenario.Builtins()))

	resp := e.do("GET", "/v1/scenario/progress", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var sc scenario.Scenario
	resp = e.do("POST", "/v1/scenarios/security-crisis/load", nil, &sc)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "security-crisis", sc.ID)
	assert.NotEmpty(t, e.sess.Simulation().Components)

	var p scenario.Progress
	resp = e.do("GET", "/v1/scenario/progress", nil, &p)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "security-crisis", p.ScenarioID)

	resp = e.do("GET", "/v1/scenario", nil, &sc)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = e.do("DELETE", "/v1/scenario", nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, e.sess.Simulation().Components)
	resp = e.do("GET", "/v1/scenario", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = e.do("POST", "/v1/scenarios/no-such/load", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEvents(t *testing.T) {
	e := newTestEnv(t, true)
	var c scoring.Component
	e.do("POST", "/v1/components", map[string]any{"type": "cache"}, &c)

	var events []store.Event
	resp := e.do("GET", "/v1/events?limit=10", nil, &events)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, events, 1)
	assert.Equal(t, store.EventTypeComponentAdded, events[0].EventType)
	assert.Equal(t, "api", events[0].Source.OriginKind)
	assert.Equal(t, "test-trace", events[0].Source.OriginID)

	resp = e.do("GET", "/v1/components/"+c.ID+"/events", nil, &events)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, events, 1)

	resp = e.do("GET", "/v1/events?entity_id=unknown", nil, &events)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, events)
}

func TestEvents_NoJournal(t *testing.T) {
	e := newTestEnv(t, false)
	code, body := errorBody(t, e, "GET", "/v1/events", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "journal_disabled", body["error"])

	code, _ = errorBody(t, e, "GET", "/v1/reports?type=events", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestReports(t *testing.T) {
	e := newTestEnv(t, true)
	e.do("POST", "/v1/components", map[string]any{"type": "api"}, nil)

	resp, err := http.Get(e.ts.URL + "/v1/reports?type=issues&severity=high")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "report_issues_")
	data, _ := io.ReadAll(resp.Body)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 2)

	from := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	resp2, err := http.Get(e.ts.URL + "/v1/reports?type=events&from=" + from)
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)

	code, body := errorBody(t, e, "GET", "/v1/reports", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "missing_type", body["error"])
	code, _ = errorBody(t, e, "GET", "/v1/reports?type=usage", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, body = errorBody(t, e, "GET", "/v1/reports?type=events&from=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_from", body["error"])
}

func TestTemplatesAndMetrics(t *testing.T) {
	e := newTestEnv(t, false)

	var tpl TemplatesResponse
	resp := e.do("GET", "/v1/templates", nil, &tpl)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, tpl.Components)
	assert.NotEmpty(t, tpl.Nodes)

	e.do("POST", "/v1/components", map[string]any{"type": "cdn"}, nil)
	resp, err := http.Get(e.ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(data), "platformsim_components")
	assert.Contains(t, string(data), "platformsim_global_metric")
}
