package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rmax-ai/platformsim/pkg/catalog"
	"github.com/rmax-ai/platformsim/pkg/hierarchy"
	"github.com/rmax-ai/platformsim/pkg/scenario"
	"github.com/rmax-ai/platformsim/pkg/scoring"
	"github.com/rmax-ai/platformsim/pkg/store"
)

// Client is the platformsim SDK client.
type Client struct {
	endpoint string
	http     *http.Client
	backoff  BackoffStrategy
	origin   string
}

// NewClient creates a new platformsim client.
// endpoint defaults to "http://127.0.0.1:8095" if empty.
func NewClient(endpoint string) *Client {
	if endpoint == "" {
		endpoint = "http://127.0.0.1:8095"
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		backoff: DefaultBackoff(),
	}
}

// WithBackoff replaces the polling strategy used by the Wait helpers.
func (c *Client) WithBackoff(b BackoffStrategy) *Client {
	c.backoff = b
	return c
}

// WithTracePrefix makes every request carry an X-Trace-ID starting with
// prefix so daemon journal entries name the tool that caused them.
func (c *Client) WithTracePrefix(prefix string) *Client {
	c.origin = prefix
	return c
}

// do sends body as JSON and decodes a 2xx response into out. Other
// statuses come back as *APIError.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.origin != "" {
		req.Header.Set("X-Trace-ID", fmt.Sprintf("%s-%d", c.origin, time.Now().UnixNano()))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Code == "" {
		apiErr.Code = strings.TrimSpace(string(data))
	}
	return apiErr
}

// Ping checks the health of the daemon.
func (c *Client) Ping(ctx context.Context) (Status, error) {
	var st Status
	err := c.do(ctx, http.MethodGet, "/v1/health", nil, &st)
	return st, err
}

func (c *Client) Templates(ctx context.Context) (Templates, error) {
	var t Templates
	err := c.do(ctx, http.MethodGet, "/v1/templates", nil, &t)
	return t, err
}

// Scoring

func (c *Client) Simulation(ctx context.Context) (scoring.SimulationState, error) {
	var st scoring.SimulationState
	err := c.do(ctx, http.MethodGet, "/v1/simulation", nil, &st)
	return st, err
}

func (c *Client) ControlSimulation(ctx context.Context, ctl SimulationControl) (scoring.SimulationState, error) {
	var st scoring.SimulationState
	err := c.do(ctx, http.MethodPatch, "/v1/simulation", ctl, &st)
	return st, err
}

func (c *Client) AddComponent(ctx context.Context, req ComponentRequest) (scoring.Component, error) {
	var out scoring.Component
	err := c.do(ctx, http.MethodPost, "/v1/components", req, &out)
	return out, err
}

func (c *Client) Component(ctx context.Context, id string) (scoring.Component, error) {
	var out scoring.Component
	err := c.do(ctx, http.MethodGet, "/v1/components/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (c *Client) UpdateComponent(ctx context.Context, id string, u scoring.ComponentUpdate) (scoring.Component, error) {
	var out scoring.Component
	err := c.do(ctx, http.MethodPatch, "/v1/components/"+url.PathEscape(id), u, &out)
	return out, err
}

func (c *Client) RemoveComponent(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/components/"+url.PathEscape(id), nil, nil)
}

// Issues lists active issues, optionally of one severity.
func (c *Client) Issues(ctx context.Context, severity scoring.Severity) ([]scoring.Issue, error) {
	path := "/v1/issues"
	if severity != "" {
		path += "?severity=" + url.QueryEscape(string(severity))
	}
	var out []scoring.Issue
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// ResolveIssue removes the issue now, or with wait=false schedules the fix
// on the daemon's resolve delay.
func (c *Client) ResolveIssue(ctx context.Context, id string, wait bool) error {
	path := "/v1/issues/" + url.PathEscape(id) + "/resolve"
	if !wait {
		path += "?wait=false"
	}
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

func (c *Client) Checkpoints(ctx context.Context) ([]scoring.Checkpoint, error) {
	var out []scoring.Checkpoint
	err := c.do(ctx, http.MethodGet, "/v1/checkpoints", nil, &out)
	return out, err
}

// EvaluatePipeline runs every gate against every component.
func (c *Client) EvaluatePipeline(ctx context.Context) ([]scoring.Checkpoint, error) {
	var out []scoring.Checkpoint
	err := c.do(ctx, http.MethodPost, "/v1/checkpoints", nil, &out)
	return out, err
}

// EvaluateCheckpoint runs one gate against one component without storing
// the result.
func (c *Client) EvaluateCheckpoint(ctx context.Context, t scoring.CheckpointType, componentID string) (scoring.Checkpoint, error) {
	var out scoring.Checkpoint
	err := c.do(ctx, http.MethodPost, "/v1/checkpoints/evaluate", checkpointRequest{Type: t, ComponentID: componentID}, &out)
	return out, err
}

func (c *Client) RerunCheckpoint(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/v1/checkpoints/"+url.PathEscape(id)+"/rerun", nil, nil)
}

// Hierarchy

func (c *Client) Platform(ctx context.Context) (hierarchy.PlatformState, error) {
	var st hierarchy.PlatformState
	err := c.do(ctx, http.MethodGet, "/v1/platform", nil, &st)
	return st, err
}

// AddNode inserts a node below parentID (empty for a root). A refused
// insertion returns an *APIError matching ErrRejected with the reason set.
func (c *Client) AddNode(ctx context.Context, spec hierarchy.NodeSpec, parentID string) (hierarchy.Node, error) {
	var out nodeResponse
	err := c.do(ctx, http.MethodPost, "/v1/nodes", nodeRequest{NodeSpec: spec, ParentID: parentID}, &out)
	return out.Node, err
}

func (c *Client) Node(ctx context.Context, id string) (hierarchy.Node, error) {
	var out hierarchy.Node
	err := c.do(ctx, http.MethodGet, "/v1/nodes/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (c *Client) UpdateNode(ctx context.Context, id string, u hierarchy.NodeUpdate) (hierarchy.Node, error) {
	var out hierarchy.Node
	err := c.do(ctx, http.MethodPatch, "/v1/nodes/"+url.PathEscape(id), u, &out)
	return out, err
}

func (c *Client) DeleteNode(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/nodes/"+url.PathEscape(id), nil, nil)
}

func (c *Client) SetHealth(ctx context.Context, id string, h hierarchy.Health) (hierarchy.Node, error) {
	var out hierarchy.Node
	err := c.do(ctx, http.MethodPut, "/v1/nodes/"+url.PathEscape(id)+"/health", map[string]hierarchy.Health{"health": h}, &out)
	return out, err
}

func (c *Client) SelectNode(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/v1/nodes/"+url.PathEscape(id)+"/select", nil, nil)
}

// NodeResources returns the direct rollup of a node, or the subtree rollup
// when deep is set.
func (c *Client) NodeResources(ctx context.Context, id string, deep bool) (Resources, error) {
	path := "/v1/nodes/" + url.PathEscape(id) + "/resources"
	if deep {
		path += "?deep=true"
	}
	var out Resources
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) CanAccept(ctx context.Context, parentID string, t catalog.NodeType) (Accept, error) {
	var out Accept
	path := fmt.Sprintf("/v1/nodes/%s/accept?type=%s", url.PathEscape(parentID), url.QueryEscape(string(t)))
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) Deploy(ctx context.Context, appID, targetID, environment string) (hierarchy.Deployment, error) {
	var out hierarchy.Deployment
	err := c.do(ctx, http.MethodPost, "/v1/deployments", deployRequest{ApplicationID: appID, TargetID: targetID, Environment: environment}, &out)
	return out, err
}

func (c *Client) Deployments(ctx context.Context) ([]hierarchy.Deployment, error) {
	var out []hierarchy.Deployment
	err := c.do(ctx, http.MethodGet, "/v1/deployments", nil, &out)
	return out, err
}

func (c *Client) Deployment(ctx context.Context, id string) (hierarchy.Deployment, error) {
	var out hierarchy.Deployment
	err := c.do(ctx, http.MethodGet, "/v1/deployments/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (c *Client) UpdateDeployment(ctx context.Context, id string, u hierarchy.DeploymentUpdate) (hierarchy.Deployment, error) {
	var out hierarchy.Deployment
	err := c.do(ctx, http.MethodPatch, "/v1/deployments/"+url.PathEscape(id), u, &out)
	return out, err
}

func (c *Client) RemoveDeployment(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/deployments/"+url.PathEscape(id), nil, nil)
}

// WaitForDeployment polls until the deployment leaves deploying, backing off
// between attempts.
func (c *Client) WaitForDeployment(ctx context.Context, id string) (hierarchy.Deployment, error) {
	for attempt := 0; ; attempt++ {
		d, err := c.Deployment(ctx, id)
		if err != nil {
			return hierarchy.Deployment{}, err
		}
		if d.Status != hierarchy.DeploymentDeploying {
			return d, nil
		}
		select {
		case <-time.After(c.backoff.Next(attempt)):
		case <-ctx.Done():
			return d, ctx.Err()
		}
	}
}

// Scenarios

func (c *Client) Scenarios(ctx context.Context) ([]scenario.Scenario, error) {
	var out []scenario.Scenario
	err := c.do(ctx, http.MethodGet, "/v1/scenarios", nil, &out)
	return out, err
}

func (c *Client) LoadScenario(ctx context.Context, id string) (scenario.Scenario, error) {
	var out scenario.Scenario
	err := c.do(ctx, http.MethodPost, "/v1/scenarios/"+url.PathEscape(id)+"/load", nil, &out)
	return out, err
}

func (c *Client) CurrentScenario(ctx context.Context) (scenario.Scenario, error) {
	var out scenario.Scenario
	err := c.do(ctx, http.MethodGet, "/v1/scenario", nil, &out)
	return out, err
}

func (c *Client) ClearScenario(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/v1/scenario", nil, nil)
}

func (c *Client) Progress(ctx context.Context) (scenario.Progress, error) {
	var out scenario.Progress
	err := c.do(ctx, http.MethodGet, "/v1/scenario/progress", nil, &out)
	return out, err
}

// Journal

// GetEvents fetches recent events from the daemon.
func (c *Client) GetEvents(ctx context.Context, limit int) ([]store.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []store.Event
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/events?limit=%d", limit), nil, &out)
	return out, err
}

// EntityEvents fetches the journal history of one component, node or
// deployment.
func (c *Client) EntityEvents(ctx context.Context, entityID string) ([]store.Event, error) {
	var out []store.Event
	err := c.do(ctx, http.MethodGet, "/v1/events?entity_id="+url.QueryEscape(entityID), nil, &out)
	return out, err
}

// Report downloads a CSV report. filters are passed through as query
// parameters (severity, component_id, layer, engine, entity_id, event_type,
// from, to).
func (c *Client) Report(ctx context.Context, reportType string, filters map[string]string) ([]byte, error) {
	q := url.Values{"type": {reportType}}
	for k, v := range filters {
		q.Set(k, v)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/v1/reports?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}
	return io.ReadAll(resp.Body)
}
