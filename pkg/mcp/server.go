package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rmax-ai/platformsim/pkg/catalog"
	"github.com/rmax-ai/platformsim/pkg/client"
	"github.com/rmax-ai/platformsim/pkg/hierarchy"
	"github.com/rmax-ai/platformsim/pkg/scoring"
)

// Server adapts platformsim-d to the Model Context Protocol.
type Server struct {
	mcpServer *server.MCPServer
	apiClient *client.Client
}

// NewServer creates a new MCP server instance.
func NewServer(apiURL string) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"platformsim",
			"1.0.0",
		),
		apiClient: client.NewClient(apiURL).WithTracePrefix("mcp"),
	}
	s.registerResources()
	s.registerTools()
	s.registerPrompts()
	return s
}

// Serve starts the MCP server on stdio.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcpServer)
}

// --- Resources ---

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(
		"platformsim://simulation",
		"Simulation State",
		mcp.WithResourceDescription("Components, active issues, checkpoints and global metrics"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadSimulation)

	s.mcpServer.AddResource(mcp.NewResource(
		"platformsim://platform",
		"Platform Hierarchy",
		mcp.WithResourceDescription("Infrastructure node tree, deployments and platform metrics"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadPlatform)

	s.mcpServer.AddResource(mcp.NewResource(
		"platformsim://events",
		"Session Journal",
		mcp.WithResourceDescription("Most recent session mutations, newest first"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadEvents)
}

// --- Tools ---

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		"add_component",
		mcp.WithDescription("Add a component to the simulation. Returns the component with the issues it raised."),
		mcp.WithString("type", mcp.Required(), mcp.Description("Component type (api, database, loadBalancer, cache, authService, monitoring, cdn, queue, microservice, frontend)")),
		mcp.WithString("name", mcp.Description("Display name; defaults to the template name")),
	), s.handleAddComponent)

	s.mcpServer.AddTool(mcp.NewTool(
		"resolve_issue",
		mcp.WithDescription("Resolve an active issue. With wait=false the fix is scheduled instead of applied immediately."),
		mcp.WithString("issue_id", mcp.Required(), mcp.Description("Issue id")),
		mcp.WithBoolean("wait", mcp.Description("Resolve now (default true)")),
	), s.handleResolveIssue)

	s.mcpServer.AddTool(mcp.NewTool(
		"evaluate_checkpoint",
		mcp.WithDescription("Run one quality gate against a component without changing the simulation."),
		mcp.WithString("type", mcp.Required(), mcp.Description("securityReview, engineeringReview, complianceCheck, reliabilityTest, ethicsReview or legalReview")),
		mcp.WithString("component_id", mcp.Required(), mcp.Description("Component id")),
	), s.handleEvaluateCheckpoint)

	s.mcpServer.AddTool(mcp.NewTool(
		"add_node",
		mcp.WithDescription("Insert an infrastructure node. Fails with a reason when containment or capacity rules refuse it."),
		mcp.WithString("type", mcp.Required(), mcp.Description("Node type, e.g. region, availabilityZone, compute, kubernetes, database, webApp")),
		mcp.WithString("parent_id", mcp.Description("Parent node id; empty for a region")),
		mcp.WithString("name", mcp.Description("Display name")),
	), s.handleAddNode)

	s.mcpServer.AddTool(mcp.NewTool(
		"delete_node",
		mcp.WithDescription("Delete a node with its whole subtree and every deployment touching it."),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Node id")),
	), s.handleDeleteNode)

	s.mcpServer.AddTool(mcp.NewTool(
		"node_resources",
		mcp.WithDescription("Show capacity and allocation of a node."),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Node id")),
		mcp.WithBoolean("deep", mcp.Description("Count the whole subtree instead of direct children")),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleNodeResources)

	s.mcpServer.AddTool(mcp.NewTool(
		"deploy_application",
		mcp.WithDescription("Deploy an application node onto a platform or service node."),
		mcp.WithString("application_id", mcp.Required(), mcp.Description("Application node id")),
		mcp.WithString("target_id", mcp.Required(), mcp.Description("Platform or service node id")),
		mcp.WithString("environment", mcp.Description("Environment label, e.g. staging")),
	), s.handleDeployApplication)

	s.mcpServer.AddTool(mcp.NewTool(
		"load_scenario",
		mcp.WithDescription("Reset the simulation to a learning scenario."),
		mcp.WithString("scenario_id", mcp.Required(), mcp.Description("Scenario id, e.g. getting-started")),
	), s.handleLoadScenario)

	s.mcpServer.AddTool(mcp.NewTool(
		"scenario_progress",
		mcp.WithDescription("Score the loaded scenario's objectives against the current metrics."),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleProgress)
}

// --- Prompts ---

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(mcp.NewPrompt(
		"platformsim-guide",
		mcp.WithPromptDescription("Explains components, issues, severities and the node hierarchy"),
	), s.handleGetPrompt)
}

// --- Handlers ---

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err))
	}
	return mcp.NewToolResultText(string(data))
}

// toolError turns daemon errors into tool errors the model can act on.
func toolError(err error) *mcp.CallToolResult {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && errors.Is(err, client.ErrRejected) {
		return mcp.NewToolResultError(fmt.Sprintf("Rejected: %s", apiErr.Reason))
	}
	return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err))
}

func (s *Server) handleReadSimulation(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	st, err := s.apiClient.Simulation(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch simulation: %w", err)
	}
	return jsonContents(request.Params.URI, st)
}

func (s *Server) handleReadPlatform(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	st, err := s.apiClient.Platform(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch platform: %w", err)
	}
	return jsonContents(request.Params.URI, st)
}

func (s *Server) handleReadEvents(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	events, err := s.apiClient.GetEvents(ctx, 50)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch events: %w", err)
	}
	return jsonContents(request.Params.URI, events)
}

func (s *Server) handleAddComponent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c, err := s.apiClient.AddComponent(ctx, client.ComponentRequest{
		Type: catalog.ComponentType(mcp.ParseString(request, "type", "")),
		Name: mcp.ParseString(request, "name", ""),
	})
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(c), nil
}

func (s *Server) handleResolveIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := mcp.ParseString(request, "issue_id", "")
	wait := mcp.ParseBoolean(request, "wait", true)
	if err := s.apiClient.ResolveIssue(ctx, id, wait); err != nil {
		return toolError(err), nil
	}
	if !wait {
		return mcp.NewToolResultText(fmt.Sprintf("Resolution of %s scheduled", id)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Issue %s resolved", id)), nil
}

func (s *Server) handleEvaluateCheckpoint(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cp, err := s.apiClient.EvaluateCheckpoint(ctx,
		scoring.CheckpointType(mcp.ParseString(request, "type", "")),
		mcp.ParseString(request, "component_id", ""),
	)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(cp), nil
}

func (s *Server) handleAddNode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	spec := hierarchy.NodeSpec{
		Type: catalog.NodeType(mcp.ParseString(request, "type", "")),
		Name: mcp.ParseString(request, "name", ""),
	}
	n, err := s.apiClient.AddNode(ctx, spec, mcp.ParseString(request, "parent_id", ""))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(n), nil
}

func (s *Server) handleDeleteNode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := mcp.ParseString(request, "node_id", "")
	if err := s.apiClient.DeleteNode(ctx, id); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Node %s deleted", id)), nil
}

func (s *Server) handleNodeResources(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.apiClient.NodeResources(ctx,
		mcp.ParseString(request, "node_id", ""),
		mcp.ParseBoolean(request, "deep", false),
	)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(res), nil
}

func (s *Server) handleDeployApplication(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	d, err := s.apiClient.Deploy(ctx,
		mcp.ParseString(request, "application_id", ""),
		mcp.ParseString(request, "target_id", ""),
		mcp.ParseString(request, "environment", ""),
	)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(d), nil
}

func (s *Server) handleLoadScenario(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sc, err := s.apiClient.LoadScenario(ctx, mcp.ParseString(request, "scenario_id", ""))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(sc), nil
}

func (s *Server) handleProgress(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := s.apiClient.Progress(ctx)
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			return mcp.NewToolResultError("No scenario loaded"), nil
		}
		return toolError(err), nil
	}
	return jsonResult(p), nil
}

func (s *Server) handleGetPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	name := request.Params.Name
	if name != "platformsim-guide" {
		return nil, fmt.Errorf("prompt not found: %s", name)
	}

	promptText := `You are operating platformsim, a simulator for learning cloud platform design.

Concepts:
- Component: an architectural building block (api, database, cache...). Its config flags drive its security, performance and reliability scores.
- Issue: a problem raised by a rule when a component is under-configured. Severity (low, medium, high, critical) multiplies its impact on the global metrics.
- Checkpoint: a quality gate (securityReview, engineeringReview...) evaluated against a component.
- Node: an element of the platform tree. Regions hold zones, zones hold compute, compute holds platforms like kubernetes, platforms hold services and applications. Parents refuse children that exceed their capacity.
- Deployment: an application placed on a platform or service node. It is deploying for a moment, then running.

Read platformsim://simulation before changing components and platformsim://platform before adding nodes.
When add_node is rejected, the reason says which rule refused it: fix the parent, do not retry blindly.
`

	return mcp.NewGetPromptResult(
		"platformsim-guide",
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(promptText)),
		},
	), nil
}
