package catalog

import "fmt"

// Layer is one of the four containment tiers of the platform hierarchy.
type Layer string

const (
	LayerInfrastructure Layer = "infrastructure"
	LayerPlatform       Layer = "platform"
	LayerService        Layer = "service"
	LayerApplication    Layer = "application"
)

// Layers lists the tiers from the outermost to the innermost.
var Layers = []Layer{LayerInfrastructure, LayerPlatform, LayerService, LayerApplication}

func (l Layer) Valid() bool {
	switch l {
	case LayerInfrastructure, LayerPlatform, LayerService, LayerApplication:
		return true
	}
	return false
}

// NodeType identifies a hierarchical node template.
type NodeType string

const (
	// Infrastructure
	NodeRegion           NodeType = "region"
	NodeAvailabilityZone NodeType = "availabilityZone"
	NodeCompute          NodeType = "compute"
	NodeNetwork          NodeType = "network"
	NodeStorage          NodeType = "storage"

	// Platform
	NodeKubernetes        NodeType = "kubernetes"
	NodeAPIGateway        NodeType = "apiGateway"
	NodeServiceMesh       NodeType = "serviceMesh"
	NodeMessageBus        NodeType = "messageBus"
	NodeContainerRegistry NodeType = "containerRegistry"

	// Service
	NodeDatabase       NodeType = "database"
	NodeCache          NodeType = "cache"
	NodeQueue          NodeType = "queue"
	NodeMonitoring     NodeType = "monitoring"
	NodeAuthentication NodeType = "authentication"

	// Application
	NodeWebApp     NodeType = "webApp"
	NodeAPIService NodeType = "apiService"
	NodeWorker     NodeType = "worker"
	NodeCronJob    NodeType = "cronJob"
	NodeFunction   NodeType = "function"
)

// NodeTypes lists every node type grouped by layer.
var NodeTypes = []NodeType{
	NodeRegion, NodeAvailabilityZone, NodeCompute, NodeNetwork, NodeStorage,
	NodeKubernetes, NodeAPIGateway, NodeServiceMesh, NodeMessageBus, NodeContainerRegistry,
	NodeDatabase, NodeCache, NodeQueue, NodeMonitoring, NodeAuthentication,
	NodeWebApp, NodeAPIService, NodeWorker, NodeCronJob, NodeFunction,
}

func (t NodeType) Valid() bool {
	_, ok := nodeTemplates[t]
	return ok
}

func ParseNodeType(s string) (NodeType, error) {
	t := NodeType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown node type %q", s)
	}
	return t, nil
}

// Resources is a static resource requirement or capacity.
type Resources struct {
	CPU     float64 `json:"cpu"`
	Memory  float64 `json:"memory"`
	Storage float64 `json:"storage"`
	Network float64 `json:"network"`
}

// Add returns r + o component-wise.
func (r Resources) Add(o Resources) Resources {
	return Resources{
		CPU:     r.CPU + o.CPU,
		Memory:  r.Memory + o.Memory,
		Storage: r.Storage + o.Storage,
		Network: r.Network + o.Network,
	}
}

// Scale returns r multiplied by n.
func (r Resources) Scale(n float64) Resources {
	return Resources{CPU: r.CPU * n, Memory: r.Memory * n, Storage: r.Storage * n, Network: r.Network * n}
}

type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NodeTemplate holds the behaviour-relevant constants of a node type.
// A nil Resources means the type neither provides nor consumes capacity.
type NodeTemplate struct {
	Type           NodeType   `json:"type"`
	Layer          Layer      `json:"layer"`
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	DefaultSize    Size       `json:"defaultSize"`
	CanContain     []Layer    `json:"canContain"`
	RequiresParent Layer      `json:"requiresParent,omitempty"`
	Resources      *Resources `json:"resources,omitempty"`
	BaseCost       float64    `json:"baseCost"`
}

// Contains reports whether nodes of this template may hold children of layer l.
func (t NodeTemplate) Contains(l Layer) bool {
	for _, c := range t.CanContain {
		if c == l {
			return true
		}
	}
	return false
}

func res(cpu, mem, sto, net float64) *Resources {
	return &Resources{CPU: cpu, Memory: mem, Storage: sto, Network: net}
}

var nodeTemplates = map[NodeType]NodeTemplate{
	NodeRegion: {
		Layer:       LayerInfrastructure,
		Name:        "Cloud Region",
		Description: "Geographic deployment region with data centers",
		DefaultSize: Size{800, 600},
		CanContain:  []Layer{LayerInfrastructure, LayerPlatform},
		BaseCost:    500,
	},
	NodeAvailabilityZone: {
		Layer:          LayerInfrastructure,
		Name:           "Availability Zone",
		Description:    "Isolated failure domain within a region",
		DefaultSize:    Size{600, 400},
		CanContain:     []Layer{LayerInfrastructure, LayerPlatform},
		RequiresParent: LayerInfrastructure,
		BaseCost:       100,
	},
	NodeCompute: {
		Layer:          LayerInfrastructure,
		Name:           "Compute Cluster",
		Description:    "Pool of compute resources (VMs/bare metal)",
		DefaultSize:    Size{350, 250},
		CanContain:     []Layer{LayerPlatform},
		RequiresParent: LayerInfrastructure,
		Resources:      res(1000, 4096, 10000, 10000),
		BaseCost:       1000,
	},
	NodeNetwork: {
		Layer:          LayerInfrastructure,
		Name:           "Network Backbone",
		Description:    "Core networking infrastructure",
		DefaultSize:    Size{350, 100},
		RequiresParent: LayerInfrastructure,
		Resources:      res(0, 0, 0, 100000),
		BaseCost:       300,
	},
	NodeStorage: {
		Layer:          LayerInfrastructure,
		Name:           "Storage Array",
		Description:    "Persistent storage infrastructure",
		DefaultSize:    Size{200, 150},
		RequiresParent: LayerInfrastructure,
		Resources:      res(0, 0, 100000, 0),
		BaseCost:       200,
	},

	NodeKubernetes: {
		Layer:          LayerPlatform,
		Name:           "Kubernetes Cluster",
		Description:    "Container orchestration platform",
		DefaultSize:    Size{300, 200},
		CanContain:     []Layer{LayerService, LayerApplication},
		RequiresParent: LayerInfrastructure,
		Resources:      res(100, 512, 0, 0),
		BaseCost:       150,
	},
	NodeAPIGateway: {
		Layer:          LayerPlatform,
		Name:           "API Gateway",
		Description:    "Centralized API management and routing",
		DefaultSize:    Size{250, 80},
		RequiresParent: LayerInfrastructure,
		Resources:      res(50, 256, 0, 1000),
		BaseCost:       100,
	},
	NodeServiceMesh: {
		Layer:          LayerPlatform,
		Name:           "Service Mesh",
		Description:    "Service-to-service communication layer",
		DefaultSize:    Size{250, 80},
		RequiresParent: LayerPlatform,
		Resources:      res(25, 128, 0, 0),
		BaseCost:       75,
	},
	NodeMessageBus: {
		Layer:          LayerPlatform,
		Name:           "Message Bus",
		Description:    "Event streaming and messaging platform",
		DefaultSize:    Size{200, 80},
		RequiresParent: LayerInfrastructure,
		Resources:      res(50, 512, 1000, 0),
		BaseCost:       120,
	},
	NodeContainerRegistry: {
		Layer:          LayerPlatform,
		Name:           "Container Registry",
		Description:    "Docker image storage and distribution",
		DefaultSize:    Size{150, 100},
		RequiresParent: LayerInfrastructure,
		Resources:      res(0, 0, 5000, 0),
		BaseCost:       50,
	},

	NodeDatabase: {
		Layer:          LayerService,
		Name:           "Database",
		Description:    "Managed database service",
		DefaultSize:    Size{120, 80},
		RequiresParent: LayerPlatform,
		Resources:      res(100, 1024, 5000, 0),
		BaseCost:       200,
	},
	NodeCache: {
		Layer:          LayerService,
		Name:           "Cache",
		Description:    "In-memory caching service",
		DefaultSize:    Size{100, 60},
		RequiresParent: LayerPlatform,
		Resources:      res(25, 512, 0, 0),
		BaseCost:       75,
	},
	NodeQueue: {
		Layer:          LayerService,
		Name:           "Message Queue",
		Description:    "Async job processing queue",
		DefaultSize:    Size{100, 60},
		RequiresParent: LayerPlatform,
		Resources:      res(25, 256, 0, 0),
		BaseCost:       50,
	},
	NodeMonitoring: {
		Layer:          LayerService,
		Name:           "Monitoring",
		Description:    "Metrics and observability service",
		DefaultSize:    Size{120, 60},
		RequiresParent: LayerPlatform,
		Resources:      res(50, 512, 1000, 0),
		BaseCost:       100,
	},
	NodeAuthentication: {
		Layer:          LayerService,
		Name:           "Auth Service",
		Description:    "Identity and access management",
		DefaultSize:    Size{100, 60},
		RequiresParent: LayerPlatform,
		Resources:      res(50, 256, 0, 0),
		BaseCost:       80,
	},

	NodeWebApp: {
		Layer:          LayerApplication,
		Name:           "Web Application",
		Description:    "Frontend web application",
		DefaultSize:    Size{80, 60},
		RequiresParent: LayerPlatform,
		Resources:      res(10, 128, 0, 0),
		BaseCost:       20,
	},
	NodeAPIService: {
		Layer:          LayerApplication,
		Name:           "API Service",
		Description:    "Backend API microservice",
		DefaultSize:    Size{80, 60},
		RequiresParent: LayerPlatform,
		Resources:      res(25, 256, 0, 0),
		BaseCost:       30,
	},
	NodeWorker: {
		Layer:          LayerApplication,
		Name:           "Worker Service",
		Description:    "Background job processor",
		DefaultSize:    Size{80, 60},
		RequiresParent: LayerPlatform,
		Resources:      res(50, 512, 0, 0),
		BaseCost:       40,
	},
	NodeCronJob: {
		Layer:          LayerApplication,
		Name:           "Scheduled Job",
		Description:    "Periodic task runner",
		DefaultSize:    Size{60, 40},
		RequiresParent: LayerPlatform,
		Resources:      res(5, 64, 0, 0),
		BaseCost:       10,
	},
	NodeFunction: {
		Layer:          LayerApplication,
		Name:           "Serverless Function",
		Description:    "Event-driven compute function",
		DefaultSize:    Size{60, 40},
		RequiresParent: LayerPlatform,
		Resources:      res(1, 128, 0, 0),
		BaseCost:       5,
	},
}

func init() {
	for t, tpl := range nodeTemplates {
		tpl.Type = t
		nodeTemplates[t] = tpl
	}
}

// NodeTemplateFor returns the template for t. The returned value is a copy;
// callers may not mutate the shared table through it.
func NodeTemplateFor(t NodeType) (NodeTemplate, bool) {
	tpl, ok := nodeTemplates[t]
	if !ok {
		return NodeTemplate{}, false
	}
	return cloneNodeTemplate(tpl), true
}

// TemplatesByLayer returns the node templates of layer l in declaration order.
func TemplatesByLayer(l Layer) []NodeTemplate {
	var out []NodeTemplate
	for _, t := range NodeTypes {
		if tpl := nodeTemplates[t]; tpl.Layer == l {
			out = append(out, cloneNodeTemplate(tpl))
		}
	}
	return out
}

func cloneNodeTemplate(t NodeTemplate) NodeTemplate {
	if t.Resources != nil {
		r := *t.Resources
		t.Resources = &r
	}
	t.CanContain = append([]Layer(nil), t.CanContain...)
	return t
}
