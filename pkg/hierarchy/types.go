package hierarchy

import (
	"time"

	"github.com/rmax-ai/platformsim/pkg/catalog"
)

// Health is the externally driven status of a node.
type Health string

const (
	HealthHealthy   Health = "healthy"
	HealthDegraded  Health = "degraded"
	HealthUnhealthy Health = "unhealthy"
)

func (h Health) Valid() bool {
	switch h {
	case HealthHealthy, HealthDegraded, HealthUnhealthy:
		return true
	}
	return false
}

// Score maps health onto the 0-100 scale used by the service health metric.
func (h Health) Score() float64 {
	switch h {
	case HealthHealthy:
		return 100
	case HealthDegraded:
		return 50
	}
	return 0
}

type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// ResourceCapacity pairs a node's template totals with the allocation
// computed at read time. Allocated values are never stored on the node.
type ResourceCapacity struct {
	CPU     float64 `json:"cpu"`
	Memory  float64 `json:"memory"`
	Storage float64 `json:"storage"`
	Network float64 `json:"network"`

	AllocatedCPU     float64 `json:"allocatedCpu"`
	AllocatedMemory  float64 `json:"allocatedMemory"`
	AllocatedStorage float64 `json:"allocatedStorage"`
	AllocatedNetwork float64 `json:"allocatedNetwork"`
}

func capacityOf(total, allocated catalog.Resources) ResourceCapacity {
	return ResourceCapacity{
		CPU:              total.CPU,
		Memory:           total.Memory,
		Storage:          total.Storage,
		Network:          total.Network,
		AllocatedCPU:     allocated.CPU,
		AllocatedMemory:  allocated.Memory,
		AllocatedStorage: allocated.Storage,
		AllocatedNetwork: allocated.Network,
	}
}

func (r ResourceCapacity) Total() catalog.Resources {
	return catalog.Resources{CPU: r.CPU, Memory: r.Memory, Storage: r.Storage, Network: r.Network}
}

func (r ResourceCapacity) Allocated() catalog.Resources {
	return catalog.Resources{CPU: r.AllocatedCPU, Memory: r.AllocatedMemory, Storage: r.AllocatedStorage, Network: r.AllocatedNetwork}
}

// Available is total minus allocated per dimension. It can go negative when
// deployments overcommit a node.
func (r ResourceCapacity) Available() catalog.Resources {
	return r.Total().Add(r.Allocated().Scale(-1))
}

// Utilization returns the highest allocated/total percentage across the
// dimensions the node actually provides.
func (r ResourceCapacity) Utilization() float64 {
	var peak float64
	pairs := [][2]float64{
		{r.AllocatedCPU, r.CPU},
		{r.AllocatedMemory, r.Memory},
		{r.AllocatedStorage, r.Storage},
		{r.AllocatedNetwork, r.Network},
	}
	for _, p := range pairs {
		if p[1] <= 0 {
			continue
		}
		if u := p[0] / p[1] * 100; u > peak {
			peak = u
		}
	}
	return peak
}

type NodeConfig struct {
	Replicas    int  `json:"replicas" yaml:"replicas" validate:"gte=0"`
	AutoScaling bool `json:"autoScaling" yaml:"autoScaling"`
	HealthCheck bool `json:"healthCheck" yaml:"healthCheck"`
	Monitoring  bool `json:"monitoring" yaml:"monitoring"`
	Logging     bool `json:"logging" yaml:"logging"`
}

// DefaultNodeConfig is the configuration every new node starts with.
func DefaultNodeConfig() NodeConfig {
	return NodeConfig{Replicas: 1, HealthCheck: true, Monitoring: true, Logging: true}
}

type NodeStatus struct {
	Health      Health  `json:"health"`
	Utilization float64 `json:"utilization"`
	Incidents   int     `json:"incidents"`
	Latency     float64 `json:"latency"`
}

type NodeMetrics struct {
	Availability float64 `json:"availability"`
	Performance  float64 `json:"performance"`
	Cost         float64 `json:"cost"`
	Efficiency   float64 `json:"efficiency"`
}

// Node is one entity of the platform tree.
type Node struct {
	ID        string            `json:"id"`
	Layer     catalog.Layer     `json:"layer"`
	Type      catalog.NodeType  `json:"type"`
	Name      string            `json:"name"`
	Position  Position          `json:"position"`
	Size      catalog.Size      `json:"size"`
	ParentID  string            `json:"parentId,omitempty"`
	ChildIDs  []string          `json:"childIds"`
	Resources *ResourceCapacity `json:"resources,omitempty"`
	Config    NodeConfig        `json:"config"`
	Status    NodeStatus        `json:"status"`
	Metrics   NodeMetrics       `json:"metrics"`
}

func (n Node) clone() Node {
	n.ChildIDs = append([]string{}, n.ChildIDs...)
	if n.Resources != nil {
		r := *n.Resources
		n.Resources = &r
	}
	return n
}

// NodeSpec is the caller-supplied part of a new node. Unset fields take the
// template defaults.
type NodeSpec struct {
	Type     catalog.NodeType `json:"type" validate:"required"`
	Name     string           `json:"name,omitempty"`
	Position *Position        `json:"position,omitempty"`
	Size     *catalog.Size    `json:"size,omitempty"`
	Config   *NodeConfig      `json:"config,omitempty"`
}

// NodeUpdate is a shallow partial update. Nil fields are left unchanged.
// Type, layer and parent are fixed at creation.
type NodeUpdate struct {
	Name     *string       `json:"name,omitempty"`
	Position *Position     `json:"position,omitempty"`
	Size     *catalog.Size `json:"size,omitempty"`
	Config   *NodeConfig   `json:"config,omitempty"`
	Status   *NodeStatus   `json:"status,omitempty"`
	Metrics  *NodeMetrics  `json:"metrics,omitempty"`
}

type DeploymentStatus string

const (
	DeploymentPending   DeploymentStatus = "pending"
	DeploymentDeploying DeploymentStatus = "deploying"
	DeploymentRunning   DeploymentStatus = "running"
	DeploymentFailed    DeploymentStatus = "failed"
)

func (s DeploymentStatus) Valid() bool {
	switch s {
	case DeploymentPending, DeploymentDeploying, DeploymentRunning, DeploymentFailed:
		return true
	}
	return false
}

// Deployment places an application node onto a platform or service node.
type Deployment struct {
	ID            string            `json:"id"`
	ApplicationID string            `json:"applicationId"`
	TargetID      string            `json:"targetId"`
	Environment   string            `json:"environment"`
	Version       string            `json:"version"`
	Status        DeploymentStatus  `json:"status"`
	Replicas      int               `json:"replicas"`
	Resources     catalog.Resources `json:"resources"`
	Created       time.Time         `json:"created"`
	Updated       time.Time         `json:"updated"`
}

// Footprint is the capacity the deployment consumes on its target.
func (d Deployment) Footprint() catalog.Resources {
	return d.Resources.Scale(float64(d.Replicas))
}

type DeploymentUpdate struct {
	Environment *string           `json:"environment,omitempty"`
	Version     *string           `json:"version,omitempty"`
	Status      *DeploymentStatus `json:"status,omitempty"`
	Replicas    *int              `json:"replicas,omitempty"`
}

// PlatformMetrics is the aggregate view over the whole tree.
type PlatformMetrics struct {
	TotalCost             float64          `json:"totalCost"`
	TotalResources        ResourceCapacity `json:"totalResources"`
	ApplicationCount      int              `json:"applicationCount"`
	ServiceHealth         float64          `json:"serviceHealth"`
	PlatformMaturity      float64          `json:"platformMaturity"`
	OperationalExcellence float64          `json:"operationalExcellence"`
}

// AsMap flattens the scalar metrics for gauges and reports.
func (m PlatformMetrics) AsMap() map[string]float64 {
	return map[string]float64{
		"totalCost":             m.TotalCost,
		"applicationCount":      float64(m.ApplicationCount),
		"serviceHealth":         m.ServiceHealth,
		"platformMaturity":      m.PlatformMaturity,
		"operationalExcellence": m.OperationalExcellence,
		"totalCpu":              m.TotalResources.CPU,
		"allocatedCpu":          m.TotalResources.AllocatedCPU,
		"totalMemory":           m.TotalResources.Memory,
		"allocatedMemory":       m.TotalResources.AllocatedMemory,
	}
}

// PlatformState is the snapshot delivered to subscribers.
type PlatformState struct {
	Nodes       []Node          `json:"nodes"`
	Deployments []Deployment    `json:"deployments"`
	Selected    string          `json:"selectedNodeId,omitempty"`
	Metrics     PlatformMetrics `json:"metrics"`
}
