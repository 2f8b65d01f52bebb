package catalog

import "fmt"

// ComponentType enumerates the flat platform building blocks scored by the
// simulation engine.
type ComponentType string

const (
	ComponentAPI          ComponentType = "api"
	ComponentDatabase     ComponentType = "database"
	ComponentLoadBalancer ComponentType = "loadBalancer"
	ComponentCache        ComponentType = "cache"
	ComponentAuthService  ComponentType = "authService"
	ComponentMonitoring   ComponentType = "monitoring"
	ComponentCDN          ComponentType = "cdn"
	ComponentQueue        ComponentType = "queue"
	ComponentMicroservice ComponentType = "microservice"
	ComponentFrontend     ComponentType = "frontend"
)

// ComponentTypes lists every component type in palette order.
var ComponentTypes = []ComponentType{
	ComponentAPI,
	ComponentDatabase,
	ComponentLoadBalancer,
	ComponentCache,
	ComponentAuthService,
	ComponentMonitoring,
	ComponentCDN,
	ComponentQueue,
	ComponentMicroservice,
	ComponentFrontend,
}

// Valid reports whether t is a known component type.
func (t ComponentType) Valid() bool {
	_, ok := componentTemplates[t]
	return ok
}

// ParseComponentType converts a raw string into a ComponentType.
func ParseComponentType(s string) (ComponentType, error) {
	t := ComponentType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown component type %q", s)
	}
	return t, nil
}

type ComponentCategory string

const (
	CategoryInfrastructure ComponentCategory = "infrastructure"
	CategoryApplication    ComponentCategory = "application"
	CategorySecurity       ComponentCategory = "security"
	CategoryMonitoring     ComponentCategory = "monitoring"
)

// SecurityConfig groups the security toggles of a component.
type SecurityConfig struct {
	Encryption      bool `json:"encryption" yaml:"encryption"`
	Authentication  bool `json:"authentication" yaml:"authentication"`
	Authorization   bool `json:"authorization" yaml:"authorization"`
	InputValidation bool `json:"inputValidation" yaml:"inputValidation"`
	SecurityReview  bool `json:"securityReview" yaml:"securityReview"`
}

// PerformanceConfig groups the performance toggles of a component.
type PerformanceConfig struct {
	Caching          bool `json:"caching" yaml:"caching"`
	Compression      bool `json:"compression" yaml:"compression"`
	OptimizedQueries bool `json:"optimizedQueries" yaml:"optimizedQueries"`
	LoadBalancing    bool `json:"loadBalancing" yaml:"loadBalancing"`
}

// ReliabilityConfig groups the reliability toggles of a component.
type ReliabilityConfig struct {
	HealthChecks  bool `json:"healthChecks" yaml:"healthChecks"`
	Monitoring    bool `json:"monitoring" yaml:"monitoring"`
	Backups       bool `json:"backups" yaml:"backups"`
	ErrorHandling bool `json:"errorHandling" yaml:"errorHandling"`
}

// ComponentConfig is the full boolean-flag configuration of a component.
// RateLimit of zero means no rate limit is set.
type ComponentConfig struct {
	Security    SecurityConfig    `json:"security" yaml:"security"`
	Performance PerformanceConfig `json:"performance" yaml:"performance"`
	Reliability ReliabilityConfig `json:"reliability" yaml:"reliability"`
	RateLimit   int               `json:"rateLimit,omitempty" yaml:"rateLimit,omitempty" validate:"gte=0"`
}

// ComponentMetrics are the per-component derived scores.
type ComponentMetrics struct {
	Performance float64 `json:"performance" yaml:"performance"`
	Security    float64 `json:"security" yaml:"security"`
	Reliability float64 `json:"reliability" yaml:"reliability"`
	Cost        float64 `json:"cost" yaml:"cost"`
	Complexity  float64 `json:"complexity" yaml:"complexity"`
}

// ComponentTemplate is the static palette entry for a component type.
type ComponentTemplate struct {
	Type          ComponentType     `json:"type"`
	Name          string            `json:"name"`
	Description   string            `json:"description"`
	Category      ComponentCategory `json:"category"`
	DefaultConfig ComponentConfig   `json:"defaultConfig"`
	BaseMetrics   ComponentMetrics  `json:"baseMetrics"`
}

var componentTemplates = map[ComponentType]ComponentTemplate{
	ComponentAPI: {
		Type:          ComponentAPI,
		Name:          "REST API",
		Description:   "HTTP API endpoint for client communication",
		Category:      CategoryApplication,
		DefaultConfig: ComponentConfig{RateLimit: 1000},
		BaseMetrics:   ComponentMetrics{Performance: 60, Security: 40, Reliability: 50, Cost: 500, Complexity: 30},
	},
	ComponentDatabase: {
		Type:        ComponentDatabase,
		Name:        "Database",
		Description: "Primary data storage system",
		Category:    CategoryInfrastructure,
		DefaultConfig: ComponentConfig{
			Security: SecurityConfig{Authentication: true},
		},
		BaseMetrics: ComponentMetrics{Performance: 70, Security: 60, Reliability: 80, Cost: 800, Complexity: 40},
	},
	ComponentLoadBalancer: {
		Type:        ComponentLoadBalancer,
		Name:        "Load Balancer",
		Description: "Distributes traffic across multiple servers",
		Category:    CategoryInfrastructure,
		DefaultConfig: ComponentConfig{
			Performance: PerformanceConfig{LoadBalancing: true},
			Reliability: ReliabilityConfig{HealthChecks: true, ErrorHandling: true},
		},
		BaseMetrics: ComponentMetrics{Performance: 85, Security: 50, Reliability: 90, Cost: 300, Complexity: 25},
	},
	ComponentCache: {
		Type:        ComponentCache,
		Name:        "Cache Layer",
		Description: "In-memory data storage for fast access",
		Category:    CategoryInfrastructure,
		DefaultConfig: ComponentConfig{
			Performance: PerformanceConfig{Caching: true},
		},
		BaseMetrics: ComponentMetrics{Performance: 95, Security: 40, Reliability: 60, Cost: 200, Complexity: 20},
	},
	ComponentAuthService: {
		Type:        ComponentAuthService,
		Name:        "Authentication Service",
		Description: "User authentication and authorization",
		Category:    CategorySecurity,
		DefaultConfig: ComponentConfig{
			Security:    SecurityConfig{Encryption: true, Authentication: true, Authorization: true, InputValidation: true},
			Reliability: ReliabilityConfig{Backups: true, ErrorHandling: true},
		},
		BaseMetrics: ComponentMetrics{Performance: 70, Security: 90, Reliability: 85, Cost: 400, Complexity: 50},
	},
	ComponentMonitoring: {
		Type:        ComponentMonitoring,
		Name:        "Monitoring System",
		Description: "Application and infrastructure monitoring",
		Category:    CategoryMonitoring,
		DefaultConfig: ComponentConfig{
			Security:    SecurityConfig{Authentication: true},
			Performance: PerformanceConfig{Compression: true},
			Reliability: ReliabilityConfig{HealthChecks: true, Monitoring: true, Backups: true, ErrorHandling: true},
		},
		BaseMetrics: ComponentMetrics{Performance: 60, Security: 60, Reliability: 95, Cost: 150, Complexity: 30},
	},
	ComponentCDN: {
		Type:        ComponentCDN,
		Name:        "Content Delivery Network",
		Description: "Global content distribution and caching",
		Category:    CategoryInfrastructure,
		DefaultConfig: ComponentConfig{
			Security:    SecurityConfig{Encryption: true},
			Performance: PerformanceConfig{Caching: true, Compression: true, LoadBalancing: true},
			Reliability: ReliabilityConfig{HealthChecks: true, ErrorHandling: true},
		},
		BaseMetrics: ComponentMetrics{Performance: 90, Security: 70, Reliability: 85, Cost: 250, Complexity: 20},
	},
	ComponentQueue: {
		Type:        ComponentQueue,
		Name:        "Message Queue",
		Description: "Asynchronous message processing",
		Category:    CategoryInfrastructure,
		DefaultConfig: ComponentConfig{
			Reliability: ReliabilityConfig{Backups: true, ErrorHandling: true},
		},
		BaseMetrics: ComponentMetrics{Performance: 75, Security: 45, Reliability: 80, Cost: 180, Complexity: 35},
	},
	ComponentMicroservice: {
		Type:        ComponentMicroservice,
		Name:        "Microservice",
		Description: "Independent service component",
		Category:    CategoryApplication,
		BaseMetrics: ComponentMetrics{Performance: 65, Security: 50, Reliability: 60, Cost: 350, Complexity: 45},
	},
	ComponentFrontend: {
		Type:        ComponentFrontend,
		Name:        "Frontend Application",
		Description: "User-facing web application",
		Category:    CategoryApplication,
		DefaultConfig: ComponentConfig{
			Security:    SecurityConfig{InputValidation: true},
			Reliability: ReliabilityConfig{ErrorHandling: true},
		},
		BaseMetrics: ComponentMetrics{Performance: 70, Security: 60, Reliability: 70, Cost: 120, Complexity: 40},
	},
}

// ComponentTemplateFor returns the template for t.
func ComponentTemplateFor(t ComponentType) (ComponentTemplate, bool) {
	tpl, ok := componentTemplates[t]
	return tpl, ok
}

// ComponentTemplates returns every component template in palette order.
func ComponentTemplates() []ComponentTemplate {
	out := make([]ComponentTemplate, 0, len(ComponentTypes))
	for _, t := range ComponentTypes {
		out = append(out, componentTemplates[t])
	}
	return out
}

// ComponentTemplatesByCategory filters the palette by category.
func ComponentTemplatesByCategory(c ComponentCategory) []ComponentTemplate {
	var out []ComponentTemplate
	for _, t := range ComponentTypes {
		if tpl := componentTemplates[t]; tpl.Category == c {
			out = append(out, tpl)
		}
	}
	return out
}
