package client

import (
	"errors"
	"fmt"

	"github.com/rmax-ai/platformsim/pkg/catalog"
	"github.com/rmax-ai/platformsim/pkg/hierarchy"
	"github.com/rmax-ai/platformsim/pkg/scoring"
)

// Status represents the health check response.
type Status struct {
	Status string `json:"status"`
}

// ComponentRequest describes a component to add. Config nil means the
// template defaults for Type.
type ComponentRequest struct {
	ID          string                   `json:"id,omitempty"`
	Type        catalog.ComponentType    `json:"type"`
	Name        string                   `json:"name,omitempty"`
	Position    scoring.Position         `json:"position"`
	Config      *catalog.ComponentConfig `json:"config,omitempty"`
	Connections []string                 `json:"connections,omitempty"`
}

// SimulationControl changes the run state. Nil fields are left alone.
type SimulationControl struct {
	Running *bool `json:"running,omitempty"`
	Speed   *int  `json:"speed,omitempty"`
}

type nodeRequest struct {
	hierarchy.NodeSpec
	ParentID string `json:"parentId,omitempty"`
}

type nodeResponse struct {
	ID   string         `json:"id"`
	Node hierarchy.Node `json:"node"`
}

type checkpointRequest struct {
	Type        scoring.CheckpointType `json:"type"`
	ComponentID string                 `json:"componentId"`
}

type deployRequest struct {
	ApplicationID string `json:"applicationId"`
	TargetID      string `json:"targetId"`
	Environment   string `json:"environment,omitempty"`
}

// Resources is a node rollup as returned by the daemon.
type Resources struct {
	NodeID      string                     `json:"nodeId"`
	Deep        bool                       `json:"deep"`
	Resources   hierarchy.ResourceCapacity `json:"resources"`
	Utilization float64                    `json:"utilization"`
}

// Accept answers whether a node type fits below a parent.
type Accept struct {
	Accept bool   `json:"accept"`
	Reason string `json:"reason,omitempty"`
}

// Templates is the static component and node catalog.
type Templates struct {
	Components []catalog.ComponentTemplate `json:"components"`
	Nodes      []catalog.NodeTemplate      `json:"nodes"`
}

var (
	ErrNotFound    = errors.New("not found")
	ErrRejected    = errors.New("rejected")
	ErrBadRequest  = errors.New("bad request")
	ErrUnavailable = errors.New("unavailable")
)

// APIError is a non-2xx daemon response.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"error"`
	Reason     string `json:"reason,omitempty"`
	Field      string `json:"field,omitempty"`
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("platformsim: %d %s", e.StatusCode, e.Code)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	if e.Field != "" {
		msg += " field=" + e.Field
	}
	return msg
}

// Is maps status codes to the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == 404
	case ErrRejected:
		return e.StatusCode == 409 && e.Code == "rejected"
	case ErrBadRequest:
		return e.StatusCode == 400 || e.StatusCode == 422
	case ErrUnavailable:
		return e.StatusCode == 503
	}
	return false
}
