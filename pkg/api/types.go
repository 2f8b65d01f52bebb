package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/rmax-ai/platformsim/pkg/catalog"
	"github.com/rmax-ai/platformsim/pkg/hierarchy"
	"github.com/rmax-ai/platformsim/pkg/scoring"
)

var validate = validator.New()

// ComponentRequest matches the POST /v1/components body. A missing config
// falls back to the template defaults for the type.
type ComponentRequest struct {
	ID          string                   `json:"id,omitempty"`
	Type        catalog.ComponentType    `json:"type" validate:"required"`
	Name        string                   `json:"name,omitempty"`
	Position    scoring.Position         `json:"position"`
	Config      *catalog.ComponentConfig `json:"config,omitempty"`
	Connections []string                 `json:"connections,omitempty"`
}

// SimulationControl matches the PATCH /v1/simulation body.
type SimulationControl struct {
	Running *bool `json:"running,omitempty"`
	Speed   *int  `json:"speed,omitempty" validate:"omitempty,oneof=1 2 4"`
}

// CheckpointRequest matches the POST /v1/checkpoints/evaluate body.
type CheckpointRequest struct {
	Type        scoring.CheckpointType `json:"type" validate:"required"`
	ComponentID string                 `json:"componentId" validate:"required"`
}

// NodeRequest matches the POST /v1/nodes body.
type NodeRequest struct {
	hierarchy.NodeSpec
	ParentID string `json:"parentId,omitempty"`
}

// NodeResponse is returned by POST /v1/nodes.
type NodeResponse struct {
	ID   string         `json:"id"`
	Node hierarchy.Node `json:"node"`
}

type HealthRequest struct {
	Health hierarchy.Health `json:"health" validate:"required"`
}

// AcceptResponse answers GET /v1/nodes/{id}/accept.
type AcceptResponse struct {
	Accept bool   `json:"accept"`
	Reason string `json:"reason,omitempty"`
}

// DeployRequest matches the POST /v1/deployments body.
type DeployRequest struct {
	ApplicationID string `json:"applicationId" validate:"required"`
	TargetID      string `json:"targetId" validate:"required"`
	Environment   string `json:"environment,omitempty"`
}

// ResourcesResponse answers GET /v1/nodes/{id}/resources.
type ResourcesResponse struct {
	NodeID      string                     `json:"nodeId"`
	Deep        bool                       `json:"deep"`
	Resources   hierarchy.ResourceCapacity `json:"resources"`
	Utilization float64                    `json:"utilization"`
}

// ResolveResponse answers POST /v1/issues/{id}/resolve.
type ResolveResponse struct {
	IssueID   string `json:"issueId"`
	Scheduled bool   `json:"scheduled"`
}

// TemplatesResponse lists the static catalog.
type TemplatesResponse struct {
	Components []catalog.ComponentTemplate `json:"components"`
	Nodes      []catalog.NodeTemplate      `json:"nodes"`
}

var errInvalidBody = errors.New("invalid_json_body")

// decodeBody parses and validates a JSON request body.
func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errInvalidBody
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("validation: %w", err)
	}
	return nil
}

// writeBodyError maps a decodeBody failure to a 400.
func writeBodyError(w http.ResponseWriter, err error) {
	if errors.Is(err, errInvalidBody) {
		http.Error(w, `{"error":"invalid_json_body"}`, http.StatusBadRequest)
		return
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		http.Error(w, fmt.Sprintf(`{"error":"invalid_field","field":%q}`, verrs[0].Field()), http.StatusBadRequest)
		return
	}
	http.Error(w, `{"error":"invalid_request"}`, http.StatusBadRequest)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
