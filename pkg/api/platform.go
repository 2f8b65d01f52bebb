package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/rmax-ai/platformsim/pkg/catalog"
	"github.com/rmax-ai/platformsim/pkg/hierarchy"
)

func (s *Server) handlePlatform(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.session.Platform())
}

func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		nodes := s.session.Platform().Nodes
		if layer := catalog.Layer(r.URL.Query().Get("layer")); layer != "" {
			filtered := make([]hierarchy.Node, 0, len(nodes))
			for _, n := range nodes {
				if n.Layer == layer {
					filtered = append(filtered, n)
				}
			}
			nodes = filtered
		}
		writeJSON(w, http.StatusOK, nodes)
	case http.MethodPost:
		s.addNode(w, r)
	default:
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
	}
}

func (s *Server) addNode(w http.ResponseWriter, r *http.Request) {
	var req NodeRequest
	if err := decodeBody(r, &req); err != nil {
		writeBodyError(w, err)
		return
	}
	id, err := s.session.AddNode(origin(r), req.NodeSpec, req.ParentID)
	if err != nil {
		writeRejection(w, err)
		return
	}
	node, _ := s.session.Hierarchy().Node(id)
	writeJSON(w, http.StatusCreated, NodeResponse{ID: id, Node: node})
}

// writeRejection answers a refused insertion with 409 and the reason.
func writeRejection(w http.ResponseWriter, err error) {
	reason, ok := hierarchy.ReasonOf(err)
	if !ok {
		http.Error(w, `{"error":"invalid_node"}`, http.StatusBadRequest)
		return
	}
	http.Error(w, fmt.Sprintf(`{"error":"rejected","reason":%q}`, reason), http.StatusConflict)
}

// handleNode serves /v1/nodes/{id} and its sub-resources: resources,
// health, select and accept.
func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/v1/nodes/")
	if len(parts) == 0 || len(parts) > 2 {
		http.NotFound(w, r)
		return
	}
	id := parts[0]
	if len(parts) == 2 {
		switch parts[1] {
		case "resources":
			s.nodeResources(w, r, id)
		case "health":
			s.nodeHealth(w, r, id)
		case "select":
			s.selectNode(w, r, id)
		case "accept":
			s.nodeAccept(w, r, id)
		case "events":
			s.writeEntityEvents(w, r, id)
		default:
			http.NotFound(w, r)
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		n, ok := s.session.Hierarchy().Node(id)
		if !ok {
			http.Error(w, `{"error":"node_not_found"}`, http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, n)
	case http.MethodPatch:
		var u hierarchy.NodeUpdate
		if err := decodeBody(r, &u); err != nil {
			writeBodyError(w, err)
			return
		}
		if !s.session.UpdateNode(origin(r), id, u) {
			http.Error(w, `{"error":"node_not_found"}`, http.StatusNotFound)
			return
		}
		n, _ := s.session.Hierarchy().Node(id)
		writeJSON(w, http.StatusOK, n)
	case http.MethodDelete:
		if !s.session.DeleteNode(origin(r), id) {
			http.Error(w, `{"error":"node_not_found"}`, http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
	}
}

// nodeResources returns the shallow rollup, or the subtree one with
// deep=true.
func (s *Server) nodeResources(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	deep := r.URL.Query().Get("deep") == "true"
	res, ok := s.session.NodeResources(id, deep)
	if !ok {
		http.Error(w, `{"error":"resources_not_found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, ResourcesResponse{
		NodeID:      id,
		Deep:        deep,
		Resources:   res,
		Utilization: res.Utilization(),
	})
}

func (s *Server) nodeHealth(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPut {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	var req HealthRequest
	if err := decodeBody(r, &req); err != nil {
		writeBodyError(w, err)
		return
	}
	if err := s.session.SetHealth(origin(r), id, req.Health); err != nil {
		switch {
		case errors.Is(err, hierarchy.ErrNodeNotFound):
			http.Error(w, `{"error":"node_not_found"}`, http.StatusNotFound)
		case errors.Is(err, hierarchy.ErrInvalidHealth):
			http.Error(w, `{"error":"invalid_health"}`, http.StatusBadRequest)
		default:
			http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
		}
		return
	}
	n, _ := s.session.Hierarchy().Node(id)
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) selectNode(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	if !s.session.SelectNode(id) {
		http.Error(w, `{"error":"node_not_found"}`, http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// nodeAccept answers whether a node of ?type= could be inserted below id.
func (s *Server) nodeAccept(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	typ := catalog.NodeType(r.URL.Query().Get("type"))
	if typ == "" {
		http.Error(w, `{"error":"missing_type"}`, http.StatusBadRequest)
		return
	}
	resp := AcceptResponse{Accept: true}
	if err := s.session.Hierarchy().CheckAccept(id, typ); err != nil {
		reason, _ := hierarchy.ReasonOf(err)
		resp = AcceptResponse{Reason: string(reason)}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeployments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.session.Hierarchy().Deployments())
	case http.MethodPost:
		var req DeployRequest
		if err := decodeBody(r, &req); err != nil {
			writeBodyError(w, err)
			return
		}
		d, err := s.session.DeployApplication(origin(r), req.ApplicationID, req.TargetID, req.Environment)
		if err != nil {
			http.Error(w, `{"error":"invalid_deployment"}`, http.StatusUnprocessableEntity)
			return
		}
		writeJSON(w, http.StatusCreated, d)
	default:
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleDeployment(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/v1/deployments/")
	if len(parts) != 1 {
		http.NotFound(w, r)
		return
	}
	id := parts[0]

	switch r.Method {
	case http.MethodGet:
		d, ok := s.session.Hierarchy().Deployment(id)
		if !ok {
			http.Error(w, `{"error":"deployment_not_found"}`, http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, d)
	case http.MethodPatch:
		var u hierarchy.DeploymentUpdate
		if err := decodeBody(r, &u); err != nil {
			writeBodyError(w, err)
			return
		}
		if u.Status != nil && !u.Status.Valid() {
			http.Error(w, `{"error":"invalid_status"}`, http.StatusBadRequest)
			return
		}
		if !s.session.UpdateDeployment(origin(r), id, u) {
			http.Error(w, `{"error":"deployment_not_found"}`, http.StatusNotFound)
			return
		}
		d, _ := s.session.Hierarchy().Deployment(id)
		writeJSON(w, http.StatusOK, d)
	case http.MethodDelete:
		if !s.session.RemoveDeployment(origin(r), id) {
			http.Error(w, `{"error":"deployment_not_found"}`, http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
	}
}

// handleTemplates returns the component and node catalogs.
func handleTemplates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	nodes := make([]catalog.NodeTemplate, 0, len(catalog.NodeTypes))
	for _, t := range catalog.NodeTypes {
		if tpl, ok := catalog.NodeTemplateFor(t); ok {
			nodes = append(nodes, tpl)
		}
	}
	writeJSON(w, http.StatusOK, TemplatesResponse{
		Components: catalog.ComponentTemplates(),
		Nodes:      nodes,
	})
}
