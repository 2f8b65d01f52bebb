package scenario

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/rmax-ai/platformsim/pkg/scoring"
)

var validate = validator.New()

var ErrNotFound = errors.New("scenario not found")

// Validate checks the scenario fields, component types, metric names and
// that component ids are unique.
func (s Scenario) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("scenario %q: %w", s.ID, err)
	}
	seen := make(map[string]bool)
	for _, c := range s.InitialComponents {
		if c.ID == "" {
			return fmt.Errorf("scenario %q: component without id", s.ID)
		}
		if seen[c.ID] {
			return fmt.Errorf("scenario %q: duplicate component %q", s.ID, c.ID)
		}
		seen[c.ID] = true
		if !c.Type.Valid() {
			return fmt.Errorf("scenario %q: component %q: unknown type %q", s.ID, c.ID, c.Type)
		}
	}
	var probe scoring.GlobalMetrics
	for _, o := range s.Objectives {
		if _, ok := probe.Value(o.TargetMetric); !ok {
			return fmt.Errorf("scenario %q: objective %q: unknown metric %q", s.ID, o.ID, o.TargetMetric)
		}
	}
	return nil
}

// Parse decodes one scenario from YAML or JSON, chosen by ext
// (".json" or anything else for YAML).
func Parse(data []byte, ext string) (Scenario, error) {
	var s Scenario
	if strings.EqualFold(ext, ".json") {
		if err := json.Unmarshal(data, &s); err != nil {
			return Scenario{}, fmt.Errorf("decode scenario json: %w", err)
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&s); err != nil {
			return Scenario{}, fmt.Errorf("decode scenario yaml: %w", err)
		}
	}
	for i := range s.InitialComponents {
		if s.InitialComponents[i].Connections == nil {
			s.InitialComponents[i].Connections = []string{}
		}
	}
	if err := s.Validate(); err != nil {
		return Scenario{}, err
	}
	return s, nil
}

// Load reads a scenario file.
func Load(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read scenario: %w", err)
	}
	s, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return Scenario{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return s, nil
}

// LoadDir reads every .yaml, .yml and .json file in dir.
func LoadDir(dir string) ([]Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenario dir: %w", err)
	}
	var out []Scenario
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml", ".json":
		default:
			continue
		}
		s, err := Load(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Registry indexes scenarios by id. Built-ins are always present; files
// may add new scenarios or replace a built-in with the same id.
type Registry struct {
	mu    sync.RWMutex
	byID  map[string]Scenario
	order []string
}

func NewRegistry() *Registry {
	r := &Registry{byID: make(map[string]Scenario)}
	for _, s := range Builtins() {
		r.put(s)
	}
	return r
}

// Register adds or replaces s after validating it.
func (r *Registry) Register(s Scenario) error {
	if err := s.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.put(s.clone())
	return nil
}

func (r *Registry) put(s Scenario) {
	if _, ok := r.byID[s.ID]; !ok {
		r.order = append(r.order, s.ID)
	}
	r.byID[s.ID] = s
}

func (r *Registry) Get(id string) (Scenario, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	if !ok {
		return Scenario{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.clone(), nil
}

// List returns every scenario, built-ins first in their fixed order and
// file-loaded ones after, sorted by id.
func (r *Registry) List() []Scenario {
	r.mu.RLock()
	defer r.mu.RUnlock()
	builtinCount := len(builtins)
	extra := append([]string(nil), r.order[min(builtinCount, len(r.order)):]...)
	sort.Strings(extra)
	ids := append(append([]string(nil), r.order[:min(builtinCount, len(r.order))]...), extra...)
	out := make([]Scenario, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.byID[id].clone())
	}
	return out
}
