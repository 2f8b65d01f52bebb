package reports

import (
	"context"
	"io"
	"time"

	"github.com/rmax-ai/platformsim/pkg/hierarchy"
	"github.com/rmax-ai/platformsim/pkg/scoring"
	"github.com/rmax-ai/platformsim/pkg/store"
)

type ReportType string

const (
	ReportTypeIssues      ReportType = "issues"
	ReportTypeUtilization ReportType = "utilization"
	ReportTypeEvents      ReportType = "events"
)

type ReportParams struct {
	Start   time.Time
	End     time.Time
	Filters map[string]string
}

func (p ReportParams) filter(key string) string {
	if p.Filters == nil {
		return ""
	}
	return p.Filters[key]
}

// Source is the data a report generator reads. *session.Session satisfies it.
type Source interface {
	Simulation() scoring.SimulationState
	Platform() hierarchy.PlatformState
	QueryEvents(ctx context.Context, f store.EventFilter) ([]*store.Event, error)
}

type Generator interface {
	Generate(ctx context.Context, params ReportParams) (io.Reader, error)
}
