package reports

import (
	"context"
	"io"
	"strconv"

	"github.com/rmax-ai/platformsim/pkg/scoring"
)

// IssuesReport lists the active issues of the simulation with their owning
// component and severity weight.
type IssuesReport struct {
	src Source
}

func NewIssuesReport(src Source) *IssuesReport {
	return &IssuesReport{src: src}
}

// Generate writes one row per active issue. Filters: severity, component_id.
// The time range is ignored since issues carry no timestamps.
func (r *IssuesReport) Generate(ctx context.Context, params ReportParams) (io.Reader, error) {
	st := r.src.Simulation()

	names := make(map[string]string, len(st.Components))
	for _, c := range st.Components {
		names[c.ID] = c.Name
	}
	resolving := make(map[string]bool, len(st.Resolving))
	for _, id := range st.Resolving {
		resolving[id] = true
	}

	severity := scoring.Severity(params.filter("severity"))
	component := params.filter("component_id")

	headers := []string{"issue_id", "component_id", "component_name", "type", "severity", "multiplier", "title", "time_to_resolve_h", "cost", "resolving"}
	rows := make([][]string, 0, len(st.Issues))
	for _, is := range st.Issues {
		if severity != "" && is.Severity != severity {
			continue
		}
		if component != "" && is.Component != component {
			continue
		}
		rows = append(rows, []string{
			is.ID,
			is.Component,
			names[is.Component],
			string(is.Type),
			string(is.Severity),
			formatFloat(is.Severity.Multiplier()),
			is.Title,
			formatFloat(is.TimeToResolve),
			formatFloat(is.Cost),
			strconv.FormatBool(resolving[is.ID]),
		})
	}
	return writeCSV(headers, rows)
}
