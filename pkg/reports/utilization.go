package reports

import (
	"context"
	"io"
	"strconv"

	"github.com/rmax-ai/platformsim/pkg/catalog"
)

// UtilizationReport lists every resource-bearing node with its capacity,
// direct allocation and running deployment count.
type UtilizationReport struct {
	src Source
}

func NewUtilizationReport(src Source) *UtilizationReport {
	return &UtilizationReport{src: src}
}

// Generate writes one row per node that has resources. Filter: layer.
func (r *UtilizationReport) Generate(ctx context.Context, params ReportParams) (io.Reader, error) {
	st := r.src.Platform()

	deployments := make(map[string]int)
	for _, d := range st.Deployments {
		deployments[d.TargetID]++
	}
	layer := catalog.Layer(params.filter("layer"))

	headers := []string{"node_id", "name", "layer", "type", "parent_id", "health",
		"cpu", "allocated_cpu", "memory", "allocated_memory", "storage", "allocated_storage",
		"utilization_pct", "deployments"}
	rows := make([][]string, 0, len(st.Nodes))
	for _, n := range st.Nodes {
		if n.Resources == nil {
			continue
		}
		if layer != "" && n.Layer != layer {
			continue
		}
		res := n.Resources
		rows = append(rows, []string{
			n.ID,
			n.Name,
			string(n.Layer),
			string(n.Type),
			n.ParentID,
			string(n.Status.Health),
			formatFloat(res.CPU),
			formatFloat(res.AllocatedCPU),
			formatFloat(res.Memory),
			formatFloat(res.AllocatedMemory),
			formatFloat(res.Storage),
			formatFloat(res.AllocatedStorage),
			formatFloat(res.Utilization()),
			strconv.Itoa(deployments[n.ID]),
		})
	}
	return writeCSV(headers, rows)
}
