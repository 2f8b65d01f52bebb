package reports

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rmax-ai/platformsim/pkg/store"
)

// EventsReport exports the session journal for a time range.
type EventsReport struct {
	src Source
}

func NewEventsReport(src Source) *EventsReport {
	return &EventsReport{src: src}
}

// Generate writes one row per journal event, oldest first. Filters:
// engine, entity_id, event_type.
func (r *EventsReport) Generate(ctx context.Context, params ReportParams) (io.Reader, error) {
	filter := store.EventFilter{
		From:     params.Start,
		To:       params.End,
		Engine:   store.Engine(params.filter("engine")),
		EntityID: params.filter("entity_id"),
	}
	if t := params.filter("event_type"); t != "" {
		filter.EventTypes = []store.EventType{store.EventType(t)}
	}

	events, err := r.src.QueryEvents(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}

	headers := []string{"timestamp", "event_id", "event_type", "engine", "entity_id", "origin_kind", "origin_id", "payload"}
	rows := make([][]string, 0, len(events))
	for _, evt := range events {
		rows = append(rows, []string{
			evt.TsEvent.Format(time.RFC3339),
			string(evt.EventID),
			string(evt.EventType),
			string(evt.Subject.Engine),
			evt.Subject.EntityID,
			evt.Source.OriginKind,
			evt.Source.OriginID,
			string(evt.Payload),
		})
	}
	return writeCSV(headers, rows)
}
