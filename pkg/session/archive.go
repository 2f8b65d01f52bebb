package session

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rmax-ai/platformsim/pkg/blob"
	"github.com/rmax-ai/platformsim/pkg/store"
)

// archiveEvents writes every journal event older than cutoff to b as one
// gzipped JSON-lines blob keyed
// events/YYYY/MM/DD/<first unix>_<last unix>_<uuid>.jsonl.gz.
// It returns the key and the number of events written.
func (s *Session) archiveEvents(ctx context.Context, b blob.Store, cutoff time.Time) (string, int, error) {
	// the journal filter's upper bound is inclusive, pruning is strict
	events, err := s.journal.QueryEvents(ctx, store.EventFilter{To: cutoff.Add(-time.Nanosecond)})
	if err != nil {
		return "", 0, fmt.Errorf("failed to read events to archive: %w", err)
	}
	if len(events) == 0 {
		return "", 0, nil
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	enc := json.NewEncoder(gz)
	for _, evt := range events {
		if err := enc.Encode(evt); err != nil {
			gz.Close()
			return "", 0, fmt.Errorf("failed to encode event %s: %w", evt.EventID, err)
		}
	}
	if err := gz.Close(); err != nil {
		return "", 0, fmt.Errorf("failed to close gzip writer: %w", err)
	}

	first, last := events[0].TsEvent.UTC(), events[len(events)-1].TsEvent.UTC()
	key := fmt.Sprintf("events/%04d/%02d/%02d/%d_%d_%s.jsonl.gz",
		first.Year(), first.Month(), first.Day(),
		first.Unix(), last.Unix(), uuid.NewString())
	if err := b.Put(ctx, key, &buf); err != nil {
		return "", 0, fmt.Errorf("failed to upload archive: %w", err)
	}
	return key, len(events), nil
}
