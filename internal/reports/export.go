// SPDX-License-Identifier: MIT

package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/renameio/v2"

	"github.com/Azure-Samples/content-safety/internal/metrics"
)

// ExportFile is the JSON document written by Export.
type ExportFile struct {
	GeneratedAt time.Time  `json:"generatedAt"`
	Summary     Summary    `json:"summary"`
	Decisions   []Decision `json:"decisions"`
}

// Export writes a summary plus the most recent decisions since the given
// time to path as JSON. The write is atomic so a concurrent reader never
// sees a partial file.
func (s *Store) Export(ctx context.Context, path string, since time.Time) error {
	sum, err := s.Summarize(ctx, since)
	if err != nil {
		metrics.RecordReportExport("error")
		return err
	}
	decisions, err := s.Recent(ctx, 500, 0)
	if err != nil {
		metrics.RecordReportExport("error")
		return err
	}

	doc := ExportFile{
		GeneratedAt: time.Now().UTC(),
		Summary:     sum,
		Decisions:   decisions,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		metrics.RecordReportExport("error")
		return fmt.Errorf("reports: marshal export: %w", err)
	}

	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		metrics.RecordReportExport("error")
		return fmt.Errorf("reports: write export: %w", err)
	}

	metrics.RecordReportExport("success")
	return nil
}
