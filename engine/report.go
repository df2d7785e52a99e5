package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"fizil/aggregator"
)

// Report is the JSON summary written to the findings folder at the end
// of a run. This is ambient tooling, not part of the core's decision
// logic: apart from the start and finish times, the aggregator's
// Summary already carries everything it contains.
type Report struct {
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	TestsRun       int       `json:"tests_run"`
	PathsFound     int       `json:"paths_found"`
	FindingsSaved  int       `json:"findings_saved"`
	FindingsFolder string    `json:"findings_folder"`
}

// NewReport builds a Report from an aggregator.Summary and the run's
// start time.
func NewReport(summary aggregator.Summary, startedAt time.Time) Report {
	return Report{
		StartedAt:      startedAt,
		FinishedAt:     time.Now(),
		TestsRun:       summary.TestsRun,
		PathsFound:     summary.PathsFound,
		FindingsSaved:  summary.FindingsSaved,
		FindingsFolder: summary.FindingsFolder,
	}
}

// WriteFile writes the report as indented JSON to <findings folder>/report.json.
func (r Report) WriteFile() error {
	path := r.FindingsFolder + "/report.json"
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("engine: create report file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
