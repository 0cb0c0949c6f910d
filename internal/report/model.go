package report

import (
	"time"

	"github.com/tturner/fixtest/internal/controller"
)

// RunReport is the serializable summary of a harness run.
type RunReport struct {
	GeneratedAt    string       `json:"generated_at"`
	FixtestVersion string       `json:"fixtest_version,omitempty"`
	FixtestCommit  string       `json:"fixtest_commit,omitempty"`
	ConfigPath     string       `json:"config_path,omitempty"`
	Tests          []TestRecord `json:"tests"`
	Passed         int          `json:"passed"`
	Failed         int          `json:"failed"`
	Interrupted    int          `json:"interrupted"`
}

// TestRecord captures the outcome of a single test case.
type TestRecord struct {
	ID          string `json:"id"`
	Description string `json:"description,omitempty"`
	Outcome     string `json:"outcome"`
	Error       string `json:"error,omitempty"`
	DurationMs  int64  `json:"duration_ms"`
}

// Build assembles a RunReport from per-test results. Descriptions may be
// nil when the caller has none to attach.
func Build(configPath, version, commit string, results []controller.Result, descriptions map[string]string) *RunReport {
	r := &RunReport{
		GeneratedAt:    time.Now().UTC().Format(time.RFC3339),
		FixtestVersion: version,
		FixtestCommit:  commit,
		ConfigPath:     configPath,
	}
	for _, res := range results {
		rec := TestRecord{
			ID:         res.TestID,
			Outcome:    res.Outcome.String(),
			DurationMs: res.Duration.Milliseconds(),
		}
		if descriptions != nil {
			rec.Description = descriptions[res.TestID]
		}
		if res.Err != nil {
			rec.Error = res.Err.Error()
		}
		r.Tests = append(r.Tests, rec)
		switch res.Outcome {
		case controller.Passed:
			r.Passed++
		case controller.Failed:
			r.Failed++
		case controller.Interrupted:
			r.Interrupted++
		}
	}
	return r
}
