package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// WriteCSV renders one row per test case at path.
func WriteCSV(path string, r *RunReport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"id", "outcome", "duration_ms", "error"}); err != nil {
		return err
	}
	for _, t := range r.Tests {
		row := []string{t.ID, t.Outcome, strconv.FormatInt(t.DurationMs, 10), t.Error}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
