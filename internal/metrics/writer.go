package metrics

// Metrics output (CSV) and summary formatting

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// WriteCSV writes every recorded metric to w as CSV with a header row.
func (s *Sink) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	header := []string{
		"timestamp",
		"target",
		"command",
		"classification",
		"exit_code",
		"duration_ms",
		"success",
		"error",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}

	for _, m := range s.Snapshot() {
		row := []string{
			m.Timestamp.Format(time.RFC3339Nano),
			m.Target,
			m.Command,
			m.Classification,
			strconv.Itoa(m.ExitCode),
			strconv.FormatFloat(m.DurationMs, 'f', 3, 64),
			strconv.FormatBool(m.Success),
			m.Error,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write CSV row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the recorded metrics to a CSV file at path.
func (s *Sink) WriteCSVFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create CSV file: %w", err)
	}
	defer f.Close()

	if err := s.WriteCSV(f); err != nil {
		return err
	}
	return f.Sync()
}

// FormatSummary renders the summary as a short human-readable block.
func (s *Sink) FormatSummary() string {
	sum := s.Summary()

	var b strings.Builder
	fmt.Fprintf(&b, "Commands: %d (%d succeeded)\n", sum.Total, sum.Successes)

	classes := make([]string, 0, len(sum.ByClass))
	for class := range sum.ByClass {
		classes = append(classes, class)
	}
	sort.Strings(classes)

	for _, class := range classes {
		st := sum.ByClass[class]
		fmt.Fprintf(&b, "  %-10s count=%d ok=%d min=%.1fms avg=%.1fms p95=%.1fms max=%.1fms\n",
			class, st.Count, st.Successes, st.MinMs, st.AvgMs, st.P95Ms, st.MaxMs)
	}

	return b.String()
}
