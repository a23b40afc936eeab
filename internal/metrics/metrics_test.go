package metrics

import (
	"strings"
	"testing"
	"time"
)

func sample(class string, durMs float64, exit int) Metric {
	return Metric{
		Timestamp:      time.Now(),
		Target:         "build-03",
		Command:        "uptime",
		Classification: class,
		ExitCode:       exit,
		DurationMs:     durMs,
		Success:        exit == 0,
	}
}

func TestSink_RecordAndCount(t *testing.T) {
	s := NewSink()
	if s.Count() != 0 {
		t.Errorf("Count() = %d, want 0", s.Count())
	}

	s.Record(sample("fast", 12, 0))
	s.Record(sample("streaming", 5400, 1))

	if s.Count() != 2 {
		t.Errorf("Count() = %d, want 2", s.Count())
	}
}

func TestSink_Summary(t *testing.T) {
	s := NewSink()
	s.Record(sample("fast", 10, 0))
	s.Record(sample("fast", 20, 0))
	s.Record(sample("fast", 30, 1))
	s.Record(sample("streaming", 4000, 0))

	sum := s.Summary()
	if sum.Total != 4 {
		t.Errorf("Total = %d, want 4", sum.Total)
	}
	if sum.Successes != 3 {
		t.Errorf("Successes = %d, want 3", sum.Successes)
	}

	fast, ok := sum.ByClass["fast"]
	if !ok {
		t.Fatal("missing fast class stats")
	}
	if fast.Count != 3 || fast.Successes != 2 {
		t.Errorf("fast stats = %+v, want count 3, successes 2", fast)
	}
	if fast.MinMs != 10 || fast.MaxMs != 30 {
		t.Errorf("fast min/max = %v/%v, want 10/30", fast.MinMs, fast.MaxMs)
	}
	if fast.AvgMs != 20 {
		t.Errorf("fast avg = %v, want 20", fast.AvgMs)
	}

	streaming := sum.ByClass["streaming"]
	if streaming.Count != 1 || streaming.P95Ms != 4000 {
		t.Errorf("streaming stats = %+v, want count 1, p95 4000", streaming)
	}
}

func TestDistribution_P95(t *testing.T) {
	ds := make([]float64, 100)
	for i := range ds {
		ds[i] = float64(i + 1)
	}
	_, _, p95, _ := distribution(ds)
	if p95 != 95 {
		t.Errorf("p95 = %v, want 95", p95)
	}
}

func TestSink_WriteCSV(t *testing.T) {
	s := NewSink()
	s.Record(sample("fast", 12.5, 0))
	m := sample("streaming", 900, 1)
	m.Error = "ssh: session closed"
	s.Record(m)

	var b strings.Builder
	if err := s.WriteCSV(&b); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}
	out := b.String()

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("CSV lines = %d, want header plus 2 rows:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "timestamp,target,command,classification") {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if !strings.Contains(lines[2], "ssh: session closed") {
		t.Errorf("row missing error column: %s", lines[2])
	}
}

func TestSink_FormatSummary(t *testing.T) {
	s := NewSink()
	s.Record(sample("fast", 10, 0))

	out := s.FormatSummary()
	if !strings.Contains(out, "Commands: 1 (1 succeeded)") {
		t.Errorf("FormatSummary() = %q", out)
	}
	if !strings.Contains(out, "fast") {
		t.Errorf("FormatSummary() missing class line: %q", out)
	}
}
