package metrics

// Metrics collection for command executions

import (
	"math"
	"sort"
	"sync"
	"time"
)

// Metric represents one finished command execution.
type Metric struct {
	Timestamp      time.Time
	Target         string
	Command        string
	Classification string // "fast" or "streaming"
	ExitCode       int
	DurationMs     float64
	Success        bool
	Error          string
}

// Sink collects and aggregates metrics.
type Sink struct {
	mu      sync.RWMutex
	metrics []Metric
}

// NewSink creates an empty sink.
func NewSink() *Sink {
	return &Sink{}
}

// Record appends one metric.
func (s *Sink) Record(m Metric) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = append(s.metrics, m)
}

// Count returns the number of recorded metrics.
func (s *Sink) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.metrics)
}

// Snapshot returns a copy of all recorded metrics.
func (s *Sink) Snapshot() []Metric {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Metric, len(s.metrics))
	copy(out, s.metrics)
	return out
}

// ClassStats aggregates the metrics of one classification.
type ClassStats struct {
	Count     int
	Successes int
	MinMs     float64
	AvgMs     float64
	P95Ms     float64
	MaxMs     float64
}

// Summary holds per-classification aggregates.
type Summary struct {
	Total     int
	Successes int
	ByClass   map[string]ClassStats
}

// Summary computes aggregates over everything recorded so far.
func (s *Sink) Summary() *Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := &Summary{ByClass: make(map[string]ClassStats)}
	durations := make(map[string][]float64)

	for _, m := range s.metrics {
		sum.Total++
		if m.Success {
			sum.Successes++
		}
		st := sum.ByClass[m.Classification]
		st.Count++
		if m.Success {
			st.Successes++
		}
		sum.ByClass[m.Classification] = st
		durations[m.Classification] = append(durations[m.Classification], m.DurationMs)
	}

	for class, ds := range durations {
		st := sum.ByClass[class]
		st.MinMs, st.AvgMs, st.P95Ms, st.MaxMs = distribution(ds)
		sum.ByClass[class] = st
	}

	return sum
}

// distribution returns min/avg/p95/max of ds.
func distribution(ds []float64) (min, avg, p95, max float64) {
	if len(ds) == 0 {
		return 0, 0, 0, 0
	}

	sorted := make([]float64, len(ds))
	copy(sorted, ds)
	sort.Float64s(sorted)

	min = sorted[0]
	max = sorted[len(sorted)-1]

	var total float64
	for _, d := range sorted {
		total += d
	}
	avg = total / float64(len(sorted))

	idx := int(math.Ceil(0.95*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	p95 = sorted[idx]
	return min, avg, p95, max
}
