package bench_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/example/go-opverify/internal/bench"
)

// ---------------------------------------------------------------------------
// Aggregation
// ---------------------------------------------------------------------------

func TestStats_MinMaxMean(t *testing.T) {
	durations := []time.Duration{
		100 * time.Microsecond,
		200 * time.Microsecond,
		300 * time.Microsecond,
	}
	s := bench.ComputeStats(durations)

	if s.Min != 100*time.Microsecond {
		t.Errorf("want min=100us, got %v", s.Min)
	}

	if s.Max != 300*time.Microsecond {
		t.Errorf("want max=300us, got %v", s.Max)
	}

	if s.Mean != 200*time.Microsecond {
		t.Errorf("want mean=200us, got %v", s.Mean)
	}
}

func TestStats_Empty(t *testing.T) {
	if s := bench.ComputeStats(nil); s != (bench.Stats{}) {
		t.Errorf("empty stats = %+v", s)
	}
}

func TestSummarize_ExcludesColdRun(t *testing.T) {
	runs := []bench.RunResult{
		{Index: 0, Cold: true, Reference: 10 * time.Millisecond, Accelerated: 10 * time.Millisecond},
		{Index: 1, Reference: 400 * time.Microsecond, Accelerated: 100 * time.Microsecond},
		{Index: 2, Reference: 400 * time.Microsecond, Accelerated: 100 * time.Microsecond},
	}

	s := bench.Summarize(runs)

	if s.Reference.Max != 400*time.Microsecond {
		t.Errorf("reference max = %v; cold run should be excluded", s.Reference.Max)
	}

	if s.MeanSpeedup < 3.999 || s.MeanSpeedup > 4.001 {
		t.Errorf("mean speedup = %.4f, want 4", s.MeanSpeedup)
	}
}

func TestSummarize_SingleRunKept(t *testing.T) {
	s := bench.Summarize([]bench.RunResult{{Cold: true, Reference: time.Millisecond, Accelerated: time.Millisecond}})
	if s.MeanSpeedup != 1 {
		t.Errorf("mean speedup = %v, want 1", s.MeanSpeedup)
	}
}

// ---------------------------------------------------------------------------
// Speedup
// ---------------------------------------------------------------------------

func TestSpeedup_Calculation(t *testing.T) {
	if got := bench.CalcSpeedup(time.Millisecond, 250*time.Microsecond); got != 4 {
		t.Errorf("want speedup 4, got %.4f", got)
	}

	if got := bench.CalcSpeedup(time.Millisecond, 0); got != 0 {
		t.Errorf("zero accelerated duration: want 0, got %.4f", got)
	}
}

func TestSpeedupThreshold(t *testing.T) {
	tests := []struct {
		name      string
		speedup   float64
		threshold float64
		wantErr   bool
	}{
		{"below", 0.8, 1.0, true},
		{"above", 2.0, 1.0, false},
		{"exactly at", 1.0, 1.0, false},
		{"disabled", 0.1, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := bench.CheckSpeedupThreshold(tt.speedup, tt.threshold)
			if (err != nil) != tt.wantErr {
				t.Errorf("CheckSpeedupThreshold(%v, %v) = %v, wantErr %v", tt.speedup, tt.threshold, err, tt.wantErr)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Output formatting
// ---------------------------------------------------------------------------

func sampleRuns() ([]bench.RunResult, bench.Summary) {
	runs := []bench.RunResult{
		{Index: 0, Cold: true, Reference: 800 * time.Microsecond, Accelerated: 400 * time.Microsecond, Speedup: 2},
		{Index: 1, Reference: 500 * time.Microsecond, Accelerated: 250 * time.Microsecond, Speedup: 2},
	}

	return runs, bench.Summarize(runs)
}

func TestFormatTable_ContainsHeaders(t *testing.T) {
	runs, s := sampleRuns()

	var buf strings.Builder
	bench.FormatTable(runs, s, &buf)
	out := strings.ToLower(buf.String())

	for _, want := range []string{"run", "cold", "ref(us)", "acc(us)", "speedup", "(mean)"} {
		if !strings.Contains(out, want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatJSON_IsValidJSON(t *testing.T) {
	runs, s := sampleRuns()

	var buf bytes.Buffer
	if err := bench.FormatJSON(runs, s, &buf); err != nil {
		t.Fatalf("FormatJSON: %v", err)
	}

	var decoded struct {
		Runs []struct {
			ReferenceUS float64 `json:"reference_us"`
			Cold        bool    `json:"cold"`
		} `json:"runs"`
		MeanSpeedup float64 `json:"mean_speedup"`
	}

	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}

	if len(decoded.Runs) != 2 || !decoded.Runs[0].Cold || decoded.Runs[0].ReferenceUS != 800 {
		t.Errorf("decoded runs = %+v", decoded.Runs)
	}

	if decoded.MeanSpeedup != 2 {
		t.Errorf("mean_speedup = %v, want 2", decoded.MeanSpeedup)
	}
}
