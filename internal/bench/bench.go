// Package bench provides the latency primitives for the opverify bench
// command: per-run invoke timings of the reference and accelerated contexts,
// aggregate statistics and the speedup gate.
package bench

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
)

// ---------------------------------------------------------------------------
// Run result and stats
// ---------------------------------------------------------------------------

// RunResult holds the invoke timings of one reference/accelerated pair.
type RunResult struct {
	Index       int
	Cold        bool // true for the first run (kernel warm-up)
	Reference   time.Duration
	Accelerated time.Duration
	Speedup     float64
}

// Stats holds aggregate timing statistics across all runs.
type Stats struct {
	Min  time.Duration
	Max  time.Duration
	Mean time.Duration
}

// ComputeStats calculates min, max and mean over a slice of durations.
func ComputeStats(durations []time.Duration) Stats {
	if len(durations) == 0 {
		return Stats{}
	}

	mn, mx := durations[0], durations[0]

	var sum time.Duration

	for _, d := range durations {
		mn = min(mn, d)
		mx = max(mx, d)
		sum += d
	}

	return Stats{
		Min:  mn,
		Max:  mx,
		Mean: sum / time.Duration(len(durations)),
	}
}

// Summary aggregates a bench run per side.
type Summary struct {
	Reference   Stats
	Accelerated Stats
	// MeanSpeedup is reference mean over accelerated mean, warm runs only
	// when more than one run was taken.
	MeanSpeedup float64
}

// Summarize computes per-side stats. The cold first run is excluded when
// warm runs exist.
func Summarize(runs []RunResult) Summary {
	warm := runs
	if len(runs) > 1 {
		warm = runs[1:]
	}

	ref := make([]time.Duration, len(warm))
	acc := make([]time.Duration, len(warm))

	for i, r := range warm {
		ref[i] = r.Reference
		acc[i] = r.Accelerated
	}

	s := Summary{Reference: ComputeStats(ref), Accelerated: ComputeStats(acc)}
	s.MeanSpeedup = CalcSpeedup(s.Reference.Mean, s.Accelerated.Mean)

	return s
}

// ---------------------------------------------------------------------------
// Speedup helpers
// ---------------------------------------------------------------------------

// CalcSpeedup returns reference_duration / accelerated_duration.
// Returns 0 if accDur is zero to avoid division by zero.
func CalcSpeedup(refDur, accDur time.Duration) float64 {
	if accDur <= 0 {
		return 0
	}

	return float64(refDur) / float64(accDur)
}

// CheckSpeedupThreshold returns an error if meanSpeedup < threshold.
// A threshold of 0 disables the gate.
func CheckSpeedupThreshold(meanSpeedup, threshold float64) error {
	if threshold <= 0 {
		return nil
	}

	if meanSpeedup < threshold {
		return fmt.Errorf("mean speedup %.3f is below threshold %.3f", meanSpeedup, threshold)
	}

	return nil
}

// ---------------------------------------------------------------------------
// Output formatters
// ---------------------------------------------------------------------------

func micros(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e3
}

// FormatTable writes a human-readable ASCII table of bench results to w.
func FormatTable(runs []RunResult, s Summary, w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Run", "Cold", "Ref(us)", "Acc(us)", "Speedup"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)

	for _, r := range runs {
		cold := ""
		if r.Cold {
			cold = "yes"
		}

		table.Append([]string{strconv.Itoa(r.Index + 1), cold, us(r.Reference), us(r.Accelerated), fmt.Sprintf("%.3f", r.Speedup)})
	}

	table.Append([]string{"(min)", "", us(s.Reference.Min), us(s.Accelerated.Min), ""})
	table.Append([]string{"(mean)", "", us(s.Reference.Mean), us(s.Accelerated.Mean), fmt.Sprintf("%.3f", s.MeanSpeedup)})
	table.Append([]string{"(max)", "", us(s.Reference.Max), us(s.Accelerated.Max), ""})
	table.Render()
}

func us(d time.Duration) string { return strconv.FormatFloat(micros(d), 'f', 1, 64) }

// jsonReport is the top-level JSON structure emitted by FormatJSON.
type jsonReport struct {
	Runs        []jsonRun `json:"runs"`
	Reference   jsonStats `json:"reference"`
	Accelerated jsonStats `json:"accelerated"`
	MeanSpeedup float64   `json:"mean_speedup"`
}

type jsonRun struct {
	Index         int     `json:"index"`
	Cold          bool    `json:"cold"`
	ReferenceUS   float64 `json:"reference_us"`
	AcceleratedUS float64 `json:"accelerated_us"`
	Speedup       float64 `json:"speedup"`
}

type jsonStats struct {
	MinUS  float64 `json:"min_us"`
	MeanUS float64 `json:"mean_us"`
	MaxUS  float64 `json:"max_us"`
}

func toJSONStats(s Stats) jsonStats {
	return jsonStats{MinUS: micros(s.Min), MeanUS: micros(s.Mean), MaxUS: micros(s.Max)}
}

// FormatJSON writes a JSON report of bench results to w.
func FormatJSON(runs []RunResult, s Summary, w io.Writer) error {
	jr := jsonReport{
		Runs:        make([]jsonRun, len(runs)),
		Reference:   toJSONStats(s.Reference),
		Accelerated: toJSONStats(s.Accelerated),
		MeanSpeedup: s.MeanSpeedup,
	}

	for i, r := range runs {
		jr.Runs[i] = jsonRun{
			Index:         r.Index,
			Cold:          r.Cold,
			ReferenceUS:   micros(r.Reference),
			AcceleratedUS: micros(r.Accelerated),
			Speedup:       r.Speedup,
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(jr)
}
