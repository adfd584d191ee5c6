package suite

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Summary counts results by status.
type Summary struct {
	Pass  int `json:"pass"`
	Fail  int `json:"fail"`
	Skip  int `json:"skip"`
	Error int `json:"error"`
	// ReferenceOnly counts passing scenarios no accelerated backend took
	// part in.
	ReferenceOnly int `json:"reference_only"`
}

// OK reports whether nothing failed or errored.
func (s Summary) OK() bool { return s.Fail == 0 && s.Error == 0 }

// Summarize counts results by status.
func Summarize(results []Result) Summary {
	var s Summary

	for _, r := range results {
		switch r.Status {
		case StatusPass:
			s.Pass++

			if r.ReferenceOnly() {
				s.ReferenceOnly++
			}
		case StatusFail:
			s.Fail++
		case StatusSkip:
			s.Skip++
		default:
			s.Error++
		}
	}

	return s
}

// Report is the JSON document written by a verification run.
type Report struct {
	RunID       string    `json:"run_id"`
	StartedAt   time.Time `json:"started_at"`
	Host        string    `json:"host,omitempty"`
	Reference   []string  `json:"reference"`
	Accelerated []string  `json:"accelerated"`
	Summary     Summary   `json:"summary"`
	Results     []Result  `json:"results"`
}

// SaveReport writes report to path as indented JSON.
func SaveReport(path string, report Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	return nil
}

// LoadReport reads a report written by SaveReport.
func LoadReport(path string) (Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Report{}, fmt.Errorf("read report: %w", err)
	}

	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return Report{}, fmt.Errorf("decode report: %w", err)
	}

	return report, nil
}
