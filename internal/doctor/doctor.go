// Package doctor provides environment preflight checks for opverify.
package doctor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// BackendProbe describes one configured backend.
type BackendProbe struct {
	Name string
	// Available returns nil when the backend can run on this host.
	Available func() error
	// Detail is printed next to a passing probe, e.g. CPU features.
	Detail string
	// Optional backends report unavailability without failing the run.
	Optional bool
}

// RuntimeFunc returns the detected ONNX Runtime library path and version.
type RuntimeFunc func() (path, version string, err error)

// Config holds injectable dependencies for each doctor check.
type Config struct {
	Backends []BackendProbe
	// ORTRuntime locates the ONNX Runtime library.
	ORTRuntime RuntimeFunc
	// SkipORT skips the runtime check when no configured backend needs it.
	SkipORT bool
	// ORTOptional reports a missing runtime without failing, for setups
	// where ort is only an accelerator.
	ORTOptional bool
	// ORTAPIVersion is the C API version the ort backend requests.
	ORTAPIVersion uint32
	// Scenarios builds every registered scenario and returns how many built.
	Scenarios func() (int, error)
	// ReportPath, when set, must name a file in an existing directory.
	ReportPath string
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	// ---- backends ---------------------------------------------------------
	for _, b := range cfg.Backends {
		err := b.Available()

		switch {
		case err == nil && b.Detail != "":
			fmt.Fprintf(w, "%s backend %s: %s\n", PassMark, b.Name, b.Detail)
		case err == nil:
			fmt.Fprintf(w, "%s backend %s: available\n", PassMark, b.Name)
		case b.Optional:
			fmt.Fprintf(w, "%s backend %s: unavailable, scenarios will be skipped (%v)\n", PassMark, b.Name, err)
		default:
			res.fail(fmt.Sprintf("backend %s: %v", b.Name, err))
			fmt.Fprintf(w, "%s backend %s: %v\n", FailMark, b.Name, err)
		}
	}

	// ---- ONNX Runtime -----------------------------------------------------
	if cfg.SkipORT || cfg.ORTRuntime == nil {
		fmt.Fprintf(w, "%s onnx runtime: skipped\n", PassMark)
	} else {
		path, ver, err := cfg.ORTRuntime()

		switch {
		case err != nil && cfg.ORTOptional:
			fmt.Fprintf(w, "%s onnx runtime: not found, ort scenarios will be skipped (%v)\n", PassMark, err)
		case err != nil:
			res.fail(fmt.Sprintf("onnx runtime: %v", err))
			fmt.Fprintf(w, "%s onnx runtime: not found (%v)\n", FailMark, err)
		case ver == "" || ver == "unknown":
			fmt.Fprintf(w, "%s onnx runtime: %s (version unknown)\n", PassMark, path)
		default:
			if verErr := checkORTVersion(ver, cfg.ORTAPIVersion); verErr != nil {
				res.fail(fmt.Sprintf("onnx runtime %s: %v", ver, verErr))
				fmt.Fprintf(w, "%s onnx runtime %s: %v\n", FailMark, ver, verErr)
			} else {
				fmt.Fprintf(w, "%s onnx runtime: %s (%s)\n", PassMark, path, ver)
			}
		}
	}

	// ---- scenarios --------------------------------------------------------
	if cfg.Scenarios != nil {
		n, err := cfg.Scenarios()
		if err != nil {
			res.fail(fmt.Sprintf("scenarios: %v", err))
			fmt.Fprintf(w, "%s scenarios: %v\n", FailMark, err)
		} else {
			fmt.Fprintf(w, "%s scenarios: %d build and serialize\n", PassMark, n)
		}
	}

	// ---- report destination -----------------------------------------------
	if cfg.ReportPath != "" {
		dir := filepath.Dir(cfg.ReportPath)
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			res.fail(fmt.Sprintf("report directory %q does not exist", dir))
			fmt.Fprintf(w, "%s report directory %s: not found\n", FailMark, dir)
		} else {
			fmt.Fprintf(w, "%s report directory: %s\n", PassMark, dir)
		}
	}

	return res
}

// checkORTVersion returns an error if the runtime version ver ("1.23.1")
// cannot serve the C API version api. Runtime 1.N first ships API N.
func checkORTVersion(ver string, api uint32) error {
	major, minor, err := parseMajorMinor(ver)
	if err != nil {
		return fmt.Errorf("cannot parse %q: %w", ver, err)
	}

	if major != 1 {
		return fmt.Errorf("requires ONNX Runtime 1.x, got %d.%d", major, minor)
	}

	if api > 0 && minor < int(api) {
		return fmt.Errorf("C API %d requires ONNX Runtime >=1.%d, got 1.%d", api, api, minor)
	}

	return nil
}

// parseMajorMinor reads the leading "major.minor" of a runtime version such
// as "v1.23.0" or "1.20rc1".
func parseMajorMinor(ver string) (major, minor int, err error) {
	head, rest, ok := strings.Cut(strings.TrimPrefix(strings.TrimSpace(ver), "v"), ".")
	if !ok {
		return 0, 0, fmt.Errorf("unexpected version format %q", ver)
	}

	if end := strings.IndexFunc(rest, func(r rune) bool { return r < '0' || r > '9' }); end >= 0 {
		rest = rest[:end]
	}

	if major, err = strconv.Atoi(head); err != nil {
		return 0, 0, fmt.Errorf("bad major in %q: %w", ver, err)
	}

	if minor, err = strconv.Atoi(rest); err != nil {
		return 0, 0, fmt.Errorf("bad minor in %q: %w", ver, err)
	}

	return major, minor, nil
}
