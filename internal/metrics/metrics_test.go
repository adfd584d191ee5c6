package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordScenario(t *testing.T) {
	m := New()

	m.RecordScenario("pass", 10*time.Millisecond)
	m.RecordScenario("pass", 20*time.Millisecond)
	m.RecordScenario("fail", 5*time.Millisecond)

	if got := testutil.ToFloat64(m.ScenariosTotal.WithLabelValues("pass")); got != 2 {
		t.Fatalf("pass count = %v, want 2", got)
	}

	if got := testutil.ToFloat64(m.ScenariosTotal.WithLabelValues("fail")); got != 1 {
		t.Fatalf("fail count = %v, want 1", got)
	}
}

func TestRecordComparison(t *testing.T) {
	m := New()

	m.RecordComparison("abs", "expected/accelerated", 0)
	m.RecordComparison("abs", "reference/accelerated", 3)

	if got := testutil.ToFloat64(m.ComparisonsTotal.WithLabelValues("reference/accelerated", "fail")); got != 1 {
		t.Fatalf("fail comparisons = %v, want 1", got)
	}

	if got := testutil.ToFloat64(m.MismatchedElements.WithLabelValues("abs")); got != 3 {
		t.Fatalf("mismatched = %v, want 3", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	m.RecordScenario("pass", time.Second)
	m.RecordComparison("x", "y", 1)
	m.RecordInvoke("cpuref", time.Second)
	m.RecordAllocation(1)

	if err := m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")); err != nil {
		t.Fatalf("WriteTextfile on nil: %v", err)
	}
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.RecordInvoke("cpuacc", 2*time.Millisecond)
	m.RecordAllocation(4096)

	path := filepath.Join(t.TempDir(), "opverify.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	for _, want := range []string{"opverify_invoke_duration_seconds", "opverify_allocated_tensor_bytes 4096"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("textfile missing %q:\n%s", want, data)
		}
	}
}
