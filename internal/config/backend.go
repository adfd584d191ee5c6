package config

import (
	"fmt"
	"strings"
)

const (
	BackendReference = "cpuref"
	BackendCPUAcc    = "cpuacc"
	BackendORT       = "ort"
)

func NormalizeBackend(raw string) (string, error) {
	backend := strings.ToLower(strings.TrimSpace(raw))
	switch backend {
	case BackendReference, BackendCPUAcc, BackendORT:
		return backend, nil
	case "ref", "reference":
		return BackendReference, nil
	case "acc", "cpu":
		return BackendCPUAcc, nil
	case "onnx", "onnxruntime":
		return BackendORT, nil
	default:
		return "", fmt.Errorf(
			"invalid backend %q (expected %s|%s|%s)",
			raw,
			BackendReference,
			BackendCPUAcc,
			BackendORT,
		)
	}
}

// NormalizeBackends canonicalises a preference list, dropping duplicates
// and keeping first occurrences.
func NormalizeBackends(raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	seen := map[string]bool{}

	for _, r := range raw {
		b, err := NormalizeBackend(r)
		if err != nil {
			return nil, err
		}

		if !seen[b] {
			seen[b] = true
			out = append(out, b)
		}
	}

	return out, nil
}
