package telemetry

import (
	"context"
	"maps"
	"sort"
	"strings"

	"github.com/grafana/pyroscope-go"
)

// Profiling label keys. Values must stay low cardinality; the
// Pyroscope backend keys series on every distinct combination.
const (
	// ProfilingLabelController is the handler or resource name.
	ProfilingLabelController = "controller"
	// ProfilingLabelRoute is the matched route pattern.
	ProfilingLabelRoute = "route"
	// ProfilingLabelMethod is the HTTP method.
	ProfilingLabelMethod = "method"
	// ProfilingLabelSpecialty is the clinical specialty of a session.
	// The protocol catalog stays small, so the key is safe to use.
	ProfilingLabelSpecialty = "specialty"
	// ProfilingLabelOperation names an application operation such as
	// "analyze_turn".
	ProfilingLabelOperation = "operation"
)

// MaxLabelValueLength caps label values before they reach Pyroscope.
const MaxLabelValueLength = 128

// highCardinalityLabels are per-request identifiers that grow without
// bound. sanitizeLabels drops them so a mislabeled call site cannot
// blow up series count.
var highCardinalityLabels = map[string]bool{
	"subject_id": true,
	"request_id": true,
	"trace_id":   true,
	"span_id":    true,
	"session_id": true,
}

// WithProfilingLabels runs fn with the given labels attached to the
// profiling context. pyroscope.TagWrapper rides Go's native pprof
// labels, so the labels also show up in standard pprof output.
//
// The map is copied before use; callers may reuse or mutate it after
// the call returns.
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := sanitizeLabels(labels)
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// OperationLabels builds the label set for a named operation, merging
// in any extra labels.
func OperationLabels(operation string, extraLabels map[string]string) map[string]string {
	labels := make(map[string]string, len(extraLabels)+1)
	labels[ProfilingLabelOperation] = operation
	maps.Copy(labels, extraLabels)
	return labels
}

// sanitizeLabels flattens a label map into pyroscope's pair format.
// Empty entries and high-cardinality keys are dropped, overlong values
// truncated, and keys normalized to snake_case. Keys are sorted so the
// output is deterministic.
func sanitizeLabels(labels map[string]string) []string {
	if len(labels) == 0 {
		return nil
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(labels)*2)
	for _, key := range keys {
		value := labels[key]
		if key == "" || value == "" || highCardinalityLabels[key] {
			continue
		}
		if len(value) > MaxLabelValueLength {
			value = value[:MaxLabelValueLength]
		}
		key = sanitizeLabelKey(key)
		if key == "" {
			continue
		}
		pairs = append(pairs, key, value)
	}
	return pairs
}

// sanitizeLabelKey lowercases a key and strips everything that is not
// alphanumeric or underscore. Spaces and dashes become underscores.
func sanitizeLabelKey(key string) string {
	key = strings.ToLower(key)
	key = strings.ReplaceAll(key, " ", "_")
	key = strings.ReplaceAll(key, "-", "_")

	out := make([]byte, 0, len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_' {
			out = append(out, c)
		}
	}
	return string(out)
}
