package gate

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrMetricMismatch is returned when a tracked metric is missing from either
// metric set. The decision itself never fails; ambiguity is a structural
// error surfaced before deciding.
var ErrMetricMismatch = errors.New("metric mismatch")

// MetricSet is a named collection of evaluation scores, immutable once
// recorded. Values are typically in [0, 1].
type MetricSet map[string]float64

// Clone returns an independent copy.
func (m MetricSet) Clone() MetricSet {
	cp := make(MetricSet, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

// Names returns the metric names in ascending order.
func (m MetricSet) Names() []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Missing returns the tracked names absent from the set, ascending.
func (m MetricSet) Missing(tracked []string) []string {
	var missing []string
	for _, name := range tracked {
		if _, ok := m[name]; !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

func (m MetricSet) String() string {
	parts := make([]string, 0, len(m))
	for _, name := range m.Names() {
		parts = append(parts, fmt.Sprintf("%s=%.4f", name, m[name]))
	}
	return strings.Join(parts, " ")
}
