// Package report ranks process samples for display.
package report

import (
	"sort"

	"github.com/srodi/procguard/pkg/types"
)

// TopN returns at most n samples ordered by key, highest first. Absent values
// rank as 0 and equal keys keep their enumeration order. The input is not modified.
func TopN(samples []types.ProcessSample, n int, key types.SortKey) []types.ProcessSample {
	if n <= 0 || len(samples) == 0 {
		return nil
	}
	ranked := make([]types.ProcessSample, len(samples))
	copy(ranked, samples)
	sort.SliceStable(ranked, func(i, j int) bool { return key.Value(ranked[i]) > key.Value(ranked[j]) })
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
