// Package mathx provides the Round function from go1.10+ for go1.9.  It is not exactly the same, but is fine for our uses
package mathx

import (
	"math"
	"sort"
)

// Round rounds a float to the nearest "unit" (0.1 for tenth, 0.01 for hundredth, and so on).
func Round(x, unit float64) float64 {
	return float64(int64(x/unit+0.5)) * unit
}

// Percentile returns the value at the given percentile (0..100) of a
// sample population, using the nearest-rank method. samples is sorted in
// place. Percentile of an empty slice is 0.
func Percentile(samples []uint16, pct float64) uint16 {
	if len(samples) == 0 {
		return 0
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	rank := int(math.Ceil(pct/100*float64(len(samples)))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(samples) {
		rank = len(samples) - 1
	}
	return samples[rank]
}
