// Package util provides statistics helpers shared by the store core and the
// RPC server. This file implements a bucketed size histogram so that stores
// can report value-size characteristics without scanning every entry on each
// info request, plus small distribution estimators used to judge how evenly
// keys spread across shards.
package util

import (
	"math"
	"sync"
)

// ----------------------------------------------------------------------------
// Distribution statistics
// ----------------------------------------------------------------------------

type Stats struct {
	StdDeviation float64 `json:"std_deviation"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Mean         float64 `json:"mean"`
	MinMaxRatio  float64 `json:"min_max_ratio"`
}

// NewStats computes standard deviation, minimum, maximum and mean
// from a slice of float64 values.
func NewStats(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}

	min := values[0]
	max := values[0]

	var sum float64
	for _, v := range values {
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	mean := sum / float64(len(values))

	// population standard deviation
	var sumSquaredDiffs float64
	for _, v := range values {
		diff := v - mean
		sumSquaredDiffs += diff * diff
	}
	stdDev := math.Sqrt(sumSquaredDiffs / float64(len(values)))

	var minMaxRatio float64 = 1.0
	if max > 0 {
		minMaxRatio = min / max
	}

	return Stats{
		StdDeviation: stdDev,
		Min:          min,
		Max:          max,
		Mean:         mean,
		MinMaxRatio:  minMaxRatio,
	}
}

type DistributionStats struct {
	Stats
	DistributionQuality float64 `json:"distribution_quality"`
}

// NewDistributionStats scores how evenly values spread across shards.
// A quality of 1.0 means perfectly balanced shards.
func NewDistributionStats(shardSizes []float64) DistributionStats {
	stats := NewStats(shardSizes)

	// coefficient of variation
	var cv float64
	if stats.Mean > 0 {
		cv = stats.StdDeviation / stats.Mean
	}

	// lower CV and higher min/max ratio indicate better distribution
	distributionQuality := (1.0-math.Min(1.0, cv))*0.5 + stats.MinMaxRatio*0.5

	return DistributionStats{
		Stats:               stats,
		DistributionQuality: distributionQuality,
	}
}

// ----------------------------------------------------------------------------
// SizeHistogram
// ----------------------------------------------------------------------------

// SizeHistogram tracks the distribution of value sizes in a store.
// Sizes are grouped into exponential buckets, so the histogram stays
// constant-size no matter how many samples it has seen while still
// supporting average, median and percentile estimates.
type SizeHistogram struct {
	mutex      sync.RWMutex
	boundaries []int   // exponential bucket boundaries, bytes to GB
	buckets    []int64 // count of samples per bucket
	count      int64   // total number of samples
	sum        int64   // sum of all sampled sizes
}

// NewSizeHistogram creates a histogram with default bucket boundaries
// covering sizes from a few bytes up to multiple gigabytes.
func NewSizeHistogram() *SizeHistogram {
	return &SizeHistogram{
		boundaries: []int{
			16, 64, 256, 1024, 4096, // bytes: 16B to 4KB
			16384, 65536, 262144, 1048576, // KB range: 16KB to 1MB
			4194304, 16777216, 67108864, // MB range: 4MB to 64MB
			268435456, 1073741824, 4294967296, // 256MB to 4GB
		},
		buckets: make([]int64, 16), // 15 boundaries + 1 overflow bucket
	}
}

// AddSample records a single size sample.
//
// Thread-safe: This method is safe for concurrent use
func (h *SizeHistogram) AddSample(size int) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	bucketIndex := 0
	for i, boundary := range h.boundaries {
		if size <= boundary {
			bucketIndex = i
			break
		}
		bucketIndex = len(h.boundaries) // overflow bucket
	}

	h.buckets[bucketIndex]++
	h.count++
	h.sum += int64(size)
}

// GetCount returns the total number of samples.
//
// Thread-safe: This method is safe for concurrent use
func (h *SizeHistogram) GetCount() int64 {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.count
}

// TotalBytes returns the sum of all sampled sizes.
//
// Thread-safe: This method is safe for concurrent use
func (h *SizeHistogram) TotalBytes() int64 {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.sum
}

// AverageSize returns the mean size across all samples.
//
// Thread-safe: This method is safe for concurrent use
func (h *SizeHistogram) AverageSize() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if h.count == 0 {
		return 0
	}
	return int(h.sum / h.count)
}

// MedianEstimate estimates the median size from the bucket counts.
//
// Thread-safe: This method is safe for concurrent use
func (h *SizeHistogram) MedianEstimate() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if h.count == 0 {
		return 0
	}

	medianCount := h.count / 2
	cumulativeCount := int64(0)

	for i, count := range h.buckets {
		cumulativeCount += count
		if cumulativeCount >= medianCount {
			return h.bucketMidpoint(i)
		}
	}

	return int(h.sum / h.count)
}

// GetPercentileEstimate estimates the given percentile (0-100).
//
// Thread-safe: This method is safe for concurrent use
func (h *SizeHistogram) GetPercentileEstimate(percentile int) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if h.count == 0 || percentile < 0 || percentile > 100 {
		return 0
	}

	targetCount := int64(math.Ceil(float64(h.count) * float64(percentile) / 100.0))
	cumulativeCount := int64(0)

	for i, count := range h.buckets {
		cumulativeCount += count
		if cumulativeCount >= targetCount {
			return h.bucketMidpoint(i)
		}
	}

	return int(h.sum / h.count)
}

// bucketMidpoint returns the size estimate for a bucket index.
// Callers must hold at least the read lock.
func (h *SizeHistogram) bucketMidpoint(i int) int {
	switch {
	case i == 0:
		return h.boundaries[0] / 2
	case i < len(h.boundaries):
		return (h.boundaries[i-1] + h.boundaries[i]) / 2
	default:
		// overflow bucket, estimate as twice the last boundary
		return h.boundaries[len(h.boundaries)-1] * 2
	}
}

// Reset clears all histogram data.
//
// Thread-safe: This method is safe for concurrent use
func (h *SizeHistogram) Reset() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.count = 0
	h.sum = 0
	for i := range h.buckets {
		h.buckets[i] = 0
	}
}

// SizeDistribution returns the bucket boundaries and the percentage of
// samples that fell into each bucket.
//
// Thread-safe: This method is safe for concurrent use
func (h *SizeHistogram) SizeDistribution() ([]int, []float64) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if h.count == 0 {
		return h.boundaries, make([]float64, len(h.buckets))
	}

	percentages := make([]float64, len(h.buckets))
	for i, count := range h.buckets {
		percentages[i] = float64(count) * 100.0 / float64(h.count)
	}

	return h.boundaries, percentages
}
