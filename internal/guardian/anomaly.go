package guardian

import (
	"math"
	"sync"
)

// AnomalyDetector keeps a rolling window of raw scores and flags values that
// sit far outside the recent distribution. With fewer than three samples
// everything is normal; there is no distribution to deviate from yet.
type AnomalyDetector struct {
	mu        sync.Mutex
	window    []float64
	size      int
	threshold float64
}

// NewAnomalyDetector creates a detector with the given window size and
// z-score threshold. Non-positive arguments fall back to 20 and 2.5.
func NewAnomalyDetector(size int, threshold float64) *AnomalyDetector {
	if size <= 0 {
		size = 20
	}
	if threshold <= 0 {
		threshold = 2.5
	}
	return &AnomalyDetector{
		window:    make([]float64, 0, size),
		size:      size,
		threshold: threshold,
	}
}

// Score records the value and returns its anomaly score in [0,1], where 1
// means the value sits at or beyond the z-score threshold.
func (d *AnomalyDetector) Score(value float64) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	score := 0.0
	if len(d.window) >= 3 {
		mean, stddev := d.statsLocked()
		if stddev > 0 {
			z := math.Abs(value-mean) / stddev
			score = z / d.threshold
			if score > 1 {
				score = 1
			}
		}
	}

	d.window = append(d.window, value)
	if len(d.window) > d.size {
		d.window = d.window[1:]
	}
	return score
}

// IsAnomalous records the value and reports whether it breaches the threshold.
func (d *AnomalyDetector) IsAnomalous(value float64) bool {
	return d.Score(value) >= 1
}

// Reset clears the rolling window.
func (d *AnomalyDetector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.window = d.window[:0]
}

func (d *AnomalyDetector) statsLocked() (mean, stddev float64) {
	for _, v := range d.window {
		mean += v
	}
	mean /= float64(len(d.window))
	var variance float64
	for _, v := range d.window {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(d.window))
	return mean, math.Sqrt(variance)
}
