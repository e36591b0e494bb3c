package metrics

import "time"

// Window accumulates per-batch measurements across one epoch.
type Window struct {
	tokens  int
	batches int
	data    time.Duration
	compute time.Duration
	lossSum float64
}

// Record adds one batch's measurements.
func (w *Window) Record(tokens int, dataTime, computeTime time.Duration, loss float64) {
	w.tokens += tokens
	w.batches++
	w.data += dataTime
	w.compute += computeTime
	w.lossSum += loss
}

// Snapshot returns the aggregated epoch metrics and resets the window.
func (w *Window) Snapshot() Snapshot {
	snap := Snapshot{Batches: w.batches}
	total := w.data + w.compute
	if total > 0 {
		snap.TokensPerSec = float64(w.tokens) / total.Seconds()
	}
	if w.batches > 0 {
		snap.MeanLoss = w.lossSum / float64(w.batches)
		snap.AvgDataMS = (w.data.Seconds() * 1000) / float64(w.batches)
		snap.AvgComputeMS = (w.compute.Seconds() * 1000) / float64(w.batches)
	}

	*w = Window{}
	return snap
}

// Snapshot represents loggable epoch metrics.
type Snapshot struct {
	Batches      int
	MeanLoss     float64
	TokensPerSec float64
	AvgDataMS    float64
	AvgComputeMS float64
}
