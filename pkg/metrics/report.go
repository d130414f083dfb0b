// Copyright 2025 Robert Bosch GmbH
//
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"math"
	"slices"
	"time"
)

type LatencyStats struct {
	Mean float64
	Min  float64
	Max  float64
	P50  float64
	P95  float64
	P99  float64
}

// Report is the derived output consumed by the orchestrator and the export
// glue. All latency figures are milliseconds; throughput is frames/second.
type Report struct {
	Presented uint64
	Delivered uint64
	Dropped   uint64
	Aborted   uint64
	InFlight  uint64

	DropByReason map[string]uint64

	Latency    LatencyStats
	Throughput float64
	Jitter     map[string]float64 // per-source
	LossRate   float64

	AttackPresented   uint64
	LegitPresented    uint64
	DetectionRate     float64
	FalsePositiveRate float64
}

// Snapshot derives the report from the running statistics. Safe to call while
// workers are still recording; the figures are a consistent point-in-time cut.
func (e *Engine) Snapshot() Report {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := Report{
		Presented:       e.presented,
		Delivered:       e.delivered,
		Dropped:         e.dropped,
		Aborted:         e.aborted,
		DropByReason:    make(map[string]uint64, len(e.dropByReason)),
		Jitter:          make(map[string]float64, len(e.bySource)),
		AttackPresented: e.attackPresented,
		LegitPresented:  e.presented - e.attackPresented,
	}
	terminal := e.delivered + e.dropped + e.aborted
	if e.presented > terminal {
		r.InFlight = e.presented - terminal
	}
	for reason, n := range e.dropByReason {
		r.DropByReason[reason.String()] = n
	}

	r.Latency = latencyStats(e.latencies)
	if window := e.last.Sub(e.first); window > 0 {
		r.Throughput = float64(e.delivered) / window.Seconds()
	}
	for src, lats := range e.bySource {
		r.Jitter[src] = jitter(lats)
	}
	if e.presented > 0 {
		r.LossRate = float64(e.dropped+e.aborted) / float64(e.presented)
	}
	if e.attackPresented > 0 {
		r.DetectionRate = float64(e.attackDropped) / float64(e.attackPresented)
	}
	if legit := e.presented - e.attackPresented; legit > 0 {
		r.FalsePositiveRate = float64(e.legitDropped) / float64(legit)
	}
	return r
}

// Runtime reports the span between the first and last observed event.
func (e *Engine) Runtime() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last.Sub(e.first)
}

func latencyStats(latencies []float64) LatencyStats {
	if len(latencies) == 0 {
		return LatencyStats{}
	}
	sorted := slices.Clone(latencies)
	slices.Sort(sorted)
	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	return LatencyStats{
		Mean: sum / float64(len(sorted)),
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		P50:  percentile(sorted, 50),
		P95:  percentile(sorted, 95),
		P99:  percentile(sorted, 99),
	}
}

// percentile expects a sorted slice.
func percentile(sorted []float64, p int) float64 {
	index := len(sorted) * p / 100
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}

// jitter is the standard deviation of consecutive latency deltas for one
// source's delivered frames.
func jitter(latencies []float64) float64 {
	if len(latencies) < 3 {
		return 0.0
	}
	deltas := make([]float64, 0, len(latencies)-1)
	for i := 1; i < len(latencies); i++ {
		deltas = append(deltas, latencies[i]-latencies[i-1])
	}
	mean := 0.0
	for _, d := range deltas {
		mean += d
	}
	mean /= float64(len(deltas))
	variance := 0.0
	for _, d := range deltas {
		variance += (d - mean) * (d - mean)
	}
	variance /= float64(len(deltas) - 1)
	return math.Sqrt(variance)
}
