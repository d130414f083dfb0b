// Copyright 2025 Robert Bosch GmbH
//
// SPDX-License-Identifier: Apache-2.0

package scenario

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/metrics"
)

// countingSink is a pass-through decorator, the shape trace recorders and
// mirrors take when stacked with WithSink.
type countingSink struct {
	next metrics.Sink
	n    atomic.Uint64
}

func (s *countingSink) Record(ev metrics.Event) {
	s.n.Add(1)
	s.next.Record(ev)
}

func baselineConfig() Config {
	return Config{
		Name:     "baseline",
		Duration: Duration(5 * time.Second),
		Seed:     42,
		Bus:      BusConfig{Capacity: 256, Poll: Duration(2 * time.Millisecond)},
		Security: SecurityConfig{
			Enabled: true,
			Keys: map[string]string{
				"ecu-powertrain": "powertrain-secret-key",
				"head-unit":      "head-unit-secret-key",
			},
			Window:    Duration(time.Second),
			Threshold: 10000,
		},
		Traffic: []TrafficConfig{
			{Source: "ecu-powertrain", Ids: []uint32{0x100, 0x101}, Rate: 400, Count: 40},
			{Source: "head-unit", Ids: []uint32{0x300}, Rate: 400, Count: 40,
				Fd: true, PayloadLen: 32, Domain: "eth"},
		},
	}
}

func TestNewRunnerConfig(t *testing.T) {
	_, err := NewRunner(Config{})
	assert.NotNil(t, err)

	cfg := baselineConfig()
	cfg.Traffic[0].Domain = "flexray"
	_, err = NewRunner(cfg)
	assert.ErrorContains(t, err, "unknown traffic domain")

	cfg = baselineConfig()
	cfg.Attacks = []AttackConfig{{Mode: "dos", Source: ""}}
	_, err = NewRunner(cfg)
	assert.ErrorContains(t, err, "dos source tag not configured")
}

// Counted generators on both domains, no attackers: every presented frame is
// delivered and the accounting closes with zero loss.
func TestRunBaseline(t *testing.T) {
	r, err := NewRunner(baselineConfig())
	require.Nil(t, err)

	report, err := r.Run(context.Background())
	require.Nil(t, err)

	assert.Equal(t, uint64(80), report.Presented)
	assert.Equal(t, uint64(80), report.Delivered)
	assert.Equal(t, uint64(0), report.Dropped)
	assert.Equal(t, uint64(0), report.Aborted)
	assert.Equal(t, uint64(0), report.InFlight)
	assert.Equal(t, 0.0, report.LossRate)
	assert.Equal(t, 0.0, report.DetectionRate)
	assert.Equal(t, 0.0, report.FalsePositiveRate)
	assert.Greater(t, report.Throughput, 0.0)
	assert.Contains(t, report.Jitter, "ecu-powertrain")
	assert.Contains(t, report.Jitter, "head-unit")
}

// A spoofer without key material claims a legitimate source tag: every
// spoofed frame fails authentication, no legitimate frame is lost.
func TestRunSpoof(t *testing.T) {
	cfg := Config{
		Name:     "spoof",
		Duration: Duration(5 * time.Second),
		Seed:     42,
		Bus:      BusConfig{Capacity: 256, Poll: Duration(2 * time.Millisecond)},
		Security: SecurityConfig{
			Enabled:   true,
			Keys:      map[string]string{"ecu-powertrain": "powertrain-secret-key"},
			Window:    Duration(time.Second),
			Threshold: 10000,
		},
		Traffic: []TrafficConfig{
			{Source: "ecu-powertrain", Ids: []uint32{0x100}, Rate: 200, Count: 30},
		},
		Attacks: []AttackConfig{
			{Mode: "spoof", Victim: "ecu-powertrain", Channel: 0x100,
				Rate: 200, Duration: Duration(100 * time.Millisecond)},
		},
	}
	r, err := NewRunner(cfg)
	require.Nil(t, err)

	report, err := r.Run(context.Background())
	require.Nil(t, err)

	assert.Greater(t, report.AttackPresented, uint64(0))
	assert.Equal(t, uint64(30), report.LegitPresented)
	assert.Equal(t, uint64(30), report.Delivered)
	assert.Equal(t, report.AttackPresented, report.DropByReason[metrics.ReasonAuthFailed.String()])
	assert.InDelta(t, 1.0, report.DetectionRate, 1e-9)
	assert.InDelta(t, 0.0, report.FalsePositiveRate, 1e-9)
	assert.Equal(t, report.Presented, report.Delivered+report.Dropped+report.Aborted)
}

// A compromised ECU floods with validly sealed frames: authentication passes
// and the rate stage bounds the accepted count at the window threshold.
func TestRunDos(t *testing.T) {
	cfg := Config{
		Name:     "dos",
		Duration: Duration(5 * time.Second),
		Seed:     42,
		Bus:      BusConfig{Capacity: 256, Poll: Duration(2 * time.Millisecond)},
		Security: SecurityConfig{
			Enabled: true,
			Keys: map[string]string{
				"ecu-chassis":     "chassis-secret-key",
				"ecu-compromised": "compromised-key",
			},
			Window:    Duration(time.Second),
			Threshold: 5,
		},
		Traffic: []TrafficConfig{
			{Source: "ecu-chassis", Ids: []uint32{0x200}, Rate: 100, Count: 5},
		},
		Attacks: []AttackConfig{
			{Mode: "dos", Source: "ecu-compromised", Channel: 0x7FF,
				Rate: 400, Duration: Duration(300 * time.Millisecond),
				Key: "compromised-key"},
		},
	}
	r, err := NewRunner(cfg)
	require.Nil(t, err)

	report, err := r.Run(context.Background())
	require.Nil(t, err)

	require.Greater(t, report.AttackPresented, uint64(5))
	// All legitimate frames plus exactly one window threshold of flood.
	assert.Equal(t, uint64(10), report.Delivered)
	assert.Equal(t, report.AttackPresented-5, report.DropByReason[metrics.ReasonRateLimited.String()])
	expected := float64(report.AttackPresented-5) / float64(report.AttackPresented)
	assert.InDelta(t, expected, report.DetectionRate, 1e-9)
	assert.InDelta(t, 0.0, report.FalsePositiveRate, 1e-9)
	assert.Equal(t, report.Presented, report.Delivered+report.Dropped+report.Aborted)
}

// All three attack modes contending with legitimate traffic. Exact counts
// depend on interleaving; the accounting must still close and the pipeline
// must catch a nonzero share of the attack frames.
func TestRunCombined(t *testing.T) {
	cfg := Config{
		Name:     "combined",
		Duration: Duration(5 * time.Second),
		Seed:     42,
		Bus:      BusConfig{Capacity: 256, Poll: Duration(2 * time.Millisecond)},
		Security: SecurityConfig{
			Enabled: true,
			Keys: map[string]string{
				"ecu-powertrain":  "powertrain-secret-key",
				"ecu-compromised": "compromised-key",
			},
			Window:    Duration(time.Second),
			Threshold: 20,
		},
		Traffic: []TrafficConfig{
			{Source: "ecu-powertrain", Ids: []uint32{0x100}, Rate: 200, Count: 40},
		},
		Attacks: []AttackConfig{
			{Mode: "replay", Rate: 100, Delay: Duration(50 * time.Millisecond),
				Duration: Duration(100 * time.Millisecond), Capture: 8},
			{Mode: "spoof", Victim: "ecu-powertrain", Channel: 0x100,
				Rate: 100, Duration: Duration(100 * time.Millisecond)},
			{Mode: "dos", Source: "ecu-compromised", Channel: 0x7FF,
				Rate: 400, Duration: Duration(150 * time.Millisecond),
				Key: "compromised-key"},
		},
	}
	r, err := NewRunner(cfg)
	require.Nil(t, err)

	report, err := r.Run(context.Background())
	require.Nil(t, err)

	assert.Equal(t, uint64(40), report.LegitPresented)
	assert.Greater(t, report.AttackPresented, uint64(0))
	assert.Greater(t, report.DetectionRate, 0.0)
	assert.Equal(t, report.Presented, report.Delivered+report.Dropped+report.Aborted)
}

func TestRunCancelled(t *testing.T) {
	cfg := baselineConfig()
	cfg.Traffic[0].Count = 0
	cfg.Traffic[1].Count = 0
	cfg.Duration = Duration(time.Minute)
	r, err := NewRunner(cfg)
	require.Nil(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	report, err := r.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	// Cancellation still settles: nothing may be left in flight.
	assert.Equal(t, report.Presented, report.Delivered+report.Dropped+report.Aborted)
}

func TestWithSinkDecorates(t *testing.T) {
	var counter *countingSink
	r, err := NewRunner(baselineConfig(), WithSink(func(next metrics.Sink) metrics.Sink {
		counter = &countingSink{next: next}
		return counter
	}))
	require.Nil(t, err)

	report, err := r.Run(context.Background())
	require.Nil(t, err)
	assert.Equal(t, uint64(80), report.Delivered)
	// Every event the engine saw went through the decorator.
	assert.Greater(t, counter.n.Load(), uint64(80))
}
