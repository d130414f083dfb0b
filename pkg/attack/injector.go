// Copyright 2025 Robert Bosch GmbH
//
// SPDX-License-Identifier: Apache-2.0

package attack

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/frame"
	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/metrics"
)

// Mode is the closed set of attack worker modes.
type Mode uint8

const (
	ModeReplay Mode = iota
	ModeSpoof
	ModeDos
	ModeCombined
)

func (m Mode) String() string {
	switch m {
	case ModeReplay:
		return "replay"
	case ModeSpoof:
		return "spoof"
	case ModeDos:
		return "dos"
	case ModeCombined:
		return "combined"
	default:
		return "unknown"
	}
}

// Injector is the common contract of all attack workers. Each worker is an
// independent publisher contending for bus capacity with legitimate traffic.
type Injector interface {
	Start()
	Shutdown()
	Injected() uint64
	Mode() Mode
}

// worker carries the lifecycle plumbing shared by the attack modes.
type worker struct {
	clk  clock.Clock
	sink metrics.Sink

	injected atomic.Uint64

	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

func newWorker(clk clock.Clock, sink metrics.Sink) worker {
	if clk == nil {
		clk = clock.New()
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return worker{clk: clk, sink: sink, done: make(chan struct{})}
}

func (w *worker) Injected() uint64 {
	return w.injected.Load()
}

func (w *worker) shutdown() {
	w.stopOnce.Do(func() { close(w.done) })
	w.wg.Wait()
}

// pace waits out the start delay, then runs fire on every tick until the
// attack duration elapses or shutdown is signalled.
func (w *worker) pace(rate float64, delay, duration time.Duration, fire func()) {
	if delay > 0 {
		timer := w.clk.Timer(delay)
		defer timer.Stop()
		select {
		case <-w.done:
			return
		case <-timer.C:
		}
	}

	interval := time.Duration(float64(time.Second) / rate)
	ticker := w.clk.Ticker(interval)
	defer ticker.Stop()
	deadline := w.clk.Timer(duration)
	defer deadline.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-deadline.C:
			return
		case <-ticker.C:
			fire()
		}
	}
}

// recordInjection stamps the ground-truth generated event for an adversarial
// frame.
func (w *worker) recordInjection(f frame.Frame) {
	w.injected.Add(1)
	w.sink.Record(metrics.Event{
		FrameId: f.Identity(),
		Source:  f.Origin(),
		Stage:   metrics.StageGenerated,
		Attack:  true,
		Created: f.CreatedAt(),
		At:      w.clk.Now(),
	})
}

// recordDrop stamps a terminal drop for an adversarial frame refused by the
// bus itself (backpressure at injection time).
func (w *worker) recordDrop(f frame.Frame, reason metrics.Reason) {
	w.sink.Record(metrics.Event{
		FrameId: f.Identity(),
		Source:  f.Origin(),
		Stage:   metrics.StageDropped,
		Reason:  reason,
		Attack:  true,
		Created: f.CreatedAt(),
		At:      w.clk.Now(),
	})
}
