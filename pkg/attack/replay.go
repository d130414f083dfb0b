// Copyright 2025 Robert Bosch GmbH
//
// SPDX-License-Identifier: Apache-2.0

package attack

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/bus"
	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/errors"
	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/frame"
	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/metrics"
)

var DefaultCaptureSize = 64

type ReplayConfig struct {
	Rate     float64
	Delay    time.Duration // captured frames are replayed after this delay
	Duration time.Duration
	Capture  int // rolling capture buffer size
	Seed     int64
}

func (c *ReplayConfig) Validate() error {
	if c.Rate <= 0 {
		return errors.ErrScenarioConfig("replay rate must be positive")
	}
	if c.Duration <= 0 {
		return errors.ErrScenarioConfig("replay duration must be positive")
	}
	return nil
}

// Replay captures a rolling sample of legitimate frames (fed through Observe,
// typically a generator tap) and re-publishes them verbatim: same identifier,
// payload and auth tag, so the carried counter is stale by replay time.
type Replay struct {
	worker
	cfg ReplayConfig

	bus      *bus.Bus[frame.Can]
	captured *lru.Cache[uint64, frame.Can]
	rng      *rand.Rand
	seq      atomic.Uint64
}

func NewReplay(cfg ReplayConfig, canBus *bus.Bus[frame.Can], sink metrics.Sink, clk clock.Clock) (*Replay, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if canBus == nil {
		return nil, errors.ErrScenarioConfig("replay attack without CAN bus")
	}
	if cfg.Capture <= 0 {
		cfg.Capture = DefaultCaptureSize
	}
	captured, err := lru.New[uint64, frame.Can](cfg.Capture)
	if err != nil {
		return nil, errors.ErrScenarioConfig(fmt.Sprintf("replay capture buffer: %v", err))
	}
	return &Replay{
		worker:   newWorker(clk, sink),
		cfg:      cfg,
		bus:      canBus,
		captured: captured,
		rng:      rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

func (a *Replay) Mode() Mode { return ModeReplay }

// Observe feeds the rolling capture buffer. Safe for concurrent callers.
func (a *Replay) Observe(f frame.Frame) {
	if cf, ok := f.(frame.Can); ok {
		a.captured.Add(a.seq.Add(1), cf)
	}
}

func (a *Replay) Start() {
	a.startOnce.Do(func() {
		slog.Info(fmt.Sprintf("Attack: replay: start (rate=%.0f/s delay=%v)", a.cfg.Rate, a.cfg.Delay))
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.pace(a.cfg.Rate, a.cfg.Delay, a.cfg.Duration, a.fire)
		}()
	})
}

func (a *Replay) Shutdown() { a.shutdown() }

func (a *Replay) fire() {
	keys := a.captured.Keys()
	if len(keys) == 0 {
		return
	}
	captured, ok := a.captured.Get(keys[a.rng.Intn(len(keys))])
	if !ok {
		return
	}

	// Verbatim copy with a fresh identity: the replayed frame is a new
	// event on the bus, but carries the original (now stale) counter.
	replayed := captured
	replayed.FrameId = uuid.New()
	replayed.Created = a.clk.Now()

	a.recordInjection(replayed)
	if err := a.bus.Publish(replayed); err != nil {
		a.recordDrop(replayed, metrics.ReasonBusFull)
	}
}
