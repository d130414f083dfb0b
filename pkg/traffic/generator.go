// Copyright 2025 Robert Bosch GmbH
//
// SPDX-License-Identifier: Apache-2.0

package traffic

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/bus"
	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/errors"
	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/frame"
	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/metrics"
	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/security"
)

// Domain selects the bus a generator publishes on.
type Domain uint8

const (
	DomainCan Domain = iota
	DomainEthernet
)

// Config describes one legitimate traffic source.
type Config struct {
	Source     string
	Ids        []uint32
	Rate       float64 // frames per second
	Count      uint64  // 0 produces until shutdown
	PayloadLen int
	Fd         bool
	Domain     Domain
	Seed       int64
}

func (c *Config) Validate() error {
	if c.Source == "" {
		return errors.ErrScenarioConfig("generator source tag not configured")
	}
	if len(c.Ids) == 0 {
		return errors.ErrScenarioConfig("generator identifiers not configured")
	}
	if c.Rate <= 0 {
		return errors.ErrScenarioConfig("generator rate must be positive")
	}
	max := frame.MaxPayloadClassic
	if c.Fd {
		max = frame.MaxPayloadFd
	}
	if c.PayloadLen <= 0 || c.PayloadLen > max {
		return errors.ErrScenarioConfig(fmt.Sprintf("generator payload length out of range: %d", c.PayloadLen))
	}
	return nil
}

// Generator produces legitimate frames at a configured rate. When the
// pipeline has security enabled every frame is sealed with the source's next
// counter before publishing.
type Generator struct {
	cfg Config

	can *bus.Bus[frame.Can]
	eth *bus.Bus[frame.Ethernet]

	pipeline *security.Pipeline
	sink     metrics.Sink
	clk      clock.Clock
	rng      *rand.Rand

	taps []func(frame.Frame)

	produced atomic.Uint64
	finished chan struct{}

	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

type Option func(*Generator)

func WithClock(clk clock.Clock) Option {
	return func(g *Generator) { g.clk = clk }
}

// WithTap registers an observer of published frames. The replay attacker uses
// a tap to capture legitimate traffic.
func WithTap(tap func(frame.Frame)) Option {
	return func(g *Generator) { g.taps = append(g.taps, tap) }
}

func NewGenerator(cfg Config, canBus *bus.Bus[frame.Can], ethBus *bus.Bus[frame.Ethernet], pipeline *security.Pipeline, sink metrics.Sink, opts ...Option) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Domain == DomainCan && canBus == nil {
		return nil, errors.ErrScenarioConfig("generator on CAN domain without CAN bus")
	}
	if cfg.Domain == DomainEthernet && ethBus == nil {
		return nil, errors.ErrScenarioConfig("generator on Ethernet domain without Ethernet bus")
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	g := &Generator{
		cfg:      cfg,
		can:      canBus,
		eth:      ethBus,
		pipeline: pipeline,
		sink:     sink,
		clk:      clock.New(),
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		finished: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

func (g *Generator) Start() {
	g.startOnce.Do(func() {
		slog.Info(fmt.Sprintf("Generator: %s: start (rate=%.0f/s)", g.cfg.Source, g.cfg.Rate))
		g.wg.Add(1)
		go g.run()
	})
}

func (g *Generator) Shutdown() {
	g.stopOnce.Do(func() { close(g.done) })
	g.wg.Wait()
}

// Produced reports the number of frames presented so far.
func (g *Generator) Produced() uint64 {
	return g.produced.Load()
}

// Finished is closed once the configured count has been produced.
func (g *Generator) Finished() <-chan struct{} {
	return g.finished
}

func (g *Generator) run() {
	defer g.wg.Done()
	interval := time.Duration(float64(time.Second) / g.cfg.Rate)
	ticker := g.clk.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-g.done:
			return
		case <-ticker.C:
		}
		g.emit()
		if n := g.produced.Load(); g.cfg.Count > 0 && n >= g.cfg.Count {
			close(g.finished)
			slog.Debug(fmt.Sprintf("Generator: %s: count reached (%d)", g.cfg.Source, n))
			return
		}
	}
}

func (g *Generator) emit() {
	id := g.cfg.Ids[g.rng.Intn(len(g.cfg.Ids))]
	payload := make([]byte, g.cfg.PayloadLen)
	g.rng.Read(payload)
	kind := frame.KindBase
	if g.cfg.Fd {
		kind = frame.KindFdBase
	}
	f := frame.NewCan(id, payload, kind, g.cfg.Source)

	switch g.cfg.Domain {
	case DomainCan:
		if g.pipeline != nil && g.pipeline.Enabled() {
			tag, err := g.pipeline.Seal(f.Source, f.Id, f.Payload)
			if err != nil {
				slog.Warn(fmt.Sprintf("Generator: %s: seal: %v", g.cfg.Source, err))
				return
			}
			f.Auth = tag
		}
		g.publishCan(f)
	case DomainEthernet:
		eth, err := frame.NewEthernet(f.Id, f, g.cfg.Source)
		if err != nil {
			slog.Warn(fmt.Sprintf("Generator: %s: encapsulate: %v", g.cfg.Source, err))
			return
		}
		if g.pipeline != nil && g.pipeline.Enabled() {
			tag, err := g.pipeline.Seal(eth.Source, eth.Channel, eth.Encap)
			if err != nil {
				slog.Warn(fmt.Sprintf("Generator: %s: seal: %v", g.cfg.Source, err))
				return
			}
			eth.Auth = tag
		}
		g.publishEth(eth)
	}
}

func (g *Generator) publishCan(f frame.Can) {
	g.record(f, metrics.StageGenerated, metrics.ReasonNone)
	g.produced.Add(1)
	if err := g.can.Publish(f); err != nil {
		g.record(f, metrics.StageDropped, publishReason(err))
		return
	}
	for _, tap := range g.taps {
		tap(f)
	}
}

func (g *Generator) publishEth(f frame.Ethernet) {
	g.record(f, metrics.StageGenerated, metrics.ReasonNone)
	g.produced.Add(1)
	if err := g.eth.Publish(f); err != nil {
		g.record(f, metrics.StageDropped, publishReason(err))
		return
	}
	for _, tap := range g.taps {
		tap(f)
	}
}

func publishReason(err error) metrics.Reason {
	if stderrors.Is(err, errors.ErrBusClosed) {
		return metrics.ReasonAborted
	}
	return metrics.ReasonBusFull
}

func (g *Generator) record(f frame.Frame, stage metrics.Stage, reason metrics.Reason) {
	g.sink.Record(metrics.Event{
		FrameId: f.Identity(),
		Source:  f.Origin(),
		Stage:   stage,
		Reason:  reason,
		Created: f.CreatedAt(),
		At:      g.clk.Now(),
	})
}
