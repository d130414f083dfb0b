// Copyright 2025 Robert Bosch GmbH
//
// SPDX-License-Identifier: Apache-2.0

package attack

import (
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/bus"
	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/errors"
	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/frame"
	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/metrics"
	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/security"
)

type DosConfig struct {
	Source     string // attacker source tag
	Channel    uint32
	Rate       float64 // deliberately above the IDS threshold
	Delay      time.Duration // flooding starts after this delay
	Duration   time.Duration
	PayloadLen int
	Seed       int64

	// Key optionally gives the attacker valid key material (a compromised
	// ECU): frames pass authentication and must be stopped by the rate
	// stage alone.
	Key []byte
}

func (c *DosConfig) Validate() error {
	if c.Source == "" {
		return errors.ErrScenarioConfig("dos source tag not configured")
	}
	if c.Rate <= 0 {
		return errors.ErrScenarioConfig("dos rate must be positive")
	}
	if c.Duration <= 0 {
		return errors.ErrScenarioConfig("dos duration must be positive")
	}
	if c.PayloadLen <= 0 || c.PayloadLen > frame.MaxPayloadClassic {
		c.PayloadLen = frame.MaxPayloadClassic
	}
	return nil
}

// Dos floods the CAN bus from one attacker source tag at a sustained rate,
// exercising the IDS rate stage and bus backpressure.
type Dos struct {
	worker
	cfg DosConfig

	bus      *bus.Bus[frame.Can]
	pipeline *security.Pipeline
	rng      *rand.Rand
}

// NewDos builds the flood worker. The pipeline is only used for sealing when
// the attacker holds key material; pass nil otherwise.
func NewDos(cfg DosConfig, canBus *bus.Bus[frame.Can], pipeline *security.Pipeline, sink metrics.Sink, clk clock.Clock) (*Dos, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if canBus == nil {
		return nil, errors.ErrScenarioConfig("dos attack without CAN bus")
	}
	return &Dos{
		worker:   newWorker(clk, sink),
		cfg:      cfg,
		bus:      canBus,
		pipeline: pipeline,
		rng:      rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

func (a *Dos) Mode() Mode { return ModeDos }

func (a *Dos) Start() {
	a.startOnce.Do(func() {
		slog.Info(fmt.Sprintf("Attack: dos: start (source=%s rate=%.0f/s for %v)", a.cfg.Source, a.cfg.Rate, a.cfg.Duration))
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.pace(a.cfg.Rate, a.cfg.Delay, a.cfg.Duration, a.fire)
		}()
	})
}

func (a *Dos) Shutdown() { a.shutdown() }

func (a *Dos) fire() {
	payload := make([]byte, a.cfg.PayloadLen)
	a.rng.Read(payload)
	f := frame.NewCan(a.cfg.Channel, payload, frame.KindBase, a.cfg.Source)
	if len(a.cfg.Key) > 0 && a.pipeline != nil {
		tag, err := a.pipeline.Seal(f.Source, f.Id, f.Payload)
		if err == nil {
			f.Auth = tag
		}
	}

	a.recordInjection(f)
	if err := a.bus.Publish(f); err != nil {
		a.recordDrop(f, metrics.ReasonBusFull)
	}
}
