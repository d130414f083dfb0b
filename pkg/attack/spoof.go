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

type SpoofConfig struct {
	Victim     string // source tag to impersonate
	Channel    uint32 // identifier inside the victim's id space
	Rate       float64
	Delay      time.Duration // spoofing starts after this delay
	Duration   time.Duration
	Forge      bool // forge a random tag instead of omitting it
	PayloadLen int
	Seed       int64
}

func (c *SpoofConfig) Validate() error {
	if c.Victim == "" {
		return errors.ErrScenarioConfig("spoof victim source tag not configured")
	}
	if c.Rate <= 0 {
		return errors.ErrScenarioConfig("spoof rate must be positive")
	}
	if c.Duration <= 0 {
		return errors.ErrScenarioConfig("spoof duration must be positive")
	}
	if c.PayloadLen <= 0 || c.PayloadLen > frame.MaxPayloadClassic {
		c.PayloadLen = frame.MaxPayloadClassic
	}
	return nil
}

// Spoof publishes Ethernet-domain frames claiming a victim's source tag and
// identifier space, with either no auth tag or a forged one whose counter and
// MAC were never issued by the victim's AuthContext.
type Spoof struct {
	worker
	cfg SpoofConfig

	bus *bus.Bus[frame.Ethernet]
	rng *rand.Rand
}

func NewSpoof(cfg SpoofConfig, ethBus *bus.Bus[frame.Ethernet], sink metrics.Sink, clk clock.Clock) (*Spoof, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if ethBus == nil {
		return nil, errors.ErrScenarioConfig("spoof attack without Ethernet bus")
	}
	return &Spoof{
		worker: newWorker(clk, sink),
		cfg:    cfg,
		bus:    ethBus,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

func (a *Spoof) Mode() Mode { return ModeSpoof }

func (a *Spoof) Start() {
	a.startOnce.Do(func() {
		slog.Info(fmt.Sprintf("Attack: spoof: start (victim=%s rate=%.0f/s)", a.cfg.Victim, a.cfg.Rate))
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.pace(a.cfg.Rate, a.cfg.Delay, a.cfg.Duration, a.fire)
		}()
	})
}

func (a *Spoof) Shutdown() { a.shutdown() }

func (a *Spoof) fire() {
	payload := make([]byte, a.cfg.PayloadLen)
	a.rng.Read(payload)
	capsule := frame.NewCan(a.cfg.Channel, payload, frame.KindBase, a.cfg.Victim)
	spoofed, err := frame.NewEthernet(a.cfg.Channel, capsule, a.cfg.Victim)
	if err != nil {
		slog.Warn(fmt.Sprintf("Attack: spoof: encapsulate: %v", err))
		return
	}
	if a.cfg.Forge {
		forged := make([]byte, security.TagLen)
		a.rng.Read(forged)
		spoofed.Auth = &frame.Tag{Counter: a.rng.Uint64(), MAC: forged}
	}

	a.recordInjection(spoofed)
	if err := a.bus.Publish(spoofed); err != nil {
		a.recordDrop(spoofed, metrics.ReasonBusFull)
	}
}
