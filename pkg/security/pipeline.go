// Copyright 2025 Robert Bosch GmbH
//
// SPDX-License-Identifier: Apache-2.0

package security

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/errors"
	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/frame"
	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/metrics"
)

// Verdict is the per-frame pipeline outcome. A rejected frame carries the
// reason for the first stage that failed; later stages are skipped.
type Verdict struct {
	Accepted bool
	Reason   metrics.Reason
}

var accepted = Verdict{Accepted: true, Reason: metrics.ReasonNone}

func rejected(reason metrics.Reason) Verdict {
	return Verdict{Accepted: false, Reason: reason}
}

// sourceState is the per-source security slot: the AuthContext counters and
// the IDS rate window. Frames from the same source serialize on mu; frames
// from different sources never contend.
type sourceState struct {
	mu sync.Mutex

	sealCounter  uint64 // producer side, last issued
	lastAccepted uint64 // verifier side, last accepted

	window    []time.Time // sliding window of presented frames
	throttled bool
}

// Pipeline applies, in order: identifier/shape filtering, HMAC
// authentication with replay defense, and rate-based intrusion detection.
type Pipeline struct {
	cfg   Config
	allow map[uint32]struct{}

	mu      sync.RWMutex
	sources map[string]*sourceState

	clk  clock.Clock
	sink metrics.Sink
}

type Option func(*Pipeline)

func WithClock(clk clock.Clock) Option {
	return func(p *Pipeline) { p.clk = clk }
}

func NewPipeline(cfg Config, sink metrics.Sink, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Window == 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultThreshold
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	p := &Pipeline{
		cfg:     cfg,
		allow:   make(map[uint32]struct{}, len(cfg.AllowIds)),
		sources: make(map[string]*sourceState),
		clk:     clock.New(),
		sink:    sink,
	}
	for _, id := range cfg.AllowIds {
		p.allow[id] = struct{}{}
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Pipeline) Enabled() bool {
	return p.cfg.Enabled
}

// source returns the state slot for a source tag, lazily creating it on first
// sighting. Slots persist for the lifetime of the run.
func (p *Pipeline) source(tag string) *sourceState {
	p.mu.RLock()
	s, ok := p.sources[tag]
	p.mu.RUnlock()
	if ok {
		return s
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok = p.sources[tag]; !ok {
		s = &sourceState{}
		p.sources[tag] = s
	}
	return s
}

// Inspect runs a frame through the pipeline stages and records the outcome.
// With security disabled every frame passes, but the check event is still
// recorded so metrics remain comparable across scenarios.
func (p *Pipeline) Inspect(f frame.Frame) Verdict {
	if !p.cfg.Enabled {
		p.observe(f, metrics.StageAuthChecked, metrics.ReasonNone)
		return accepted
	}

	if v := p.filter(f); !v.Accepted {
		p.observe(f, metrics.StageFiltered, v.Reason)
		return v
	}
	if v := p.authenticate(f); !v.Accepted {
		p.observe(f, metrics.StageAuthChecked, v.Reason)
		return v
	}
	if v := p.rateCheck(f); !v.Accepted {
		p.observe(f, metrics.StageRateLimited, v.Reason)
		return v
	}
	p.observe(f, metrics.StageAuthChecked, metrics.ReasonNone)
	return accepted
}

// filter is the stateless fast-reject stage: identifier allow-set and frame
// shape consistency.
func (p *Pipeline) filter(f frame.Frame) Verdict {
	if len(p.allow) > 0 {
		if _, ok := p.allow[f.ChannelID()]; !ok {
			return rejected(metrics.ReasonFiltered)
		}
	}
	switch ff := f.(type) {
	case frame.Can:
		if err := ff.Validate(); err != nil {
			return rejected(metrics.ReasonFiltered)
		}
	case frame.Ethernet:
		capsule, err := frame.Decapsulate(ff)
		if err != nil {
			return rejected(metrics.ReasonFiltered)
		}
		if err := capsule.Validate(); err != nil {
			return rejected(metrics.ReasonFiltered)
		}
	}
	return accepted
}

// authenticate verifies the HMAC tag, then enforces strictly increasing
// counters per source. The counter is checked and advanced under the source
// lock: for a given source at most one frame per counter value is ever
// accepted, also under concurrent delivery.
func (p *Pipeline) authenticate(f frame.Frame) Verdict {
	key, ok := p.cfg.Keys[f.Origin()]
	if !ok {
		return rejected(metrics.ReasonAuthFailed)
	}
	tag := f.AuthTag()
	if !verifyMac(key, f.Origin(), f.ChannelID(), tag, f.Data()) {
		return rejected(metrics.ReasonAuthFailed)
	}

	s := p.source(f.Origin())
	s.mu.Lock()
	defer s.mu.Unlock()
	if tag.Counter <= s.lastAccepted {
		return rejected(metrics.ReasonReplay)
	}
	s.lastAccepted = tag.Counter
	return accepted
}

// rateCheck maintains the per-source sliding window over presented frames.
// Presented frames count towards the window whether or not they end up
// accepted, so a flood keeps a source throttled until the window drains.
func (p *Pipeline) rateCheck(f frame.Frame) Verdict {
	s := p.source(f.Origin())
	now := p.clk.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.window = append(s.window, now)
	cut := 0
	for cut < len(s.window) && now.Sub(s.window[cut]) > p.cfg.Window {
		cut++
	}
	s.window = s.window[cut:]
	s.throttled = len(s.window) > p.cfg.Threshold
	if s.throttled {
		return rejected(metrics.ReasonRateLimited)
	}
	return accepted
}

// Throttled reports whether a source is currently over its rate threshold.
func (p *Pipeline) Throttled(source string) bool {
	s := p.source(source)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.throttled
}

// Seal issues the next counter for a source and computes the matching tag.
// Producer side of the AuthContext; the generator calls it per frame when
// security is enabled.
func (p *Pipeline) Seal(source string, channel uint32, payload []byte) (*frame.Tag, error) {
	key, ok := p.cfg.Keys[source]
	if !ok {
		return nil, errors.ErrUnknownSource(source)
	}
	s := p.source(source)
	s.mu.Lock()
	s.sealCounter++
	counter := s.sealCounter
	s.mu.Unlock()
	return &frame.Tag{
		Counter: counter,
		MAC:     mac(key, source, channel, counter, payload),
	}, nil
}

func (p *Pipeline) observe(f frame.Frame, stage metrics.Stage, reason metrics.Reason) {
	p.sink.Record(metrics.Event{
		FrameId: f.Identity(),
		Source:  f.Origin(),
		Stage:   stage,
		Reason:  reason,
		Created: f.CreatedAt(),
		At:      p.clk.Now(),
	})
}
