// Copyright 2025 Robert Bosch GmbH
//
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	stderrors "errors"
	"fmt"
	"log/slog"
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

var DefaultPollInterval = 50 * time.Millisecond

// Gateway bridges the CAN and Ethernet domains: two independent direction
// loops each consume from one ingress bus, run the security pipeline,
// translate the frame and publish it to the peer domain's egress bus. Egress
// is separate from ingress so a forwarded frame is never re-inspected by the
// opposite loop. The gateway never closes the buses; their lifecycle belongs
// to the scenario orchestrator.
type Gateway struct {
	canIn  *bus.Bus[frame.Can]
	canOut *bus.Bus[frame.Can]
	ethIn  *bus.Bus[frame.Ethernet]
	ethOut *bus.Bus[frame.Ethernet]

	pipeline *security.Pipeline
	sink     metrics.Sink
	clk      clock.Clock
	poll     time.Duration

	canToEth atomic.Uint64
	ethToCan atomic.Uint64

	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

type Option func(*Gateway)

func WithClock(clk clock.Clock) Option {
	return func(g *Gateway) { g.clk = clk }
}

// WithPollInterval sets the consume timeout of the direction loops, which
// bounds how long shutdown takes to be observed.
func WithPollInterval(d time.Duration) Option {
	return func(g *Gateway) { g.poll = d }
}

func New(canIn, canOut *bus.Bus[frame.Can], ethIn, ethOut *bus.Bus[frame.Ethernet], pipeline *security.Pipeline, sink metrics.Sink, opts ...Option) (*Gateway, error) {
	if canIn == nil || canOut == nil || ethIn == nil || ethOut == nil {
		return nil, errors.ErrGatewayConfig("gateway buses not configured")
	}
	if pipeline == nil {
		return nil, errors.ErrGatewayConfig("gateway security pipeline not configured")
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	g := &Gateway{
		canIn:    canIn,
		canOut:   canOut,
		ethIn:    ethIn,
		ethOut:   ethOut,
		pipeline: pipeline,
		sink:     sink,
		clk:      clock.New(),
		poll:     DefaultPollInterval,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Start launches both direction loops.
func (g *Gateway) Start() {
	g.startOnce.Do(func() {
		slog.Info(fmt.Sprintf("Gateway: start (security=%v)", g.pipeline.Enabled()))
		g.wg.Add(2)
		go func() {
			defer g.wg.Done()
			forward(g, "can->eth", g.canIn, g.ethOut, func(f frame.Can) (frame.Ethernet, error) {
				g.canToEth.Add(1)
				return frame.Encapsulate(f)
			})
		}()
		go func() {
			defer g.wg.Done()
			forward(g, "eth->can", g.ethIn, g.canOut, func(f frame.Ethernet) (frame.Can, error) {
				g.ethToCan.Add(1)
				return frame.Decapsulate(f)
			})
		}()
	})
}

// Shutdown signals both loops and waits for them to exit. Each loop observes
// the signal within one poll interval; any frame already dequeued reaches its
// terminal event before the loop exits.
func (g *Gateway) Shutdown() {
	g.stopOnce.Do(func() { close(g.done) })
	g.wg.Wait()
	slog.Info("Gateway: shutdown complete")
}

// Forwarded reports the per-direction translation counts.
func (g *Gateway) Forwarded() (canToEth, ethToCan uint64) {
	return g.canToEth.Load(), g.ethToCan.Load()
}

// forward is one direction loop. A consume timeout is a poll cycle, not an
// error; it is where the shutdown signal is observed.
func forward[S, D frame.Frame](g *Gateway, name string, src *bus.Bus[S], dst *bus.Bus[D], translate func(S) (D, error)) {
	for {
		select {
		case <-g.done:
			slog.Debug(fmt.Sprintf("Gateway: %s: shutdown", name))
			return
		default:
		}

		f, err := src.Consume(g.poll)
		if err != nil {
			if stderrors.Is(err, errors.ErrConsumeTimeout) {
				continue
			}
			if stderrors.Is(err, errors.ErrBusClosed) {
				slog.Debug(fmt.Sprintf("Gateway: %s: source bus closed", name))
				return
			}
			slog.Warn(fmt.Sprintf("Gateway: %s: consume: %v", name, err))
			continue
		}

		verdict := g.pipeline.Inspect(f)
		if !verdict.Accepted {
			g.terminal(f, metrics.StageDropped, verdict.Reason)
			continue
		}

		out, err := translate(f)
		if err != nil {
			slog.Debug(fmt.Sprintf("Gateway: %s: translate: %v", name, err))
			g.terminal(f, metrics.StageDropped, metrics.ReasonFiltered)
			continue
		}

		if err := dst.Publish(out); err != nil {
			// Backpressure drop, recorded distinctly from security drops.
			g.terminal(f, metrics.StageDropped, metrics.ReasonBusFull)
			continue
		}
		g.terminal(f, metrics.StageDelivered, metrics.ReasonNone)
	}
}

func (g *Gateway) terminal(f frame.Frame, stage metrics.Stage, reason metrics.Reason) {
	g.sink.Record(metrics.Event{
		FrameId: f.Identity(),
		Source:  f.Origin(),
		Stage:   stage,
		Reason:  reason,
		Created: f.CreatedAt(),
		At:      g.clk.Now(),
	})
}
