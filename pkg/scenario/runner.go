// Copyright 2025 Robert Bosch GmbH
//
// SPDX-License-Identifier: Apache-2.0

package scenario

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/errgroup"

	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/attack"
	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/bus"
	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/errors"
	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/frame"
	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/gateway"
	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/metrics"
	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/security"
	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/traffic"
)

// Runner owns one scenario run: it constructs the buses, pipeline, gateway,
// generators and attack workers (failing fast on misconfiguration), drives
// them for the run duration and settles the accounting before reporting.
type Runner struct {
	cfg Config

	engine *metrics.Engine
	sink   metrics.Sink
	clk    clock.Clock

	canIn  *bus.Bus[frame.Can]
	canOut *bus.Bus[frame.Can]
	ethIn  *bus.Bus[frame.Ethernet]
	ethOut *bus.Bus[frame.Ethernet]

	pipeline   *security.Pipeline
	gw         *gateway.Gateway
	generators []*traffic.Generator
	attacks    []attack.Injector

	endpointDone chan struct{}
	endpointWg   sync.WaitGroup
}

type Option func(*Runner)

func WithClock(clk clock.Clock) Option {
	return func(r *Runner) { r.clk = clk }
}

// WithSink decorates the metrics engine sink (trace recorder, mirror). The
// decorator must forward every event to the engine it wraps.
func WithSink(wrap func(metrics.Sink) metrics.Sink) Option {
	return func(r *Runner) { r.sink = wrap(r.sink) }
}

func NewRunner(cfg Config, opts ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Runner{
		cfg:    cfg,
		engine: metrics.NewEngine(),
		clk:    clock.New(),
	}
	r.sink = r.engine
	for _, opt := range opts {
		opt(r)
	}

	if err := r.build(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Runner) build() error {
	policy, err := r.cfg.Bus.policy()
	if err != nil {
		return err
	}
	busOptsCan := []bus.Option[frame.Can]{bus.WithClock[frame.Can](r.clk)}
	busOptsEth := []bus.Option[frame.Ethernet]{bus.WithClock[frame.Ethernet](r.clk)}
	if d := r.cfg.Bus.PublishTimeout.Std(); d > 0 {
		busOptsCan = append(busOptsCan, bus.WithPublishTimeout[frame.Can](d))
		busOptsEth = append(busOptsEth, bus.WithPublishTimeout[frame.Ethernet](d))
	}
	// Ingress buses carry traffic towards the gateway; egress buses are the
	// delivery end of the opposite domain.
	if r.canIn, err = bus.New("can.in", r.cfg.Bus.Capacity, policy, r.sink, busOptsCan...); err != nil {
		return err
	}
	if r.canOut, err = bus.New("can.out", r.cfg.Bus.Capacity, policy, r.sink, busOptsCan...); err != nil {
		return err
	}
	if r.ethIn, err = bus.New("eth.in", r.cfg.Bus.Capacity, policy, r.sink, busOptsEth...); err != nil {
		return err
	}
	if r.ethOut, err = bus.New("eth.out", r.cfg.Bus.Capacity, policy, r.sink, busOptsEth...); err != nil {
		return err
	}

	if r.pipeline, err = security.NewPipeline(r.cfg.Security.pipelineConfig(), r.sink, security.WithClock(r.clk)); err != nil {
		return err
	}

	gwOpts := []gateway.Option{gateway.WithClock(r.clk)}
	if d := r.cfg.Bus.Poll.Std(); d > 0 {
		gwOpts = append(gwOpts, gateway.WithPollInterval(d))
	}
	if r.gw, err = gateway.New(r.canIn, r.canOut, r.ethIn, r.ethOut, r.pipeline, r.sink, gwOpts...); err != nil {
		return err
	}

	// Replay workers tap every generator; build attacks first so the taps
	// can be registered at generator construction.
	var replays []*attack.Replay
	for i := range r.cfg.Attacks {
		inj, err := r.buildAttack(&r.cfg.Attacks[i], int64(i))
		if err != nil {
			return err
		}
		if rp, ok := inj.(*attack.Replay); ok {
			replays = append(replays, rp)
		}
		r.attacks = append(r.attacks, inj)
	}

	for i := range r.cfg.Traffic {
		gcfg, err := r.cfg.Traffic[i].generatorConfig(r.cfg.Seed + int64(i))
		if err != nil {
			return err
		}
		genOpts := []traffic.Option{traffic.WithClock(r.clk)}
		for _, rp := range replays {
			genOpts = append(genOpts, traffic.WithTap(rp.Observe))
		}
		gen, err := traffic.NewGenerator(gcfg, r.canIn, r.ethIn, r.pipeline, r.sink, genOpts...)
		if err != nil {
			return err
		}
		r.generators = append(r.generators, gen)
	}
	return nil
}

func (r *Runner) buildAttack(cfg *AttackConfig, ordinal int64) (attack.Injector, error) {
	mode, err := cfg.mode()
	if err != nil {
		return nil, err
	}
	seed := r.cfg.Seed + 1000 + ordinal
	switch mode {
	case attack.ModeReplay:
		return attack.NewReplay(attack.ReplayConfig{
			Rate:     cfg.Rate,
			Delay:    cfg.Delay.Std(),
			Duration: cfg.Duration.Std(),
			Capture:  cfg.Capture,
			Seed:     seed,
		}, r.canIn, r.sink, r.clk)
	case attack.ModeSpoof:
		return attack.NewSpoof(attack.SpoofConfig{
			Victim:   cfg.Victim,
			Channel:  cfg.Channel,
			Rate:     cfg.Rate,
			Delay:    cfg.Delay.Std(),
			Duration: cfg.Duration.Std(),
			Forge:    cfg.Forge,
			Seed:     seed,
		}, r.ethIn, r.sink, r.clk)
	case attack.ModeDos:
		return attack.NewDos(attack.DosConfig{
			Source:   cfg.Source,
			Channel:  cfg.Channel,
			Rate:     cfg.Rate,
			Delay:    cfg.Delay.Std(),
			Duration: cfg.Duration.Std(),
			Seed:     seed,
			Key:      []byte(cfg.Key),
		}, r.canIn, r.pipeline, r.sink, r.clk)
	default:
		return nil, errors.ErrScenarioConfig(fmt.Sprintf("unknown attack mode: %q", cfg.Mode))
	}
}

// Gateway exposes the constructed gateway (test support).
func (r *Runner) Gateway() *gateway.Gateway { return r.gw }

// Pipeline exposes the constructed security pipeline (test support).
func (r *Runner) Pipeline() *security.Pipeline { return r.pipeline }

// Run drives the scenario: start everything, wait for the run duration (or
// for all counted generators to finish, or ctx cancellation), then shut down
// and settle the accounting. Every presented frame has reached a terminal
// event when Run returns.
func (r *Runner) Run(ctx context.Context) (metrics.Report, error) {
	slog.Info(fmt.Sprintf("Scenario: %s: run (duration=%v security=%v)", r.cfg.Name, r.cfg.Duration.Std(), r.pipeline.Enabled()))

	r.gw.Start()
	r.startEndpoints()
	for _, gen := range r.generators {
		gen.Start()
	}
	for _, inj := range r.attacks {
		inj.Start()
	}

	r.await(ctx)
	r.stop()
	r.settle()

	report := r.engine.Snapshot()
	slog.Info(fmt.Sprintf("Scenario: %s: done (presented=%d delivered=%d dropped=%d aborted=%d)",
		r.cfg.Name, report.Presented, report.Delivered, report.Dropped, report.Aborted))
	return report, ctx.Err()
}

// startEndpoints launches the egress consumers. Delivered frames already
// carry their terminal event; the endpoints model the destination domain
// reading its traffic, keeping egress capacity free.
func (r *Runner) startEndpoints() {
	r.endpointDone = make(chan struct{})
	r.endpointWg.Add(2)
	go endpoint(r, r.canOut)
	go endpoint(r, r.ethOut)
}

func endpoint[T frame.Frame](r *Runner, b *bus.Bus[T]) {
	defer r.endpointWg.Done()
	poll := r.graceInterval() / 4
	for {
		select {
		case <-r.endpointDone:
			return
		default:
		}
		if _, err := b.Consume(poll); err != nil {
			if stderrors.Is(err, errors.ErrBusClosed) {
				return
			}
		}
	}
}

// await blocks until the run duration elapses, all counted generators finish,
// or the context is cancelled.
func (r *Runner) await(ctx context.Context) {
	deadline := r.clk.Timer(r.cfg.Duration.Std())
	defer deadline.Stop()

	// Generators are built in config order; a generator with a frame count
	// bounds the run from below, the duration bounds it from above.
	counted := false
	eg, egctx := errgroup.WithContext(ctx)
	for i, gen := range r.generators {
		if r.cfg.Traffic[i].Count == 0 {
			continue
		}
		counted = true
		finished := gen.Finished()
		eg.Go(func() error {
			select {
			case <-finished:
				return nil
			case <-egctx.Done():
				return egctx.Err()
			}
		})
	}
	finished := make(chan error, 1)
	if counted {
		go func() { finished <- eg.Wait() }()
	}

	select {
	case <-ctx.Done():
	case <-deadline.C:
	case err := <-finished:
		if err == nil {
			// Let in-flight frames and attack tails drain for one more
			// grace interval before stopping.
			grace := r.clk.Timer(r.graceInterval())
			defer grace.Stop()
			select {
			case <-grace.C:
			case <-ctx.Done():
			case <-deadline.C:
			}
		}
	}
}

func (r *Runner) graceInterval() time.Duration {
	if d := r.cfg.Bus.Poll.Std(); d > 0 {
		return 4 * d
	}
	return 4 * gateway.DefaultPollInterval
}

// stop halts producers first, lets the gateway drain, then stops the gateway.
func (r *Runner) stop() {
	for _, gen := range r.generators {
		gen.Shutdown()
	}
	for _, inj := range r.attacks {
		inj.Shutdown()
	}

	drained := r.clk.Timer(r.graceInterval())
	defer drained.Stop()
	for r.canIn.Len() > 0 || r.ethIn.Len() > 0 {
		select {
		case <-drained.C:
		default:
			r.clk.Sleep(time.Millisecond)
			continue
		}
		break
	}

	r.gw.Shutdown()

	close(r.endpointDone)
	r.endpointWg.Wait()
}

// settle closes the buses and records an aborted terminal event for every
// frame still stranded on an ingress queue, so the loss accounting closes
// exactly. Egress queues hold delivered frames; draining them records no
// further terminal events (the engine keeps the first terminal per frame).
func (r *Runner) settle() {
	drain(r.canIn, r.abort)
	drain(r.canOut, r.abort)
	drain(r.ethIn, r.abort)
	drain(r.ethOut, r.abort)
}

func drain[T frame.Frame](b *bus.Bus[T], abort func(frame.Frame)) {
	b.Close()
	for {
		f, err := b.Consume(0)
		if err != nil {
			if !stderrors.Is(err, errors.ErrBusClosed) {
				slog.Warn(fmt.Sprintf("Scenario: settle %s: %v", b.Name, err))
			}
			return
		}
		abort(f)
	}
}

func (r *Runner) abort(f frame.Frame) {
	r.sink.Record(metrics.Event{
		FrameId: f.Identity(),
		Source:  f.Origin(),
		Stage:   metrics.StageAborted,
		Reason:  metrics.ReasonAborted,
		Created: f.CreatedAt(),
		At:      r.clk.Now(),
	})
}
