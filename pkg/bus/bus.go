// Copyright 2025 Robert Bosch GmbH
//
// SPDX-License-Identifier: Apache-2.0

package bus

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/errors"
	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/frame"
	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/metrics"
)

// Policy selects the backpressure behaviour when the bus is full.
type Policy uint8

const (
	// Block waits up to the publish timeout for capacity.
	Block Policy = iota
	// Reject fails immediately with ErrBusFull.
	Reject
)

var DefaultPublishTimeout = 10 * time.Millisecond

// Bus is a bounded in-process frame channel. Many producers may Publish
// concurrently; exactly one consumer per direction calls Consume, which
// guarantees each frame is observed at most once.
type Bus[T frame.Frame] struct {
	Name string

	ch             chan T
	policy         Policy
	publishTimeout time.Duration

	clk  clock.Clock
	sink metrics.Sink

	closed    chan struct{}
	closeOnce sync.Once
}

type Option[T frame.Frame] func(*Bus[T])

// WithClock replaces the wall clock, for deterministic tests.
func WithClock[T frame.Frame](clk clock.Clock) Option[T] {
	return func(b *Bus[T]) { b.clk = clk }
}

// WithPublishTimeout bounds how long Publish blocks under the Block policy.
func WithPublishTimeout[T frame.Frame](d time.Duration) Option[T] {
	return func(b *Bus[T]) { b.publishTimeout = d }
}

func New[T frame.Frame](name string, capacity int, policy Policy, sink metrics.Sink, opts ...Option[T]) (*Bus[T], error) {
	if capacity <= 0 {
		return nil, errors.ErrBusConfig("bus capacity must be positive")
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	b := &Bus[T]{
		Name:           name,
		ch:             make(chan T, capacity),
		policy:         policy,
		publishTimeout: DefaultPublishTimeout,
		clk:            clock.New(),
		sink:           sink,
		closed:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Publish enqueues a frame. A full bus returns ErrBusFull, either immediately
// (Reject) or after the publish timeout (Block); a closed bus fails fast with
// ErrBusClosed. Neither outcome is fatal, both model routine backpressure.
func (b *Bus[T]) Publish(f T) error {
	select {
	case <-b.closed:
		return errors.ErrBusClosed
	default:
	}

	if b.policy == Reject {
		select {
		case b.ch <- f:
			b.stamp(f, metrics.StageBusEnqueued)
			return nil
		default:
			return errors.ErrBusFull
		}
	}

	timer := b.clk.Timer(b.publishTimeout)
	defer timer.Stop()
	select {
	case b.ch <- f:
		b.stamp(f, metrics.StageBusEnqueued)
		return nil
	case <-b.closed:
		return errors.ErrBusClosed
	case <-timer.C:
		return errors.ErrBusFull
	}
}

// Consume dequeues the next frame, waiting up to timeout. ErrConsumeTimeout
// is a poll cycle, not a failure; callers use it to check for shutdown. After
// Close the remaining frames are drained before ErrBusClosed is returned.
func (b *Bus[T]) Consume(timeout time.Duration) (T, error) {
	var zero T

	// Fast path, also drains a closed bus.
	select {
	case f := <-b.ch:
		b.stamp(f, metrics.StageBusDequeued)
		return f, nil
	default:
	}

	select {
	case <-b.closed:
		return zero, errors.ErrBusClosed
	default:
	}

	timer := b.clk.Timer(timeout)
	defer timer.Stop()
	select {
	case f := <-b.ch:
		b.stamp(f, metrics.StageBusDequeued)
		return f, nil
	case <-b.closed:
		select {
		case f := <-b.ch:
			b.stamp(f, metrics.StageBusDequeued)
			return f, nil
		default:
			return zero, errors.ErrBusClosed
		}
	case <-timer.C:
		return zero, errors.ErrConsumeTimeout
	}
}

// Close marks the bus closed. Pending and future publishers fail fast;
// consumers drain queued frames and then observe ErrBusClosed. Idempotent.
func (b *Bus[T]) Close() {
	b.closeOnce.Do(func() { close(b.closed) })
}

// Len reports the number of queued frames.
func (b *Bus[T]) Len() int {
	return len(b.ch)
}

// Capacity reports the fixed bus capacity.
func (b *Bus[T]) Capacity() int {
	return cap(b.ch)
}

func (b *Bus[T]) stamp(f T, stage metrics.Stage) {
	b.sink.Record(metrics.Event{
		FrameId: f.Identity(),
		Source:  f.Origin(),
		Stage:   stage,
		Created: f.CreatedAt(),
		At:      b.clk.Now(),
	})
}
