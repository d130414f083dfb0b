// Copyright 2025 Robert Bosch GmbH
//
// SPDX-License-Identifier: Apache-2.0

package bus

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/errors"
	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/frame"
	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/metrics"
)

type recordingSink struct {
	mu     sync.Mutex
	events []metrics.Event
}

func (s *recordingSink) Record(ev metrics.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) count(stage metrics.Stage) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, ev := range s.events {
		if ev.Stage == stage {
			n++
		}
	}
	return n
}

func testFrame(source string) frame.Can {
	return frame.NewCan(0x100, []byte{1, 2, 3, 4}, frame.KindBase, source)
}

func TestNewBusConfig(t *testing.T) {
	_, err := New[frame.Can]("can", 0, Block, nil)
	assert.NotNil(t, err)
	_, err = New[frame.Can]("can", -1, Block, nil)
	assert.NotNil(t, err)

	b, err := New[frame.Can]("can", 8, Block, nil)
	require.Nil(t, err)
	assert.Equal(t, 8, b.Capacity())
	assert.Equal(t, 0, b.Len())
}

func TestPublishConsumeOrder(t *testing.T) {
	b, err := New[frame.Can]("can", 4, Block, nil)
	require.Nil(t, err)

	sent := []frame.Can{testFrame("a"), testFrame("b"), testFrame("c")}
	for _, f := range sent {
		assert.Nil(t, b.Publish(f))
	}
	assert.Equal(t, 3, b.Len())

	for _, want := range sent {
		got, err := b.Consume(time.Millisecond)
		require.Nil(t, err)
		assert.Equal(t, want.FrameId, got.FrameId)
	}
}

func TestPublishRejectPolicy(t *testing.T) {
	b, err := New[frame.Can]("can", 1, Reject, nil)
	require.Nil(t, err)

	assert.Nil(t, b.Publish(testFrame("a")))
	assert.ErrorIs(t, b.Publish(testFrame("b")), errors.ErrBusFull)

	// Draining frees capacity again.
	_, err = b.Consume(time.Millisecond)
	require.Nil(t, err)
	assert.Nil(t, b.Publish(testFrame("c")))
}

func TestPublishBlockPolicyTimeout(t *testing.T) {
	b, err := New[frame.Can]("can", 1, Block, nil,
		WithPublishTimeout[frame.Can](2*time.Millisecond))
	require.Nil(t, err)

	assert.Nil(t, b.Publish(testFrame("a")))
	assert.ErrorIs(t, b.Publish(testFrame("b")), errors.ErrBusFull)
}

func TestPublishBlockPolicyWaits(t *testing.T) {
	b, err := New[frame.Can]("can", 1, Block, nil,
		WithPublishTimeout[frame.Can](time.Second))
	require.Nil(t, err)

	assert.Nil(t, b.Publish(testFrame("a")))

	done := make(chan error, 1)
	go func() { done <- b.Publish(testFrame("b")) }()

	// A slow consumer frees capacity before the publish timeout.
	time.Sleep(5 * time.Millisecond)
	_, err = b.Consume(time.Millisecond)
	require.Nil(t, err)
	assert.Nil(t, <-done)
}

func TestConsumeTimeout(t *testing.T) {
	b, err := New[frame.Can]("can", 1, Block, nil)
	require.Nil(t, err)

	_, err = b.Consume(time.Millisecond)
	assert.ErrorIs(t, err, errors.ErrConsumeTimeout)
}

func TestCloseSemantics(t *testing.T) {
	b, err := New[frame.Can]("can", 4, Block, nil)
	require.Nil(t, err)

	assert.Nil(t, b.Publish(testFrame("a")))
	assert.Nil(t, b.Publish(testFrame("b")))

	b.Close()
	b.Close() // idempotent

	assert.ErrorIs(t, b.Publish(testFrame("c")), errors.ErrBusClosed)

	// Queued frames drain before the closed error surfaces.
	_, err = b.Consume(time.Millisecond)
	assert.Nil(t, err)
	_, err = b.Consume(time.Millisecond)
	assert.Nil(t, err)
	_, err = b.Consume(time.Millisecond)
	assert.ErrorIs(t, err, errors.ErrBusClosed)
}

func TestExactlyOnceDelivery(t *testing.T) {
	const producers = 8
	const perProducer = 50

	b, err := New[frame.Can]("can", 16, Block, nil,
		WithPublishTimeout[frame.Can](time.Second))
	require.Nil(t, err)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				if err := b.Publish(testFrame(fmt.Sprintf("ecu-%d", p))); err != nil {
					t.Error(err)
					return
				}
			}
		}(p)
	}

	seen := map[uuid.UUID]int{}
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		for len(seen) < producers*perProducer {
			f, err := b.Consume(100 * time.Millisecond)
			if err != nil {
				t.Error(err)
				return
			}
			seen[f.FrameId]++
		}
	}()

	wg.Wait()
	<-consumed

	assert.Len(t, seen, producers*perProducer)
	for id, n := range seen {
		assert.Equal(t, 1, n, "frame %s observed more than once", id)
	}
}

func TestBusStampsLifecycle(t *testing.T) {
	sink := &recordingSink{}
	b, err := New[frame.Can]("can", 4, Block, sink)
	require.Nil(t, err)

	assert.Nil(t, b.Publish(testFrame("a")))
	assert.Nil(t, b.Publish(testFrame("b")))
	_, err = b.Consume(time.Millisecond)
	require.Nil(t, err)

	assert.Equal(t, 2, sink.count(metrics.StageBusEnqueued))
	assert.Equal(t, 1, sink.count(metrics.StageBusDequeued))
}
