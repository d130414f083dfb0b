// Copyright 2025 Robert Bosch GmbH
//
// SPDX-License-Identifier: Apache-2.0

package attack

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/bus"
	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/frame"
	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/metrics"
	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/security"
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

func (s *recordingSink) attackGenerated() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, ev := range s.events {
		if ev.Stage == metrics.StageGenerated && ev.Attack {
			n++
		}
	}
	return n
}

func testPipeline(t *testing.T, keys map[string][]byte, threshold int) *security.Pipeline {
	t.Helper()
	p, err := security.NewPipeline(security.Config{
		Enabled:   true,
		Keys:      keys,
		Window:    time.Second,
		Threshold: threshold,
	}, nil)
	require.Nil(t, err)
	return p
}

func runInjector(t *testing.T, inj Injector) {
	t.Helper()
	inj.Start()
	time.Sleep(100 * time.Millisecond)
	inj.Shutdown()
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "replay", ModeReplay.String())
	assert.Equal(t, "spoof", ModeSpoof.String())
	assert.Equal(t, "dos", ModeDos.String())
	assert.Equal(t, "combined", ModeCombined.String())
}

func TestReplayInjectsCapturedFrames(t *testing.T) {
	keys := map[string][]byte{"ecu-1": []byte("secret")}
	pipeline := testPipeline(t, keys, 1000)
	canBus, err := bus.New[frame.Can]("can", 256, bus.Block, nil)
	require.Nil(t, err)
	sink := &recordingSink{}

	a, err := NewReplay(ReplayConfig{Rate: 500, Duration: 80 * time.Millisecond, Seed: 1},
		canBus, sink, nil)
	require.Nil(t, err)
	assert.Equal(t, ModeReplay, a.Mode())

	// Capture one legitimate sealed frame, delivered and accepted upstream.
	legit := frame.NewCan(0x100, []byte{1, 2, 3, 4}, frame.KindBase, "ecu-1")
	tag, err := pipeline.Seal("ecu-1", legit.Id, legit.Payload)
	require.Nil(t, err)
	legit.Auth = tag
	require.True(t, pipeline.Inspect(legit).Accepted)
	a.Observe(legit)

	runInjector(t, a)
	require.Greater(t, a.Injected(), uint64(0))
	assert.Equal(t, int(a.Injected()), sink.attackGenerated())

	// Replayed copies: same wire content and tag, fresh identity, and the
	// pipeline rejects the stale counter.
	replayed, err := canBus.Consume(time.Millisecond)
	require.Nil(t, err)
	assert.Equal(t, legit.Payload, replayed.Payload)
	assert.Equal(t, legit.Auth, replayed.Auth)
	assert.Equal(t, "ecu-1", replayed.Source)
	assert.NotEqual(t, legit.FrameId, replayed.FrameId)

	v := pipeline.Inspect(replayed)
	assert.False(t, v.Accepted)
	assert.Equal(t, metrics.ReasonReplay, v.Reason)
}

func TestReplayWithoutCaptureIsSilent(t *testing.T) {
	canBus, err := bus.New[frame.Can]("can", 16, bus.Block, nil)
	require.Nil(t, err)

	a, err := NewReplay(ReplayConfig{Rate: 500, Duration: 50 * time.Millisecond, Seed: 1},
		canBus, nil, nil)
	require.Nil(t, err)

	runInjector(t, a)
	assert.Equal(t, uint64(0), a.Injected())
	assert.Equal(t, 0, canBus.Len())
}

func TestReplayObserveIgnoresEthernetFrames(t *testing.T) {
	canBus, err := bus.New[frame.Can]("can", 16, bus.Block, nil)
	require.Nil(t, err)
	a, err := NewReplay(ReplayConfig{Rate: 500, Duration: 50 * time.Millisecond, Seed: 1},
		canBus, nil, nil)
	require.Nil(t, err)

	a.Observe(frame.Ethernet{Channel: 0x100, Encap: []byte{1}})
	runInjector(t, a)
	assert.Equal(t, uint64(0), a.Injected())
}

func TestSpoofWithoutTag(t *testing.T) {
	keys := map[string][]byte{"ecu-1": []byte("secret")}
	pipeline := testPipeline(t, keys, 1000)
	ethBus, err := bus.New[frame.Ethernet]("eth", 256, bus.Block, nil)
	require.Nil(t, err)
	sink := &recordingSink{}

	a, err := NewSpoof(SpoofConfig{
		Victim: "ecu-1", Channel: 0x100, Rate: 500,
		Duration: 80 * time.Millisecond, Seed: 1,
	}, ethBus, sink, nil)
	require.Nil(t, err)
	assert.Equal(t, ModeSpoof, a.Mode())

	runInjector(t, a)
	require.Greater(t, a.Injected(), uint64(0))

	spoofed, err := ethBus.Consume(time.Millisecond)
	require.Nil(t, err)
	assert.Equal(t, "ecu-1", spoofed.Source)
	assert.Nil(t, spoofed.Auth)

	v := pipeline.Inspect(spoofed)
	assert.False(t, v.Accepted)
	assert.Equal(t, metrics.ReasonAuthFailed, v.Reason)
}

func TestSpoofWithForgedTag(t *testing.T) {
	keys := map[string][]byte{"ecu-1": []byte("secret")}
	pipeline := testPipeline(t, keys, 1000)
	ethBus, err := bus.New[frame.Ethernet]("eth", 256, bus.Block, nil)
	require.Nil(t, err)

	a, err := NewSpoof(SpoofConfig{
		Victim: "ecu-1", Channel: 0x100, Rate: 500,
		Duration: 80 * time.Millisecond, Forge: true, Seed: 1,
	}, ethBus, nil, nil)
	require.Nil(t, err)

	runInjector(t, a)
	require.Greater(t, a.Injected(), uint64(0))

	spoofed, err := ethBus.Consume(time.Millisecond)
	require.Nil(t, err)
	require.NotNil(t, spoofed.Auth)
	assert.Len(t, spoofed.Auth.MAC, security.TagLen)

	// A forged MAC never verifies against the victim's key.
	v := pipeline.Inspect(spoofed)
	assert.False(t, v.Accepted)
	assert.Equal(t, metrics.ReasonAuthFailed, v.Reason)
}

func TestDosFlood(t *testing.T) {
	canBus, err := bus.New[frame.Can]("can", 1024, bus.Block, nil)
	require.Nil(t, err)
	sink := &recordingSink{}

	a, err := NewDos(DosConfig{
		Source: "attacker", Channel: 0x400, Rate: 1000,
		Duration: 100 * time.Millisecond, Seed: 1,
	}, canBus, nil, sink, nil)
	require.Nil(t, err)
	assert.Equal(t, ModeDos, a.Mode())

	runInjector(t, a)
	assert.Greater(t, a.Injected(), uint64(10))
	assert.Equal(t, int(a.Injected()), canBus.Len())

	f, err := canBus.Consume(time.Millisecond)
	require.Nil(t, err)
	assert.Equal(t, "attacker", f.Source)
	assert.Nil(t, f.Auth)
}

func TestDosCompromisedKeyConvergesToThreshold(t *testing.T) {
	const threshold = 5
	keys := map[string][]byte{"ecu-compromised": []byte("secret")}
	pipeline := testPipeline(t, keys, threshold)
	canBus, err := bus.New[frame.Can]("can", 1024, bus.Block, nil)
	require.Nil(t, err)

	a, err := NewDos(DosConfig{
		Source: "ecu-compromised", Channel: 0x400, Rate: 1000,
		Duration: 100 * time.Millisecond, Seed: 1,
		Key: keys["ecu-compromised"],
	}, canBus, pipeline, nil, nil)
	require.Nil(t, err)

	runInjector(t, a)
	require.Greater(t, a.Injected(), uint64(threshold))

	// Sealed frames pass filter and auth; only the rate stage stops the
	// flood, bounding acceptance to the window threshold.
	acceptedCount := 0
	rateLimited := 0
	for {
		f, err := canBus.Consume(0)
		if err != nil {
			break
		}
		require.NotNil(t, f.Auth)
		v := pipeline.Inspect(f)
		if v.Accepted {
			acceptedCount++
		} else {
			require.Equal(t, metrics.ReasonRateLimited, v.Reason)
			rateLimited++
		}
	}
	assert.Equal(t, threshold, acceptedCount)
	assert.Greater(t, rateLimited, 0)
}

func TestCombined(t *testing.T) {
	ethBus, err := bus.New[frame.Ethernet]("eth", 256, bus.Block, nil)
	require.Nil(t, err)
	canBus, err := bus.New[frame.Can]("can", 256, bus.Block, nil)
	require.Nil(t, err)

	spoof, err := NewSpoof(SpoofConfig{
		Victim: "ecu-1", Channel: 0x100, Rate: 500,
		Duration: 80 * time.Millisecond, Seed: 1,
	}, ethBus, nil, nil)
	require.Nil(t, err)
	dos, err := NewDos(DosConfig{
		Source: "attacker", Channel: 0x400, Rate: 500,
		Duration: 80 * time.Millisecond, Seed: 2,
	}, canBus, nil, nil, nil)
	require.Nil(t, err)

	combined := NewCombined(spoof, dos)
	assert.Equal(t, ModeCombined, combined.Mode())

	runInjector(t, combined)
	assert.Equal(t, spoof.Injected()+dos.Injected(), combined.Injected())
	assert.Greater(t, combined.Injected(), uint64(0))
}

func TestConfigValidation(t *testing.T) {
	_, err := NewReplay(ReplayConfig{Rate: 0, Duration: time.Second}, nil, nil, nil)
	assert.NotNil(t, err)
	_, err = NewSpoof(SpoofConfig{Victim: "", Rate: 1, Duration: time.Second}, nil, nil, nil)
	assert.NotNil(t, err)
	_, err = NewDos(DosConfig{Source: "", Rate: 1, Duration: time.Second}, nil, nil, nil, nil)
	assert.NotNil(t, err)
}
