// Copyright 2025 Robert Bosch GmbH
//
// SPDX-License-Identifier: Apache-2.0

package connection

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/metrics"
)

// EventChannel is the mirror channel carrying lifecycle events.
const EventChannel = "events"

// eventWire is the mirrored image of a metrics event.
type eventWire struct {
	FrameId []byte
	Source  string
	Stage   string
	Reason  string
	Attack  bool
	Created int64 // unix nanos
	At      int64
}

// Mirror is a metrics.Sink that forwards terminal lifecycle events over a
// Connection and passes every event to the wrapped sink. Terminal-only keeps
// the mirrored volume bounded under flood attacks.
type Mirror struct {
	mu   sync.Mutex
	conn Connection
	next metrics.Sink
	all  bool
}

func NewMirror(conn Connection, next metrics.Sink) *Mirror {
	if next == nil {
		next = metrics.NopSink{}
	}
	return &Mirror{conn: conn, next: next}
}

// MirrorAll forwards every lifecycle stage, not only terminal ones.
func (m *Mirror) MirrorAll() *Mirror {
	m.all = true
	return m
}

func (m *Mirror) Record(ev metrics.Event) {
	if m.all || terminal(ev.Stage) {
		id := ev.FrameId
		wire := eventWire{
			FrameId: id[:],
			Source:  ev.Source,
			Stage:   ev.Stage.String(),
			Reason:  ev.Reason.String(),
			Attack:  ev.Attack,
			Created: ev.Created.UnixNano(),
			At:      ev.At.UnixNano(),
		}
		if buf, err := msgpack.Marshal(wire); err == nil {
			m.mu.Lock()
			if err := m.conn.SendMessage(buf, EventChannel); err != nil {
				slog.Debug(fmt.Sprintf("Mirror: send: %v", err))
			}
			m.mu.Unlock()
		}
	}
	m.next.Record(ev)
}

func terminal(stage metrics.Stage) bool {
	switch stage {
	case metrics.StageDelivered, metrics.StageDropped, metrics.StageAborted:
		return true
	default:
		return false
	}
}
