// Copyright 2025 Robert Bosch GmbH
//
// SPDX-License-Identifier: Apache-2.0

package trace

import (
	"time"

	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/google/uuid"

	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/metrics"
)

// FileIdentifier marks each size-prefixed event record in a trace stream.
const FileIdentifier = "CGWT"

// Table slots of an event record.
const (
	slotFrameId = iota
	slotSource
	slotStage
	slotReason
	slotAttack
	slotCreated
	slotAt
	slotCount
)

func vtable(slot int) flatbuffers.VOffsetT {
	return flatbuffers.VOffsetT(4 + 2*slot)
}

// encodeEvent serializes one lifecycle event as a size-prefixed flatbuffer
// with the trace file identifier.
func encodeEvent(b *flatbuffers.Builder, ev metrics.Event) []byte {
	b.Reset()
	frameId := b.CreateByteVector(ev.FrameId[:])
	source := b.CreateString(ev.Source)
	b.StartObject(slotCount)
	b.PrependUOffsetTSlot(slotFrameId, frameId, 0)
	b.PrependUOffsetTSlot(slotSource, source, 0)
	b.PrependByteSlot(slotStage, byte(ev.Stage), 0)
	b.PrependByteSlot(slotReason, byte(ev.Reason), 0)
	b.PrependBoolSlot(slotAttack, ev.Attack, false)
	b.PrependInt64Slot(slotCreated, ev.Created.UnixNano(), 0)
	b.PrependInt64Slot(slotAt, ev.At.UnixNano(), 0)
	root := b.EndObject()
	b.FinishSizePrefixedWithFileIdentifier(root, []byte(FileIdentifier))
	return b.FinishedBytes()
}

// EventMsg is a decoded event record backed by the trace buffer.
type EventMsg struct {
	tab flatbuffers.Table
}

// GetSizePrefixedRootAsEvent initializes an EventMsg from a size-prefixed
// buffer.
func GetSizePrefixedRootAsEvent(buf []byte, offset flatbuffers.UOffsetT) *EventMsg {
	n := flatbuffers.GetUOffsetT(buf[offset+flatbuffers.SizeUint32:])
	m := &EventMsg{}
	m.tab.Bytes = buf
	m.tab.Pos = n + offset + flatbuffers.SizeUint32
	return m
}

// GetRootAsEvent initializes an EventMsg from a bare record body (no size
// prefix).
func GetRootAsEvent(buf []byte, offset flatbuffers.UOffsetT) *EventMsg {
	n := flatbuffers.GetUOffsetT(buf[offset:])
	m := &EventMsg{}
	m.tab.Bytes = buf
	m.tab.Pos = n + offset
	return m
}

func (m *EventMsg) FrameId() uuid.UUID {
	var id uuid.UUID
	if o := flatbuffers.UOffsetT(m.tab.Offset(vtable(slotFrameId))); o != 0 {
		copy(id[:], m.tab.ByteVector(o+m.tab.Pos))
	}
	return id
}

func (m *EventMsg) Source() string {
	if o := flatbuffers.UOffsetT(m.tab.Offset(vtable(slotSource))); o != 0 {
		return string(m.tab.ByteVector(o + m.tab.Pos))
	}
	return ""
}

func (m *EventMsg) Stage() metrics.Stage {
	if o := flatbuffers.UOffsetT(m.tab.Offset(vtable(slotStage))); o != 0 {
		return metrics.Stage(m.tab.GetByte(o + m.tab.Pos))
	}
	return metrics.StageGenerated
}

func (m *EventMsg) Reason() metrics.Reason {
	if o := flatbuffers.UOffsetT(m.tab.Offset(vtable(slotReason))); o != 0 {
		return metrics.Reason(m.tab.GetByte(o + m.tab.Pos))
	}
	return metrics.ReasonNone
}

func (m *EventMsg) Attack() bool {
	if o := flatbuffers.UOffsetT(m.tab.Offset(vtable(slotAttack))); o != 0 {
		return m.tab.GetBool(o + m.tab.Pos)
	}
	return false
}

func (m *EventMsg) Created() time.Time {
	if o := flatbuffers.UOffsetT(m.tab.Offset(vtable(slotCreated))); o != 0 {
		return time.Unix(0, m.tab.GetInt64(o+m.tab.Pos))
	}
	return time.Time{}
}

func (m *EventMsg) At() time.Time {
	if o := flatbuffers.UOffsetT(m.tab.Offset(vtable(slotAt))); o != 0 {
		return time.Unix(0, m.tab.GetInt64(o+m.tab.Pos))
	}
	return time.Time{}
}

// Event converts the record back into the metrics event value.
func (m *EventMsg) Event() metrics.Event {
	return metrics.Event{
		FrameId: m.FrameId(),
		Source:  m.Source(),
		Stage:   m.Stage(),
		Reason:  m.Reason(),
		Attack:  m.Attack(),
		Created: m.Created(),
		At:      m.At(),
	}
}
