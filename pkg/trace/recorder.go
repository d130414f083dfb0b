// Copyright 2025 Robert Bosch GmbH
//
// SPDX-License-Identifier: Apache-2.0

package trace

import (
	"io"
	"sync"

	flatbuffers "github.com/google/flatbuffers/go"

	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/metrics"
)

// Recorder is a metrics.Sink that appends every event to a trace stream,
// then forwards it to the wrapped sink. Writes are serialized; the builder is
// reused across records.
type Recorder struct {
	mu      sync.Mutex
	out     io.Writer
	builder *flatbuffers.Builder
	next    metrics.Sink
}

func NewRecorder(out io.Writer, next metrics.Sink) *Recorder {
	if next == nil {
		next = metrics.NopSink{}
	}
	return &Recorder{
		out:     out,
		builder: flatbuffers.NewBuilder(256),
		next:    next,
	}
}

func (r *Recorder) Record(ev metrics.Event) {
	r.mu.Lock()
	buf := encodeEvent(r.builder, ev)
	_, _ = r.out.Write(buf)
	r.mu.Unlock()
	r.next.Record(ev)
}
