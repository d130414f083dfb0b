// Copyright 2025 Robert Bosch GmbH
//
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Engine aggregates lifecycle events into running statistics. All aggregation
// happens inside a single short critical section per event; derived values are
// computed on demand by Snapshot.
type Engine struct {
	mu sync.Mutex

	first time.Time
	last  time.Time

	presented       uint64
	attackPresented uint64

	delivered     uint64
	dropped       uint64
	aborted       uint64
	dropByReason  map[Reason]uint64
	attackDropped uint64 // security drops of attack frames
	legitDropped  uint64 // security drops of legitimate frames

	latencies []float64            // ms, delivered frames, delivery order
	bySource  map[string][]float64 // ms, per-source delivered latencies

	// Ground truth by frame identity. Replayed frames carry a victim source
	// tag, so classification by source alone would miscount them.
	attackIds map[uuid.UUID]struct{}

	// First terminal event wins; later terminal events for the same frame
	// (a settle abort of an already delivered frame) are ignored.
	terminalIds map[uuid.UUID]struct{}
}

func NewEngine() *Engine {
	return &Engine{
		dropByReason: make(map[Reason]uint64),
		bySource:     make(map[string][]float64),
		attackIds:    make(map[uuid.UUID]struct{}),
		terminalIds:  make(map[uuid.UUID]struct{}),
	}
}

func (e *Engine) Record(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.first.IsZero() || ev.At.Before(e.first) {
		e.first = ev.At
	}
	if ev.At.After(e.last) {
		e.last = ev.At
	}

	switch ev.Stage {
	case StageDelivered, StageDropped, StageAborted:
		if _, ok := e.terminalIds[ev.FrameId]; ok {
			return
		}
		e.terminalIds[ev.FrameId] = struct{}{}
	}

	switch ev.Stage {
	case StageGenerated:
		e.presented++
		if ev.Attack {
			e.attackPresented++
			e.attackIds[ev.FrameId] = struct{}{}
		}
	case StageDelivered:
		e.delivered++
		ms := float64(ev.At.Sub(ev.Created)) / float64(time.Millisecond)
		e.latencies = append(e.latencies, ms)
		e.bySource[ev.Source] = append(e.bySource[ev.Source], ms)
	case StageDropped:
		e.dropped++
		e.dropByReason[ev.Reason]++
		if ev.Reason.Security() {
			if e.isAttack(ev) {
				e.attackDropped++
			} else {
				e.legitDropped++
			}
		}
	case StageAborted:
		e.aborted++
		e.dropByReason[ReasonAborted]++
	}
}

func (e *Engine) isAttack(ev Event) bool {
	if ev.Attack {
		return true
	}
	_, ok := e.attackIds[ev.FrameId]
	return ok
}
