// Copyright 2025 Robert Bosch GmbH
//
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"time"

	"github.com/google/uuid"
)

type Stage uint8

const (
	StageGenerated Stage = iota
	StageBusEnqueued
	StageBusDequeued
	StageAuthChecked
	StageFiltered
	StageRateLimited
	StageDelivered
	StageDropped
	StageAborted
)

func (s Stage) String() string {
	switch s {
	case StageGenerated:
		return "generated"
	case StageBusEnqueued:
		return "bus-enqueued"
	case StageBusDequeued:
		return "bus-dequeued"
	case StageAuthChecked:
		return "auth-checked"
	case StageFiltered:
		return "filtered"
	case StageRateLimited:
		return "rate-limited"
	case StageDelivered:
		return "delivered"
	case StageDropped:
		return "dropped"
	case StageAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonFiltered
	ReasonAuthFailed
	ReasonReplay
	ReasonRateLimited
	ReasonBusFull
	ReasonAborted
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonFiltered:
		return "filtered"
	case ReasonAuthFailed:
		return "auth-failed"
	case ReasonReplay:
		return "replay"
	case ReasonRateLimited:
		return "rate-limited"
	case ReasonBusFull:
		return "bus-full"
	case ReasonAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Security reports whether the drop reason was produced by the security
// pipeline (as opposed to backpressure or teardown).
func (r Reason) Security() bool {
	switch r {
	case ReasonFiltered, ReasonAuthFailed, ReasonReplay, ReasonRateLimited:
		return true
	default:
		return false
	}
}

// Event is one record in a frame's lifecycle. Created is the frame creation
// timestamp carried end-to-end; At is when the stage was reached. Attack marks
// ground-truth adversarial traffic.
type Event struct {
	FrameId uuid.UUID
	Source  string
	Stage   Stage
	Reason  Reason
	Attack  bool
	Created time.Time
	At      time.Time
}

// Sink receives lifecycle events. Implementations must be safe for concurrent
// callers and must keep Record short; it sits on the gateway hot path.
type Sink interface {
	Record(Event)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Record(Event) {}
