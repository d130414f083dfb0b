// Copyright 2025 Robert Bosch GmbH
//
// SPDX-License-Identifier: Apache-2.0

package frame

import (
	"time"

	"github.com/google/uuid"
)

// Tag carries the producer counter and truncated HMAC for a frame. A nil Tag
// means the frame was produced with security disabled (or by an attacker).
type Tag struct {
	Counter uint64
	MAC     []byte
}

// Frame is implemented by both bus representations. Frames are immutable once
// created; accessors return the values set at construction.
type Frame interface {
	Identity() uuid.UUID
	Origin() string
	ChannelID() uint32
	Data() []byte
	CreatedAt() time.Time
	AuthTag() *Tag
}
