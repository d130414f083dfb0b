// Copyright 2025 Robert Bosch GmbH
//
// SPDX-License-Identifier: Apache-2.0

package frame

import (
	"time"

	"github.com/google/uuid"

	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/errors"
)

type CanKind uint8

const (
	KindBase CanKind = iota
	KindExtended
	KindFdBase
	KindFdExtended
)

const (
	MaxIdBase     = 0x7FF
	MaxIdExtended = 0x1FFFFFFF

	MaxPayloadClassic = 8
	MaxPayloadFd      = 64
)

// Can is a CAN 2.0 or CAN FD frame. The Auth tag models an in-payload HMAC
// trailer; it is carried out-of-band so the DLC still describes the
// application payload.
type Can struct {
	Id      uint32
	Dlc     uint8
	Payload []byte
	Kind    CanKind
	Source  string
	Created time.Time
	FrameId uuid.UUID
	Auth    *Tag
}

// NewCan stamps identity and creation time; the caller supplies the wire
// fields. Dlc is derived from the payload.
func NewCan(id uint32, payload []byte, kind CanKind, source string) Can {
	return Can{
		Id:      id,
		Dlc:     uint8(len(payload)),
		Payload: payload,
		Kind:    kind,
		Source:  source,
		Created: time.Now(),
		FrameId: uuid.New(),
	}
}

func (f Can) Fd() bool {
	return f.Kind == KindFdBase || f.Kind == KindFdExtended
}

func (f Can) Extended() bool {
	return f.Kind == KindExtended || f.Kind == KindFdExtended
}

func (f Can) Validate() error {
	maxId := uint32(MaxIdBase)
	if f.Extended() {
		maxId = MaxIdExtended
	}
	if f.Id > maxId {
		return errors.ErrFrameIdRange(f.Id)
	}
	maxLen := MaxPayloadClassic
	if f.Fd() {
		maxLen = MaxPayloadFd
	}
	if len(f.Payload) > maxLen {
		return errors.ErrFramePayloadLen(len(f.Payload), maxLen)
	}
	if int(f.Dlc) != len(f.Payload) {
		return errors.ErrFrameDlcMismatch(f.Dlc, len(f.Payload))
	}
	return nil
}

func (f Can) Identity() uuid.UUID  { return f.FrameId }
func (f Can) Origin() string       { return f.Source }
func (f Can) ChannelID() uint32    { return f.Id }
func (f Can) Data() []byte         { return f.Payload }
func (f Can) CreatedAt() time.Time { return f.Created }
func (f Can) AuthTag() *Tag        { return f.Auth }
