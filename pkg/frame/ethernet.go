// Copyright 2025 Robert Bosch GmbH
//
// SPDX-License-Identifier: Apache-2.0

package frame

import (
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/errors"
)

// Ethernet is a CAN frame tunneled over the Ethernet domain. Channel is the
// logical VLAN tag carrying the CAN identifier; Encap is the msgpack-encoded
// wire image of the original frame.
type Ethernet struct {
	Channel uint32
	Encap   []byte
	Source  string
	Created time.Time
	FrameId uuid.UUID
	Auth    *Tag
}

func (f Ethernet) Identity() uuid.UUID  { return f.FrameId }
func (f Ethernet) Origin() string       { return f.Source }
func (f Ethernet) ChannelID() uint32    { return f.Channel }
func (f Ethernet) Data() []byte         { return f.Encap }
func (f Ethernet) CreatedAt() time.Time { return f.Created }
func (f Ethernet) AuthTag() *Tag        { return f.Auth }

// canWire is the encapsulated image of a Can frame. Identity, timestamps and
// the auth tag travel in the outer Ethernet frame, not the capsule.
type canWire struct {
	Id      uint32
	Dlc     uint8
	Payload []byte
	Kind    CanKind
}

// Encapsulate tunnels a CAN frame into an Ethernet frame, carrying forward
// the source tag, frame identity and the end-to-end creation timestamp.
func Encapsulate(f Can) (Ethernet, error) {
	if err := f.Validate(); err != nil {
		return Ethernet{}, err
	}
	encap, err := msgpack.Marshal(canWire{
		Id:      f.Id,
		Dlc:     f.Dlc,
		Payload: f.Payload,
		Kind:    f.Kind,
	})
	if err != nil {
		return Ethernet{}, errors.NewFrameError(err, "encapsulation encode failed")
	}
	return Ethernet{
		Channel: f.Id,
		Encap:   encap,
		Source:  f.Source,
		Created: f.Created,
		FrameId: f.FrameId,
		Auth:    f.Auth,
	}, nil
}

// Decapsulate recovers the tunneled CAN frame from an Ethernet frame.
func Decapsulate(f Ethernet) (Can, error) {
	var w canWire
	if err := msgpack.Unmarshal(f.Encap, &w); err != nil {
		return Can{}, errors.ErrFrameDecode(err)
	}
	return Can{
		Id:      w.Id,
		Dlc:     w.Dlc,
		Payload: w.Payload,
		Kind:    w.Kind,
		Source:  f.Source,
		Created: f.Created,
		FrameId: f.FrameId,
		Auth:    f.Auth,
	}, nil
}

// NewEthernet builds a native Ethernet-domain frame (used by generators and
// attackers publishing on the Ethernet bus).
func NewEthernet(channel uint32, capsule Can, source string) (Ethernet, error) {
	eth, err := Encapsulate(capsule)
	if err != nil {
		return Ethernet{}, err
	}
	eth.Channel = channel
	eth.Source = source
	return eth, nil
}
