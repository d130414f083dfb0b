// Copyright 2025 Robert Bosch GmbH
//
// SPDX-License-Identifier: Apache-2.0

package connection

import (
	"sync"

	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/errors"
)

// Connection carries msgpack-framed messages between the simulation and an
// out-of-process consumer (live dashboards, long-term storage). The core
// never requires one; it is the extension collaborator behind the frame
// model. Channels name the traffic domains being mirrored ("can", "eth",
// "events").
type Connection interface {
	Connect(channels []string) (err error)
	Disconnect()
	SendMessage(msg []byte, channel string) (err error)
	WaitMessage(immediate bool) (msg []byte, channel string, err error)
}

type Message struct {
	Channel string
	Payload []byte
}

// StubConnection is the in-memory test double. Sent messages accumulate on
// Sent; Inject primes the inbox served by WaitMessage.
type StubConnection struct {
	mu    sync.Mutex
	Sent  []Message
	inbox []Message
}

func (s *StubConnection) Connect(channels []string) (err error) {
	return nil
}

func (s *StubConnection) Disconnect() {
}

func (s *StubConnection) SendMessage(msg []byte, channel string) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Deep copy; callers reuse their encode buffers.
	payload := make([]byte, len(msg))
	copy(payload, msg)
	s.Sent = append(s.Sent, Message{Channel: channel, Payload: payload})
	return nil
}

func (s *StubConnection) WaitMessage(immediate bool) (msg []byte, channel string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.inbox) == 0 {
		return nil, "", errors.ErrNoMessage
	}
	m := s.inbox[0]
	s.inbox = s.inbox[1:]
	return m.Payload, m.Channel, nil
}

// Inject primes the inbox. Supports unit tests.
func (s *StubConnection) Inject(msg []byte, channel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload := make([]byte, len(msg))
	copy(payload, msg)
	s.inbox = append(s.inbox, Message{Channel: channel, Payload: payload})
}

// SentOn filters the sent messages by channel.
func (s *StubConnection) SentOn(channel string) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Message
	for _, m := range s.Sent {
		if m.Channel == channel {
			out = append(out, m)
		}
	}
	return out
}
