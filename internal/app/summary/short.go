// Copyright 2025 Robert Bosch GmbH
//
// SPDX-License-Identifier: Apache-2.0

package summary

import (
	"fmt"

	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/trace"
)

type Short struct {
}

func (s *Short) VisitEvent(m *trace.EventMsg) {
	marker := ""
	if m.Attack() {
		marker = "(A)"
	}
	fmt.Printf("%s:%s:%s::%s%s\n",
		m.Source(), shortId(m), m.Stage(), m.Reason(), marker)
}

// shortId renders the leading bytes of the frame id, enough to follow one
// frame through its lifecycle lines.
func shortId(m *trace.EventMsg) string {
	id := m.FrameId()
	return fmt.Sprintf("%x", id[:4])
}
