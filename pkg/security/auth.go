// Copyright 2025 Robert Bosch GmbH
//
// SPDX-License-Identifier: Apache-2.0

package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"

	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/frame"
)

// TagLen is the truncated HMAC length carried on the wire.
const TagLen = 8

// mac computes the truncated HMAC-SHA256 over the authenticated fields. The
// counter is part of the MAC so a replayed frame cannot be re-stamped with a
// fresh counter.
func mac(key []byte, source string, channel uint32, counter uint64, payload []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(source))
	h.Write([]byte{0})
	var buf [12]byte
	binary.BigEndian.PutUint32(buf[0:4], channel)
	binary.BigEndian.PutUint64(buf[4:12], counter)
	h.Write(buf[:])
	h.Write(payload)
	return h.Sum(nil)[:TagLen]
}

// verifyMac is constant time on the tag comparison.
func verifyMac(key []byte, source string, channel uint32, tag *frame.Tag, payload []byte) bool {
	if tag == nil || len(tag.MAC) != TagLen {
		return false
	}
	return hmac.Equal(mac(key, source, channel, tag.Counter, payload), tag.MAC)
}
