// Copyright 2025 Robert Bosch GmbH
//
// SPDX-License-Identifier: Apache-2.0

package trace

import (
	"fmt"
	"io"
	"iter"
	"os"

	flatbuffers "github.com/google/flatbuffers/go"
)

type Visitor interface {
	VisitEvent(*EventMsg)
}

// Stream reads event records from a trace file.
type Stream struct {
	File  string
	stack []*EventMsg // Supports unit tests.
}

// Push appends an in-memory record ahead of the file contents. Supports unit
// tests.
func (s *Stream) Push(m *EventMsg) {
	s.stack = append(s.stack, m)
}

func (s Stream) Messages() iter.Seq[*EventMsg] {
	return func(yield func(*EventMsg) bool) {
		for _, m := range s.stack {
			if !yield(m) {
				return
			}
		}

		if len(s.File) == 0 {
			// No trace file, no more messages to yield.
			return
		}
		check := func(e error) {
			if e != nil && e != io.EOF {
				panic(e)
			}
		}
		f, err := os.Open(s.File)
		check(err)
		defer f.Close()
		for {
			// Get the size of the next record.
			b := make([]byte, flatbuffers.SizeUint32)
			readLen, err := f.Read(b)
			check(err)
			if readLen != flatbuffers.SizeUint32 {
				break // Buffer did not contain a size.
			}
			length := flatbuffers.GetSizePrefix(b, 0)

			// Load the rest of the record.
			body := make([]byte, length)
			readLen, err = f.Read(body)
			check(err)
			if uint32(readLen) != length {
				fmt.Printf("Incomplete record, read len %d (expected %d)", readLen, length)
				break
			}

			if !flatbuffers.BufferHasIdentifier(body, FileIdentifier) {
				fmt.Printf("unsupported record, file_identifier mismatch")
				continue
			}
			if !yield(GetRootAsEvent(body, 0)) {
				return
			}
		}
	}
}

func (s Stream) Process(v Visitor) error {
	for m := range s.Messages() {
		v.VisitEvent(m)
	}
	return nil
}
