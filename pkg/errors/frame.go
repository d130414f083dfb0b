// Copyright 2025 Robert Bosch GmbH
//
// SPDX-License-Identifier: Apache-2.0

package errors

import "fmt"

var (
	ErrFrameIdRange = func(id uint32) error {
		return NewFrameError(nil, fmt.Sprintf("identifier out of range: 0x%X", id))
	}
	ErrFrameDlcMismatch = func(dlc uint8, length int) error {
		return NewFrameError(nil, fmt.Sprintf("dlc %d does not match payload length %d", dlc, length))
	}
	ErrFramePayloadLen = func(length, max int) error {
		return NewFrameError(nil, fmt.Sprintf("payload length %d exceeds limit %d", length, max))
	}
	ErrFrameDecode = func(e error) error { return NewFrameError(e, "encapsulated frame decode failed") }
)

type FrameError struct {
	msg string
	err error
}

func NewFrameError(e error, msg string) *FrameError {
	return &FrameError{msg: msg, err: e}
}

func (e *FrameError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("frame: %q - %v", e.msg, e.err)
	} else {
		return fmt.Sprintf("frame: %q", e.msg)
	}
}

func (e *FrameError) Unwrap() error {
	return e.err
}
