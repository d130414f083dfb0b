// Copyright 2025 Robert Bosch GmbH
//
// SPDX-License-Identifier: Apache-2.0

package errors

import "fmt"

var (
	ErrBusFull        = fmt.Errorf("bus full")
	ErrBusClosed      = fmt.Errorf("bus closed")
	ErrConsumeTimeout = fmt.Errorf("consume timeout")
)

type BusError struct {
	msg string
	err error
}

func NewBusError(e error, msg string) *BusError {
	return &BusError{msg: msg, err: e}
}

func (e *BusError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("bus: %q - %v", e.msg, e.err)
	} else {
		return fmt.Sprintf("bus: %q", e.msg)
	}
}

func (e *BusError) Unwrap() error {
	return e.err
}
