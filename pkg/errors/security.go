// Copyright 2025 Robert Bosch GmbH
//
// SPDX-License-Identifier: Apache-2.0

package errors

import "fmt"

var (
	ErrFilterReject   = fmt.Errorf("frame rejected by filter")
	ErrAuthMissing    = fmt.Errorf("authentication tag missing")
	ErrAuthFail       = fmt.Errorf("authentication tag mismatch")
	ErrReplayDetected = fmt.Errorf("replay detected: counter not advancing")
	ErrRateLimited    = fmt.Errorf("rate limit exceeded for source")
	ErrUnknownSource  = func(src string) error {
		return NewSecurityError(nil, fmt.Sprintf("no key material for source: %q", src))
	}
)

type SecurityError struct {
	msg string
	err error
}

func NewSecurityError(e error, msg string) *SecurityError {
	return &SecurityError{msg: msg, err: e}
}

func (e *SecurityError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("security: %q - %v", e.msg, e.err)
	} else {
		return fmt.Sprintf("security: %q", e.msg)
	}
}

func (e *SecurityError) Unwrap() error {
	return e.err
}
