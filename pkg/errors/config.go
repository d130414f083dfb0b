// Copyright 2025 Robert Bosch GmbH
//
// SPDX-License-Identifier: Apache-2.0

package errors

import "fmt"

var (
	ErrBusConfig      = func(m string) error { return NewConfigError(nil, m) }
	ErrSecurityConfig = func(m string) error { return NewConfigError(nil, m) }
	ErrGatewayConfig  = func(m string) error { return NewConfigError(nil, m) }
	ErrScenarioConfig = func(m string) error { return NewConfigError(nil, m) }
)

type ConfigError struct {
	msg string
	err error
}

func NewConfigError(e error, msg string) *ConfigError {
	return &ConfigError{msg: msg, err: e}
}

func (e *ConfigError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("config: %q - %v", e.msg, e.err)
	} else {
		return fmt.Sprintf("config: %q", e.msg)
	}
}

func (e *ConfigError) Unwrap() error {
	return e.err
}
