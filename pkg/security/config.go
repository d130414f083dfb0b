// Copyright 2025 Robert Bosch GmbH
//
// SPDX-License-Identifier: Apache-2.0

package security

import (
	"time"

	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/errors"
)

var (
	DefaultWindow    = 1 * time.Second
	DefaultThreshold = 100
)

// Config holds the pipeline thresholds and key material. When Enabled is
// false the pipeline passes every frame through but still records events, so
// baseline and secure runs produce comparable metrics.
type Config struct {
	Enabled bool

	// Keys maps a source tag to its shared HMAC secret.
	Keys map[string][]byte

	// AllowIds is the identifier allow-set for the filter stage. Empty
	// admits all identifiers.
	AllowIds []uint32

	// Window and Threshold bound the per-source frame rate: more than
	// Threshold frames inside a sliding Window marks the source throttled.
	Window    time.Duration
	Threshold int
}

func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if len(c.Keys) == 0 {
		return errors.ErrSecurityConfig("security enabled but no key material configured")
	}
	for src, key := range c.Keys {
		if len(key) == 0 {
			return errors.ErrSecurityConfig("empty key for source: " + src)
		}
	}
	if c.Window <= 0 {
		return errors.ErrSecurityConfig("ids window must be positive")
	}
	if c.Threshold <= 0 {
		return errors.ErrSecurityConfig("ids threshold must be positive")
	}
	return nil
}
