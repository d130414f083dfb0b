// Copyright 2025 Robert Bosch GmbH
//
// SPDX-License-Identifier: Apache-2.0

package attack

import (
	"log/slog"
	"sync"
)

// Combined runs several attack workers concurrently, to evaluate
// defense-in-depth and worst-case latency under simultaneous attack classes.
type Combined struct {
	injectors []Injector

	startOnce sync.Once
	stopOnce  sync.Once
}

func NewCombined(injectors ...Injector) *Combined {
	return &Combined{injectors: injectors}
}

func (a *Combined) Mode() Mode { return ModeCombined }

func (a *Combined) Start() {
	a.startOnce.Do(func() {
		slog.Info("Attack: combined: start")
		for _, inj := range a.injectors {
			inj.Start()
		}
	})
}

func (a *Combined) Shutdown() {
	a.stopOnce.Do(func() {
		for _, inj := range a.injectors {
			inj.Shutdown()
		}
	})
}

// Injected sums the injected counts of all child workers.
func (a *Combined) Injected() uint64 {
	var n uint64
	for _, inj := range a.injectors {
		n += inj.Injected()
	}
	return n
}
