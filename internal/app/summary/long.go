// Copyright 2025 Robert Bosch GmbH
//
// SPDX-License-Identifier: Apache-2.0

package summary

import (
	"fmt"

	"github.com/elliotchance/orderedmap/v3"

	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/metrics"
	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/trace"
)

type sourceTally struct {
	generated uint64
	delivered uint64
	dropped   uint64
	aborted   uint64
	attack    uint64
	byReason  map[string]uint64
	latencyMs float64 // Sum over delivered frames.
}

// Long prints every event and keeps a per-source tally, ordered by first
// sighting in the trace.
type Long struct {
	sources *orderedmap.OrderedMap[string, *sourceTally]
}

func NewLong() *Long {
	return &Long{sources: orderedmap.NewOrderedMap[string, *sourceTally]()}
}

func (l *Long) VisitEvent(m *trace.EventMsg) {
	ev := m.Event()
	fmt.Printf("[%s] %s:%s:%s::%s\n",
		ev.At.Format("15:04:05.000000"), ev.Source, shortId(m), ev.Stage, ev.Reason)

	tally, ok := l.sources.Get(ev.Source)
	if !ok {
		tally = &sourceTally{byReason: map[string]uint64{}}
		l.sources.Set(ev.Source, tally)
	}
	if ev.Attack && ev.Stage == metrics.StageGenerated {
		tally.attack++
	}
	switch ev.Stage {
	case metrics.StageGenerated:
		tally.generated++
	case metrics.StageDelivered:
		tally.delivered++
		tally.latencyMs += ev.At.Sub(ev.Created).Seconds() * 1000.0
	case metrics.StageDropped:
		tally.dropped++
		tally.byReason[ev.Reason.String()]++
	case metrics.StageAborted:
		tally.aborted++
	}
}

func (l *Long) PrintTally() {
	for source, tally := range l.sources.AllFromFront() {
		fmt.Printf("%s: generated=%d delivered=%d dropped=%d aborted=%d attack=%d\n",
			source, tally.generated, tally.delivered, tally.dropped, tally.aborted, tally.attack)
		for reason, count := range tally.byReason {
			fmt.Printf("  dropped[%s]=%d\n", reason, count)
		}
		if tally.delivered > 0 {
			fmt.Printf("  latency_mean=%.3fms\n", tally.latencyMs/float64(tally.delivered))
		}
	}
}
