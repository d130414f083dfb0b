// Copyright 2025 Robert Bosch GmbH
//
// SPDX-License-Identifier: Apache-2.0

package run

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/metrics"
)

func printReport(name string, r metrics.Report) {
	fmt.Printf("Scenario: %s\n", name)
	fmt.Printf("  Presented:  %d (attack=%d, legit=%d)\n",
		r.Presented, r.AttackPresented, r.LegitPresented)
	fmt.Printf("  Delivered:  %d\n", r.Delivered)
	fmt.Printf("  Dropped:    %d\n", r.Dropped)
	for _, reason := range sortedReasons(r.DropByReason) {
		fmt.Printf("    %-14s%d\n", reason+":", r.DropByReason[reason])
	}
	fmt.Printf("  Aborted:    %d\n", r.Aborted)
	fmt.Printf("  Loss rate:  %.4f\n", r.LossRate)
	fmt.Printf("  Latency:    mean=%.3fms p50=%.3fms p95=%.3fms p99=%.3fms (min=%.3f max=%.3f)\n",
		r.Latency.Mean, r.Latency.P50, r.Latency.P95, r.Latency.P99,
		r.Latency.Min, r.Latency.Max)
	fmt.Printf("  Throughput: %.1f frames/s\n", r.Throughput)
	for _, source := range sortedSources(r.Jitter) {
		fmt.Printf("    jitter[%s]=%.3fms\n", source, r.Jitter[source])
	}
	fmt.Printf("  Detection:  rate=%.4f false_positive=%.4f\n",
		r.DetectionRate, r.FalsePositiveRate)
}

func printComparison(names []string, reports []metrics.Report) {
	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "scenario\tpresented\tdelivered\tdropped\tloss\tp95(ms)\tdetection\tfalse_pos")
	for i, r := range reports {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%.4f\t%.3f\t%.4f\t%.4f\n",
			names[i], r.Presented, r.Delivered, r.Dropped,
			r.LossRate, r.Latency.P95, r.DetectionRate, r.FalsePositiveRate)
	}
	w.Flush()
}

var csvHeader = []string{
	"scenario", "presented", "attack_presented", "delivered", "dropped",
	"aborted", "loss_rate", "latency_mean_ms", "latency_p50_ms",
	"latency_p95_ms", "latency_p99_ms", "throughput_fps",
	"detection_rate", "false_positive_rate",
	"drop_filtered", "drop_auth_failed", "drop_replay",
	"drop_rate_limited", "drop_bus_full", "drop_aborted",
}

// writeCsv writes one row per completed scenario, rewriting the file so a
// multi-scenario run leaves a single consistent report.
func writeCsv(path string, names []string, reports []metrics.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for i, r := range reports {
		row := []string{
			names[i],
			strconv.FormatUint(r.Presented, 10),
			strconv.FormatUint(r.AttackPresented, 10),
			strconv.FormatUint(r.Delivered, 10),
			strconv.FormatUint(r.Dropped, 10),
			strconv.FormatUint(r.Aborted, 10),
			fmt.Sprintf("%.6f", r.LossRate),
			fmt.Sprintf("%.6f", r.Latency.Mean),
			fmt.Sprintf("%.6f", r.Latency.P50),
			fmt.Sprintf("%.6f", r.Latency.P95),
			fmt.Sprintf("%.6f", r.Latency.P99),
			fmt.Sprintf("%.3f", r.Throughput),
			fmt.Sprintf("%.6f", r.DetectionRate),
			fmt.Sprintf("%.6f", r.FalsePositiveRate),
			strconv.FormatUint(r.DropByReason[metrics.ReasonFiltered.String()], 10),
			strconv.FormatUint(r.DropByReason[metrics.ReasonAuthFailed.String()], 10),
			strconv.FormatUint(r.DropByReason[metrics.ReasonReplay.String()], 10),
			strconv.FormatUint(r.DropByReason[metrics.ReasonRateLimited.String()], 10),
			strconv.FormatUint(r.DropByReason[metrics.ReasonBusFull.String()], 10),
			strconv.FormatUint(r.DropByReason[metrics.ReasonAborted.String()], 10),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func sortedReasons(m map[string]uint64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedSources(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
