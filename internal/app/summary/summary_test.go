// Copyright 2025 Robert Bosch GmbH
//
// SPDX-License-Identifier: Apache-2.0

package summary

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/metrics"
	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/trace"
)

type StdoutCapture struct {
	oldStdout *os.File
	readPipe  *os.File
}

func (sc *StdoutCapture) StartCapture() {
	sc.oldStdout = os.Stdout
	sc.readPipe, os.Stdout, _ = os.Pipe()
}

func (sc *StdoutCapture) StopCapture() (string, error) {
	if sc.oldStdout == nil || sc.readPipe == nil {
		return "", errors.New("StartCapture not called before StopCapture")
	}
	os.Stdout.Close()
	os.Stdout = sc.oldStdout
	bytes, err := io.ReadAll(sc.readPipe)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// writeTrace records a small lifecycle onto a trace file: one frame of
// legitimate traffic delivered after 5ms and one attack frame dropped by the
// authentication stage.
func writeTrace(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.bin")
	f, err := os.Create(path)
	require.Nil(t, err)
	defer f.Close()

	legit := uuid.UUID{0x01, 0x02, 0x03, 0x04}
	ghost := uuid.UUID{0x0a, 0x0b, 0x0c, 0x0d}
	t0 := time.Now()

	r := trace.NewRecorder(f, nil)
	r.Record(metrics.Event{FrameId: legit, Source: "ecu-1",
		Stage: metrics.StageGenerated, Created: t0, At: t0})
	r.Record(metrics.Event{FrameId: legit, Source: "ecu-1",
		Stage: metrics.StageDelivered, Created: t0, At: t0.Add(5 * time.Millisecond)})
	r.Record(metrics.Event{FrameId: ghost, Source: "ghost", Attack: true,
		Stage: metrics.StageGenerated, Created: t0, At: t0})
	r.Record(metrics.Event{FrameId: ghost, Source: "ghost", Attack: true,
		Stage: metrics.StageDropped, Reason: metrics.ReasonAuthFailed,
		Created: t0, At: t0.Add(time.Millisecond)})
	return path
}

func TestShortSummary(t *testing.T) {
	file := writeTrace(t)

	capture := StdoutCapture{}
	capture.StartCapture()

	stream := trace.Stream{File: file}
	err := stream.Process(&Short{})
	assert.Nil(t, err)

	output, _ := capture.StopCapture()
	t.Log("\n\n", output)
	outputList := strings.Split(output, "\n")

	assert.Contains(t, outputList, "ecu-1:01020304:generated::none")
	assert.Contains(t, outputList, "ecu-1:01020304:delivered::none")
	assert.Contains(t, outputList, "ghost:0a0b0c0d:generated::none(A)")
	assert.Contains(t, outputList, "ghost:0a0b0c0d:dropped::auth-failed(A)")
}

func TestLongSummary(t *testing.T) {
	file := writeTrace(t)

	capture := StdoutCapture{}
	capture.StartCapture()

	v := NewLong()
	stream := trace.Stream{File: file}
	err := stream.Process(v)
	assert.Nil(t, err)
	v.PrintTally()

	output, _ := capture.StopCapture()
	t.Log("\n\n", output)
	outputList := strings.Split(output, "\n")

	// Event lines carry wall-clock timestamps; match on the suffix.
	assert.Contains(t, output, "] ecu-1:01020304:generated::none")
	assert.Contains(t, output, "] ecu-1:01020304:delivered::none")
	assert.Contains(t, output, "] ghost:0a0b0c0d:dropped::auth-failed")

	assert.Contains(t, outputList, "ecu-1: generated=1 delivered=1 dropped=0 aborted=0 attack=0")
	assert.Contains(t, outputList, "  latency_mean=5.000ms")
	assert.Contains(t, outputList, "ghost: generated=1 delivered=0 dropped=1 aborted=0 attack=1")
	assert.Contains(t, outputList, "  dropped[auth-failed]=1")
}

func TestSummaryCommandParse(t *testing.T) {
	c := NewSummaryCommand("summary")
	assert.NotNil(t, c.Parse([]string{}))

	c = NewSummaryCommand("summary")
	require.Nil(t, c.Parse([]string{"-long", "run.bin"}))
	assert.Equal(t, "run.bin", c.traceFile)
	assert.True(t, c.long)
}
