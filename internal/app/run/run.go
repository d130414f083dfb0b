// Copyright 2025 Robert Bosch GmbH
//
// SPDX-License-Identifier: Apache-2.0

package run

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/internal/pkg/command"
	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/connection"
	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/metrics"
	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/scenario"
	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/trace"
)

type RunCommand struct {
	command.Command

	scenarioFiles []string
	csvFile       string
	traceFile     string
	mirrorUrl     string
}

func NewRunCommand(name string) *RunCommand {
	c := &RunCommand{
		Command: command.Command{
			Name:    name,
			FlagSet: flag.NewFlagSet(name, flag.ExitOnError),
		},
	}
	c.FlagSet().StringVar(&c.csvFile, "csv", "", "write the report(s) to this CSV file")
	c.FlagSet().StringVar(&c.traceFile, "trace", "", "record lifecycle events to this trace file")
	c.FlagSet().StringVar(&c.mirrorUrl, "mirror", "", "mirror terminal events to this redis url")
	return c
}

func (c RunCommand) Name() string {
	return c.Command.Name
}

func (c RunCommand) FlagSet() *flag.FlagSet {
	return c.Command.FlagSet
}

func (c *RunCommand) Parse(args []string) error {
	err := c.FlagSet().Parse(args)
	if err != nil {
		return err
	}
	if c.FlagSet().NArg() == 0 {
		return fmt.Errorf("scenario file not specified")
	}
	c.scenarioFiles = c.FlagSet().Args()
	return nil
}

func (c *RunCommand) Run() error {
	names := []string{}
	reports := []metrics.Report{}

	for _, file := range c.scenarioFiles {
		cfg, err := scenario.Load(file)
		if err != nil {
			return err
		}
		// Command line overrides the scenario file.
		if c.traceFile != "" {
			cfg.Trace = c.traceFile
		}
		if c.mirrorUrl != "" {
			cfg.Mirror = c.mirrorUrl
		}
		if c.csvFile != "" {
			cfg.Csv = c.csvFile
		}

		report, err := c.runScenario(cfg)
		if err != nil {
			return err
		}
		names = append(names, cfg.Name)
		reports = append(reports, report)
		printReport(cfg.Name, report)

		if cfg.Csv != "" {
			if err := writeCsv(cfg.Csv, names, reports); err != nil {
				return err
			}
			slog.Info(fmt.Sprintf("Run: report written: %s", cfg.Csv))
		}
	}

	if len(reports) > 1 {
		printComparison(names, reports)
	}
	return nil
}

func (c *RunCommand) runScenario(cfg *scenario.Config) (metrics.Report, error) {
	slog.Info(fmt.Sprintf("Run: scenario: %s (duration=%s)", cfg.Name, cfg.Duration.Std()))

	opts := []scenario.Option{}

	if cfg.Trace != "" {
		f, err := os.Create(cfg.Trace)
		if err != nil {
			return metrics.Report{}, err
		}
		defer f.Close()
		opts = append(opts, scenario.WithSink(func(next metrics.Sink) metrics.Sink {
			return trace.NewRecorder(f, next)
		}))
	}

	if cfg.Mirror != "" {
		conn := &connection.RedisConnection{Run: cfg.Name, Url: cfg.Mirror}
		if err := conn.Connect([]string{connection.EventChannel}); err != nil {
			return metrics.Report{}, err
		}
		defer conn.Disconnect()
		opts = append(opts, scenario.WithSink(func(next metrics.Sink) metrics.Sink {
			return connection.NewMirror(conn, next)
		}))
	}

	runner, err := scenario.NewRunner(*cfg, opts...)
	if err != nil {
		return metrics.Report{}, err
	}
	return runner.Run(context.Background())
}
