// Copyright 2025 Robert Bosch GmbH
//
// SPDX-License-Identifier: Apache-2.0

package summary

import (
	"flag"
	"fmt"

	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/internal/pkg/command"
	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/trace"
)

type SummaryCommand struct {
	command.Command

	traceFile string
	short     bool
	long      bool
}

func NewSummaryCommand(name string) *SummaryCommand {
	c := &SummaryCommand{
		Command: command.Command{
			Name:    name,
			FlagSet: flag.NewFlagSet(name, flag.ExitOnError),
		},
	}
	c.FlagSet().BoolVar(&c.short, "short", true, "print one line per frame event")
	c.FlagSet().BoolVar(&c.long, "long", false, "print events and a per-source tally")
	return c
}

func (c SummaryCommand) Name() string {
	return c.Command.Name
}

func (c SummaryCommand) FlagSet() *flag.FlagSet {
	return c.Command.FlagSet
}

func (c *SummaryCommand) Parse(args []string) error {
	err := c.FlagSet().Parse(args)
	if err != nil {
		return err
	}
	if c.FlagSet().NArg() == 0 {
		return fmt.Errorf("trace file not specified")
	}
	c.traceFile = c.FlagSet().Arg(0)
	return nil
}

func (c *SummaryCommand) Run() error {
	stream := trace.Stream{File: c.traceFile}

	// Select and configure the specified visitor.
	if c.long {
		v := NewLong()
		if err := stream.Process(v); err != nil {
			return err
		}
		v.PrintTally()
		return nil
	} else if c.short {
		return stream.Process(&Short{})
	}
	return fmt.Errorf("trace visitor not specified")
}
