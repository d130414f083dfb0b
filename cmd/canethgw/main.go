// Copyright 2025 Robert Bosch GmbH
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/internal/app/run"
	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/internal/app/summary"
	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/internal/pkg/command"
)

var cmds = []command.CommandRunner{
	command.NewHelpCommand("help"),
	run.NewRunCommand("run"),
	summary.NewSummaryCommand("summary"),
}

var usage = `
CAN/Ethernet gateway simulation.

Usage:

	canethgw [-logger <level>] <command> [option] <file>

	canethgw run [-csv <file>, -trace <file>, -mirror <url>] <scenario file> ...
	canethgw summary [-short, -long] <trace file>

`

func printUsage() {
	command.PrintUsage(usage[1:], cmds)
}

func main() {
	os.Exit(main_())
}

func main_() int {
	flag.Usage = printUsage
	logLevel := flag.Int("logger", 2, "log level (select between 0..4)")
	flag.Parse()
	slog.SetDefault(NewLogger(*logLevel))

	if flag.NArg() == 0 {
		printUsage()
		return 1
	}
	if err := command.DispatchCommand(flag.Arg(0), cmds, flag.Args()[1:]); err != nil {
		slog.Error(err.Error())
		return 2
	}

	return 0
}
