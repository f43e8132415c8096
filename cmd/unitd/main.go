// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Command unitd is the unit engine daemon: a thin CLI wrapper around
// internal/app, grounded on cmd/trellis/main.go's flag-parsing style.
// It also doubles as the exec helper process every forked unit is
// launched through, selected by argv[0] rather than a flag, matching
// original_source/src/main.rs's argv0-based mode switch.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/KillingSpark/unitd/internal/app"
	"github.com/KillingSpark/unitd/internal/supervisor"
)

var version = "0.1"

func main() {
	if len(os.Args) > 0 && os.Args[0] == supervisor.HelperArgv0 {
		if err := supervisor.RunExecHelper(os.Stdin); err != nil {
			fmt.Fprintf(os.Stderr, "unitd-exec-helper: %v\n", err)
			os.Exit(1)
		}
		return
	}

	var (
		configPath  string
		dryRun      bool
		showVersion bool
	)

	flag.StringVar(&configPath, "conf", "/etc/unitd/unitd.hjson", "path to the engine config file")
	flag.StringVar(&configPath, "c", "/etc/unitd/unitd.hjson", "path to the engine config file (short)")
	flag.BoolVar(&dryRun, "dry-run", false, "load and validate every unit, then exit without starting anything")
	flag.BoolVar(&showVersion, "version", false, "print the version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("unitd %s\n", version)
		return
	}

	application, err := app.New(app.Options{ConfigPath: configPath, DryRun: dryRun})
	if err != nil {
		log.Fatalf("unitd: %v", err)
	}

	if err := application.Run(context.Background()); err != nil {
		log.Fatalf("unitd: %v", err)
	}
}
