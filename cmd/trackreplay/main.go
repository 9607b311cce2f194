// Package main implements the trackreplay CLI tool.
//
// trackreplay replays scenario files against a tracked vector and checks
// the expected handle states after each step. It is used to pin down the
// invalidation rules with data instead of code, and to reproduce reports
// from users.
//
// Usage:
//
//	trackreplay run scenarios.yaml          # Replay every scenario in the file
//	trackreplay run -v -stacks a.yaml b.yaml # Log dangles with bind sites
//	trackreplay version                     # Print the library version
package main

import (
	"fmt"
	"os"

	"github.com/kolkov/trackvec/track"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "run":
		os.Exit(runCommand(os.Args[2:]))
	case "version", "--version", "-v":
		info := track.GetInfo()
		fmt.Printf("trackreplay version %s (%s)\n", info.Version, info.Algorithm)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`trackreplay - replay tracked-reference scenarios

USAGE:
    trackreplay <command> [arguments]

COMMANDS:
    run        Replay scenario files
    version    Show version information
    help       Show this help message

RUN FLAGS:
    -v         Log storage moves and every dangling handle
    -stacks    Record bind-site stacks for dangle logs

EXAMPLES:
    # Replay a scenario file
    trackreplay run testdata/scenarios.yaml

    # Replay with dangle logging and bind sites
    trackreplay run -v -stacks testdata/scenarios.yaml

SCENARIO FILES:
    version: v0.1.0
    scenarios:
      - name: erase follows position
        init: [1, 2, 3]
        steps:
          - {op: bind, name: h1, index: 1}
          - {op: erase, index: 1}
          - {op: expect, name: h1, valid: true, value: 3}

    Ops: bind, cursor, derive, append, insert, erase, set, store, clear,
    resize, reserve, destroy, expect.

`)
}
