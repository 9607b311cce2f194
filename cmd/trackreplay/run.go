// run.go implements the 'trackreplay run' command.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/kolkov/trackvec/track"
)

// runConfig holds the parsed 'run' arguments.
type runConfig struct {
	verbose bool
	stacks  bool
	files   []string
}

var errNoFiles = errors.New("no scenario files specified")

// runCommand implements the 'trackreplay run' command and returns the
// process exit code.
//
// Flow:
//  1. Parse flags and scenario files
//  2. Load and validate every file before replaying any of them
//  3. Replay each scenario against a fresh vector
//  4. Print failures, log the summary
//
// Example:
//
//	trackreplay run testdata/scenarios.yaml
//	trackreplay run -v -stacks a.yaml b.yaml
func runCommand(args []string) int {
	config, err := parseRunArgs(args, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	logger, err := newLogger(config.verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }() // stderr sync fails on some terminals

	files := make([]*File, 0, len(config.files))
	for _, path := range config.files {
		f, err := LoadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		files = append(files, f)
	}

	counter := &track.CountOnDangle{}
	opts := replayOptions(config, logger, counter)

	var summary Result
	for _, f := range files {
		summary.Merge(ReplayFile(f, opts))
	}

	for _, failure := range summary.Failures {
		fmt.Fprintf(os.Stderr, "FAIL %s\n", failure)
	}

	logger.Info("replay finished",
		zap.Int("scenarios", summary.Scenarios),
		zap.Int("steps", summary.Steps),
		zap.Int("failures", len(summary.Failures)),
		zap.Int("dangled", counter.Total()),
		zap.Int("dangled_reallocated", counter.Count(track.CauseReallocated)),
		zap.Int("dangled_shrunk", counter.Count(track.CauseShrunk)),
		zap.Int("dangled_out_of_range", counter.Count(track.CauseOutOfRange)),
		zap.Int("dangled_teardown", counter.Count(track.CauseTeardown)),
	)

	if len(summary.Failures) > 0 {
		return 1
	}
	return 0
}

// parseRunArgs parses the 'run' flags. Usage errors go to out.
func parseRunArgs(args []string, out io.Writer) (*runConfig, error) {
	config := &runConfig{}

	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.BoolVar(&config.verbose, "v", false, "log storage moves and dangling handles")
	fs.BoolVar(&config.stacks, "stacks", false, "record bind-site stacks")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	config.files = fs.Args()
	if len(config.files) == 0 {
		return nil, errNoFiles
	}
	return config, nil
}

// replayOptions builds the vector options for a run. Dangles are always
// counted; -v also logs each distinct one.
func replayOptions(config *runConfig, logger *zap.Logger, counter *track.CountOnDangle) track.Options {
	policies := []track.DanglePolicy{counter}
	if config.verbose {
		policies = append(policies, track.NewLogOnDangle(logger))
	}
	policies = append(policies, track.NullOnDangle{})

	return track.Options{
		Null:          track.MayBeNull{},
		Dangle:        track.Chain(policies...),
		Logger:        logger,
		CaptureStacks: config.stacks,
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}
