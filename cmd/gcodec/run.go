package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lauckhart/klipper/hostenv"
	"github.com/lauckhart/klipper/pipeline"
	"github.com/lauckhart/klipper/queue"
)

func newRunCmd(debug *bool) *cobra.Command {
	var envPath string

	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Compile and execute a G-code dialect file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFile(args[0], envPath, *debug)
		},
	}
	cmd.Flags().StringVar(&envPath, "env", "", "JSON file describing the host lookup environment")
	return cmd
}

func runFile(path, envPath string, debug bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	env := hostenv.New()
	if envPath != "" {
		if err := env.LoadFile(envPath); err != nil {
			return err
		}
	}

	p := pipeline.New(env, pipeline.WithLogger(newLogger(debug)))
	return feedAndDrain(p, data)
}

// feedAndDrain runs data through p and drains every queued entry. Printing
// of commands/fields and error text happens inside the host (hostenv.Env's
// Exec/Error methods); this just keeps draining until empty and remembers
// whether anything went wrong, matching "a malformed statement never
// prevents well-formed later statements from being delivered" (spec §8
// property 7).
func feedAndDrain(p *pipeline.Pipeline, data []byte) error {
	var firstErr error

	if _, err := p.Feed(data); err != nil {
		return err
	}
	if _, err := p.FeedFinish(); err != nil {
		return err
	}

	for {
		res, _ := p.ExecNext()
		if res.Kind == queue.ResultEmpty {
			break
		}
		if res.Kind == queue.ResultError && firstErr == nil {
			firstErr = fmt.Errorf("%s", res.Err)
		}
	}
	return firstErr
}
