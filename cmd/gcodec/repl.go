package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lauckhart/klipper/hostenv"
	"github.com/lauckhart/klipper/pipeline"
	"github.com/lauckhart/klipper/queue"
)

func newReplCmd(debug *bool) *cobra.Command {
	var envPath string

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactively type statements against a mock host environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepl(envPath, *debug)
		},
	}
	cmd.Flags().StringVar(&envPath, "env", "", "JSON file describing the host lookup environment")
	return cmd
}

func runRepl(envPath string, debug bool) error {
	env := hostenv.New()
	if envPath != "" {
		if err := env.LoadFile(envPath); err != nil {
			return err
		}
	}

	rl, err := readline.New("gcodec> ")
	if err != nil {
		return fmt.Errorf("starting readline: %w", err)
	}
	defer rl.Close()

	errColor := color.New(color.FgRed)
	okColor := color.New(color.FgGreen)

	for {
		line, err := rl.Readline()
		if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) {
			return nil
		}
		if err != nil {
			return err
		}
		if line == "" {
			continue
		}

		// Each line gets a fresh pipeline: a REPL statement is
		// self-contained, and reusing one pipeline across lines would let
		// a lexer recovery state from a bad line bleed into the next.
		p := pipeline.New(env, pipeline.WithLogger(newLogger(debug)))
		if _, err := p.Feed([]byte(line + "\n")); err != nil {
			errColor.Fprintln(rl.Stderr(), err)
			continue
		}
		if _, err := p.FeedFinish(); err != nil {
			errColor.Fprintln(rl.Stderr(), err)
			continue
		}
		for {
			res, _ := p.ExecNext()
			switch res.Kind {
			case queue.ResultEmpty:
				goto nextLine
			case queue.ResultError:
				errColor.Fprintln(rl.Stderr(), res.Err)
			case queue.ResultCommand:
				okColor.Fprintln(rl.Stdout(), res.Command.Name, res.Command.Fields)
			}
		}
	nextLine:
	}
}
