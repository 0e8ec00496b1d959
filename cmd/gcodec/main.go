// Command gcodec is the reference driver: it reads a G-code dialect file
// (or, in repl mode, a terminal), feeds it through a pipeline.Pipeline, and
// prints each (command, fields[]) tuple to stdout, one field per line, per
// spec §6.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if !debug && (a.Key == slog.TimeKey || a.Key == slog.LevelKey) {
				return slog.Attr{}
			}
			return a
		},
	}))
}

func main() {
	var debug bool

	root := &cobra.Command{
		Use:           "gcodec",
		Short:         "Compile and run a G-code dialect file",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newRunCmd(&debug),
		newReplCmd(&debug),
		newWatchCmd(&debug),
		newDumpCmd(&debug),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "gcodec:", err)
		os.Exit(1)
	}
}
