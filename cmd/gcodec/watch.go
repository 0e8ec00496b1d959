package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

func newWatchCmd(debug *bool) *cobra.Command {
	var envPath string

	cmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Re-run a file through a fresh pipeline every time it changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(args[0], envPath, *debug)
		},
	}
	cmd.Flags().StringVar(&envPath, "env", "", "JSON file describing the host lookup environment")
	return cmd
}

func runWatch(path, envPath string, debug bool) error {
	logger := newLogger(debug)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("watching %s: %w", path, err)
	}

	run := func() {
		if err := runFile(path, envPath, debug); err != nil {
			fmt.Fprintln(os.Stderr, "gcodec watch:", err)
		}
	}

	run()
	logger.Info("watching for changes", slog.String("path", path))

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			logger.Debug("file changed, re-running", slog.String("path", ev.Name))
			run()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintln(os.Stderr, "gcodec watch:", err)
		}
	}
}
