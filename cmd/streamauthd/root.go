package main

import (
	"io"
	"log/slog"
	"strings"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
)

var buildVersion = "dev"

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "streamauthd",
		Short:         "Authentication service for the streaming platform",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "version",
			Short: "Print the build version",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				cmd.Printf("%s\n", buildVersion)
			},
		},
		newServeCommand(),
		newHashPasswordCommand(),
		newLoadtestCommand(),
	)
	return root
}

// newLogger builds a JSON slog handler and exposes it as a logr.Logger.
// logr verbosity V(n) maps to slog level -n, so "debug" enables V(1) output.
func newLogger(w io.Writer, level string) logr.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	return logr.FromSlogHandler(h.WithAttrs([]slog.Attr{slog.String("app", "streamauthd")}))
}
