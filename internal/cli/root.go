// Package cli implements the chefriend command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
)

// Version information (set by build flags)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = newRootCmd()

func Execute() error {
	return rootCmd.Execute()
}

// newRootCmd builds the full command tree. Tests build a fresh tree per
// case so flag values never leak between runs.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "chefriend",
		Short: "Rate what you ate and tell the owner",
		Long: `chefriend - taste survey client

Walk through the five-page taste survey for a menu item, attach photos,
and send the feedback to the restaurant. Progress is saved locally after
every answer, so a survey can be continued later.`,
		SilenceUsage: true,
	}

	// Configuration sources
	root.PersistentFlags().String("config", "", "Config file (default $XDG_CONFIG_HOME/chefriend/config.yaml)")
	root.PersistentFlags().String("env-file", "", "Env file to load (default ./.env when present)")

	// Connection flags
	root.PersistentFlags().String("api-url", "", "Backend base URL")
	root.PersistentFlags().String("proxy", "", "Proxy URL (http://host:port or socks5://host:port)")
	root.PersistentFlags().Duration("timeout", 0, "Request timeout")
	root.PersistentFlags().Float64("max-rps", 0, "Maximum requests per second (0 = unlimited)")
	root.PersistentFlags().Int("upload-concurrency", 0, "Parallel photo uploads")

	// Storage flags
	root.PersistentFlags().String("db-driver", "", "Session database driver (sqlite, postgres)")
	root.PersistentFlags().String("db-dsn", "", "Session database DSN")

	// Output flags
	root.PersistentFlags().CountP("verbose", "v", "Verbosity (-v warn, -vv info, -vvv debug)")
	root.PersistentFlags().StringP("format", "f", "text", "Output format (text, json)")

	root.AddCommand(
		newVersionCmd(),
		newLoginCmd(),
		newLogoutCmd(),
		newWhoamiCmd(),
		newStoreCmd(),
		newMenuCmd(),
		newSurveyCmd(),
		newHistoryCmd(),
		newRewardsCmd(),
		newProfileCmd(),
		newStateCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "chefriend %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

// newLogger maps the -v count onto a slog level: 0 error, 1 warn, 2 info,
// 3 and above debug.
func newLogger(verbosity int, w io.Writer) *slog.Logger {
	level := slog.LevelError
	switch {
	case verbosity >= 3:
		level = slog.LevelDebug
	case verbosity == 2:
		level = slog.LevelInfo
	case verbosity == 1:
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
