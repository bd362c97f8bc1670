// Package cli implements the gosched command-line client for the REST API.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/me/gosched/internal/logging"
)

var (
	flagServer    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
	client *Client
)

// defaultServer returns the default server URL, checking GOSCHED_SERVER first.
func defaultServer() string {
	if s := os.Getenv("GOSCHED_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// NewRootCmd creates the root cobra command for the gosched CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gosched",
		Short: "gosched submits and manages scheduled jobs",
		Long:  "gosched talks to a gosched server: submit jobs, inspect them and control the scheduler.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.NewLoggerWithWriter(logging.ParseLevel(flagLogLevel), flagLogFormat, cmd.ErrOrStderr())
			client = NewClient(flagServer, logger)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "gosched server URL (or GOSCHED_SERVER env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newSubmitCmd(),
		newListCmd(),
		newGetCmd(),
		newUpdateCmd(),
		newCancelCmd(),
		newDeleteCmd(),
		newStatusCmd(),
		newSchedulerCmd(),
	)

	return root
}
