// Package cmd is the hallbooking command line: the HTTP server and the
// operator tasks cron runs next to it.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joy095/hallbooking/config"
	"github.com/joy095/hallbooking/logger"
)

var cfg config.App

var rootCmd = &cobra.Command{
	Use:   "hallbooking",
	Short: "Community hall booking service",
	Long: `hallbooking serves public booking requests and caretaker decisions for
community halls, and drains the notification queue that tells renters and
caretakers what happened.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.InitLoggers()
		var err error
		if cfg, err = config.Load(); err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		return nil
	},
}

// Execute runs the command line. ctx is cancelled on shutdown signals.
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd, dispatchCmd, migrateCmd, completePastCmd, issueTokenCmd)
}
