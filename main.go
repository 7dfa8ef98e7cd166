// Package main provides the nexa-server entry point.
// nexa-server is the backend for AI-moderated video meetings: it manages
// agents and meetings, orchestrates the meeting lifecycle from call platform
// webhooks, and summarizes meeting transcripts.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ismaeeldev/nexa-server/cmd"
	"github.com/ismaeeldev/nexa-server/pkg/buildinfo"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "nexa-server",
	Short: "Nexa meeting server - AI-moderated video meetings",
	Long: `nexa-server is the backend for AI-moderated video meetings.

It manages AI agents and meetings, drives the meeting lifecycle from call
platform webhooks (started, ended, participant left, transcription and
recording ready), joins a realtime AI participant into live calls, and
summarizes meeting transcripts through a Redis-backed worker pool.

COMMON WORKFLOWS:
  Run the server:     nexa-server serve
  Apply migrations:   nexa-server migrate up
  Inspect data:       nexa-server agent list --user <id>
                      nexa-server meeting list --user <id>

DISCOVERY:
  nexa-server <command> --help   Subcommands, flags, and examples`,
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(c *cobra.Command, args []string) error {
		info := buildinfo.Get("nexa-server")
		out := c.OutOrStdout()
		fmt.Fprintf(out, "nexa-server version %s\n", info.Version)
		fmt.Fprintf(out, "  commit:     %s\n", info.Commit)
		fmt.Fprintf(out, "  built:      %s\n", info.BuildTime)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cmd.NewServeCommand())
	rootCmd.AddCommand(cmd.NewMigrateCommand())
	rootCmd.AddCommand(cmd.NewAgentCommand(nil))
	rootCmd.AddCommand(cmd.NewMeetingCommand(nil))
	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
