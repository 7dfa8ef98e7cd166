package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ismaeeldev/nexa-server/config"
	"github.com/ismaeeldev/nexa-server/pkg/db"
	"github.com/ismaeeldev/nexa-server/pkg/logging"
	"github.com/ismaeeldev/nexa-server/pkg/meetings"
)

// Meeting command flags.
var (
	meetingConfigFile   string
	meetingOutputFormat string
	meetingUser         string
)

// MeetingCommandDeps holds dependencies for meeting commands.
type MeetingCommandDeps struct {
	LoadConfig func(path string) (*config.Config, error)
}

// DefaultMeetingDeps returns default dependencies for production use.
func DefaultMeetingDeps() *MeetingCommandDeps {
	return &MeetingCommandDeps{LoadConfig: config.Load}
}

// NewMeetingCommand creates the root meeting command with all subcommands.
func NewMeetingCommand(deps *MeetingCommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultMeetingDeps()
	}

	c := &cobra.Command{
		Use:   "meeting",
		Short: "Manage meetings",
		Long: `Inspect and manage meetings directly against the database.

Meetings are owner-scoped; every command requires --user. Cancelling is a
conditional transition and only succeeds for upcoming meetings.

Examples:
  nexa-server meeting list --user u_123
  nexa-server meeting show <id> --user u_123
  nexa-server meeting cancel <id> --user u_123`,
		Aliases: []string{"meetings"},
	}

	c.PersistentFlags().StringVar(&meetingConfigFile, "config", "", "config file path (YAML)")
	c.PersistentFlags().StringVarP(&meetingOutputFormat, "output", "o", "", "output format: text, json")
	c.PersistentFlags().StringVar(&meetingUser, "user", "", "owner user id (required)")

	c.AddCommand(newMeetingListCommand(deps))
	c.AddCommand(newMeetingShowCommand(deps))
	c.AddCommand(newMeetingCancelCommand(deps))

	return c
}

// withMeetingRepo loads config, connects, and hands the repository to fn.
func withMeetingRepo(c *cobra.Command, deps *MeetingCommandDeps, fn func(*meetings.Repository) error) error {
	if meetingUser == "" {
		return fmt.Errorf("--user is required")
	}

	cfg, err := deps.LoadConfig(meetingConfigFile)
	if err != nil {
		return err
	}

	pool, err := connectDB(c.Context(), cfg)
	if err != nil {
		return err
	}
	defer db.Close(pool)

	return fn(meetings.NewRepository(pool, logging.NewNopLogger()))
}

func newMeetingListCommand(deps *MeetingCommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Short:   "List meetings",
		Aliases: []string{"ls"},
		RunE: func(c *cobra.Command, args []string) error {
			return withMeetingRepo(c, deps, func(repo *meetings.Repository) error {
				items, err := repo.List(c.Context(), meetingUser)
				if err != nil {
					return err
				}

				out := c.OutOrStdout()
				if meetingOutputFormat == "json" {
					return outputJSON(out, items)
				}

				fmt.Fprintf(out, "%-36s %-24s %-10s %-20s %s\n", "ID", "NAME", "STATUS", "AGENT", "STARTED")
				for _, m := range items {
					fmt.Fprintf(out, "%-36s %-24s %-10s %-20s %s\n",
						m.ID, truncate(m.Name, 24), m.Status, truncate(stringOrDash(m.AgentName), 20), formatTime(m.StartedAt))
				}
				return nil
			})
		},
	}
}

func newMeetingShowCommand(deps *MeetingCommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one meeting",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid meeting id: %w", err)
			}

			return withMeetingRepo(c, deps, func(repo *meetings.Repository) error {
				meeting, err := repo.GetOwned(c.Context(), id, meetingUser)
				if err != nil {
					return err
				}

				out := c.OutOrStdout()
				if meetingOutputFormat == "json" {
					return outputJSON(out, meeting)
				}

				fmt.Fprintf(out, "ID:         %s\n", meeting.ID)
				fmt.Fprintf(out, "Name:       %s\n", meeting.Name)
				fmt.Fprintf(out, "Status:     %s\n", meeting.Status)
				fmt.Fprintf(out, "Agent:      %s\n", meeting.AgentID)
				fmt.Fprintf(out, "Started:    %s\n", formatTime(meeting.StartedAt))
				fmt.Fprintf(out, "Ended:      %s\n", formatTime(meeting.EndedAt))
				if meeting.TranscriptURL != nil {
					fmt.Fprintf(out, "Transcript: %s\n", *meeting.TranscriptURL)
				}
				if meeting.RecordingURL != nil {
					fmt.Fprintf(out, "Recording:  %s\n", *meeting.RecordingURL)
				}
				if meeting.Summary != nil {
					fmt.Fprintf(out, "Summary:\n%s\n", *meeting.Summary)
				}
				return nil
			})
		},
	}
}

func newMeetingCancelCommand(deps *MeetingCommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel an upcoming meeting",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid meeting id: %w", err)
			}

			return withMeetingRepo(c, deps, func(repo *meetings.Repository) error {
				meeting, err := repo.Cancel(c.Context(), id, meetingUser)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.OutOrStdout(), "Cancelled meeting %s (%s)\n", meeting.ID, meeting.Name)
				return nil
			})
		},
	}
}
