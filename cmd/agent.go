package cmd

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ismaeeldev/nexa-server/config"
	"github.com/ismaeeldev/nexa-server/pkg/agents"
	"github.com/ismaeeldev/nexa-server/pkg/db"
	"github.com/ismaeeldev/nexa-server/pkg/logging"
)

// Agent command flags.
var (
	agentConfigFile   string
	agentOutputFormat string
	agentUser         string
	agentName         string
	agentInstructions string
)

// AgentCommandDeps holds dependencies for agent commands.
type AgentCommandDeps struct {
	LoadConfig func(path string) (*config.Config, error)
}

// DefaultAgentDeps returns default dependencies for production use.
func DefaultAgentDeps() *AgentCommandDeps {
	return &AgentCommandDeps{LoadConfig: config.Load}
}

// NewAgentCommand creates the root agent command with all subcommands.
func NewAgentCommand(deps *AgentCommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultAgentDeps()
	}

	c := &cobra.Command{
		Use:   "agent",
		Short: "Manage AI agents",
		Long: `Inspect and manage AI agents directly against the database.

Agents are owner-scoped; every command requires --user.

Examples:
  nexa-server agent list --user u_123
  nexa-server agent create --user u_123 --name Coach --instructions "be concise"
  nexa-server agent show <id> --user u_123
  nexa-server agent delete <id> --user u_123`,
		Aliases: []string{"agents"},
	}

	c.PersistentFlags().StringVar(&agentConfigFile, "config", "", "config file path (YAML)")
	c.PersistentFlags().StringVarP(&agentOutputFormat, "output", "o", "", "output format: text, json")
	c.PersistentFlags().StringVar(&agentUser, "user", "", "owner user id (required)")

	c.AddCommand(newAgentListCommand(deps))
	c.AddCommand(newAgentShowCommand(deps))
	c.AddCommand(newAgentCreateCommand(deps))
	c.AddCommand(newAgentDeleteCommand(deps))

	return c
}

// withAgentRepo loads config, connects, and hands the repository to fn.
func withAgentRepo(c *cobra.Command, deps *AgentCommandDeps, fn func(*agents.Repository) error) error {
	if agentUser == "" {
		return fmt.Errorf("--user is required")
	}

	cfg, err := deps.LoadConfig(agentConfigFile)
	if err != nil {
		return err
	}

	pool, err := connectDB(c.Context(), cfg)
	if err != nil {
		return err
	}
	defer db.Close(pool)

	return fn(agents.NewRepository(pool, logging.NewNopLogger()))
}

func newAgentListCommand(deps *AgentCommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Short:   "List agents",
		Aliases: []string{"ls"},
		RunE: func(c *cobra.Command, args []string) error {
			return withAgentRepo(c, deps, func(repo *agents.Repository) error {
				items, err := repo.List(c.Context(), agentUser)
				if err != nil {
					return err
				}

				out := c.OutOrStdout()
				if agentOutputFormat == "json" {
					return outputJSON(out, items)
				}

				fmt.Fprintf(out, "%-36s %-20s %s\n", "ID", "NAME", "INSTRUCTIONS")
				for _, a := range items {
					fmt.Fprintf(out, "%-36s %-20s %s\n",
						a.ID, truncate(a.Name, 20), truncate(a.Instructions, 60))
				}
				return nil
			})
		},
	}
}

func newAgentShowCommand(deps *AgentCommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid agent id: %w", err)
			}

			return withAgentRepo(c, deps, func(repo *agents.Repository) error {
				agent, err := repo.GetOwned(c.Context(), id, agentUser)
				if err != nil {
					return err
				}

				out := c.OutOrStdout()
				if agentOutputFormat == "json" {
					return outputJSON(out, agent)
				}

				fmt.Fprintf(out, "ID:           %s\n", agent.ID)
				fmt.Fprintf(out, "Name:         %s\n", agent.Name)
				fmt.Fprintf(out, "Instructions: %s\n", agent.Instructions)
				fmt.Fprintf(out, "Created:      %s\n", agent.CreatedAt.Format("2006-01-02 15:04:05"))
				return nil
			})
		},
	}
}

func newAgentCreateCommand(deps *AgentCommandDeps) *cobra.Command {
	c := &cobra.Command{
		Use:   "create",
		Short: "Create an agent",
		RunE: func(c *cobra.Command, args []string) error {
			if strings.TrimSpace(agentName) == "" || strings.TrimSpace(agentInstructions) == "" {
				return fmt.Errorf("--name and --instructions are required")
			}

			return withAgentRepo(c, deps, func(repo *agents.Repository) error {
				agent := &agents.Agent{
					Name:         strings.TrimSpace(agentName),
					Instructions: agentInstructions,
					UserID:       agentUser,
				}
				if err := repo.Create(c.Context(), agent); err != nil {
					return err
				}

				out := c.OutOrStdout()
				if agentOutputFormat == "json" {
					return outputJSON(out, agent)
				}
				fmt.Fprintf(out, "Created agent %s\n", agent.ID)
				return nil
			})
		},
	}

	c.Flags().StringVar(&agentName, "name", "", "agent display name")
	c.Flags().StringVar(&agentInstructions, "instructions", "", "agent instructions")

	return c
}

func newAgentDeleteCommand(deps *AgentCommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid agent id: %w", err)
			}

			return withAgentRepo(c, deps, func(repo *agents.Repository) error {
				if err := repo.Delete(c.Context(), id, agentUser); err != nil {
					return err
				}
				fmt.Fprintf(c.OutOrStdout(), "Deleted agent %s\n", id)
				return nil
			})
		},
	}
}
