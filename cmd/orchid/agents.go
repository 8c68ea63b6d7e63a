package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jtarrant/orchid/pkg/models"
)

var (
	agentType         string
	agentCapabilities []string
	agentAutonomy     string
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "Manage the agents available to the planner",
}

var agentsAddCmd = &cobra.Command{
	Use:   "add <alias>",
	Short: "Register an agent for this account",
	Args:  cobra.ExactArgs(1),
	RunE:  runAgentsAdd,
}

var agentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the registered agents",
	Args:  cobra.NoArgs,
	RunE:  runAgentsList,
}

func init() {
	agentsAddCmd.Flags().StringVarP(&agentType, "type", "t", "", "Role tag (researcher, content-writer, designer, forge)")
	agentsAddCmd.Flags().StringSliceVar(&agentCapabilities, "capability", nil, "Capability tag, repeatable")
	agentsAddCmd.Flags().StringVar(&agentAutonomy, "autonomy", "", "Autonomy override (auto, plan-then-execute, step-by-step)")
	agentsAddCmd.MarkFlagRequired("type")

	agentsCmd.AddCommand(agentsAddCmd)
	agentsCmd.AddCommand(agentsListCmd)
}

func runAgentsAdd(cmd *cobra.Command, args []string) error {
	var override models.ExecutionMode
	if agentAutonomy != "" {
		override = models.ExecutionMode(agentAutonomy)
		if !override.Valid() {
			return fmt.Errorf("invalid autonomy mode %q", agentAutonomy)
		}
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	agent := &models.Agent{
		ID:               uuid.NewString(),
		AccountID:        flagAccount,
		Alias:            args[0],
		AgentType:        agentType,
		IsActive:         true,
		HealthStatus:     models.HealthHealthy,
		Capabilities:     agentCapabilities,
		AutonomyOverride: override,
	}
	if err := db.UpsertAgent(context.Background(), agent); err != nil {
		return fmt.Errorf("registering agent: %w", err)
	}
	fmt.Printf("Registered %s (%s) as %s.\n", agent.Alias, agent.AgentType, agent.ID)
	return nil
}

func runAgentsList(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	agents, err := db.ListAgents(context.Background(), flagAccount)
	if err != nil {
		return err
	}
	if len(agents) == 0 {
		fmt.Println("No agents registered. Add one with: orchid agents add")
		return nil
	}
	for _, a := range agents {
		state := "active"
		if !a.IsActive {
			state = "inactive"
		} else if a.PausedAt != nil {
			state = "paused"
		}
		fmt.Printf("%s  %-16s  %-14s  %-8s  %s\n", a.ID, a.Alias, a.AgentType, state, a.HealthStatus)
	}
	return nil
}
