package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jtarrant/orchid/internal/config"
	"github.com/jtarrant/orchid/internal/store"
)

var (
	flagWorkspace string
	flagAccount   string
)

var rootCmd = &cobra.Command{
	Use:   "orchid",
	Short: "Task orchestration for autonomous agent fleets",
	Long: `Orchid decomposes high-level tasks into agent-assignable steps,
gates execution by a computed confidence level, and drives the resulting
subtask tree through a shared status lifecycle.

Core capabilities:
- Plans tasks via model-assisted decomposition with heuristic fallbacks
- Assigns each step to the best-fitted agent by role and trust
- Wires dependency edges between steps
- Gates execution by autonomy mode (auto, plan-then-execute, step-by-step)
- Cancels whole task trees in one atomic cascade`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagWorkspace, "workspace", ".", "Workspace directory")
	rootCmd.PersistentFlags().StringVar(&flagAccount, "account", "default", "Account the task tree belongs to")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(orchestrateCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(versionCmd)
}

// openStore opens and migrates the workspace database.
func openStore() (*store.DB, error) {
	abs, err := filepath.Abs(flagWorkspace)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace: %w", err)
	}
	db, err := store.Open(store.WorkspaceDBPath(abs))
	if err != nil {
		return nil, fmt.Errorf("opening state database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating state database: %w", err)
	}
	return db, nil
}

// loadConfig loads the layered configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}
