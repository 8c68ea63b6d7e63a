package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize an orchid workspace",
	Long: `Initialize a directory for use with orchid.

This command sets up everything needed:
  - Creates the .orchid directory structure (state, logs, signals)
  - Creates a .orchid.yaml config template
  - Checks credentials (ANTHROPIC_API_KEY or Bedrock)

The directory argument is optional and defaults to the current directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Reinitialize even if already set up")
}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}
	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolving absolute path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", absPath, err)
	}

	fmt.Printf("Initializing orchid in %s...\n\n", absPath)

	orchidDir := filepath.Join(absPath, ".orchid")
	if _, err := os.Stat(orchidDir); err == nil && !initForce {
		fmt.Println("Workspace already initialized. Use --force to reinitialize.")
		return nil
	}

	for _, dir := range []string{
		orchidDir,
		filepath.Join(orchidDir, "logs"),
		filepath.Join(orchidDir, "signals"),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	printStatus("✓", "Created .orchid directory structure", color.FgGreen)

	if err := createProjectConfig(absPath); err != nil {
		return fmt.Errorf("creating project config: %w", err)
	}
	printStatus("✓", "Created .orchid.yaml template", color.FgGreen)

	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		printStatus("✓", "ANTHROPIC_API_KEY is set", color.FgGreen)
	} else if os.Getenv("AWS_REGION") != "" || os.Getenv("AWS_PROFILE") != "" {
		printStatus("✓", "AWS environment detected (Bedrock available)", color.FgGreen)
	} else {
		printStatus("⚠", "No credentials set; model-assisted planning will fall back to heuristics", color.FgYellow)
	}

	fmt.Printf("\n%s Workspace ready.\n\n", color.GreenString("✓"))
	fmt.Println("Next steps:")
	fmt.Println("  1. Register agents:")
	fmt.Println("     orchid agents add Scout --type researcher --capability web_search")
	fmt.Println()
	fmt.Println("  2. Plan a task:")
	fmt.Println("     orchid plan \"Write a blog post about Go and generate a hero image\"")
	fmt.Println()
	fmt.Println("  3. Learn more:")
	fmt.Println("     orchid --help")

	return nil
}

// createProjectConfig writes the .orchid.yaml template unless one exists.
func createProjectConfig(workspacePath string) error {
	configPath := filepath.Join(workspacePath, ".orchid.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return nil
	}

	template := `# Orchid workspace configuration
# Overrides defaults from ~/.config/orchid/config.yaml

# model:
#   name: claude-sonnet-4-5
#   use_aws_bedrock: false
#   aws_region: us-west-2

# planner:
#   timeout: 60s
#   role_keywords:
#     researcher: [benchmark, survey]

# limits:
#   max_subtasks_per_parent: 10
`
	return os.WriteFile(configPath, []byte(template), 0644)
}

// printStatus prints a status line with color.
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}
