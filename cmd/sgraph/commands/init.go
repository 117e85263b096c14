package commands

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/l3aro/go-stmt-graph/internal/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create sgraph configuration interactively",
	Long: `Guides you through setting up sgraph configuration step by step.
Creates a config file with the output format, worker count and debug settings.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit()
	},
}

func runInit() error {
	cfg := config.DefaultConfig()

	// === SECTION 1: Output ===
	format := cfg.Format
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Output format").
				Description("Encoding used by analyze and batch").
				Options(
					huh.NewOption("JSON", config.FormatJSON),
					huh.NewOption("MessagePack", config.FormatMsgpack),
				).
				Value(&format),
			huh.NewConfirm().
				Title("Debug companion").
				Description("Attach code and variable names to nodes and edges?").
				Value(&cfg.Debug),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}
	cfg.Format = format

	// === SECTION 2: Batch ===
	workers := strconv.Itoa(cfg.Workers)
	outputDir := cfg.OutputDir
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Batch workers").
				Placeholder(workers).
				Validate(func(s string) error {
					if n, err := strconv.Atoi(strings.TrimSpace(s)); err != nil || n <= 0 {
						return fmt.Errorf("must be a positive number")
					}
					return nil
				}).
				Value(&workers),
			huh.NewInput().
				Title("Batch output directory").
				Placeholder(outputDir).
				Value(&outputDir),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}
	cfg.Workers, _ = strconv.Atoi(strings.TrimSpace(workers))
	if strings.TrimSpace(outputDir) != "" {
		cfg.OutputDir = strings.TrimSpace(outputDir)
	}

	// === SECTION 3: Config Location ===
	var location string
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Save Configuration").
				Description("Where to save the configuration file?").
				Options(
					huh.NewOption("Global (~/.sgraph/config.yaml)", "global"),
					huh.NewOption("Project (./.sgraph/config.yaml)", "project"),
				).
				Value(&location),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	configPath := config.ProjectConfigFilePath()
	if location == "global" {
		configPath = config.GlobalConfigFilePath()
	}

	if _, err := os.Stat(configPath); err == nil {
		var overwrite bool
		form = huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Config file exists").
					Description(fmt.Sprintf("Overwrite existing config at %s?", configPath)).
					Affirmative("Overwrite").
					Negative("Cancel").
					Value(&overwrite),
			),
		)
		if err := form.Run(); err != nil {
			return fmt.Errorf("interactive prompt failed: %w", err)
		}
		if !overwrite {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	fmt.Println("\n=== Configuration Preview ===")
	fmt.Printf("Config path: %s\n", configPath)
	fmt.Printf("Format: %s\n", cfg.Format)
	fmt.Printf("Debug: %t\n", cfg.Debug)
	fmt.Printf("Workers: %d\n", cfg.Workers)
	fmt.Printf("Output dir: %s\n", cfg.OutputDir)
	fmt.Println("================================")

	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Printf("Configuration saved to: %s\n", configPath)
	return nil
}
