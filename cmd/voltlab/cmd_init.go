package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"voltlab/internal/config"
)

// initCmd writes a starter config
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long: `Creates the config file at the --config path (default ` + config.DefaultPath() + `)
with documented defaults. Refuses to overwrite an existing file.`,
	RunE: runConfigInit,
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config already exists at %s; delete it first to reinitialize", configPath)
	}

	if err := config.DefaultConfig().Save(configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Printf("Wrote default config to %s\n", configPath)
	fmt.Println("Set your API key via OPENAI_API_KEY (or edit llm.api_key).")
	return nil
}
