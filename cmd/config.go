package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage snackforge configuration",
	Long:  `Configure snackforge settings including AI provider and API keys.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file",
	Long:  `Create a default configuration file in your home directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("error finding home directory: %w", err)
		}

		configPath := filepath.Join(home, ".snackforge.yaml")

		// Check if config already exists
		if _, err := os.Stat(configPath); err == nil {
			fmt.Printf("Configuration file already exists at %s\n", configPath)
			return nil
		}

		defaultConfig := `# SnackForge Configuration
# Copy this to ~/.snackforge.yaml and customize for your setup

# AI Providers Configuration
ai:
  default_provider: openai  # Default AI provider to use

  providers:
    openai:
      model: gpt-4o-mini
      api_key_env: OPENAI_API_KEY

    anthropic:
      model: claude-3-sonnet-20240229
      api_key_env: ANTHROPIC_API_KEY

    gemini:
      project_id: your-gcp-project-id

    gemini-api:
      model: gemini-2.0-flash
      api_key_env: GEMINI_API_KEY

# GitHub publishing
github:
  owner: your-username     # Account that receives published projects
  token_env: GITHUB_TOKEN  # Env var holding a personal access token

# Expo Snack sandbox
snack:
  base_url: https://snack.expo.dev/api/v2
  poll_interval: 5s
  timeout: 60s

# Deployment pipeline
pipeline:
  project_root: /tmp/expo_projects  # Directory holding React Native projects
  max_attempts: 3                   # Publish/deploy/fix cycles per project
  log_dir: deployment_logs          # Where run logs and session reports land

# HTTP API
server:
  addr: :8000

# Relational store
database:
  driver: sqlite          # sqlite or postgres
  dsn: snackforge.db      # file path for sqlite, connection URL for postgres

debug: false
`

		err = os.WriteFile(configPath, []byte(defaultConfig), 0644)
		if err != nil {
			return fmt.Errorf("error creating config file: %w", err)
		}

		fmt.Printf("Configuration file created at %s\n", configPath)
		fmt.Println("Please edit the file to add your AI provider API key.")
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration settings.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings := viper.AllSettings()
		if len(settings) == 0 {
			fmt.Println("No configuration found. Run 'snackforge config init' to create one.")
			return nil
		}

		if used := viper.ConfigFileUsed(); used != "" {
			fmt.Printf("Configuration file: %s\n\n", used)
		}

		out, err := yaml.Marshal(settings)
		if err != nil {
			return fmt.Errorf("error rendering config: %w", err)
		}
		fmt.Print(string(out))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
