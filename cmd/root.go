package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/balamir53/snackforge/internal/builder"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "snackforge",
	Short: "AI-powered React Native app generation and deployment",
	Long: `SnackForge generates React Native apps from natural language, publishes
them to GitHub, deploys them to Expo Snack sandboxes, and automatically
repairs the errors the sandbox reports. It also serves the HTTP API that
exposes the chat and build agents.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.snackforge.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug output (shows progress + internal diagnostics)")
	rootCmd.PersistentFlags().String("github-owner", "", "GitHub account that receives published projects")
	rootCmd.PersistentFlags().String("projects-root", "", "directory holding the React Native projects")

	// TODO: add error return here
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("github.owner", rootCmd.PersistentFlags().Lookup("github-owner"))
	viper.BindPFlag("pipeline.project_root", rootCmd.PersistentFlags().Lookup("projects-root"))

	viper.SetDefault("pipeline.project_root", builder.DefaultProjectRoot)
	viper.SetDefault("pipeline.max_attempts", 3)
	viper.SetDefault("pipeline.log_dir", "deployment_logs")
	viper.SetDefault("server.addr", ":8000")
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.dsn", "snackforge.db")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			os.Exit(1)
		}

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".snackforge")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("debug") {
			fmt.Println("Using config file:", viper.ConfigFileUsed())
		}
	}
}

// githubToken resolves the token from config (token or token_env) or the
// conventional environment variable.
func githubToken() string {
	if token := viper.GetString("github.token"); token != "" {
		return token
	}
	envName := viper.GetString("github.token_env")
	if envName == "" {
		envName = "GITHUB_TOKEN"
	}
	return os.Getenv(envName)
}
