package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/balamir53/snackforge/internal/ai"
	"github.com/balamir53/snackforge/internal/builder"
	"github.com/balamir53/snackforge/internal/cli"
)

var (
	buildAppName  string
	buildFeatures []string
)

// buildCmd generates a React Native project from a description.
var buildCmd = &cobra.Command{
	Use:   "build <description>",
	Short: "Generate a React Native app from a description",
	Long: `Generate a React Native project from a natural language description:
the AI plans the app structure, the project is scaffolded, components are
generated, dependencies installed, and syntax errors repaired.

Examples:
  snackforge build "a todo list with due dates" --name TodoApp
  snackforge build "a weather dashboard" --features forecast,alerts`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		checker := cli.NewDependencyChecker(viper.GetBool("debug"))
		if missing := checker.CheckMissing(); len(missing) > 0 {
			cli.PrintDependencyStatus(missing)
			for _, dep := range missing {
				if dep.Required {
					return fmt.Errorf("%s is required for building projects", dep.Name)
				}
			}
		}

		client := ai.NewClientFromConfig(viper.GetBool("debug"))
		workflow := builder.NewWorkflow(client, viper.GetString("pipeline.project_root"))
		workflow.SetOutput(os.Stdout)

		build, err := workflow.Run(cmd.Context(), builder.Request{
			AppDescription: strings.Join(args, " "),
			AppName:        buildAppName,
			Features:       buildFeatures,
		})
		if err != nil {
			return fmt.Errorf("build workflow: %w", err)
		}

		if build.Succeeded() {
			fmt.Printf("\n%s generated at %s\n", build.AppName, build.ProjectPath)
		} else {
			fmt.Printf("\n%s generated with errors:\n", build.AppName)
			for _, e := range build.Errors {
				fmt.Printf("  - %s\n", e)
			}
		}
		fmt.Println("\nNext steps:")
		for _, step := range build.NextActions() {
			fmt.Printf("  - %s\n", step)
		}
		if !build.Succeeded() {
			return fmt.Errorf("build of %s finished with errors", build.AppName)
		}
		return nil
	},
}

func init() {
	buildCmd.Flags().StringVar(&buildAppName, "name", "", "app name (default derived from the description)")
	buildCmd.Flags().StringSliceVar(&buildFeatures, "features", nil, "feature list passed to the planner")
	rootCmd.AddCommand(buildCmd)
}
