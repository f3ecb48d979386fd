package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/balamir53/snackforge/internal/cli"
	"github.com/balamir53/snackforge/internal/deploylog"
	"github.com/balamir53/snackforge/internal/fixer"
	"github.com/balamir53/snackforge/internal/pipeline"
	"github.com/balamir53/snackforge/internal/publisher"
	"github.com/balamir53/snackforge/internal/snack"
)

var (
	deployAll bool
	deployYes bool
)

// deployCmd runs the publish/sandbox/fix pipeline.
var deployCmd = &cobra.Command{
	Use:   "deploy [project]",
	Short: "Publish a project to GitHub and deploy it to Expo Snack",
	Long: `Publish a React Native project to GitHub, deploy it to an Expo Snack
sandbox, and automatically repair the errors the sandbox reports.
Retries up to the configured attempt ceiling.

Examples:
  snackforge deploy MyCalculatorApp
  snackforge deploy --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !deployAll && len(args) == 0 {
			return fmt.Errorf("name a project or pass --all")
		}

		checker := cli.NewDependencyChecker(viper.GetBool("debug"))
		if git := checker.CheckGit(); !git.Installed {
			cli.PrintDependencyStatus([]cli.DependencyStatus{git})
			return fmt.Errorf("git is required for publishing")
		}

		owner := viper.GetString("github.owner")
		if owner == "" {
			return fmt.Errorf("github.owner is not configured (run 'snackforge config init')")
		}
		token := githubToken()
		projectRoot := viper.GetString("pipeline.project_root")

		logger, err := deploylog.New(viper.GetString("pipeline.log_dir"))
		if err != nil {
			return fmt.Errorf("open deployment logs: %w", err)
		}
		defer logger.Close()

		pub := publisher.New(owner, projectRoot, token)
		pub.SetOutput(os.Stdout)
		orch := newOrchestrator(pub, projectRoot, token, logger, os.Stdout)

		if !deployAll {
			known, err := pub.Projects()
			if err != nil {
				return fmt.Errorf("list projects: %w", err)
			}
			if !slices.Contains(known, args[0]) {
				return fmt.Errorf("project %s not found under %s (available: %s)",
					args[0], projectRoot, strings.Join(known, ", "))
			}
		}

		if !deployYes {
			target := "all projects under " + projectRoot
			if !deployAll {
				target = args[0]
			}
			// Publishing force-pushes the generated repo.
			ok, err := cli.PromptYesNo(cmd.InOrStdin(), os.Stdout,
				fmt.Sprintf("Force-push %s to GitHub as %s?", target, owner))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Aborted.")
				return nil
			}
		}

		if deployAll {
			results, err := orch.DeployAll(cmd.Context())
			if err != nil {
				return err
			}
			return printBatchSummary(os.Stdout, results)
		}

		result := orch.DeployProject(cmd.Context(), args[0])
		if _, err := logger.GenerateReport(); err != nil {
			fmt.Fprintf(os.Stderr, "could not write session report: %v\n", err)
		}
		printResult(os.Stdout, result)
		if !result.Success {
			return fmt.Errorf("deployment of %s failed", args[0])
		}
		return nil
	},
}

func newOrchestrator(pub *publisher.Publisher, projectRoot, token string, logger *deploylog.Logger, out io.Writer) *pipeline.Orchestrator {
	sandbox := snack.NewClient(token)
	sandbox.SetOutput(out)
	if base := viper.GetString("snack.base_url"); base != "" {
		sandbox.SetBaseURL(base)
	}

	newPatcher := func(projectDir string) pipeline.Patcher {
		return fixer.NewPatcher(projectDir, out)
	}

	orch := pipeline.New(pub, sandbox, newPatcher, projectRoot, logger)
	orch.SetOutput(out)
	if n := viper.GetInt("pipeline.max_attempts"); n > 0 {
		orch.SetMaxAttempts(n)
	}
	if d := viper.GetDuration("snack.timeout"); d > 0 {
		orch.SetSandboxTimeout(d)
	}
	return orch
}

func printResult(w io.Writer, result pipeline.DeploymentResult) {
	status := "FAILED"
	if result.Success {
		status = "SUCCESS"
	}
	fmt.Fprintf(w, "\n%s: %s (%d attempts)\n", result.ProjectName, status, result.Attempts)
	if result.RepoURL != "" {
		fmt.Fprintf(w, "  repository: %s\n", result.RepoURL)
	}
	if result.SnackURL != "" {
		fmt.Fprintf(w, "  snack: %s\n", result.SnackURL)
	}
	if result.FailureNote != "" {
		fmt.Fprintf(w, "  reason: %s\n", result.FailureNote)
	}
}

func printBatchSummary(w io.Writer, results map[string]pipeline.DeploymentResult) error {
	succeeded := 0
	for _, result := range results {
		printResult(w, result)
		if result.Success {
			succeeded++
		}
	}
	fmt.Fprintf(w, "\nDeployed %d/%d projects successfully\n", succeeded, len(results))

	if viper.GetBool("debug") {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
	}
	return nil
}

func init() {
	deployCmd.Flags().BoolVar(&deployAll, "all", false, "deploy every project under the project root")
	deployCmd.Flags().BoolVarP(&deployYes, "yes", "y", false, "skip the force-push confirmation")
	deployCmd.Flags().Int("max-attempts", 0, "publish/deploy/fix cycles per project (overrides config)")
	viper.BindPFlag("pipeline.max_attempts", deployCmd.Flags().Lookup("max-attempts"))
	rootCmd.AddCommand(deployCmd)
}
