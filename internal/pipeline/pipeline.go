// Package pipeline orchestrates the deployment loop: publish to
// GitHub, deploy to an Expo Snack sandbox, scrape errors, apply
// automatic fixes, and retry up to a bounded number of attempts.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/balamir53/snackforge/internal/analyzer"
	"github.com/balamir53/snackforge/internal/deploylog"
	"github.com/balamir53/snackforge/internal/publisher"
	"github.com/balamir53/snackforge/internal/snack"
)

const (
	defaultMaxAttempts    = 3
	defaultSandboxTimeout = 60 * time.Second
	defaultRetryPause     = 2 * time.Second
)

// GitHubPublisher pushes a project and reports where it landed.
type GitHubPublisher interface {
	Publish(ctx context.Context, projectName string) (publisher.PublishResult, error)
}

// SandboxDeployer creates sandboxes and polls them for errors.
type SandboxDeployer interface {
	CreateFromGitHub(ctx context.Context, repoURL, appName string) (snack.Snack, error)
	WaitForDeployment(ctx context.Context, snackID string, timeout time.Duration) (bool, []snack.SandboxError)
}

// Patcher applies fix steps to a project directory.
type Patcher interface {
	Apply(steps []analyzer.FixStep) map[string]bool
}

// Clock abstracts the retry pause so tests run without waiting.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// DeploymentAttempt records one iteration of the retry loop. Immutable
// once the iteration finishes.
type DeploymentAttempt struct {
	Index          int                  `json:"index"`
	PublishOK      bool                 `json:"publish_ok"`
	SandboxOK      bool                 `json:"sandbox_ok"`
	Errors         []snack.SandboxError `json:"errors,omitempty"`
	FixOutcomes    map[string]bool      `json:"fix_outcomes,omitempty"`
	StageDurations map[string]float64   `json:"stage_durations,omitempty"`
}

// DeploymentResult is the terminal record for one project.
type DeploymentResult struct {
	ProjectName  string                 `json:"project_name"`
	Success      bool                   `json:"success"`
	RepoURL      string                 `json:"github_url,omitempty"`
	SnackURL     string                 `json:"snack_url,omitempty"`
	SnackID      string                 `json:"snack_id,omitempty"`
	Errors       []analyzer.ParsedError `json:"errors,omitempty"`
	FixesApplied map[string]bool        `json:"fixes_applied,omitempty"`
	Attempts     int                    `json:"attempts"`
	AttemptLog   []DeploymentAttempt    `json:"attempt_log,omitempty"`
	FailureNote  string                 `json:"failure_note,omitempty"`
}

// Orchestrator drives projects through the deployment state machine.
type Orchestrator struct {
	publisher   GitHubPublisher
	sandbox     SandboxDeployer
	newPatcher  func(projectDir string) Patcher
	projectRoot string
	logger      *deploylog.Logger

	clock          Clock
	maxAttempts    int
	sandboxTimeout time.Duration
	retryPause     time.Duration
	out            io.Writer
}

// New wires an orchestrator from its stage implementations. logger may
// be nil, in which case no session files are written.
func New(pub GitHubPublisher, sandbox SandboxDeployer, newPatcher func(projectDir string) Patcher, projectRoot string, logger *deploylog.Logger) *Orchestrator {
	return &Orchestrator{
		publisher:      pub,
		sandbox:        sandbox,
		newPatcher:     newPatcher,
		projectRoot:    projectRoot,
		logger:         logger,
		clock:          realClock{},
		maxAttempts:    defaultMaxAttempts,
		sandboxTimeout: defaultSandboxTimeout,
		retryPause:     defaultRetryPause,
		out:            io.Discard,
	}
}

// SetMaxAttempts overrides the retry ceiling. Values below 1 are ignored.
func (o *Orchestrator) SetMaxAttempts(n int) {
	if n >= 1 {
		o.maxAttempts = n
	}
}

// SetSandboxTimeout overrides how long each attempt waits on the sandbox.
func (o *Orchestrator) SetSandboxTimeout(d time.Duration) { o.sandboxTimeout = d }

// SetClock swaps the time source used for the retry pause.
func (o *Orchestrator) SetClock(c Clock) { o.clock = c }

// SetOutput directs progress lines to w.
func (o *Orchestrator) SetOutput(w io.Writer) { o.out = w }

// DeployProject runs the full publish/sandbox/fix/retry loop for one
// project. Stage panics are converted into a failed result so batch
// runs always continue.
func (o *Orchestrator) DeployProject(ctx context.Context, projectName string) (result DeploymentResult) {
	result = DeploymentResult{
		ProjectName:  projectName,
		FixesApplied: make(map[string]bool),
	}

	defer func() {
		if r := recover(); r != nil {
			result.Success = false
			result.FailureNote = fmt.Sprintf("stage panic: %v", r)
			fmt.Fprintf(o.out, "[pipeline] %s: recovered from stage panic: %v\n", projectName, r)
		}
	}()

	fmt.Fprintf(o.out, "[pipeline] starting automated deployment for %s\n", projectName)
	if o.logger != nil {
		o.logger.StartProject(projectName)
		defer func() { o.logger.FinishProject(projectName, result.Success) }()
	}

	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		result.Attempts = attempt
		fmt.Fprintf(o.out, "[pipeline] %s: attempt %d/%d\n", projectName, attempt, o.maxAttempts)
		if o.logger != nil {
			o.logger.LogAttempt(projectName, attempt, o.maxAttempts)
		}

		rec := DeploymentAttempt{
			Index:          attempt,
			StageDurations: make(map[string]float64),
		}

		// PUBLISH
		start := o.clock.Now()
		pubResult, err := o.publisher.Publish(ctx, projectName)
		rec.StageDurations["publish"] = o.clock.Now().Sub(start).Seconds()
		if o.logger != nil {
			o.logger.LogGitHubDeployment(projectName, err == nil, o.clock.Now().Sub(start), errString(err))
		}
		if err != nil {
			fmt.Fprintf(o.out, "[pipeline] %s: GitHub deployment failed: %v\n", projectName, err)
			result.FailureNote = err.Error()
			result.AttemptLog = append(result.AttemptLog, rec)
			continue
		}
		rec.PublishOK = true
		result.RepoURL = pubResult.RepoURL

		// AWAIT_SANDBOX: create then poll.
		start = o.clock.Now()
		created, err := o.sandbox.CreateFromGitHub(ctx, pubResult.RepoURL, projectName)
		if err != nil {
			rec.StageDurations["sandbox"] = o.clock.Now().Sub(start).Seconds()
			if o.logger != nil {
				o.logger.LogSnackDeployment(projectName, false, o.clock.Now().Sub(start), "", err.Error())
			}
			fmt.Fprintf(o.out, "[pipeline] %s: Snack deployment failed: %v\n", projectName, err)
			result.FailureNote = err.Error()
			result.AttemptLog = append(result.AttemptLog, rec)
			continue
		}
		result.SnackID = created.ID
		result.SnackURL = created.URL

		ok, sandboxErrs := o.sandbox.WaitForDeployment(ctx, created.ID, o.sandboxTimeout)
		rec.StageDurations["sandbox"] = o.clock.Now().Sub(start).Seconds()
		rec.SandboxOK = ok
		rec.Errors = sandboxErrs
		if o.logger != nil {
			o.logger.LogSnackDeployment(projectName, ok, o.clock.Now().Sub(start), created.URL, joinErrors(sandboxErrs))
		}

		if ok {
			// SUCCESS is only reachable from a clean sandbox.
			result.Success = true
			result.Errors = nil
			result.AttemptLog = append(result.AttemptLog, rec)
			fmt.Fprintf(o.out, "[pipeline] %s: deployment completed with no errors\n", projectName)
			return result
		}

		// ANALYZE_ERRORS
		start = o.clock.Now()
		messages := make([]string, len(sandboxErrs))
		for i, e := range sandboxErrs {
			messages[i] = e.Message
		}
		analysis := analyzer.Analyze(messages)
		result.Errors = analysis.Errors
		if o.logger != nil {
			o.logger.LogErrorAnalysis(projectName, analysis.TotalErrors, analysis.AutoFixableErrors, o.clock.Now().Sub(start))
			o.logger.LogErrorDetails(projectName, errorDetails(analysis.Errors))
		}
		fmt.Fprintf(o.out, "[pipeline] %s: %d errors, %d auto-fixable, success probability %.0f%%\n",
			projectName, analysis.TotalErrors, analysis.AutoFixableErrors, analysis.SuccessProbability*100)

		if analysis.AutoFixableErrors == 0 {
			fmt.Fprintf(o.out, "[pipeline] %s: no auto-fixable errors, manual intervention required\n", projectName)
			result.FailureNote = "no auto-fixable errors"
			result.AttemptLog = append(result.AttemptLog, rec)
			return result
		}

		// APPLY_FIXES
		start = o.clock.Now()
		patcher := o.newPatcher(filepath.Join(o.projectRoot, projectName))
		outcomes := patcher.Apply(analysis.Plan)
		rec.FixOutcomes = outcomes
		rec.StageDurations["fixes"] = o.clock.Now().Sub(start).Seconds()

		successful := 0
		for key, fixOK := range outcomes {
			result.FixesApplied[key] = fixOK
			if fixOK {
				successful++
			}
		}
		if o.logger != nil {
			o.logger.LogFixApplication(projectName, len(outcomes), successful, o.clock.Now().Sub(start))
		}
		fmt.Fprintf(o.out, "[pipeline] %s: applied %d/%d fixes\n", projectName, successful, len(outcomes))

		result.AttemptLog = append(result.AttemptLog, rec)

		if successful == 0 {
			result.FailureNote = "no fixes could be applied"
			return result
		}

		if attempt < o.maxAttempts {
			fmt.Fprintf(o.out, "[pipeline] %s: retrying deployment with fixes\n", projectName)
			o.clock.Sleep(o.retryPause)
		}
	}

	return result
}

// DeployAll runs every project under the project root sequentially and
// persists the per-run results file plus the session report.
func (o *Orchestrator) DeployAll(ctx context.Context) (map[string]DeploymentResult, error) {
	entries, err := os.ReadDir(o.projectRoot)
	if err != nil {
		return nil, fmt.Errorf("read project root: %w", err)
	}

	results := make(map[string]DeploymentResult)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		fmt.Fprintf(o.out, "[pipeline] processing %s\n", name)
		results[name] = o.DeployProject(ctx, name)
	}

	if err := o.persistResults(results); err != nil {
		fmt.Fprintf(o.out, "[pipeline] could not save results: %v\n", err)
	}
	if o.logger != nil {
		if _, err := o.logger.GenerateReport(); err != nil {
			fmt.Fprintf(o.out, "[pipeline] could not write session report: %v\n", err)
		}
	}

	return results, nil
}

// persistResults writes deployment_results.json next to the session logs.
func (o *Orchestrator) persistResults(results map[string]DeploymentResult) error {
	dir := o.projectRoot
	if o.logger != nil {
		dir = o.logger.Dir()
	}

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}

	target := filepath.Join(dir, "deployment_results.json")
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, target)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func joinErrors(errs []snack.SandboxError) string {
	if len(errs) == 0 {
		return ""
	}
	out := ""
	for i, e := range errs {
		if i > 0 {
			out += "; "
		}
		out += e.Type + ": " + e.Message
	}
	return out
}

func errorDetails(errs []analyzer.ParsedError) []string {
	details := make([]string, len(errs))
	for i, e := range errs {
		details[i] = fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return details
}
