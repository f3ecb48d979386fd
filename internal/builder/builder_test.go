package builder

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fakeAI replies to prompts by matching a keyword in the prompt text.
type fakeAI struct {
	replies map[string]string
	fail    bool
	calls   []string
}

func (f *fakeAI) AskPrompt(_ context.Context, prompt string) (string, error) {
	f.calls = append(f.calls, prompt)
	if f.fail {
		return "", os.ErrDeadlineExceeded
	}
	for keyword, reply := range f.replies {
		if strings.Contains(prompt, keyword) {
			return reply, nil
		}
	}
	return "// generated code", nil
}

func (f *fakeAI) CleanJSONResponse(response string) string {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	return strings.TrimSpace(response)
}

// fakeRunner scripts per-command outcomes. failures counts down, so a
// command can fail N times before succeeding.
type fakeRunner struct {
	calls    [][]string
	failures map[string]int
}

func (f *fakeRunner) Run(_ context.Context, _ string, args ...string) (string, error) {
	f.calls = append(f.calls, args)
	key := strings.Join(args, " ")
	if n, ok := f.failures[key]; ok && n > 0 {
		f.failures[key] = n - 1
		return "command failed", os.ErrInvalid
	}
	return "ok", nil
}

func (f *fakeRunner) ran(cmd string) int {
	count := 0
	for _, call := range f.calls {
		if strings.Join(call, " ") == cmd {
			count++
		}
	}
	return count
}

const planReply = `{
  "screens": [
    {"name": "CounterScreen", "purpose": "Shows the counter", "components": ["Header", "Button"]}
  ],
  "navigation": {"type": "stack", "routes": ["Counter"]},
  "dependencies": ["@react-navigation/native"],
  "file_structure": {"src/screens/": ["CounterScreen.js"]}
}`

func newTestWorkflow(t *testing.T, ai *fakeAI, runner *fakeRunner) *Workflow {
	t.Helper()
	w := NewWorkflow(ai, t.TempDir())
	w.SetRunner(runner)
	return w
}

func TestRunHappyPath(t *testing.T) {
	ai := &fakeAI{replies: map[string]string{
		"Design the architecture": planReply,
		"App.js file":             "```javascript\nimport React from 'react';\n```",
		"screen component":        "export default function CounterScreen() {}",
	}}
	runner := &fakeRunner{}
	w := newTestWorkflow(t, ai, runner)

	build, err := w.Run(context.Background(), Request{
		AppDescription: "A counter app",
		AppName:        "CounterApp",
		Features:       []string{"increment"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !build.Succeeded() {
		t.Fatalf("build did not succeed: step=%s errors=%v", build.CurrentStep, build.Errors)
	}
	if build.RetryCount != 0 {
		t.Fatalf("RetryCount = %d, want 0", build.RetryCount)
	}

	appJS, err := os.ReadFile(filepath.Join(build.ProjectPath, "App.js"))
	if err != nil {
		t.Fatalf("App.js not written: %v", err)
	}
	if strings.Contains(string(appJS), "```") {
		t.Fatalf("markdown fences not stripped from App.js: %q", appJS)
	}
	if _, err := os.Stat(filepath.Join(build.ProjectPath, "src", "screens", "CounterScreen.js")); err != nil {
		t.Fatalf("screen not written: %v", err)
	}
	if runner.ran("npm install") != 1 || runner.ran("node -c App.js") != 1 {
		t.Fatalf("unexpected tool calls: %v", runner.calls)
	}
}

func TestRunPinnedVersionsInPackageJSON(t *testing.T) {
	ai := &fakeAI{replies: map[string]string{"Design the architecture": planReply}}
	w := newTestWorkflow(t, ai, &fakeRunner{})

	build, err := w.Run(context.Background(), Request{AppDescription: "app", AppName: "Pinned"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(build.ProjectPath, "package.json"))
	if err != nil {
		t.Fatalf("read package.json: %v", err)
	}
	var pkg struct {
		Name         string            `json:"name"`
		Dependencies map[string]string `json:"dependencies"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		t.Fatalf("package.json not valid JSON: %v", err)
	}
	if pkg.Name != "pinned" {
		t.Fatalf("package name = %q, want %q", pkg.Name, "pinned")
	}
	if pkg.Dependencies["react"] != "18.2.0" || pkg.Dependencies["react-native"] != "0.72.6" {
		t.Fatalf("core deps not pinned: %v", pkg.Dependencies)
	}
	if pkg.Dependencies["@react-navigation/native"] != "latest" {
		t.Fatalf("planned dep missing: %v", pkg.Dependencies)
	}
}

func TestRunFallsBackOnUnparseablePlan(t *testing.T) {
	ai := &fakeAI{replies: map[string]string{"Design the architecture": "sorry, no JSON here"}}
	w := newTestWorkflow(t, ai, &fakeRunner{})

	build, err := w.Run(context.Background(), Request{AppDescription: "app", AppName: "Fallback"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(build.Structure.Screens) != 1 || build.Structure.Screens[0].Name != "HomeScreen" {
		t.Fatalf("fallback structure not used: %+v", build.Structure)
	}
	if _, err := os.Stat(filepath.Join(build.ProjectPath, "src", "screens", "HomeScreen.js")); err != nil {
		t.Fatalf("fallback screen not generated: %v", err)
	}
}

func TestRunInstallFailureRoutesThroughFix(t *testing.T) {
	ai := &fakeAI{replies: map[string]string{
		"Design the architecture":       planReply,
		"Fix these React Native errors": `{"fixes": [{"file": "App.js", "issue": "bad import", "solution": "fix it"}], "explanation": "repaired imports"}`,
	}}
	runner := &fakeRunner{failures: map[string]int{"npm install": 1}}
	w := newTestWorkflow(t, ai, runner)

	build, err := w.Run(context.Background(), Request{AppDescription: "app", AppName: "FixLoop"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if build.CurrentStep != StepComplete {
		t.Fatalf("CurrentStep = %q, want complete", build.CurrentStep)
	}
	if build.RetryCount != 1 {
		t.Fatalf("RetryCount = %d, want 1", build.RetryCount)
	}
	if runner.ran("npm install") != 2 {
		t.Fatalf("npm install ran %d times, want 2", runner.ran("npm install"))
	}
	if len(build.FixAttempts) != 1 || build.FixAttempts[0] != "repaired imports" {
		t.Fatalf("FixAttempts = %v", build.FixAttempts)
	}
	if build.Succeeded() {
		t.Fatal("build with recorded errors must not report success")
	}
}

func TestRunStopsAtRetryCeiling(t *testing.T) {
	ai := &fakeAI{replies: map[string]string{
		"Design the architecture":       planReply,
		"Fix these React Native errors": `{"fixes": [], "explanation": "tried"}`,
	}}
	runner := &fakeRunner{failures: map[string]int{"npm install": 100}}
	w := newTestWorkflow(t, ai, runner)

	build, err := w.Run(context.Background(), Request{AppDescription: "app", AppName: "Ceiling"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if build.CurrentStep != StepComplete {
		t.Fatalf("workflow did not terminate: %q", build.CurrentStep)
	}
	if build.RetryCount != build.MaxRetries {
		t.Fatalf("RetryCount = %d, want %d", build.RetryCount, build.MaxRetries)
	}
	// one initial install plus one per retry
	if got := runner.ran("npm install"); got != build.MaxRetries+1 {
		t.Fatalf("npm install ran %d times, want %d", got, build.MaxRetries+1)
	}
}

func TestRunUnparseableFixEndsWorkflow(t *testing.T) {
	ai := &fakeAI{replies: map[string]string{
		"Design the architecture":       planReply,
		"Fix these React Native errors": "I cannot help with that",
	}}
	runner := &fakeRunner{failures: map[string]int{"node -c App.js": 1}}
	w := newTestWorkflow(t, ai, runner)

	build, err := w.Run(context.Background(), Request{AppDescription: "app", AppName: "BadFix"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if build.CurrentStep != StepComplete {
		t.Fatalf("workflow did not terminate: %q", build.CurrentStep)
	}
	if runner.ran("npm install") != 1 {
		t.Fatalf("install should not be retried after unparseable fix, ran %d times", runner.ran("npm install"))
	}
	if len(build.Errors) == 0 {
		t.Fatal("validation error should be recorded")
	}
}

func TestNextActions(t *testing.T) {
	ok := &Build{CurrentStep: StepComplete}
	if got := ok.NextActions(); !strings.Contains(got[0], "npm start") {
		t.Fatalf("success actions = %v", got)
	}
	bad := &Build{CurrentStep: StepComplete, Errors: []string{"boom"}}
	if got := bad.NextActions(); !strings.Contains(got[0], "Review errors") {
		t.Fatalf("failure actions = %v", got)
	}
}

func TestRunDefaultsAppName(t *testing.T) {
	ai := &fakeAI{replies: map[string]string{"Design the architecture": planReply}}
	w := newTestWorkflow(t, ai, &fakeRunner{})

	build, err := w.Run(context.Background(), Request{AppDescription: "app"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if build.AppName != "MyReactNativeApp" {
		t.Fatalf("AppName = %q", build.AppName)
	}
}

func TestNewWorkflowDefaultsProjectRoot(t *testing.T) {
	w := NewWorkflow(&fakeAI{}, "")
	if w.projectRoot != DefaultProjectRoot {
		t.Fatalf("projectRoot = %q, want %q", w.projectRoot, DefaultProjectRoot)
	}

	w = NewWorkflow(&fakeAI{}, "/srv/apps")
	if w.projectRoot != "/srv/apps" {
		t.Fatalf("projectRoot = %q, want /srv/apps", w.projectRoot)
	}
}
