// Package builder generates React Native projects from a natural
// language description: an AI call plans the app structure, files are
// scaffolded and generated, dependencies installed, and a bounded fix
// loop repairs what validation catches.
package builder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Step names double as the workflow's transition values. Every step
// returns the next step explicitly; nothing is re-derived from state.
const (
	StepPlanArchitecture    = "plan_architecture"
	StepGenerateProject     = "generate_project"
	StepGenerateComponents  = "generate_components"
	StepInstallDependencies = "install_dependencies"
	StepValidateBuild       = "validate_build"
	StepFixErrors           = "fix_errors"
	StepComplete            = "complete"
)

const defaultMaxRetries = 3

// Request describes the app to build.
type Request struct {
	AppDescription    string         `json:"app_description"`
	AppName           string         `json:"app_name"`
	Features          []string       `json:"features"`
	DesignPreferences map[string]any `json:"design_preferences"`
	ProjectID         string         `json:"project_id"`
}

// Screen is one planned screen of the app.
type Screen struct {
	Name       string   `json:"name"`
	Purpose    string   `json:"purpose"`
	Components []string `json:"components"`
}

// Navigation describes the planned navigation shape.
type Navigation struct {
	Type   string   `json:"type"`
	Routes []string `json:"routes"`
}

// AppStructure is the AI-planned architecture.
type AppStructure struct {
	Screens       []Screen            `json:"screens"`
	Navigation    Navigation          `json:"navigation"`
	Dependencies  []string            `json:"dependencies"`
	FileStructure map[string][]string `json:"file_structure"`
}

// GeneratedFile records one file the workflow wrote.
type GeneratedFile struct {
	Path    string `json:"path"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

// Build is the workflow state for one project. All fields are declared
// upfront so stage boundaries never invent keys.
type Build struct {
	Request
	ProjectPath    string          `json:"project_path"`
	CurrentStep    string          `json:"current_step"`
	GeneratedFiles []GeneratedFile `json:"generated_files"`
	BuildLogs      []string        `json:"build_logs"`
	Errors         []string        `json:"errors"`
	RetryCount     int             `json:"retry_count"`
	MaxRetries     int             `json:"max_retries"`
	Structure      AppStructure    `json:"app_structure"`
	FixAttempts    []string        `json:"fix_attempts"`
}

// Completer is the slice of the AI client the workflow needs.
type Completer interface {
	AskPrompt(ctx context.Context, prompt string) (string, error)
	CleanJSONResponse(response string) string
}

// Runner executes build tooling (npm, node) in a working directory.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	if err != nil {
		return string(output), fmt.Errorf("%s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(output)))
	}
	return strings.TrimSpace(string(output)), nil
}

var jsFencePattern = regexp.MustCompile("(?m)^```(?:javascript|js)?\\s*$")

// Workflow builds React Native projects under a fixed project root.
type Workflow struct {
	ai          Completer
	runner      Runner
	projectRoot string
	out         io.Writer
	maxRetries  int
}

// DefaultProjectRoot is where generated projects land when no
// pipeline.project_root is configured. The deploy pipeline reads from
// the same root.
const DefaultProjectRoot = "/tmp/expo_projects"

// NewWorkflow wires a builder workflow. projectRoot defaults to
// DefaultProjectRoot when empty.
func NewWorkflow(ai Completer, projectRoot string) *Workflow {
	if projectRoot == "" {
		projectRoot = DefaultProjectRoot
	}
	return &Workflow{
		ai:          ai,
		runner:      execRunner{},
		projectRoot: projectRoot,
		out:         io.Discard,
		maxRetries:  defaultMaxRetries,
	}
}

// SetRunner swaps the command runner. Tests use this to avoid npm.
func (w *Workflow) SetRunner(r Runner) { w.runner = r }

// SetOutput directs progress lines to out.
func (w *Workflow) SetOutput(out io.Writer) { w.out = out }

// Run drives the workflow to completion and returns the final state.
// The fix loop is bounded by MaxRetries; Run itself always terminates.
func (w *Workflow) Run(ctx context.Context, req Request) (*Build, error) {
	if req.AppName == "" {
		req.AppName = "MyReactNativeApp"
	}
	build := &Build{
		Request:     req,
		CurrentStep: StepPlanArchitecture,
		MaxRetries:  w.maxRetries,
	}

	for build.CurrentStep != StepComplete {
		if err := ctx.Err(); err != nil {
			return build, err
		}

		var next string
		var err error
		switch build.CurrentStep {
		case StepPlanArchitecture:
			next, err = w.planArchitecture(ctx, build)
		case StepGenerateProject:
			next, err = w.generateProject(build)
		case StepGenerateComponents:
			next, err = w.generateComponents(ctx, build)
		case StepInstallDependencies:
			next = w.installDependencies(ctx, build)
		case StepValidateBuild:
			next = w.validateBuild(ctx, build)
		case StepFixErrors:
			next = w.fixErrors(ctx, build)
		default:
			return build, fmt.Errorf("unknown workflow step %q", build.CurrentStep)
		}
		if err != nil {
			return build, err
		}
		build.CurrentStep = next
	}

	return build, nil
}

// planArchitecture asks the AI for an app structure; unparseable
// responses fall back to a minimal single-screen plan.
func (w *Workflow) planArchitecture(ctx context.Context, b *Build) (string, error) {
	prompt := fmt.Sprintf(`You are a React Native expert. Design the architecture for this mobile app:

App Description: %s
App Name: %s
Features: %s
Design Preferences: %v

Create a detailed app structure with:
1. Screen components needed
2. Navigation structure
3. Required dependencies
4. File structure
5. Key components and their purposes

Return a JSON object with the structure:
{
    "screens": [
        {"name": "ScreenName", "purpose": "description", "components": ["Component1", "Component2"]}
    ],
    "navigation": {"type": "stack|tabs|drawer", "routes": ["Screen1", "Screen2"]},
    "dependencies": ["react-navigation", "react-native-vector-icons"],
    "file_structure": {
        "src/screens/": ["HomeScreen.js", "ProfileScreen.js"],
        "src/components/": ["Button.js", "Header.js"],
        "src/navigation/": ["AppNavigator.js"]
    }
}`, b.AppDescription, b.AppName, strings.Join(b.Features, ", "), b.DesignPreferences)

	response, err := w.ai.AskPrompt(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("plan architecture: %w", err)
	}

	var structure AppStructure
	if jsonErr := json.Unmarshal([]byte(w.ai.CleanJSONResponse(response)), &structure); jsonErr != nil {
		structure = defaultStructure()
		b.BuildLogs = append(b.BuildLogs, "Architecture response unparseable, using fallback structure")
	}

	b.Structure = structure
	b.BuildLogs = append(b.BuildLogs, fmt.Sprintf("App architecture planned: %d screens", len(structure.Screens)))
	fmt.Fprintf(w.out, "[builder] %s: planned %d screens\n", b.AppName, len(structure.Screens))
	return StepGenerateProject, nil
}

func defaultStructure() AppStructure {
	return AppStructure{
		Screens:      []Screen{{Name: "HomeScreen", Purpose: "Main app screen", Components: []string{"Header", "Content"}}},
		Navigation:   Navigation{Type: "stack", Routes: []string{"Home"}},
		Dependencies: []string{"@react-navigation/native", "@react-navigation/stack"},
		FileStructure: map[string][]string{
			"src/screens/":    {"HomeScreen.js"},
			"src/components/": {"Header.js"},
			"src/navigation/": {"AppNavigator.js"},
		},
	}
}

// generateProject scaffolds the directory layout and writes package.json.
func (w *Workflow) generateProject(b *Build) (string, error) {
	b.ProjectPath = filepath.Join(w.projectRoot, b.AppName)

	for _, dir := range []string{"src/screens", "src/components", "src/navigation"} {
		if err := os.MkdirAll(filepath.Join(b.ProjectPath, dir), 0755); err != nil {
			return "", fmt.Errorf("scaffold project: %w", err)
		}
	}

	pkg := map[string]any{
		"name":    strings.ReplaceAll(strings.ToLower(b.AppName), " ", "-"),
		"version": "1.0.0",
		"main":    "index.js",
		"scripts": map[string]string{
			"start":   "react-native start",
			"android": "react-native run-android",
			"ios":     "react-native run-ios",
			"test":    "jest",
		},
		"devDependencies": map[string]string{
			"@babel/core":                     "^7.20.0",
			"@babel/preset-env":               "^7.20.0",
			"@babel/runtime":                  "^7.20.0",
			"metro-react-native-babel-preset": "0.76.8",
		},
	}
	deps := map[string]string{
		"react":        "18.2.0",
		"react-native": "0.72.6",
	}
	for _, dep := range b.Structure.Dependencies {
		if _, pinned := deps[dep]; !pinned {
			deps[dep] = "latest"
		}
	}
	pkg["dependencies"] = deps

	data, err := json.MarshalIndent(pkg, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(b.ProjectPath, "package.json"), data, 0644); err != nil {
		return "", fmt.Errorf("write package.json: %w", err)
	}

	b.GeneratedFiles = append(b.GeneratedFiles, GeneratedFile{Path: "package.json", Type: "config", Content: string(data)})
	b.BuildLogs = append(b.BuildLogs,
		"Project structure created",
		fmt.Sprintf("Dependencies: %d packages", len(deps)))
	return StepGenerateComponents, nil
}

// generateComponents asks the AI for App.js and each planned screen.
func (w *Workflow) generateComponents(ctx context.Context, b *Build) (string, error) {
	structureJSON, _ := json.MarshalIndent(b.Structure, "", "  ")

	appPrompt := fmt.Sprintf(`Create a React Native App.js file for: %s

App Structure: %s

Include:
- Navigation setup based on the structure
- Basic styling
- Import all required screens
- Error boundaries

Return only the JavaScript code without markdown formatting.`, b.AppDescription, structureJSON)

	appJS, err := w.generateSource(ctx, appPrompt)
	if err != nil {
		return "", fmt.Errorf("generate App.js: %w", err)
	}
	if err := os.WriteFile(filepath.Join(b.ProjectPath, "App.js"), []byte(appJS), 0644); err != nil {
		return "", err
	}
	b.GeneratedFiles = append(b.GeneratedFiles, GeneratedFile{Path: "App.js", Type: "component", Content: truncate(appJS, 500)})

	for _, screen := range b.Structure.Screens {
		screenPrompt := fmt.Sprintf(`Create a React Native screen component: %s
Purpose: %s
Components needed: %s

App context: %s

Include:
- Functional component with hooks
- Basic styling with StyleSheet
- Navigation props handling
- Responsive design
- Error handling

Return only the JavaScript code without markdown formatting.`, screen.Name, screen.Purpose, strings.Join(screen.Components, ", "), b.AppDescription)

		content, err := w.generateSource(ctx, screenPrompt)
		if err != nil {
			return "", fmt.Errorf("generate screen %s: %w", screen.Name, err)
		}
		rel := filepath.Join("src", "screens", screen.Name+".js")
		if err := os.WriteFile(filepath.Join(b.ProjectPath, rel), []byte(content), 0644); err != nil {
			return "", err
		}
		b.GeneratedFiles = append(b.GeneratedFiles, GeneratedFile{Path: rel, Type: "screen", Content: truncate(content, 300)})
	}

	b.BuildLogs = append(b.BuildLogs,
		fmt.Sprintf("Generated %d files", len(b.GeneratedFiles)),
		"App.js and screens created")
	return StepInstallDependencies, nil
}

func (w *Workflow) generateSource(ctx context.Context, prompt string) (string, error) {
	response, err := w.ai.AskPrompt(ctx, prompt)
	if err != nil {
		return "", err
	}
	cleaned := jsFencePattern.ReplaceAllString(strings.TrimSpace(response), "")
	return strings.TrimSpace(cleaned), nil
}

const installTimeout = 5 * time.Minute

// installDependencies runs npm install. Failure routes to the fix step
// rather than aborting the workflow.
func (w *Workflow) installDependencies(ctx context.Context, b *Build) string {
	ctx, cancel := context.WithTimeout(ctx, installTimeout)
	defer cancel()
	output, err := w.runner.Run(ctx, b.ProjectPath, "npm", "install")
	if err != nil {
		b.Errors = append(b.Errors, fmt.Sprintf("npm install failed: %v", err))
		b.BuildLogs = append(b.BuildLogs, "npm install error: "+truncate(output, 200))
		return StepFixErrors
	}
	b.BuildLogs = append(b.BuildLogs, "Dependencies installed successfully")
	return StepValidateBuild
}

// validateBuild runs a syntax check over the entry file.
func (w *Workflow) validateBuild(ctx context.Context, b *Build) string {
	if _, err := w.runner.Run(ctx, b.ProjectPath, "node", "-c", "App.js"); err != nil {
		b.Errors = append(b.Errors, fmt.Sprintf("Syntax error in App.js: %v", err))
		return StepFixErrors
	}
	b.BuildLogs = append(b.BuildLogs, "Build validation successful")
	return StepComplete
}

// fixErrors asks the AI for fix suggestions and loops back to the
// install step, up to the retry ceiling.
func (w *Workflow) fixErrors(ctx context.Context, b *Build) string {
	if b.RetryCount >= b.MaxRetries {
		b.BuildLogs = append(b.BuildLogs, "Max retries reached, stopping error fixes")
		return StepComplete
	}

	recent := b.Errors
	if len(recent) > 3 {
		recent = recent[len(recent)-3:]
	}
	paths := make([]string, len(b.GeneratedFiles))
	for i, f := range b.GeneratedFiles {
		paths[i] = f.Path
	}

	prompt := fmt.Sprintf(`Fix these React Native errors:

Errors:
%s

App Description: %s
Generated Files: %s

Provide specific fixes for each error. Focus on:
1. Import/export issues
2. Syntax errors
3. Navigation setup problems
4. Component structure issues

Return a JSON object with fixes:
{
    "fixes": [
        {"file": "path/to/file", "issue": "description", "solution": "code fix"}
    ],
    "explanation": "Overall fix explanation"
}`, strings.Join(recent, "\n"), b.AppDescription, strings.Join(paths, ", "))

	response, err := w.ai.AskPrompt(ctx, prompt)
	if err != nil {
		b.BuildLogs = append(b.BuildLogs, "Could not get fix suggestions: "+err.Error())
		b.RetryCount++
		return StepComplete
	}

	var fixData struct {
		Fixes []struct {
			File     string `json:"file"`
			Issue    string `json:"issue"`
			Solution string `json:"solution"`
		} `json:"fixes"`
		Explanation string `json:"explanation"`
	}
	if err := json.Unmarshal([]byte(w.ai.CleanJSONResponse(response)), &fixData); err != nil {
		b.BuildLogs = append(b.BuildLogs, "Could not parse fix suggestions")
		b.RetryCount++
		return StepComplete
	}

	for _, fix := range fixData.Fixes {
		b.BuildLogs = append(b.BuildLogs, fmt.Sprintf("Fixed %s: %s", fix.File, fix.Issue))
	}
	if fixData.Explanation != "" {
		b.FixAttempts = append(b.FixAttempts, fixData.Explanation)
	} else {
		b.FixAttempts = append(b.FixAttempts, "Applied fixes")
	}
	b.RetryCount++
	return StepInstallDependencies
}

// Succeeded reports whether the build finished without errors.
func (b *Build) Succeeded() bool {
	return b.CurrentStep == StepComplete && len(b.Errors) == 0
}

// NextActions suggests what the caller should do with the result.
func (b *Build) NextActions() []string {
	if b.Succeeded() {
		return []string{
			"Run 'npm start' to start Metro bundler",
			"Run 'npx react-native run-android' for Android",
			"Run 'npx react-native run-ios' for iOS",
		}
	}
	return []string{
		"Review errors and fix manually",
		"Retry with different app description",
		"Check React Native environment setup",
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
