// Package fixer applies automatic fixes to a generated React Native
// project based on analyzer output: creating stub components for
// unresolved local imports, pinning known dependency versions in
// package.json, and repairing the navigation setup.
package fixer

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/balamir53/snackforge/internal/analyzer"
)

// dependencyVersions pins the packages the patcher knows how to add.
// Anything outside this table is left for manual review.
var dependencyVersions = map[string]string{
	"@react-navigation/native":                  "^6.0.0",
	"@react-navigation/stack":                   "^6.0.0",
	"react-native-screens":                      "~3.22.0",
	"react-native-safe-area-context":            "4.6.3",
	"react-native-vector-icons":                 "^10.0.0",
	"@react-native-async-storage/async-storage": "^1.19.0",
}

// navigationDeps is the subset merged into package.json when the
// navigation setup is repaired.
var navigationDeps = []string{
	"@react-navigation/native",
	"@react-navigation/stack",
	"react-native-screens",
	"react-native-safe-area-context",
}

// Patcher applies fix steps to a single project directory.
type Patcher struct {
	projectDir string
	out        io.Writer
}

// NewPatcher returns a Patcher rooted at projectDir. Progress lines are
// written to out; pass nil to discard them.
func NewPatcher(projectDir string, out io.Writer) *Patcher {
	if out == nil {
		out = io.Discard
	}
	return &Patcher{projectDir: projectDir, out: out}
}

// Apply runs every step and reports a per-step outcome keyed by fix
// identifier (create_<module>, add_dep_<package>, fix_navigation).
// A failing step never aborts its siblings.
func (p *Patcher) Apply(steps []analyzer.FixStep) map[string]bool {
	results := make(map[string]bool)
	archetype := p.detectArchetype()

	for _, step := range steps {
		switch step.Action {
		case analyzer.ActionCreateComponent:
			err := p.createComponent(step.Target, archetype)
			if err != nil {
				fmt.Fprintf(p.out, "[fixer] failed to create component %s: %v\n", step.Target, err)
			}
			results["create_"+step.Target] = err == nil
		case analyzer.ActionAddDependency:
			err := p.addDependency(step.Target)
			if err != nil {
				fmt.Fprintf(p.out, "[fixer] failed to add dependency %s: %v\n", step.Target, err)
			}
			results["add_dep_"+step.Target] = err == nil
		case analyzer.ActionFixNavigation:
			err := p.fixNavigation()
			if err != nil {
				fmt.Fprintf(p.out, "[fixer] failed to fix navigation: %v\n", err)
			}
			results["fix_navigation"] = err == nil
		}
	}
	return results
}

// detectArchetype guesses what kind of app the project is by scanning
// .js file names and contents for keyword hints. First hit wins.
func (p *Patcher) detectArchetype() string {
	indicators := []struct {
		name  string
		hints []string
	}{
		{"calculator", []string{"calculator", "calc", "math", "number", "operation"}},
		{"todo", []string{"todo", "task", "list", "item", "complete"}},
		{"weather", []string{"weather", "forecast", "temperature", "location", "climate"}},
	}

	archetype := "generic"
	filepath.WalkDir(p.projectDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(d.Name(), ".js") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		content := strings.ToLower(string(data))
		name := strings.ToLower(d.Name())
		for _, ind := range indicators {
			for _, hint := range ind.hints {
				if strings.Contains(content, hint) || strings.Contains(name, hint) {
					archetype = ind.name
					return filepath.SkipAll
				}
			}
		}
		return nil
	})
	return archetype
}

// createComponent writes a stub component for an unresolved local
// import. Existing files are overwritten so repeated fixes converge on
// the same content.
func (p *Patcher) createComponent(module, archetype string) error {
	cleaned := module
	switch {
	case strings.HasPrefix(cleaned, "./"):
		cleaned = cleaned[2:]
	case strings.HasPrefix(cleaned, "../"):
		cleaned = cleaned[3:]
	case strings.HasPrefix(cleaned, "src/"):
		cleaned = cleaned[4:]
	}
	cleaned = strings.TrimSuffix(cleaned, ".js")

	name := filepath.Base(cleaned)
	dir := filepath.Dir(cleaned)

	var fullDir string
	if dir != "." && dir != "" {
		fullDir = filepath.Join(p.projectDir, "src", dir)
	} else {
		fullDir = filepath.Join(p.projectDir, "src", "components")
	}
	if err := os.MkdirAll(fullDir, 0755); err != nil {
		return err
	}

	content := componentContent(name, archetype)
	target := filepath.Join(fullDir, name+".js")
	if err := os.WriteFile(target, []byte(content), 0644); err != nil {
		return err
	}
	fmt.Fprintf(p.out, "[fixer] created component %s.js\n", name)
	return nil
}

// addDependency pins a known package version in package.json. Unknown
// packages are an error so the step reports false.
func (p *Patcher) addDependency(pkg string) error {
	version, ok := dependencyVersions[pkg]
	if !ok {
		return fmt.Errorf("no pinned version for %s", pkg)
	}
	if err := p.mergeDependencies(map[string]string{pkg: version}); err != nil {
		return err
	}
	fmt.Fprintf(p.out, "[fixer] added dependency %s@%s\n", pkg, version)
	return nil
}

// fixNavigation makes sure the stack navigator scaffold exists and that
// package.json carries the navigation dependencies.
func (p *Patcher) fixNavigation() error {
	navDir := filepath.Join(p.projectDir, "src", "navigation")
	if err := os.MkdirAll(navDir, 0755); err != nil {
		return err
	}

	navFile := filepath.Join(navDir, "AppNavigator.js")
	if _, err := os.Stat(navFile); os.IsNotExist(err) {
		if err := os.WriteFile(navFile, []byte(navigationTemplate), 0644); err != nil {
			return err
		}
		fmt.Fprintf(p.out, "[fixer] created AppNavigator.js\n")
	}

	deps := make(map[string]string, len(navigationDeps))
	for _, pkg := range navigationDeps {
		deps[pkg] = dependencyVersions[pkg]
	}
	return p.mergeDependencies(deps)
}

// mergeDependencies rewrites package.json with the given packages set
// in the dependencies block. Writing the same versions again is a no-op
// success.
func (p *Patcher) mergeDependencies(deps map[string]string) error {
	path := filepath.Join(p.projectDir, "package.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var pkg map[string]any
	if err := json.Unmarshal(data, &pkg); err != nil {
		return fmt.Errorf("parse package.json: %w", err)
	}

	existing, _ := pkg["dependencies"].(map[string]any)
	if existing == nil {
		existing = make(map[string]any)
	}
	for name, version := range deps {
		existing[name] = version
	}
	pkg["dependencies"] = existing

	out, err := json.MarshalIndent(pkg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0644)
}
