// Package cli provides CLI tool dependency detection for the deploy
// and build workflows.
package cli

import (
	"context"
	"os/exec"
	"regexp"
	"strings"
)

// DependencyChecker handles detection of CLI tools
type DependencyChecker struct {
	debug bool
}

// NewDependencyChecker creates a new dependency checker
func NewDependencyChecker(debug bool) *DependencyChecker {
	return &DependencyChecker{debug: debug}
}

// DependencyStatus represents the status of a CLI tool
type DependencyStatus struct {
	Name      string
	Installed bool
	Version   string
	Required  bool
	Message   string
}

var versionPattern = regexp.MustCompile(`v?\d+\.\d+(\.\d+)?`)

// CheckAll checks every tool the pipelines shell out to.
func (d *DependencyChecker) CheckAll() []DependencyStatus {
	return []DependencyStatus{
		d.CheckGit(),
		d.CheckNode(),
		d.CheckNpm(),
		d.CheckGH(),
	}
}

// CheckMissing returns only the missing dependencies
func (d *DependencyChecker) CheckMissing() []DependencyStatus {
	var missing []DependencyStatus
	for _, dep := range d.CheckAll() {
		if !dep.Installed {
			missing = append(missing, dep)
		}
	}
	return missing
}

// CheckGit checks if git is installed. Publishing cannot work without it.
func (d *DependencyChecker) CheckGit() DependencyStatus {
	return d.check("git", true, "git is not installed")
}

// CheckNode checks if node is installed; build validation needs it.
func (d *DependencyChecker) CheckNode() DependencyStatus {
	return d.check("node", true, "node is not installed (required for build validation)")
}

// CheckNpm checks if npm is installed; dependency installation needs it.
func (d *DependencyChecker) CheckNpm() DependencyStatus {
	return d.check("npm", true, "npm is not installed (required for installing project dependencies)")
}

// CheckGH checks if the GitHub CLI is installed. Optional; the API
// client covers repository management without it.
func (d *DependencyChecker) CheckGH() DependencyStatus {
	return d.check("gh", false, "gh is not installed (optional, used for manual repo inspection)")
}

func (d *DependencyChecker) check(name string, required bool, missingMsg string) DependencyStatus {
	status := DependencyStatus{
		Name:     name,
		Required: required,
	}

	path, err := exec.LookPath(name)
	if err != nil {
		status.Installed = false
		status.Message = missingMsg
		return status
	}
	status.Installed = true

	cmd := exec.CommandContext(context.Background(), path, "--version")
	output, err := cmd.Output()
	if err == nil {
		status.Version = strings.TrimSpace(string(output))
		if match := versionPattern.FindString(status.Version); match != "" {
			status.Version = match
		}
	}
	return status
}
