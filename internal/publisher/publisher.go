// Package publisher pushes generated React Native projects to GitHub.
// It drives git through a runner and ensures the remote repository
// exists through the GitHub API before pushing.
package publisher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/go-github/v56/github"
	"golang.org/x/oauth2"
)

// PublishResult reports where a project ended up.
type PublishResult struct {
	RepoURL       string `json:"repository_url"`
	CommitMessage string `json:"commit_message,omitempty"`
	NoChanges     bool   `json:"no_changes,omitempty"`
}

// Publisher deploys projects from a local project root to GitHub.
type Publisher struct {
	owner       string
	projectRoot string
	gh          *github.Client
	runner      Runner
	out         io.Writer
	now         func() time.Time
}

// New returns a Publisher for the given GitHub owner. token may be
// empty, in which case repository creation is skipped for repos that
// already exist and pushes rely on ambient git credentials.
func New(owner, projectRoot, token string) *Publisher {
	var gh *github.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		tc := oauth2.NewClient(context.Background(), ts)
		gh = github.NewClient(tc)
	} else {
		gh = github.NewClient(nil)
	}

	return &Publisher{
		owner:       owner,
		projectRoot: projectRoot,
		gh:          gh,
		runner:      execRunner{},
		out:         io.Discard,
		now:         time.Now,
	}
}

// SetRunner swaps the command runner. Tests use this to avoid shelling out.
func (p *Publisher) SetRunner(r Runner) { p.runner = r }

// SetOutput directs progress lines to w.
func (p *Publisher) SetOutput(w io.Writer) { p.out = w }

// SetClock overrides the timestamp source used in commit messages and READMEs.
func (p *Publisher) SetClock(now func() time.Time) { p.now = now }

// RepoURL returns the https clone URL a project publishes to.
func (p *Publisher) RepoURL(projectName string) string {
	return fmt.Sprintf("https://github.com/%s/%s.git", p.owner, strings.ToLower(projectName))
}

// Projects lists the project directories under the project root.
func (p *Publisher) Projects() ([]string, error) {
	entries, err := os.ReadDir(p.projectRoot)
	if err != nil {
		return nil, fmt.Errorf("read project root: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Publish pushes one project to GitHub, creating the remote repository
// when it does not exist yet. A clean working tree is reported as
// success with NoChanges set.
func (p *Publisher) Publish(ctx context.Context, projectName string) (PublishResult, error) {
	dir := filepath.Join(p.projectRoot, projectName)
	if _, err := os.Stat(dir); err != nil {
		return PublishResult{}, fmt.Errorf("project not found: %s", dir)
	}

	fmt.Fprintf(p.out, "[publisher] deploying %s to GitHub\n", projectName)

	if _, err := os.Stat(filepath.Join(dir, ".git")); os.IsNotExist(err) {
		if _, err := p.runner.Run(ctx, dir, "git", "init"); err != nil {
			return PublishResult{}, err
		}
		fmt.Fprintf(p.out, "[publisher] initialized git repository\n")
	}

	if err := p.writeReadme(dir, projectName); err != nil {
		return PublishResult{}, fmt.Errorf("write README: %w", err)
	}

	if _, err := p.runner.Run(ctx, dir, "git", "add", "."); err != nil {
		return PublishResult{}, err
	}

	status, err := p.runner.Run(ctx, dir, "git", "status", "--porcelain")
	if err != nil {
		return PublishResult{}, err
	}
	repoURL := p.RepoURL(projectName)
	if strings.TrimSpace(status) == "" {
		fmt.Fprintf(p.out, "[publisher] no changes to commit for %s\n", projectName)
		return PublishResult{RepoURL: repoURL, NoChanges: true}, nil
	}

	commitMessage := p.commitMessage(projectName)
	if _, err := p.runner.Run(ctx, dir, "git", "commit", "-m", commitMessage); err != nil {
		return PublishResult{}, err
	}

	if _, err := p.runner.Run(ctx, dir, "git", "remote", "get-url", "origin"); err != nil {
		if _, err := p.runner.Run(ctx, dir, "git", "remote", "add", "origin", repoURL); err != nil {
			return PublishResult{}, err
		}
		fmt.Fprintf(p.out, "[publisher] added remote %s\n", repoURL)
	} else {
		if _, err := p.runner.Run(ctx, dir, "git", "remote", "set-url", "origin", repoURL); err != nil {
			return PublishResult{}, err
		}
	}

	if err := p.ensureRepo(ctx, strings.ToLower(projectName)); err != nil {
		// The push still has a chance if credentials cover an existing repo.
		fmt.Fprintf(p.out, "[publisher] could not verify GitHub repository: %v\n", err)
	}

	if _, err := p.runner.Run(ctx, dir, "git", "push", "-f", "origin", "main"); err != nil {
		return PublishResult{}, err
	}
	fmt.Fprintf(p.out, "[publisher] pushed to %s\n", repoURL)

	return PublishResult{RepoURL: repoURL, CommitMessage: commitMessage}, nil
}

// ensureRepo checks that the remote repository exists and creates it
// public when the API reports 404.
func (p *Publisher) ensureRepo(ctx context.Context, repoName string) error {
	_, resp, err := p.gh.Repositories.Get(ctx, p.owner, repoName)
	if err == nil {
		return nil
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		return err
	}

	description := fmt.Sprintf("React Native %s - auto-deployed React Native app", repoName)
	_, _, err = p.gh.Repositories.Create(ctx, "", &github.Repository{
		Name:        github.String(repoName),
		Private:     github.Bool(false),
		Description: github.String(description),
	})
	if err != nil {
		return fmt.Errorf("create repository %s: %w", repoName, err)
	}
	fmt.Fprintf(p.out, "[publisher] created GitHub repository %s\n", repoName)
	return nil
}

func (p *Publisher) commitMessage(projectName string) string {
	return fmt.Sprintf(`Enhanced %s with auto-generated components

- Fixed missing imports and components
- Added navigation structure
- Expo Snack ready deployment
- Auto-generated at %s`, projectName, p.now().Format("2006-01-02 15:04:05"))
}

func (p *Publisher) writeReadme(dir, projectName string) error {
	lower := strings.ToLower(projectName)
	content := fmt.Sprintf(`# %s

## React Native App - Auto-Generated

This React Native application was automatically generated by an AI build
workflow and prepared for Expo Snack.

### Quick Deploy to Expo Snack

1. **One-Click Deploy**:
   - Go to [snack.expo.dev](https://snack.expo.dev/)
   - Click "Import from GitHub"
   - Enter: `+"`https://github.com/%s/%s`"+`

2. **Manual Deploy**:
   `+"```bash"+`
   git clone https://github.com/%s/%s.git
   cd %s

   npm install

   expo start
   `+"```"+`

### Project Structure
`+"```"+`
%s/
|-- App.js                 # Main application entry
|-- src/
|   |-- components/        # Auto-generated components
|   |-- screens/           # Application screens
|   `+"`"+`-- navigation/        # Navigation structure
|-- package.json           # Dependencies
`+"`"+`-- app.json               # Expo configuration
`+"```"+`

### Technologies Used
- React Native 0.72.6
- Expo SDK 49.0.0
- React Navigation 6.x
- Auto-generated components

### Auto-Deployment Info
- **Generated**: %s
- **Status**: Ready for Expo Snack

---
*This project was automatically generated and deployed. For issues or improvements, please update the source generator.*
`, projectName, p.owner, lower, p.owner, lower, lower, projectName, p.now().Format("2006-01-02 15:04:05"))

	return os.WriteFile(filepath.Join(dir, "README.md"), []byte(content), 0644)
}
