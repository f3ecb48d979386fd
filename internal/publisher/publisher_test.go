package publisher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-github/v56/github"
)

// fakeRunner records commands and returns scripted outputs keyed by the
// joined command line.
type fakeRunner struct {
	calls   [][]string
	outputs map[string]string
	fails   map[string]error
}

func (f *fakeRunner) Run(_ context.Context, _ string, args ...string) (string, error) {
	f.calls = append(f.calls, args)
	key := strings.Join(args, " ")
	if err, ok := f.fails[key]; ok {
		return "", err
	}
	return f.outputs[key], nil
}

func (f *fakeRunner) ran(cmd string) bool {
	for _, call := range f.calls {
		if strings.Join(call, " ") == cmd {
			return true
		}
	}
	return false
}

func newTestPublisher(t *testing.T, runner Runner, repoStatus int) (*Publisher, string) {
	t.Helper()
	root := t.TempDir()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			if repoStatus == http.StatusOK {
				fmt.Fprint(w, `{"name": "myapp"}`)
				return
			}
			w.WriteHeader(repoStatus)
			fmt.Fprint(w, `{"message": "Not Found"}`)
			return
		}
		fmt.Fprint(w, `{"name": "myapp"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	p := New("balamir53", root, "")
	p.SetRunner(runner)
	p.SetClock(func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) })
	base, _ := url.Parse(srv.URL + "/")
	p.gh = github.NewClient(nil)
	p.gh.BaseURL = base

	return p, root
}

func TestPublishHappyPath(t *testing.T) {
	runner := &fakeRunner{
		outputs: map[string]string{"git status --porcelain": "A  App.js"},
		fails:   map[string]error{"git remote get-url origin": errors.New("no remote")},
	}
	p, root := newTestPublisher(t, runner, http.StatusOK)
	if err := os.MkdirAll(filepath.Join(root, "MyApp"), 0755); err != nil {
		t.Fatal(err)
	}

	result, err := p.Publish(context.Background(), "MyApp")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if result.RepoURL != "https://github.com/balamir53/myapp.git" {
		t.Errorf("unexpected repo URL %q", result.RepoURL)
	}
	if result.NoChanges {
		t.Error("expected changes to be committed")
	}
	if !strings.Contains(result.CommitMessage, "MyApp") {
		t.Errorf("commit message should name the project: %q", result.CommitMessage)
	}

	for _, cmd := range []string{
		"git init",
		"git add .",
		"git remote add origin https://github.com/balamir53/myapp.git",
		"git push -f origin main",
	} {
		if !runner.ran(cmd) {
			t.Errorf("expected %q to run", cmd)
		}
	}

	if _, err := os.Stat(filepath.Join(root, "MyApp", "README.md")); err != nil {
		t.Errorf("README.md not written: %v", err)
	}
}

func TestPublishNoChanges(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{"git status --porcelain": ""}}
	p, root := newTestPublisher(t, runner, http.StatusOK)
	if err := os.MkdirAll(filepath.Join(root, "MyApp", ".git"), 0755); err != nil {
		t.Fatal(err)
	}

	result, err := p.Publish(context.Background(), "MyApp")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !result.NoChanges {
		t.Error("expected NoChanges for clean tree")
	}
	if runner.ran("git init") {
		t.Error("git init must be skipped when .git exists")
	}
	if runner.ran("git push -f origin main") {
		t.Error("nothing should be pushed for a clean tree")
	}
}

func TestPublishExistingRemoteIsUpdated(t *testing.T) {
	runner := &fakeRunner{
		outputs: map[string]string{
			"git status --porcelain":    "M  App.js",
			"git remote get-url origin": "https://github.com/balamir53/old.git",
		},
	}
	p, root := newTestPublisher(t, runner, http.StatusOK)
	if err := os.MkdirAll(filepath.Join(root, "MyApp", ".git"), 0755); err != nil {
		t.Fatal(err)
	}

	if _, err := p.Publish(context.Background(), "MyApp"); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !runner.ran("git remote set-url origin https://github.com/balamir53/myapp.git") {
		t.Error("expected remote URL to be updated in place")
	}
}

func TestPublishMissingRepoIsCreated(t *testing.T) {
	runner := &fakeRunner{
		outputs: map[string]string{"git status --porcelain": "A  App.js"},
		fails:   map[string]error{"git remote get-url origin": errors.New("no remote")},
	}
	p, root := newTestPublisher(t, runner, http.StatusNotFound)
	if err := os.MkdirAll(filepath.Join(root, "MyApp"), 0755); err != nil {
		t.Fatal(err)
	}

	// Creation goes through the stubbed API; the publish must still succeed.
	if _, err := p.Publish(context.Background(), "MyApp"); err != nil {
		t.Fatalf("Publish: %v", err)
	}
}

func TestPublishProjectNotFound(t *testing.T) {
	p, _ := newTestPublisher(t, &fakeRunner{}, http.StatusOK)
	if _, err := p.Publish(context.Background(), "NoSuchApp"); err == nil {
		t.Fatal("expected error for missing project dir")
	}
}

func TestPublishGitFailureCarriesCommand(t *testing.T) {
	wrapped := &CommandError{Args: []string{"git", "add", "."}, Output: "fatal: pathspec", Err: errors.New("exit status 128")}
	runner := &fakeRunner{fails: map[string]error{"git add .": wrapped}}
	p, root := newTestPublisher(t, runner, http.StatusOK)
	if err := os.MkdirAll(filepath.Join(root, "MyApp", ".git"), 0755); err != nil {
		t.Fatal(err)
	}

	_, err := p.Publish(context.Background(), "MyApp")
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("expected CommandError, got %v", err)
	}
	if strings.Join(cmdErr.Args, " ") != "git add ." {
		t.Errorf("wrong failing command: %v", cmdErr.Args)
	}
}

func TestProjects(t *testing.T) {
	p, root := newTestPublisher(t, &fakeRunner{}, http.StatusOK)
	for _, name := range []string{"beta", "alpha"} {
		if err := os.MkdirAll(filepath.Join(root, name), 0755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(root, "stray.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	names, err := p.Projects()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "alpha" || names[1] != "beta" {
		t.Errorf("unexpected project list %v", names)
	}
}
