// Package snack talks to the Expo Snack API: creating sandboxes from a
// GitHub repository and polling them for deployment errors.
package snack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/go-github/v56/github"
	"golang.org/x/oauth2"
)

const (
	defaultBaseURL  = "https://snack.expo.dev/api/v2"
	snackViewerBase = "https://snack.expo.dev"
	userAgent       = "snackforge/1.0"
	sdkVersion      = "49.0.0"
)

// snackDependencies pins the sandbox dependency set every deployment uses.
var snackDependencies = map[string]string{
	"expo":                     "~49.0.0",
	"react":                    "18.2.0",
	"react-native":             "0.72.6",
	"@react-navigation/native": "^6.0.0",
	"@react-navigation/stack":  "^6.0.0",
}

var githubRepoPattern = regexp.MustCompile(`github\.com/([^/]+)/([^/]+)`)
var unresolvedModulePattern = regexp.MustCompile(`Unable to resolve module '([^']+)'`)

// SandboxError is one problem reported by (or about) a sandbox.
type SandboxError struct {
	Type          string `json:"type"`
	Message       string `json:"message"`
	File          string `json:"file,omitempty"`
	Line          int    `json:"line,omitempty"`
	MissingModule string `json:"missing_module,omitempty"`
}

// Transient reports whether the error is a transport problem rather
// than a problem with the deployed code.
func (e SandboxError) Transient() bool { return e.Type == "api_error" }

// Snack identifies a created sandbox.
type Snack struct {
	ID  string `json:"snack_id"`
	URL string `json:"url"`
}

// Clock abstracts time for the poller so tests can run without waiting.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// Client is an Expo Snack API client.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	gh           *github.Client
	clock        Clock
	pollInterval time.Duration
	out          io.Writer
}

// NewClient returns a Snack client. githubToken may be empty for public
// repositories.
func NewClient(githubToken string) *Client {
	var gh *github.Client
	if githubToken != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: githubToken})
		gh = github.NewClient(oauth2.NewClient(context.Background(), ts))
	} else {
		gh = github.NewClient(nil)
	}

	return &Client{
		baseURL:      defaultBaseURL,
		httpClient:   &http.Client{},
		gh:           gh,
		clock:        realClock{},
		pollInterval: 5 * time.Second,
		out:          io.Discard,
	}
}

// SetBaseURL overrides the Snack API endpoint.
func (c *Client) SetBaseURL(u string) { c.baseURL = strings.TrimRight(u, "/") }

// SetGitHubClient swaps the GitHub client used for file fetches.
func (c *Client) SetGitHubClient(gh *github.Client) { c.gh = gh }

// SetClock overrides the poller's time source.
func (c *Client) SetClock(clock Clock) { c.clock = clock }

// SetOutput directs progress lines to w.
func (c *Client) SetOutput(w io.Writer) { c.out = w }

type createPayload struct {
	Name         string               `json:"name"`
	Description  string               `json:"description"`
	Files        map[string]snackFile `json:"files"`
	Dependencies map[string]string    `json:"dependencies"`
	SDKVersion   string               `json:"sdkVersion"`
}

type snackFile struct {
	Type     string `json:"type"`
	Contents string `json:"contents"`
}

type createResponse struct {
	ID string `json:"id"`
}

type statusResponse struct {
	Errors []struct {
		Message string `json:"message"`
		Loc     struct {
			Filename string `json:"filename"`
			Line     int    `json:"line"`
		} `json:"loc"`
	} `json:"errors"`
	Logs []struct {
		Message  string `json:"message"`
		Filename string `json:"filename"`
	} `json:"logs"`
}

// CreateFromGitHub builds a new sandbox from the .js files of a GitHub
// repository.
func (c *Client) CreateFromGitHub(ctx context.Context, repoURL, appName string) (Snack, error) {
	m := githubRepoPattern.FindStringSubmatch(repoURL)
	if m == nil {
		return Snack{}, fmt.Errorf("invalid GitHub URL format: %s", repoURL)
	}
	owner := m[1]
	repo := strings.TrimSuffix(m[2], ".git")

	files, err := c.fetchRepoFiles(ctx, owner, repo)
	if err != nil {
		// A sandbox with no files still deploys; the poller will surface
		// the real problem.
		fmt.Fprintf(c.out, "[snack] error fetching GitHub files: %v\n", err)
		files = map[string]snackFile{}
	}

	payload := createPayload{
		Name:         appName,
		Description:  fmt.Sprintf("React Native app: %s", appName),
		Files:        files,
		Dependencies: snackDependencies,
		SDKVersion:   sdkVersion,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Snack{}, fmt.Errorf("marshal snack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/snacks", bytes.NewReader(body))
	if err != nil {
		return Snack{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Snack{}, fmt.Errorf("create snack: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Snack{}, fmt.Errorf("read snack response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Snack{}, fmt.Errorf("failed to create snack: status %d: %s", resp.StatusCode, string(respBody))
	}

	var created createResponse
	if err := json.Unmarshal(respBody, &created); err != nil {
		return Snack{}, fmt.Errorf("unmarshal snack response: %w", err)
	}
	if created.ID == "" {
		return Snack{}, fmt.Errorf("snack response carried no id")
	}

	return Snack{ID: created.ID, URL: snackViewerBase + "/" + created.ID}, nil
}

// CheckErrors fetches the current error state of a sandbox. Transport
// problems are reported in-band as a single api_error record so the
// poller can treat them as transient.
func (c *Client) CheckErrors(ctx context.Context, snackID string) []SandboxError {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/snacks/"+snackID, nil)
	if err != nil {
		return []SandboxError{{Type: "api_error", Message: err.Error()}}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return []SandboxError{{Type: "api_error", Message: fmt.Sprintf("failed to fetch Snack: %v", err)}}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return []SandboxError{{Type: "api_error", Message: fmt.Sprintf("failed to fetch Snack: %d", resp.StatusCode)}}
	}

	var status statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return []SandboxError{{Type: "api_error", Message: fmt.Sprintf("failed to decode Snack response: %v", err)}}
	}

	var errs []SandboxError
	for _, e := range status.Errors {
		errs = append(errs, SandboxError{
			Type:    "compilation_error",
			Message: e.Message,
			File:    e.Loc.Filename,
			Line:    e.Loc.Line,
		})
	}
	for _, log := range status.Logs {
		if m := unresolvedModulePattern.FindStringSubmatch(log.Message); m != nil {
			errs = append(errs, SandboxError{
				Type:          "missing_module",
				Message:       log.Message,
				MissingModule: m[1],
				File:          log.Filename,
			})
		}
	}
	return errs
}

// WaitForDeployment polls the sandbox until it is clean, reports a real
// error, or the timeout expires. Transient api_error records keep the
// loop going.
func (c *Client) WaitForDeployment(ctx context.Context, snackID string, timeout time.Duration) (bool, []SandboxError) {
	fmt.Fprintf(c.out, "[snack] waiting for deployment of %s\n", snackID)

	deadline := c.clock.Now().Add(timeout)
	for c.clock.Now().Before(deadline) {
		if ctx.Err() != nil {
			return false, []SandboxError{{Type: "timeout", Message: ctx.Err().Error()}}
		}

		errs := c.CheckErrors(ctx, snackID)
		if len(errs) == 0 {
			fmt.Fprintf(c.out, "[snack] deployment successful\n")
			return true, nil
		}

		var actual []SandboxError
		for _, e := range errs {
			if !e.Transient() {
				actual = append(actual, e)
			}
		}
		if len(actual) > 0 {
			fmt.Fprintf(c.out, "[snack] found %d errors in deployment\n", len(actual))
			return false, actual
		}

		c.clock.Sleep(c.pollInterval)
	}

	fmt.Fprintf(c.out, "[snack] timeout waiting for deployment\n")
	return false, []SandboxError{{Type: "timeout", Message: "Deployment timeout"}}
}

// fetchRepoFiles collects the .js files a sandbox needs: repository
// root non-recursively, then src/ recursively.
func (c *Client) fetchRepoFiles(ctx context.Context, owner, repo string) (map[string]snackFile, error) {
	files := make(map[string]snackFile)

	_, rootContents, _, err := c.gh.Repositories.GetContents(ctx, owner, repo, "", nil)
	if err != nil {
		return nil, fmt.Errorf("list repository contents: %w", err)
	}
	for _, item := range rootContents {
		if item.GetType() == "file" && strings.HasSuffix(item.GetName(), ".js") {
			contents, err := c.downloadFile(ctx, owner, repo, item.GetPath())
			if err != nil {
				fmt.Fprintf(c.out, "[snack] skipping %s: %v\n", item.GetPath(), err)
				continue
			}
			files[item.GetName()] = snackFile{Type: "CODE", Contents: contents}
		}
	}

	// src/ may legitimately be absent for single-file apps.
	if err := c.fetchDirectory(ctx, owner, repo, "src", files); err != nil {
		fmt.Fprintf(c.out, "[snack] skipping src/: %v\n", err)
	}

	return files, nil
}

func (c *Client) fetchDirectory(ctx context.Context, owner, repo, path string, files map[string]snackFile) error {
	_, contents, _, err := c.gh.Repositories.GetContents(ctx, owner, repo, path, nil)
	if err != nil {
		return err
	}
	for _, item := range contents {
		switch {
		case item.GetType() == "file" && strings.HasSuffix(item.GetName(), ".js"):
			body, err := c.downloadFile(ctx, owner, repo, item.GetPath())
			if err != nil {
				fmt.Fprintf(c.out, "[snack] skipping %s: %v\n", item.GetPath(), err)
				continue
			}
			files[item.GetPath()] = snackFile{Type: "CODE", Contents: body}
		case item.GetType() == "dir":
			if err := c.fetchDirectory(ctx, owner, repo, item.GetPath(), files); err != nil {
				fmt.Fprintf(c.out, "[snack] skipping %s: %v\n", item.GetPath(), err)
			}
		}
	}
	return nil
}

func (c *Client) downloadFile(ctx context.Context, owner, repo, path string) (string, error) {
	rc, _, err := c.gh.Repositories.DownloadContents(ctx, owner, repo, path, nil)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
