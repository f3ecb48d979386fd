// Package deploylog records deployment pipeline activity: a general
// log, an error log, a pipe-delimited metrics log, and a JSON session
// report, all keyed by a per-run session id.
package deploylog

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Metrics tracks one project's run through the pipeline.
type Metrics struct {
	ProjectName        string    `json:"project_name"`
	StartTime          time.Time `json:"start_time"`
	EndTime            time.Time `json:"end_time,omitempty"`
	TotalDuration      float64   `json:"total_duration"`
	GitHubDeployTime   float64   `json:"github_deploy_time"`
	SnackDeployTime    float64   `json:"snack_deploy_time"`
	ErrorAnalysisTime  float64   `json:"error_analysis_time"`
	FixApplicationTime float64   `json:"fix_application_time"`
	Attempts           int       `json:"attempts"`
	ErrorsFound        int       `json:"errors_found"`
	FixesApplied       int       `json:"fixes_applied"`
	Success            bool      `json:"success"`
}

// SessionReport summarizes a whole pipeline run.
type SessionReport struct {
	SessionID          string              `json:"session_id"`
	SessionStart       time.Time           `json:"session_start"`
	SessionEnd         time.Time           `json:"session_end"`
	SessionDuration    float64             `json:"session_duration"`
	TotalProjects      int                 `json:"total_projects"`
	SuccessfulProjects int                 `json:"successful_projects"`
	SuccessRate        float64             `json:"success_rate"`
	Projects           map[string]*Metrics `json:"projects"`
}

// Logger writes deployment activity for one session. Safe for
// concurrent use.
type Logger struct {
	dir       string
	sessionID string

	main    *slog.Logger
	errors  *slog.Logger
	metrics *os.File
	files   []*os.File

	mu           sync.Mutex
	perProject   map[string]*Metrics
	sessionStart time.Time
	now          func() time.Time
}

// New opens a session logger under dir, creating it if needed. The
// session id is derived from the wall clock so log files from separate
// runs never collide. The main log mirrors to stderr.
func New(dir string) (*Logger, error) {
	return newWithClock(dir, os.Stderr, time.Now)
}

func newWithClock(dir string, console io.Writer, now func() time.Time) (*Logger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	sessionID := now().Format("20060102_150405")

	l := &Logger{
		dir:          dir,
		sessionID:    sessionID,
		perProject:   make(map[string]*Metrics),
		sessionStart: now(),
		now:          now,
	}

	mainFile, err := os.Create(filepath.Join(dir, "deployment_"+sessionID+".log"))
	if err != nil {
		return nil, err
	}
	errFile, err := os.Create(filepath.Join(dir, "errors_"+sessionID+".log"))
	if err != nil {
		mainFile.Close()
		return nil, err
	}
	metricsFile, err := os.Create(filepath.Join(dir, "metrics_"+sessionID+".log"))
	if err != nil {
		mainFile.Close()
		errFile.Close()
		return nil, err
	}

	l.main = slog.New(slog.NewTextHandler(io.MultiWriter(mainFile, console), nil))
	l.errors = slog.New(slog.NewTextHandler(errFile, &slog.HandlerOptions{Level: slog.LevelError}))
	l.metrics = metricsFile
	l.files = []*os.File{mainFile, errFile, metricsFile}

	return l, nil
}

// SessionID returns the id shared by this session's files.
func (l *Logger) SessionID() string { return l.sessionID }

// Dir returns the directory the session writes to.
func (l *Logger) Dir() string { return l.dir }

// Close flushes and closes the session's log files.
func (l *Logger) Close() error {
	var firstErr error
	for _, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (l *Logger) metric(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.metrics, "%s | %s\n", l.now().Format("2006-01-02 15:04:05"), fmt.Sprintf(format, args...))
}

// StartProject begins tracking a project deployment.
func (l *Logger) StartProject(name string) {
	l.mu.Lock()
	l.perProject[name] = &Metrics{ProjectName: name, StartTime: l.now()}
	l.mu.Unlock()

	l.main.Info("started deployment", "project", name)
	l.metric("PROJECT_START | %s", name)
}

// FinishProject ends tracking and records the outcome.
func (l *Logger) FinishProject(name string, success bool) {
	l.mu.Lock()
	m, ok := l.perProject[name]
	if ok {
		m.EndTime = l.now()
		m.TotalDuration = m.EndTime.Sub(m.StartTime).Seconds()
		m.Success = success
	}
	l.mu.Unlock()
	if !ok {
		return
	}

	l.main.Info("finished deployment", "project", name, "success", success, "duration_s", m.TotalDuration)
	l.metric("PROJECT_END | %s | %s | %.2fs", name, statusWord(success), m.TotalDuration)
}

// LogGitHubDeployment records a publish stage result.
func (l *Logger) LogGitHubDeployment(name string, success bool, duration time.Duration, details string) {
	l.mu.Lock()
	if m, ok := l.perProject[name]; ok {
		m.GitHubDeployTime = duration.Seconds()
	}
	l.mu.Unlock()

	l.main.Info("github deployment", "project", name, "status", statusWord(success), "duration_s", duration.Seconds())
	if !success && details != "" {
		l.errors.Error("github deployment failed", "project", name, "details", details)
	}
	l.metric("GITHUB_DEPLOY | %s | %s | %.2fs", name, statusWord(success), duration.Seconds())
}

// LogSnackDeployment records a sandbox stage result.
func (l *Logger) LogSnackDeployment(name string, success bool, duration time.Duration, snackURL, details string) {
	l.mu.Lock()
	if m, ok := l.perProject[name]; ok {
		m.SnackDeployTime = duration.Seconds()
	}
	l.mu.Unlock()

	l.main.Info("snack deployment", "project", name, "status", statusWord(success), "duration_s", duration.Seconds(), "url", snackURL)
	if !success && details != "" {
		l.errors.Error("snack deployment failed", "project", name, "details", details)
	}
	l.metric("SNACK_DEPLOY | %s | %s | %.2fs", name, statusWord(success), duration.Seconds())
}

// LogErrorAnalysis records a classifier pass.
func (l *Logger) LogErrorAnalysis(name string, errorsFound, autoFixable int, duration time.Duration) {
	l.mu.Lock()
	if m, ok := l.perProject[name]; ok {
		m.ErrorAnalysisTime = duration.Seconds()
		m.ErrorsFound = errorsFound
	}
	l.mu.Unlock()

	l.main.Info("error analysis", "project", name, "errors", errorsFound, "auto_fixable", autoFixable, "duration_s", duration.Seconds())
	l.metric("ERROR_ANALYSIS | %s | %d | %d | %.2fs", name, errorsFound, autoFixable, duration.Seconds())
}

// LogFixApplication records a patcher pass.
func (l *Logger) LogFixApplication(name string, attempted, successful int, duration time.Duration) {
	l.mu.Lock()
	if m, ok := l.perProject[name]; ok {
		m.FixApplicationTime = duration.Seconds()
		m.FixesApplied = successful
	}
	l.mu.Unlock()

	l.main.Info("fix application", "project", name, "successful", successful, "attempted", attempted, "duration_s", duration.Seconds())
	l.metric("FIX_APPLICATION | %s | %d/%d | %.2fs", name, successful, attempted, duration.Seconds())
}

// LogAttempt records the start of a retry iteration.
func (l *Logger) LogAttempt(name string, attempt, maxAttempts int) {
	l.mu.Lock()
	if m, ok := l.perProject[name]; ok {
		m.Attempts = attempt
	}
	l.mu.Unlock()

	l.main.Info("deployment attempt", "project", name, "attempt", attempt, "max", maxAttempts)
	l.metric("ATTEMPT | %s | %d/%d", name, attempt, maxAttempts)
}

// LogErrorDetails writes individual error lines to the error log.
func (l *Logger) LogErrorDetails(name string, details []string) {
	l.errors.Error("detailed errors", "project", name, "count", len(details))
	for i, d := range details {
		l.errors.Error("error detail", "project", name, "index", i+1, "detail", d)
	}
}

// GenerateReport builds the session report and persists it as
// session_report_<id>.json in the log directory.
func (l *Logger) GenerateReport() (SessionReport, error) {
	l.mu.Lock()
	end := l.now()
	report := SessionReport{
		SessionID:       l.sessionID,
		SessionStart:    l.sessionStart,
		SessionEnd:      end,
		SessionDuration: end.Sub(l.sessionStart).Seconds(),
		TotalProjects:   len(l.perProject),
		Projects:        make(map[string]*Metrics, len(l.perProject)),
	}
	for name, m := range l.perProject {
		copied := *m
		report.Projects[name] = &copied
		if m.Success {
			report.SuccessfulProjects++
		}
	}
	l.mu.Unlock()

	if report.TotalProjects > 0 {
		report.SuccessRate = float64(report.SuccessfulProjects) / float64(report.TotalProjects)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return SessionReport{}, err
	}

	// Write through a temp file so a crash never leaves a torn report.
	target := filepath.Join(l.dir, "session_report_"+l.sessionID+".json")
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return SessionReport{}, err
	}
	if err := os.Rename(tmp, target); err != nil {
		return SessionReport{}, err
	}

	l.main.Info("session report saved", "path", target)
	return report, nil
}

func statusWord(success bool) string {
	if success {
		return "SUCCESS"
	}
	return "FAILED"
}
