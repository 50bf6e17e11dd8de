// Package logging provides the leveled run logger used by the CLI and the
// provisioning engine. Every line goes to a human-readable log.Logger; when a
// structured writer is configured, each entry is also emitted as a JSON
// object compatible with Cloud Logging's structured format.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"regexp"
	"sync"
	"time"
)

// Severity levels for structured logs
type Severity string

const (
	SeverityDebug   Severity = "DEBUG"
	SeverityInfo    Severity = "INFO"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

// Entry is one structured log record.
type Entry struct {
	Severity  Severity               `json:"severity"`
	Message   string                 `json:"message"`
	Timestamp time.Time              `json:"timestamp"`
	RunID     string                 `json:"run_id"`
	Labels    map[string]string      `json:"labels,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Logger writes leveled messages for one provisioning run.
type Logger struct {
	mu         sync.Mutex
	local      *log.Logger
	structured io.Writer
	runID      string
	labels     map[string]string
	verbose    bool
	now        func() time.Time
}

// Option configures a Logger.
type Option func(*Logger)

// WithLocalWriter sets where human-readable lines are written.
func WithLocalWriter(w io.Writer) Option {
	return func(l *Logger) {
		l.local = log.New(w, "[odin] ", log.LstdFlags)
	}
}

// WithStructuredWriter enables JSON entries on w.
func WithStructuredWriter(w io.Writer) Option {
	return func(l *Logger) {
		l.structured = w
	}
}

// WithLabels adds labels to every structured entry.
func WithLabels(labels map[string]string) Option {
	return func(l *Logger) {
		for k, v := range labels {
			l.labels[k] = v
		}
	}
}

// WithVerbose enables debug messages.
func WithVerbose(verbose bool) Option {
	return func(l *Logger) {
		l.verbose = verbose
	}
}

// New creates a Logger for the given run.
func New(runID string, opts ...Option) *Logger {
	l := &Logger{
		local: log.New(os.Stderr, "[odin] ", log.LstdFlags),
		runID: runID,
		labels: map[string]string{
			"run_id":    runID,
			"component": "odin-provisioner",
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RunID returns the run identifier attached to every entry.
func (l *Logger) RunID() string {
	return l.runID
}

// Debugf logs at DEBUG level; suppressed unless verbose.
func (l *Logger) Debugf(format string, args ...interface{}) {
	if !l.verbose {
		return
	}
	l.Log(SeverityDebug, fmt.Sprintf(format, args...), nil)
}

// Infof logs at INFO level.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.Log(SeverityInfo, fmt.Sprintf(format, args...), nil)
}

// Warningf logs at WARNING level.
func (l *Logger) Warningf(format string, args ...interface{}) {
	l.Log(SeverityWarning, fmt.Sprintf(format, args...), nil)
}

// Errorf logs at ERROR level.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.Log(SeverityError, fmt.Sprintf(format, args...), nil)
}

// Log writes one entry at the given severity. Secrets are redacted first.
func (l *Logger) Log(severity Severity, message string, fields map[string]interface{}) {
	message = Redact(message)

	l.mu.Lock()
	defer l.mu.Unlock()

	switch severity {
	case SeverityWarning:
		l.local.Printf("Warning: %s", message)
	case SeverityError:
		l.local.Printf("Error: %s", message)
	case SeverityDebug:
		l.local.Printf("Debug: %s", message)
	default:
		l.local.Printf("%s", message)
	}

	if l.structured == nil {
		return
	}

	entry := Entry{
		Severity:  severity,
		Message:   message,
		Timestamp: l.now().UTC(),
		RunID:     l.runID,
		Labels:    l.labels,
		Fields:    fields,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(l.structured, `{"severity":"ERROR","message":"failed to marshal log entry: %v"}`+"\n", err)
		return
	}
	fmt.Fprintf(l.structured, "%s\n", data)
}

var secretPatterns = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{10,}`), "[REDACTED_GITHUB_TOKEN]"},
	{regexp.MustCompile(`github_pat_[A-Za-z0-9_]{20,}`), "[REDACTED_GITHUB_TOKEN]"},
	{regexp.MustCompile(`(?s)-----BEGIN[ A-Z]*PRIVATE KEY-----.*?-----END[ A-Z]*PRIVATE KEY-----`), "[REDACTED_PRIVATE_KEY]"},
	{regexp.MustCompile(`eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*`), "[REDACTED_JWT]"},
	{regexp.MustCompile(`Bearer\s+[A-Za-z0-9._\-]+`), "Bearer [REDACTED]"},
}

// Redact removes GitHub tokens, App JWTs, PEM private keys and bearer
// credentials from s.
func Redact(s string) string {
	for _, p := range secretPatterns {
		s = p.re.ReplaceAllString(s, p.repl)
	}
	return s
}
