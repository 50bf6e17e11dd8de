// Package ghapi is a thin transport over the gh CLI. It issues one REST or
// GraphQL operation per call and decodes the JSON response. It carries no
// business logic, retries or batching; writes may be paced by a RateLimiter.
package ghapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
)

// TokenSource supplies a GitHub token for each gh invocation.
type TokenSource interface {
	Token() (string, error)
}

// CommandRunner builds the command for one gh invocation.
type CommandRunner func(ctx context.Context, name string, args ...string) *exec.Cmd

// Client runs gh api operations.
type Client struct {
	ghPath    string
	tokens    TokenSource
	cmdRunner CommandRunner
	tempDir   string
	limiter   *RateLimiter
}

// Option configures a Client.
type Option func(*Client)

// WithTokenSource exports the source's token as GH_TOKEN to every gh call.
// Without it gh falls back to its own stored credentials.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

// WithCommandRunner overrides how gh commands are built (useful for testing).
func WithCommandRunner(runner CommandRunner) Option {
	return func(c *Client) {
		c.cmdRunner = runner
	}
}

// WithGHPath sets the gh executable to run.
func WithGHPath(path string) Option {
	return func(c *Client) {
		c.ghPath = path
	}
}

// WithTempDir sets where request payload files are written.
func WithTempDir(dir string) Option {
	return func(c *Client) {
		c.tempDir = dir
	}
}

// WithRateLimiter paces writes: REST calls other than GET and GraphQL
// mutations.
func WithRateLimiter(rl *RateLimiter) Option {
	return func(c *Client) {
		c.limiter = rl
	}
}

// New creates a Client.
func New(opts ...Option) *Client {
	c := &Client{
		ghPath: "gh",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// REST performs one REST call, e.g. REST(ctx, "POST", "repos/o/r/labels", body, &out).
// body and out may be nil.
func (c *Client) REST(ctx context.Context, method, path string, body, out interface{}) error {
	op := method + " " + path
	args := []string{"api", path, "--method", method}

	if !strings.EqualFold(method, "GET") {
		if err := c.limiter.Wait(ctx, writeKey); err != nil {
			return &TransportError{Op: op, Err: err}
		}
	}

	res, err := c.run(ctx, op, args, body)
	if err != nil {
		return err
	}

	if res.err != nil {
		return classifyREST(ctx, op, res)
	}

	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(res.stdout)) == 0 {
		return &SchemaError{Op: op, Detail: "empty response body"}
	}
	if err := json.Unmarshal(res.stdout, out); err != nil {
		return &SchemaError{Op: op, Detail: err.Error()}
	}
	return nil
}

// graphQLEnvelope is the top-level GraphQL response.
type graphQLEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// GraphQL performs one GraphQL query or mutation and decodes the "data"
// payload into out.
func (c *Client) GraphQL(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	op := "graphql " + OperationName(query)
	if variables == nil {
		variables = map[string]interface{}{}
	}
	payload := map[string]interface{}{
		"query":     query,
		"variables": variables,
	}

	if isMutation(query) {
		if err := c.limiter.Wait(ctx, writeKey); err != nil {
			return &TransportError{Op: op, Err: err}
		}
	}

	res, err := c.run(ctx, op, []string{"api", "graphql"}, payload)
	if err != nil {
		return err
	}

	if ctx.Err() != nil {
		return &TransportError{Op: op, Stderr: res.stderr, Err: ctx.Err()}
	}

	var env graphQLEnvelope
	if decodeErr := json.Unmarshal(res.stdout, &env); decodeErr != nil {
		if res.err != nil {
			return &TransportError{Op: op, Stderr: res.stderr, Err: res.err}
		}
		return &SchemaError{Op: op, Detail: decodeErr.Error()}
	}

	if len(env.Errors) > 0 {
		for _, e := range env.Errors {
			if e.Type == "NOT_FOUND" {
				return &NotFoundError{Op: op, Message: e.Message}
			}
		}
		return &TransportError{Op: op, Stderr: res.stderr, Err: errors.New(joinGraphQLErrors(env.Errors))}
	}

	if res.err != nil {
		return &TransportError{Op: op, Stderr: res.stderr, Err: res.err}
	}

	if len(env.Data) == 0 || string(env.Data) == "null" {
		return &SchemaError{Op: op, Detail: "response has no data"}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &SchemaError{Op: op, Detail: err.Error()}
	}
	return nil
}

// writeKey is the limiter bucket shared by every write.
const writeKey = "write"

func isMutation(query string) bool {
	return strings.HasPrefix(strings.TrimSpace(query), "mutation")
}

// CurrentRepo returns the owner/name of the repository gh resolves from the
// working directory.
func (c *Client) CurrentRepo(ctx context.Context) (string, error) {
	const op = "repo view"

	res, err := c.run(ctx, op, []string{"repo", "view", "--json", "nameWithOwner"}, nil)
	if err != nil {
		return "", err
	}
	if res.err != nil {
		return "", &TransportError{Op: op, Stderr: res.stderr, Err: res.err}
	}

	var repo struct {
		NameWithOwner string `json:"nameWithOwner"`
	}
	if err := json.Unmarshal(res.stdout, &repo); err != nil {
		return "", &SchemaError{Op: op, Detail: err.Error()}
	}
	if repo.NameWithOwner == "" {
		return "", &SchemaError{Op: op, Detail: "missing nameWithOwner"}
	}
	return repo.NameWithOwner, nil
}

// result captures one gh invocation. err is the process error, if any.
type result struct {
	stdout []byte
	stderr string
	err    error
}

// run executes gh with args. A non-nil payload is written to a temporary
// file passed via --input. The returned error is only set when the command
// could not be prepared; process failures are reported in result.err.
func (c *Client) run(ctx context.Context, op string, args []string, payload interface{}) (*result, error) {
	if payload != nil {
		inputPath, cleanup, err := c.writePayload(payload)
		if err != nil {
			return nil, &TransportError{Op: op, Err: err}
		}
		defer cleanup()
		args = append(args, "--input", inputPath)
	}

	env, err := c.environ()
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	cmd := c.execCommand(ctx, c.ghPath, args...)
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	return &result{stdout: stdout.Bytes(), stderr: stderr.String(), err: runErr}, nil
}

func (c *Client) writePayload(payload interface{}) (string, func(), error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode request: %w", err)
	}

	f, err := os.CreateTemp(c.tempDir, "odin-gh-*.json")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create request file: %w", err)
	}
	cleanup := func() { _ = os.Remove(f.Name()) }

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, fmt.Errorf("failed to write request file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to close request file: %w", err)
	}
	return f.Name(), cleanup, nil
}

func (c *Client) execCommand(ctx context.Context, name string, args ...string) *exec.Cmd {
	if c.cmdRunner != nil {
		return c.cmdRunner(ctx, name, args...)
	}
	return exec.CommandContext(ctx, name, args...)
}

// environ returns the process environment with GH_TOKEN set when a token
// source is configured.
func (c *Client) environ() ([]string, error) {
	env := append(os.Environ(), "GH_PROMPT_DISABLED=1")
	if c.tokens == nil {
		return env, nil
	}

	token, err := c.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to obtain GitHub token: %w", err)
	}

	filtered := make([]string, 0, len(env)+1)
	for _, kv := range env {
		if strings.HasPrefix(kv, "GH_TOKEN=") || strings.HasPrefix(kv, "GITHUB_TOKEN=") {
			continue
		}
		filtered = append(filtered, kv)
	}
	return append(filtered, "GH_TOKEN="+token), nil
}

var httpStatusPattern = regexp.MustCompile(`\(HTTP (\d{3})\)`)

// classifyREST maps a failed REST call onto the error taxonomy. gh prints the
// response body on stdout and "gh: <message> (HTTP <code>)" on stderr.
func classifyREST(ctx context.Context, op string, res *result) error {
	if ctx.Err() != nil {
		return &TransportError{Op: op, Stderr: res.stderr, Err: ctx.Err()}
	}

	status := ""
	if m := httpStatusPattern.FindStringSubmatch(res.stderr); m != nil {
		status = m[1]
	}

	var body restError
	if err := json.Unmarshal(res.stdout, &body); err == nil {
		if status == "" {
			status = body.Status
		}
		switch {
		case status == "404":
			return &NotFoundError{Op: op, Message: body.Message}
		case status == "422" && body.hasCode("already_exists"):
			return &ConflictError{Op: op, Message: body.Message}
		}
	} else if status == "404" {
		return &NotFoundError{Op: op, Message: strings.TrimSpace(res.stderr)}
	}

	return &TransportError{Op: op, Stderr: res.stderr, Err: res.err}
}

var operationNamePattern = regexp.MustCompile(`^\s*(?:query|mutation)\s+([A-Za-z_][A-Za-z0-9_]*)`)

// OperationName returns the name of a named GraphQL operation, or
// "anonymous".
func OperationName(query string) string {
	if m := operationNamePattern.FindStringSubmatch(query); m != nil {
		return m[1]
	}
	return "anonymous"
}
