package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andywolf/odin/internal/cli/wizard"
	"github.com/andywolf/odin/internal/config"
	"github.com/andywolf/odin/internal/ghapi"
	"github.com/andywolf/odin/internal/logging"
	"github.com/andywolf/odin/internal/provision"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
)

// githubAPI is what commands need from the transport.
type githubAPI interface {
	provision.API
	CurrentRepo(ctx context.Context) (string, error)
}

// env carries a command's collaborators so tests can replace them.
type env struct {
	out    io.Writer
	errOut io.Writer

	newAPI      func(cfg *config.Config, tokens ghapi.TokenSource) githubAPI
	tokens      func(ctx context.Context, cfg *config.Config) (ghapi.TokenSource, string, error)
	interactive func() bool
	confirm     func(wizard.Summary) (bool, error)
	runID       func() string
}

func defaultEnv(out, errOut io.Writer) env {
	return env{
		out:    out,
		errOut: errOut,
		newAPI: func(cfg *config.Config, tokens ghapi.TokenSource) githubAPI {
			opts := []ghapi.Option{
				ghapi.WithRateLimiter(ghapi.NewRateLimiter(cfg.GitHub.WritesPerMinute, time.Minute)),
			}
			if tokens != nil {
				opts = append(opts, ghapi.WithTokenSource(tokens))
			}
			return ghapi.New(opts...)
		},
		tokens: buildTokenSource,
		interactive: func() bool {
			fd := os.Stdin.Fd()
			return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
		},
		confirm: wizard.ConfirmProvision,
		runID:   uuid.NewString,
	}
}

// newRunLogger writes human-readable lines to w, or JSON entries when the
// configured format is json.
func newRunLogger(cfg *config.Config, w io.Writer, runID string) *logging.Logger {
	opts := []logging.Option{logging.WithVerbose(cfg.Logging.Verbose)}
	if cfg.Logging.Format == config.LogFormatJSON {
		opts = append(opts, logging.WithLocalWriter(io.Discard), logging.WithStructuredWriter(w))
	} else {
		opts = append(opts, logging.WithLocalWriter(w))
	}
	return logging.New(runID, opts...)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(errOut io.Writer) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(errOut, "\nReceived interrupt signal, stopping after the current request...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// resolveRepo returns configured, or the repository of the current
// directory as reported by gh.
func resolveRepo(ctx context.Context, configured string, api githubAPI) (string, error) {
	if configured != "" {
		return configured, nil
	}
	repo, err := api.CurrentRepo(ctx)
	if err != nil {
		return "", fmt.Errorf("no --repo given and the current directory is not a GitHub repository: %w", err)
	}
	if err := config.ValidateRepository(repo); err != nil {
		return "", err
	}
	return repo, nil
}
