package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/andywolf/odin/internal/cloud/gcp"
	"github.com/andywolf/odin/internal/config"
	"github.com/andywolf/odin/internal/ghapi"
	"github.com/andywolf/odin/internal/github"
)

// fetchSecret reads a Secret Manager payload; replaced in tests.
var fetchSecret = func(ctx context.Context, project, ref string) ([]byte, error) {
	client, err := gcp.NewSecretClient(ctx, project)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Close() }()
	return client.FetchSecret(ctx, ref)
}

// resolveProject finds the GCP project for bare secret names; replaced in tests.
var resolveProject = func(ctx context.Context, configured string) (string, error) {
	return gcp.NewProjectResolver().Resolve(ctx, configured)
}

// buildTokenSource returns the token source for gh calls and a short
// description of the method. A nil source means gh's own login is used.
func buildTokenSource(ctx context.Context, cfg *config.Config) (ghapi.TokenSource, string, error) {
	gh := cfg.GitHub

	if gh.Token != "" {
		return github.StaticToken(gh.Token), "token from configuration", nil
	}

	if !gh.UsesApp() {
		return nil, "gh CLI login", nil
	}

	key, err := loadPrivateKey(ctx, gh)
	if err != nil {
		return nil, "", err
	}

	var opts []github.AppTokenOption
	if gh.APIURL != "" {
		opts = append(opts, github.WithInstallationClient(github.NewInstallationClient(github.WithAPIURL(gh.APIURL))))
	}

	source, err := github.NewAppTokenSource(strconv.FormatInt(gh.AppID, 10), gh.InstallationID, key, opts...)
	if err != nil {
		return nil, "", err
	}
	return source, fmt.Sprintf("GitHub App %d (installation %d)", gh.AppID, gh.InstallationID), nil
}

func loadPrivateKey(ctx context.Context, gh config.GitHubConfig) ([]byte, error) {
	if gh.PrivateKeyPath != "" {
		key, err := os.ReadFile(gh.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read GitHub App private key: %w", err)
		}
		return key, nil
	}

	project := ""
	if !strings.HasPrefix(gh.PrivateKeySecret, "projects/") {
		var err error
		if project, err = resolveProject(ctx, gh.GCPProject); err != nil {
			return nil, err
		}
	}

	key, err := fetchSecret(ctx, project, gh.PrivateKeySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch GitHub App private key: %w", err)
	}
	return key, nil
}
