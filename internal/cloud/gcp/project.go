// Package gcp reads odin's GitHub App credentials from GCP Secret Manager.
package gcp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const metadataProjectURL = "http://metadata.google.internal/computeMetadata/v1/project/project-id"

// projectEnvVars are checked in order when no project is configured.
var projectEnvVars = []string{"GOOGLE_CLOUD_PROJECT", "GCP_PROJECT", "GCLOUD_PROJECT"}

// ProjectResolver finds the GCP project that owns bare secret names.
type ProjectResolver struct {
	metadataURL string
	httpClient  *http.Client
	getenv      func(string) string
}

// NewProjectResolver creates a resolver that checks the environment and then
// the metadata server.
func NewProjectResolver() *ProjectResolver {
	return &ProjectResolver{
		metadataURL: metadataProjectURL,
		httpClient:  &http.Client{Timeout: 2 * time.Second},
		getenv:      os.Getenv,
	}
}

// Resolve returns configured when it is set, otherwise the first project
// found in the environment or on the metadata server.
func (r *ProjectResolver) Resolve(ctx context.Context, configured string) (string, error) {
	if p := strings.TrimSpace(configured); p != "" {
		return p, nil
	}
	for _, key := range projectEnvVars {
		if p := strings.TrimSpace(r.getenv(key)); p != "" {
			return p, nil
		}
	}

	p, err := r.fromMetadata(ctx)
	if err != nil {
		return "", fmt.Errorf("no GCP project configured and metadata lookup failed: %w", err)
	}
	return p, nil
}

func (r *ProjectResolver) fromMetadata(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.metadataURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Metadata-Flavor", "Google")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("metadata server returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	project := strings.TrimSpace(string(body))
	if project == "" {
		return "", fmt.Errorf("metadata server returned an empty project")
	}
	return project, nil
}
