package gcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/option"
)

// fetchTimeout bounds one secret access.
const fetchTimeout = 10 * time.Second

// SecretFetcher reads secret payloads.
type SecretFetcher interface {
	FetchSecret(ctx context.Context, ref string) ([]byte, error)
	Close() error
}

// versionAccessor is the part of the Secret Manager API the client uses.
type versionAccessor interface {
	access(ctx context.Context, name string) ([]byte, error)
	Close() error
}

type managerAccessor struct {
	client *secretmanager.Client
}

func (a managerAccessor) access(ctx context.Context, name string) ([]byte, error) {
	resp, err := a.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return nil, err
	}
	if resp.GetPayload() == nil {
		return nil, fmt.Errorf("secret %s has no payload", name)
	}
	return resp.GetPayload().GetData(), nil
}

func (a managerAccessor) Close() error {
	return a.client.Close()
}

// SecretClient reads secrets from Secret Manager. Bare secret names are
// resolved in its project.
type SecretClient struct {
	accessor  versionAccessor
	projectID string
}

// NewSecretClient connects to Secret Manager. projectID may be empty when
// every reference passed to FetchSecret is a full resource name.
func NewSecretClient(ctx context.Context, projectID string, opts ...option.ClientOption) (*SecretClient, error) {
	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create secret manager client: %w", err)
	}
	return &SecretClient{accessor: managerAccessor{client: client}, projectID: projectID}, nil
}

// FetchSecret returns the payload of ref, which may be
// projects/P/secrets/S/versions/V, projects/P/secrets/S (latest) or a bare
// secret name S (latest, in the client's project).
func (c *SecretClient) FetchSecret(ctx context.Context, ref string) ([]byte, error) {
	name, err := c.resourceName(ref)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	data, err := c.accessor.access(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to access secret %s: %w", name, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("secret %s is empty", name)
	}
	return data, nil
}

func (c *SecretClient) resourceName(ref string) (string, error) {
	ref = strings.Trim(strings.TrimSpace(ref), "/")
	if ref == "" {
		return "", fmt.Errorf("secret reference is empty")
	}

	if strings.HasPrefix(ref, "projects/") {
		parts := strings.Split(ref, "/")
		switch {
		case len(parts) == 6 && parts[2] == "secrets" && parts[4] == "versions":
			return ref, nil
		case len(parts) == 4 && parts[2] == "secrets":
			return ref + "/versions/latest", nil
		default:
			return "", fmt.Errorf("malformed secret reference %q", ref)
		}
	}

	if strings.Contains(ref, "/") {
		return "", fmt.Errorf("malformed secret reference %q", ref)
	}
	if c.projectID == "" {
		return "", fmt.Errorf("secret %q needs a GCP project", ref)
	}
	return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", c.projectID, ref), nil
}

// Close releases the underlying connection.
func (c *SecretClient) Close() error {
	if c.accessor == nil {
		return nil
	}
	return c.accessor.Close()
}
