package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andywolf/odin/internal/version"
)

// DefaultAPIURL is the REST endpoint used for token exchange.
const DefaultAPIURL = "https://api.github.com"

// InstallationToken is an installation access token and its expiry.
type InstallationToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ExchangeError is a non-201 response from the access token endpoint.
type ExchangeError struct {
	Status  int
	Message string
}

func (e *ExchangeError) Error() string {
	hint := ""
	switch e.Status {
	case http.StatusUnauthorized:
		hint = " (check the app ID and private key)"
	case http.StatusForbidden:
		hint = " (check the app's repository permissions)"
	case http.StatusNotFound:
		hint = " (check the installation ID)"
	}
	return fmt.Sprintf("token exchange failed with status %d: %s%s", e.Status, e.Message, hint)
}

// InstallationClient exchanges App JWTs for installation tokens.
type InstallationClient struct {
	httpClient *http.Client
	apiURL     string
}

// InstallationOption configures an InstallationClient.
type InstallationOption func(*InstallationClient)

// WithHTTPClient sets the HTTP client used for the exchange.
func WithHTTPClient(client *http.Client) InstallationOption {
	return func(c *InstallationClient) {
		c.httpClient = client
	}
}

// WithAPIURL points the client at another API root, such as a GitHub
// Enterprise Server or a test server.
func WithAPIURL(apiURL string) InstallationOption {
	return func(c *InstallationClient) {
		c.apiURL = strings.TrimRight(apiURL, "/")
	}
}

// NewInstallationClient creates an InstallationClient.
func NewInstallationClient(opts ...InstallationOption) *InstallationClient {
	c := &InstallationClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiURL:     DefaultAPIURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Exchange trades appJWT for a token scoped to installationID.
func (c *InstallationClient) Exchange(ctx context.Context, appJWT string, installationID int64) (*InstallationToken, error) {
	if appJWT == "" {
		return nil, fmt.Errorf("app JWT cannot be empty")
	}
	if installationID <= 0 {
		return nil, fmt.Errorf("installation ID must be positive")
	}

	endpoint := fmt.Sprintf("%s/app/installations/%d/access_tokens", c.apiURL, installationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+appJWT)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusCreated {
		var apiErr struct {
			Message string `json:"message"`
		}
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			msg = apiErr.Message
		}
		return nil, &ExchangeError{Status: resp.StatusCode, Message: msg}
	}

	var token InstallationToken
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if token.Token == "" {
		return nil, fmt.Errorf("token response has no token")
	}
	return &token, nil
}
