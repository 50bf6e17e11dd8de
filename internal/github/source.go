package github

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// RefreshBefore is how long before expiry a cached installation token is
// replaced.
const RefreshBefore = 5 * time.Minute

// StaticToken is a fixed token, such as a personal access token from the
// environment.
type StaticToken string

// Token returns the token, or an error when it is blank.
func (s StaticToken) Token() (string, error) {
	t := strings.TrimSpace(string(s))
	if t == "" {
		return "", fmt.Errorf("token is empty")
	}
	return t, nil
}

// AppTokenSource hands out installation tokens for one App installation,
// exchanging a fresh JWT whenever the cached token is missing or about to
// expire. It is safe for concurrent use.
type AppTokenSource struct {
	mu sync.RWMutex

	signer         *AppSigner
	installationID int64
	client         *InstallationClient
	timeout        time.Duration
	now            func() time.Time

	token     string
	expiresAt time.Time
}

// AppTokenOption configures an AppTokenSource.
type AppTokenOption func(*AppTokenSource)

// WithInstallationClient overrides the client used for the exchange.
func WithInstallationClient(client *InstallationClient) AppTokenOption {
	return func(s *AppTokenSource) {
		s.client = client
	}
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) AppTokenOption {
	return func(s *AppTokenSource) {
		s.now = now
	}
}

// NewAppTokenSource creates a token source for installationID of the App
// identified by appID and privateKeyPEM. The key is parsed immediately.
func NewAppTokenSource(appID string, installationID int64, privateKeyPEM []byte, opts ...AppTokenOption) (*AppTokenSource, error) {
	if installationID <= 0 {
		return nil, fmt.Errorf("installation ID must be positive")
	}
	if len(privateKeyPEM) == 0 {
		return nil, fmt.Errorf("private key cannot be empty")
	}

	signer, err := NewAppSigner(appID, privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("invalid app credentials: %w", err)
	}

	s := &AppTokenSource{
		signer:         signer,
		installationID: installationID,
		client:         NewInstallationClient(),
		timeout:        30 * time.Second,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Token returns the cached installation token, refreshing it first when it
// is missing or expires within RefreshBefore.
func (s *AppTokenSource) Token() (string, error) {
	s.mu.RLock()
	if s.freshLocked() {
		token := s.token
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	// Another caller may have refreshed while we waited for the lock
	if s.freshLocked() {
		return s.token, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.refreshLocked(ctx)
}

// Refresh exchanges a new JWT for a new installation token unconditionally.
func (s *AppTokenSource) Refresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

func (s *AppTokenSource) refreshLocked(ctx context.Context) (string, error) {
	appJWT, err := s.signer.Sign(MaxJWTLifetime)
	if err != nil {
		return "", err
	}

	token, err := s.client.Exchange(ctx, appJWT, s.installationID)
	if err != nil {
		return "", fmt.Errorf("failed to obtain installation token: %w", err)
	}

	s.token = token.Token
	s.expiresAt = token.ExpiresAt
	return s.token, nil
}

// ExpiresAt returns the expiry of the cached token, or the zero time.
func (s *AppTokenSource) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}

func (s *AppTokenSource) freshLocked() bool {
	return s.token != "" && s.expiresAt.After(s.now().Add(RefreshBefore))
}
