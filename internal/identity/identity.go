package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrJWTSecretMissing indicates the service auth secret is not configured,
// so no service keys can be generated.
var ErrJWTSecretMissing = errors.New("service auth JWT secret is not configured")

// DefaultTokenExpiry is the lifetime of a short-lived service JWT.
const DefaultTokenExpiry = 5 * time.Minute

// Service authenticates against the identity service on behalf of a user
// and exchanges that identity for a GitHub OAuth token.
type Service struct {
	jwtSecret  string
	providerID string
	apiKey     string
	apiURL     string
	hostURL    string
	httpClient *http.Client
}

// User identifies a workspace member.
type User struct {
	ID       string
	TenantID string
}

// AuthResult is the outcome of a GitHub token exchange: either a usable
// token or an auth URL the user must visit first.
type AuthResult struct {
	Token   string
	AuthURL string
}

// New creates an identity service client. providerID empty disables token
// exchange; apiKey empty disables user lookup.
func New(jwtSecret, providerID, apiKey, apiURL, hostURL string) *Service {
	return &Service{
		jwtSecret:  jwtSecret,
		providerID: providerID,
		apiKey:     apiKey,
		apiURL:     apiURL,
		hostURL:    hostURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// HasProvider reports whether a GitHub OAuth provider is configured.
func (s *Service) HasProvider() bool {
	return s.providerID != ""
}

// ServiceJWT creates a short-lived HS256 service token for acting as a
// specific user.
func (s *Service) ServiceJWT(userID, tenantID string, expiry time.Duration) (string, error) {
	if s.jwtSecret == "" {
		return "", ErrJWTSecretMissing
	}
	if expiry <= 0 {
		expiry = DefaultTokenExpiry
	}

	claims := jwt.MapClaims{
		"sub":       "unspecified",
		"exp":       jwt.NewNumericDate(time.Now().Add(expiry)),
		"tenant_id": tenantID,
		"user_id":   userID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign service JWT: %w", err)
	}
	return signed, nil
}

// LookupUser resolves a workspace member by email. A nil result with nil
// error means the user was not found.
func (s *Service) LookupUser(ctx context.Context, email string) (*User, error) {
	if s.apiKey == "" {
		return nil, nil
	}

	endpoint := fmt.Sprintf("%s/api/v1/workspaces/current/members/active?emails=%s",
		s.apiURL, url.QueryEscape(email))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-API-Key", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("member lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("member lookup error: %d - %s", resp.StatusCode, string(body))
	}

	var members []struct {
		UserID   string `json:"ls_user_id"`
		TenantID string `json:"tenant_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&members); err != nil {
		return nil, fmt.Errorf("failed to decode member response: %w", err)
	}
	if len(members) == 0 || members[0].UserID == "" || members[0].TenantID == "" {
		return nil, nil
	}
	return &User{ID: members[0].UserID, TenantID: members[0].TenantID}, nil
}

// GitHubTokenForUser exchanges a user identity for a GitHub OAuth token via
// the identity service. The result carries either a token or an auth URL.
func (s *Service) GitHubTokenForUser(ctx context.Context, user *User) (*AuthResult, error) {
	if !s.HasProvider() {
		return nil, errors.New("GitHub OAuth provider is not configured")
	}

	serviceToken, err := s.ServiceJWT(user.ID, user.TenantID, DefaultTokenExpiry)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(map[string]any{
		"provider":   s.providerID,
		"scopes":     []string{"repo"},
		"user_id":    user.ID,
		"ls_user_id": user.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode auth request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.hostURL+"/v2/auth/authenticate", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Key", serviceToken)
	req.Header.Set("X-Tenant-Id", user.TenantID)
	req.Header.Set("X-User-Id", user.ID)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("auth error: %d - %s", resp.StatusCode, string(body))
	}

	var result struct {
		Token string `json:"token"`
		URL   string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode auth response: %w", err)
	}

	if result.Token == "" && result.URL == "" {
		return nil, errors.New("unexpected auth result: neither token nor auth URL")
	}
	return &AuthResult{Token: result.Token, AuthURL: result.URL}, nil
}
