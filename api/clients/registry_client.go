package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/ruteri/username-registry/api"
	"github.com/ruteri/username-registry/claims"
	"github.com/ruteri/username-registry/dashboard"
	"github.com/ruteri/username-registry/interfaces"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("registry server returned %d: %s", e.StatusCode, e.Message)
}

// RegistryClient implements api.RegistryProvider over HTTP.
type RegistryClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewRegistryClient creates a client for the registry server at baseURL
// (e.g., "http://localhost:8080"). The timeout defaults to 30 seconds.
func NewRegistryClient(baseURL string, timeout ...time.Duration) *RegistryClient {
	clientTimeout := 30 * time.Second
	if len(timeout) > 0 {
		clientTimeout = timeout[0]
	}

	return &RegistryClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: clientTimeout,
		},
	}
}

// Roots lists the accepted roots.
func (c *RegistryClient) Roots(ctx context.Context) ([]api.RootInfo, error) {
	var roots []api.RootInfo
	err := c.do(ctx, http.MethodGet, "/api/roots", nil, &roots)
	return roots, err
}

// Dashboard returns the dashboard view of account.
func (c *RegistryClient) Dashboard(ctx context.Context, account string) (*dashboard.View, error) {
	path := "/api/account"
	if account != "" {
		path = "/api/accounts/" + url.PathEscape(account)
	}

	var view dashboard.View
	if err := c.do(ctx, http.MethodGet, path, nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// Owner looks up the owner of username.
func (c *RegistryClient) Owner(ctx context.Context, username string) (*api.OwnerResponse, error) {
	var owner api.OwnerResponse
	if err := c.do(ctx, http.MethodGet, "/api/usernames/"+url.PathEscape(username)+"/owner", nil, &owner); err != nil {
		return nil, err
	}
	return &owner, nil
}

// Claims fetches the verified claim set of root.
func (c *RegistryClient) Claims(ctx context.Context, root interfaces.Root) (claims.ClaimSet, error) {
	var set claims.ClaimSet
	err := c.do(ctx, http.MethodGet, "/api/claims/"+root.Hex(), nil, &set)
	return set, err
}

// AddRoot asks the server to open a registration period.
func (c *RegistryClient) AddRoot(ctx context.Context, root interfaces.Root) (*api.TxResponse, error) {
	var tx api.TxResponse
	if err := c.do(ctx, http.MethodPost, "/api/admin/roots", api.AddRootRequest{Root: root.Hex()}, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// Register asks the server to register its account.
func (c *RegistryClient) Register(ctx context.Context, req api.RegisterRequest) (*api.TxResponse, error) {
	var tx api.TxResponse
	if err := c.do(ctx, http.MethodPost, "/api/register", req, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// Deregister asks the server to release its account's username.
func (c *RegistryClient) Deregister(ctx context.Context) (*api.TxResponse, error) {
	var tx api.TxResponse
	if err := c.do(ctx, http.MethodPost, "/api/deregister", nil, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (c *RegistryClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("could not encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("could not request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		var apiErr api.ErrorResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return &StatusError{StatusCode: resp.StatusCode, Message: apiErr.Error}
		}
		return &StatusError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("could not parse response from %s: %w", path, err)
	}
	return nil
}

// MockRegistryProvider implements api.RegistryProvider for testing.
type MockRegistryProvider struct {
	mock.Mock
}

func (m *MockRegistryProvider) Roots(ctx context.Context) ([]api.RootInfo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]api.RootInfo), args.Error(1)
}

func (m *MockRegistryProvider) Dashboard(ctx context.Context, account string) (*dashboard.View, error) {
	args := m.Called(ctx, account)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dashboard.View), args.Error(1)
}

func (m *MockRegistryProvider) Owner(ctx context.Context, username string) (*api.OwnerResponse, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.OwnerResponse), args.Error(1)
}

func (m *MockRegistryProvider) Claims(ctx context.Context, root interfaces.Root) (claims.ClaimSet, error) {
	args := m.Called(ctx, root)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(claims.ClaimSet), args.Error(1)
}

func (m *MockRegistryProvider) AddRoot(ctx context.Context, root interfaces.Root) (*api.TxResponse, error) {
	args := m.Called(ctx, root)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.TxResponse), args.Error(1)
}

func (m *MockRegistryProvider) Register(ctx context.Context, req api.RegisterRequest) (*api.TxResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.TxResponse), args.Error(1)
}

func (m *MockRegistryProvider) Deregister(ctx context.Context) (*api.TxResponse, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.TxResponse), args.Error(1)
}
