package storage

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/ruteri/username-registry/interfaces"
)

const defaultGitHubAPI = "https://api.github.com"

// GitHubBackend implements a read-only claim backend on a GitHub repository,
// reading <dir>/<root prefix>.json through the contents API.
type GitHubBackend struct {
	owner       string
	repo        string
	dir         string
	ref         string
	apiURL      string
	client      *http.Client
	log         *slog.Logger
	locationURI string
}

// GitHubContent is the subset of a contents API file response we use.
type GitHubContent struct {
	Type     string `json:"type"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
	SHA      string `json:"sha"`
	Size     int    `json:"size"`
}

// NewGitHubBackend creates a new GitHub claim backend. An empty ref reads the default branch.
func NewGitHubBackend(owner, repo, dir, ref string, log *slog.Logger) *GitHubBackend {
	uri := fmt.Sprintf("github://%s/%s", owner, repo)
	if dir = strings.Trim(dir, "/"); dir != "" {
		uri += "/" + dir
	}
	if ref != "" {
		uri += "?ref=" + url.QueryEscape(ref)
	}

	return &GitHubBackend{
		owner:       owner,
		repo:        repo,
		dir:         dir,
		ref:         ref,
		apiURL:      defaultGitHubAPI,
		client:      &http.Client{Timeout: 30 * time.Second},
		log:         log,
		locationURI: uri,
	}
}

// WithAPIURL points the backend at a different API server, such as GitHub Enterprise.
func (b *GitHubBackend) WithAPIURL(apiURL string) *GitHubBackend {
	b.apiURL = strings.TrimSuffix(apiURL, "/")
	return b
}

// Fetch retrieves the claim set file of root.
func (b *GitHubBackend) Fetch(ctx context.Context, root interfaces.Root) ([]byte, error) {
	filePath := objectName(root)
	if b.dir != "" {
		filePath = path.Join(b.dir, filePath)
	}

	file, err := b.fetchContent(ctx, filePath)
	if err != nil {
		return nil, err
	}

	if file.Type != "file" || file.Encoding != "base64" {
		return nil, fmt.Errorf("unexpected content %s with encoding %q", file.Type, file.Encoding)
	}

	data, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(file.Content, "\n", ""))
	if err != nil {
		return nil, fmt.Errorf("failed to decode file content: %w", err)
	}

	b.log.Debug("Fetched claim set from GitHub",
		slog.String("path", filePath),
		slog.String("sha", file.SHA),
		slog.Int("size", len(data)))

	return data, nil
}

// Store is not supported by this read-only backend.
func (b *GitHubBackend) Store(ctx context.Context, root interfaces.Root, data []byte) error {
	return fmt.Errorf("%w: %s", interfaces.ErrReadOnlyBackend, b.Name())
}

// Available checks if the GitHub repository is accessible.
func (b *GitHubBackend) Available(ctx context.Context) bool {
	reqURL := fmt.Sprintf("%s/repos/%s/%s", b.apiURL, b.owner, b.repo)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		b.log.Debug("Failed to create request", "err", err)
		return false
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := b.client.Do(req)
	if err != nil {
		b.log.Debug("GitHub backend unavailable", "err", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b.log.Debug("GitHub backend unavailable", slog.String("status", resp.Status))
		return false
	}

	return true
}

// Name returns a unique identifier for this storage backend.
func (b *GitHubBackend) Name() string {
	return fmt.Sprintf("github-%s-%s", b.owner, b.repo)
}

// LocationURI returns the URI that identifies this storage backend.
func (b *GitHubBackend) LocationURI() string {
	return b.locationURI
}

func (b *GitHubBackend) fetchContent(ctx context.Context, filePath string) (*GitHubContent, error) {
	reqURL := fmt.Sprintf("%s/repos/%s/%s/contents/%s", b.apiURL, b.owner, b.repo, filePath)
	if b.ref != "" {
		reqURL += "?ref=" + url.QueryEscape(b.ref)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, interfaces.ErrContentNotFound
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("GitHub API error: %s, %s", resp.Status, string(body))
	}

	var file GitHubContent
	if err := json.NewDecoder(resp.Body).Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode content response: %w", err)
	}

	return &file, nil
}
