package storage

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ruteri/username-registry/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var claimSetJSON = []byte(`[{"address":"0x1111111111111111111111111111111111111111","username":"alice","proof":[]}]`)

func TestFileBackend(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "claims")

	backend, err := NewFileBackend(dir, slog.Default())
	require.NoError(t, err)
	assert.True(t, backend.Available(ctx))
	assert.Equal(t, "file-claims", backend.Name())
	assert.Equal(t, "file://"+dir, backend.LocationURI())

	_, err = backend.Fetch(ctx, testRoot)
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)

	require.NoError(t, backend.Store(ctx, testRoot, claimSetJSON))
	assert.FileExists(t, filepath.Join(dir, "0xbbdacbe4.json"))

	data, err := backend.Fetch(ctx, testRoot)
	require.NoError(t, err)
	assert.Equal(t, claimSetJSON, data)

	// Republishing replaces the previous claim set
	require.NoError(t, backend.Store(ctx, testRoot, []byte(`[]`)))
	data, err = backend.Fetch(ctx, testRoot)
	require.NoError(t, err)
	assert.Equal(t, []byte(`[]`), data)
}

func TestGitHubBackend(t *testing.T) {
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/acme/registrations":
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, `{"full_name":"acme/registrations"}`)
		case "/repos/acme/registrations/contents/post/0xbbdacbe4.json":
			assert.Equal(t, "main", r.URL.Query().Get("ref"))
			json.NewEncoder(w).Encode(GitHubContent{
				Type:     "file",
				Encoding: "base64",
				Content:  base64.StdEncoding.EncodeToString(claimSetJSON),
				SHA:      "abc",
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	backend := NewGitHubBackend("acme", "registrations", "post", "main", slog.Default()).WithAPIURL(server.URL)
	assert.Equal(t, "github://acme/registrations/post?ref=main", backend.LocationURI())
	assert.True(t, backend.Available(ctx))

	data, err := backend.Fetch(ctx, testRoot)
	require.NoError(t, err)
	assert.Equal(t, claimSetJSON, data)

	_, err = backend.Fetch(ctx, interfaces.Root{0x01})
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)

	assert.ErrorIs(t, backend.Store(ctx, testRoot, claimSetJSON), interfaces.ErrReadOnlyBackend)

	missing := NewGitHubBackend("acme", "gone", "", "", slog.Default()).WithAPIURL(server.URL)
	assert.False(t, missing.Available(ctx))
}

// fakeVault serves the subset of the Vault HTTP API the backend uses.
type fakeVault struct {
	mu      sync.Mutex
	token   string
	secrets map[string]string
}

func (v *fakeVault) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/v1/sys/health" {
		fmt.Fprint(w, `{"initialized":true,"sealed":false,"standby":false}`)
		return
	}

	if r.Header.Get("X-Vault-Token") != v.token {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"errors":["permission denied"]}`)
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	key := strings.TrimPrefix(r.URL.Path, "/v1/")
	switch r.Method {
	case http.MethodGet:
		content, ok := v.secrets[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"errors":[]}`)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"data":     map[string]interface{}{"content": content},
				"metadata": map[string]interface{}{"version": 1},
			},
		})
	case http.MethodPut, http.MethodPost:
		var body struct {
			Data struct {
				Content string `json:"content"`
			} `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		v.secrets[key] = body.Data.Content
		fmt.Fprint(w, `{"data":{"version":1}}`)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestVaultBackend(t *testing.T) {
	ctx := context.Background()
	vault := &fakeVault{token: "s.test", secrets: make(map[string]string)}
	server := httptest.NewServer(vault)
	defer server.Close()

	backend, err := NewVaultBackend(server.URL, "secret", "registry", "s.test", slog.Default())
	require.NoError(t, err)
	assert.True(t, backend.Available(ctx))
	assert.Equal(t, "vault-secret-registry", backend.Name())

	_, err = backend.Fetch(ctx, testRoot)
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)

	require.NoError(t, backend.Store(ctx, testRoot, claimSetJSON))
	assert.Contains(t, vault.secrets, "secret/data/registry/0xbbdacbe4")

	data, err := backend.Fetch(ctx, testRoot)
	require.NoError(t, err)
	assert.Equal(t, claimSetJSON, data)

	unauthorized, err := NewVaultBackend(server.URL, "secret", "registry", "s.wrong", slog.Default())
	require.NoError(t, err)
	_, err = unauthorized.Fetch(ctx, testRoot)
	assert.ErrorIs(t, err, interfaces.ErrBackendUnavailable)
}

// fakeS3 is a path-style S3 endpoint holding a single bucket.
type fakeS3 struct {
	mu      sync.Mutex
	bucket  string
	objects map[string][]byte
}

func (s *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if bucket != s.bucket {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch {
	case r.Method == http.MethodHead && key == "":
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet:
		data, ok := s.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		w.Write(data)
	case r.Method == http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		s.objects[key] = data
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestS3Backend(t *testing.T) {
	ctx := context.Background()
	s3 := &fakeS3{bucket: "claims", objects: make(map[string][]byte)}
	server := httptest.NewServer(s3)
	defer server.Close()

	backend, err := NewS3Backend("claims", "/post/", "us-east-1", server.URL, "AKID", "SECRET", slog.Default())
	require.NoError(t, err)
	assert.True(t, backend.Available(ctx))
	assert.Equal(t, "s3-claims", backend.Name())
	assert.NotContains(t, backend.LocationURI(), "SECRET")

	_, err = backend.Fetch(ctx, testRoot)
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)

	require.NoError(t, backend.Store(ctx, testRoot, claimSetJSON))
	assert.Contains(t, s3.objects, "post/0xbbdacbe4.json")

	data, err := backend.Fetch(ctx, testRoot)
	require.NoError(t, err)
	assert.Equal(t, claimSetJSON, data)

	anonymous, err := NewS3Backend("claims", "post", "us-east-1", server.URL, "", "", slog.Default())
	require.NoError(t, err)
	assert.ErrorIs(t, anonymous.Store(ctx, testRoot, claimSetJSON), interfaces.ErrReadOnlyBackend)
}

// fakeIPFS serves the subset of the IPFS node RPC API used for MFS claim sets.
type fakeIPFS struct {
	mu    sync.Mutex
	files map[string][]byte
	opts  map[string]string
}

func (n *fakeIPFS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	switch r.URL.Path {
	case "/api/v0/version":
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"Version":"0.29.0","Commit":"test"}`)
	case "/api/v0/files/read":
		data, ok := n.files[query.Get("arg")]
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"Message":"file does not exist","Code":0,"Type":"error"}`)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Write(data)
	case "/api/v0/files/write":
		n.opts = map[string]string{
			"create":   query.Get("create"),
			"parents":  query.Get("parents"),
			"truncate": query.Get("truncate"),
		}

		mr, err := r.MultipartReader()
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var data []byte
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			if part.Header.Get("Content-Type") == "application/x-directory" {
				continue
			}
			content, _ := io.ReadAll(part)
			data = append(data, content...)
		}
		n.files[query.Get("arg")] = data
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (n *fakeIPFS) file(path string) ([]byte, map[string]string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.files[path], n.opts
}

func TestIPFSBackend(t *testing.T) {
	ctx := context.Background()
	node := &fakeIPFS{files: make(map[string][]byte)}
	server := httptest.NewServer(node)

	host, port, err := net.SplitHostPort(strings.TrimPrefix(server.URL, "http://"))
	require.NoError(t, err)

	backend := NewIPFSBackend(host, port, 5*time.Second, slog.Default())
	assert.True(t, backend.Available(ctx))
	assert.Equal(t, "ipfs-"+host+"-"+port, backend.Name())
	assert.Equal(t, "ipfs://"+host+":"+port+"/?timeout=5s", backend.LocationURI())

	_, err = backend.Fetch(ctx, testRoot)
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)

	require.NoError(t, backend.Store(ctx, testRoot, claimSetJSON))
	stored, opts := node.file("/registry/0xbbdacbe4.json")
	assert.Equal(t, claimSetJSON, stored)
	assert.Equal(t, map[string]string{"create": "true", "parents": "true", "truncate": "true"}, opts)

	data, err := backend.Fetch(ctx, testRoot)
	require.NoError(t, err)
	assert.Equal(t, claimSetJSON, data)

	// Republishing replaces the previous claim set
	require.NoError(t, backend.Store(ctx, testRoot, []byte(`[]`)))
	data, err = backend.Fetch(ctx, testRoot)
	require.NoError(t, err)
	assert.Equal(t, []byte(`[]`), data)

	server.Close()
	assert.False(t, backend.Available(ctx))
	_, err = backend.Fetch(ctx, testRoot)
	assert.ErrorIs(t, err, interfaces.ErrBackendUnavailable)
	assert.ErrorIs(t, backend.Store(ctx, testRoot, claimSetJSON), interfaces.ErrBackendUnavailable)
}

func TestClaimBackendFactory(t *testing.T) {
	factory := NewClaimBackendFactory(slog.Default())
	dir := t.TempDir()

	tests := []struct {
		uri      string
		expected interface{}
		name     string
	}{
		{uri: "file://" + dir, expected: &FileBackend{}, name: "file-" + filepath.Base(dir)},
		{uri: "s3://bucket/post?region=eu-west-1", expected: &S3Backend{}, name: "s3-bucket"},
		{uri: "s3://key:secret@bucket/post?endpoint=http://127.0.0.1:9000", expected: &S3Backend{}, name: "s3-bucket"},
		{uri: "ipfs://127.0.0.1:5001/?timeout=5s", expected: &IPFSBackend{}, name: "ipfs-127.0.0.1-5001"},
		{uri: "ipfs://127.0.0.1/", expected: &IPFSBackend{}, name: "ipfs-127.0.0.1-5001"},
		{uri: "vault://127.0.0.1:8200/secret/registry?token=s.x&tls=false", expected: &VaultBackend{}, name: "vault-secret-registry"},
		{uri: "github://acme/registrations/post?ref=main", expected: &GitHubBackend{}, name: "github-acme-registrations"},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			backend, err := factory.BackendFor(interfaces.StorageBackendLocation(tt.uri))
			require.NoError(t, err)
			assert.IsType(t, tt.expected, backend)
			assert.Equal(t, tt.name, backend.Name())
		})
	}

	invalid := []string{
		"ftp://example.com/claims",
		"github://acme",
		"ipfs://127.0.0.1/?timeout=soon",
		"vault://127.0.0.1:8200/",
		"s3:///post",
	}
	for _, uri := range invalid {
		t.Run(uri, func(t *testing.T) {
			_, err := factory.BackendFor(interfaces.StorageBackendLocation(uri))
			assert.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)
		})
	}
}

func TestClaimBackendFactory_CreateMultiBackend(t *testing.T) {
	factory := NewClaimBackendFactory(slog.Default())

	multi, err := factory.CreateMultiBackend([]interfaces.StorageBackendLocation{
		"ftp://nope",
		interfaces.StorageBackendLocation("file://" + t.TempDir()),
	})
	require.NoError(t, err)
	assert.IsType(t, &MultiClaimBackend{}, multi)
	assert.True(t, multi.Available(context.Background()))

	_, err = factory.CreateMultiBackend([]interfaces.StorageBackendLocation{"ftp://nope"})
	assert.Error(t, err)
}
