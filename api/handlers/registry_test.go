package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/username-registry/api"
	"github.com/ruteri/username-registry/claims"
	"github.com/ruteri/username-registry/dashboard"
	"github.com/ruteri/username-registry/interfaces"
	"github.com/ruteri/username-registry/registry"
	"github.com/ruteri/username-registry/storage"
)

var (
	admin = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	alice = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

type testEnv struct {
	registry *registry.MockRegistryClient
	resolver *claims.Resolver
	root     interfaces.Root
	set      claims.ClaimSet
	router   http.Handler
}

// setupTestEnvironment opens one period with published claims for the server
// account (admin) and alice.
func setupTestEnvironment(t *testing.T) *testEnv {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	backend, err := storage.NewFileBackend(t.TempDir(), logger)
	require.NoError(t, err)
	resolver := claims.NewResolver(backend, logger)

	root, set, err := claims.BuildPeriod([]claims.Entry{
		{Address: admin, Username: "admin"},
		{Address: alice, Username: "alice"},
	})
	require.NoError(t, err)
	require.NoError(t, resolver.Publish(ctx, root, set))

	reg := registry.NewMockRegistryClient(admin)
	reg.SetTransactOpts(admin)
	_, err = reg.AddRoot(ctx, root)
	require.NoError(t, err)

	return &testEnv{
		registry: reg,
		resolver: resolver,
		root:     root,
		set:      set,
		router:   newTestRouter(NewHandler(reg, resolver, logger)),
	}
}

// newTestRouter mounts the handlers with the same middleware as the HTTP server.
func newTestRouter(h *Handler) http.Handler {
	mux := chi.NewRouter()
	mux.Get("/", h.HandleDashboard)
	mux.With(h.SameOrigin).Post("/ui/roots", h.HandleUIAddRoot)
	mux.With(h.SameOrigin).Post("/ui/register", h.HandleUIRegister)
	mux.With(h.SameOrigin).Post("/ui/deregister", h.HandleUIDeregister)
	mux.Get("/api/roots", h.HandleRoots)
	mux.Get("/api/account", h.HandleAccount)
	mux.Get("/api/accounts/{address}", h.HandleAccount)
	mux.Get("/api/usernames/{username}/owner", h.HandleUsernameOwner)
	mux.Get("/api/claims/{root}", h.HandleClaims)
	mux.With(h.SameOrigin, h.RequireJSON).Post("/api/admin/roots", h.HandleAddRoot)
	mux.With(h.SameOrigin, h.RequireJSON).Post("/api/register", h.HandleRegister)
	mux.With(h.SameOrigin, h.RequireJSON).Post("/api/deregister", h.HandleDeregister)
	return mux
}

func serve(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, reader)
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHandleRoots(t *testing.T) {
	env := setupTestEnvironment(t)

	w := serve(t, env.router, http.MethodGet, "/api/roots", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	roots := decode[[]api.RootInfo](t, w)
	require.Len(t, roots, 1)
	assert.Equal(t, 0, roots[0].Index)
	assert.Equal(t, env.root, roots[0].Root)
	assert.Equal(t, env.root.Hex()[:10], roots[0].Prefix)
}

func TestHandleAccount(t *testing.T) {
	env := setupTestEnvironment(t)

	w := serve(t, env.router, http.MethodGet, "/api/accounts/"+alice.Hex()+"?panel=register&root="+env.root.Hex(), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	view := decode[dashboard.View](t, w)
	require.Len(t, view.Roots, 1)
	assert.True(t, view.Roots[0].CanRegister)
	assert.Equal(t, "You can register: alice", view.Roots[0].Notices[0].Text)
	assert.True(t, view.Panel.Open)
	assert.Equal(t, "Register in period: "+env.root.Hex()[:7]+"...", view.Panel.Title)

	w = serve(t, env.router, http.MethodGet, "/api/accounts/alice", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Without an address the server's own account is shown
	w = serve(t, env.router, http.MethodGet, "/api/account", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	view = decode[dashboard.View](t, w)
	assert.Equal(t, admin.Hex(), view.Account)
	assert.Equal(t, "You can register: admin", view.Roots[0].Notices[0].Text)

	w = serve(t, env.router, http.MethodGet, "/api/accounts/"+alice.Hex()+"?panel=register&root=0x12", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleUsernameOwner(t *testing.T) {
	env := setupTestEnvironment(t)

	w := serve(t, env.router, http.MethodGet, "/api/usernames/admin/owner", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, api.OwnerResponse{Username: "admin"}, decode[api.OwnerResponse](t, w))

	w = serve(t, env.router, http.MethodPost, "/api/register", api.RegisterRequest{Root: env.root.Hex()})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = serve(t, env.router, http.MethodGet, "/api/usernames/admin/owner", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, api.OwnerResponse{Username: "admin", Owner: admin, Registered: true}, decode[api.OwnerResponse](t, w))
}

func TestHandleClaims(t *testing.T) {
	env := setupTestEnvironment(t)

	w := serve(t, env.router, http.MethodGet, "/api/claims/"+env.root.Hex(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, env.set, decode[claims.ClaimSet](t, w))

	w = serve(t, env.router, http.MethodGet, "/api/claims/"+common.HexToHash("0x01").Hex(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(t, env.router, http.MethodGet, "/api/claims/0xnotaroot", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleAddRoot(t *testing.T) {
	env := setupTestEnvironment(t)
	newRoot := common.HexToHash("0xc3273767000000000000000000000000000000000000000000000000000000bb")

	w := serve(t, env.router, http.MethodPost, "/api/admin/roots", api.AddRootRequest{Root: newRoot.Hex()})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEqual(t, common.Hash{}, decode[api.TxResponse](t, w).TxHash)

	roots, err := env.registry.Roots(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []interfaces.Root{env.root, newRoot}, roots)

	// Contract rejects duplicates
	w = serve(t, env.router, http.MethodPost, "/api/admin/roots", api.AddRootRequest{Root: newRoot.Hex()})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, decode[api.ErrorResponse](t, w).Error, registry.ErrRootExists.Error())

	w = serve(t, env.router, http.MethodPost, "/api/admin/roots", api.AddRootRequest{Root: "0x1234"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/roots", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRegister(t *testing.T) {
	adminClaim := func(env *testEnv) *claims.Claim {
		claim, ok := env.set.Find(admin)
		require.True(t, ok)
		return claim
	}

	t.Run("from published claims", func(t *testing.T) {
		env := setupTestEnvironment(t)
		w := serve(t, env.router, http.MethodPost, "/api/register", api.RegisterRequest{Root: env.root.Hex()})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		username, err := env.registry.OwnerToUsername(context.Background(), admin)
		require.NoError(t, err)
		assert.Equal(t, "admin", username)
	})

	t.Run("from pasted claim", func(t *testing.T) {
		env := setupTestEnvironment(t)
		w := serve(t, env.router, http.MethodPost, "/api/register", api.RegisterRequest{
			Root:  env.root.Hex(),
			Claim: adminClaim(env).Paste(),
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	})

	t.Run("explicit username and proof", func(t *testing.T) {
		env := setupTestEnvironment(t)
		claim := adminClaim(env)
		w := serve(t, env.router, http.MethodPost, "/api/register", api.RegisterRequest{
			Root:     env.root.Hex(),
			Username: claim.Username,
			Proof:    claim.Proof,
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	})

	t.Run("someone else's claim is rejected by the contract", func(t *testing.T) {
		env := setupTestEnvironment(t)
		claim, _ := env.set.Find(alice)
		w := serve(t, env.router, http.MethodPost, "/api/register", api.RegisterRequest{
			Root:  env.root.Hex(),
			Claim: claim.Paste(),
		})
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})

	t.Run("malformed paste", func(t *testing.T) {
		env := setupTestEnvironment(t)
		w := serve(t, env.router, http.MethodPost, "/api/register", api.RegisterRequest{
			Root:  env.root.Hex(),
			Claim: "admin no tab",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("no claim for the account", func(t *testing.T) {
		env := setupTestEnvironment(t)
		ctx := context.Background()

		otherRoot, otherSet, err := claims.BuildPeriod([]claims.Entry{{Address: alice, Username: "alice2"}})
		require.NoError(t, err)
		require.NoError(t, env.resolver.Publish(ctx, otherRoot, otherSet))
		_, err = env.registry.AddRoot(ctx, otherRoot)
		require.NoError(t, err)

		w := serve(t, env.router, http.MethodPost, "/api/register", api.RegisterRequest{Root: otherRoot.Hex()})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHandleDeregister(t *testing.T) {
	env := setupTestEnvironment(t)

	w := serve(t, env.router, http.MethodPost, "/api/deregister", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = serve(t, env.router, http.MethodPost, "/api/register", api.RegisterRequest{Root: env.root.Hex()})
	require.Equal(t, http.StatusOK, w.Code)

	w = serve(t, env.router, http.MethodPost, "/api/deregister", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	username, err := env.registry.OwnerToUsername(context.Background(), admin)
	require.NoError(t, err)
	assert.Empty(t, username)
}

func TestReadOnlyServer(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend, err := storage.NewFileBackend(t.TempDir(), logger)
	require.NoError(t, err)

	reg := registry.NewMockRegistryClient(admin)
	router := newTestRouter(NewHandler(reg, claims.NewResolver(backend, logger), logger))

	root := common.HexToHash("0xbbdacbe4000000000000000000000000000000000000000000000000000000aa").Hex()
	for _, tc := range []struct {
		path string
		body any
	}{
		{"/api/admin/roots", api.AddRootRequest{Root: root}},
		{"/api/register", api.RegisterRequest{Root: root}},
		{"/api/deregister", nil},
	} {
		w := serve(t, router, http.MethodPost, tc.path, tc.body)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, tc.path)
	}

	// Reads keep working
	w := serve(t, router, http.MethodGet, "/api/roots", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestContractFailure(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mockRegistry := new(registry.MockRegistry)
	mockRegistry.On("Roots", mock.Anything).Return(nil, errors.New("rpc unavailable"))
	mockRegistry.On("Account").Return(common.Address{}, false)

	router := newTestRouter(NewHandler(mockRegistry, nil, logger))

	w := serve(t, router, http.MethodGet, "/api/roots", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, decode[api.ErrorResponse](t, w).Error, "rpc unavailable")

	w = serve(t, router, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "rpc unavailable")

	mockRegistry.AssertExpectations(t)
}

func TestHandleDashboard(t *testing.T) {
	env := setupTestEnvironment(t)

	w := serve(t, env.router, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Contains(t, body, "Your account: "+admin.Hex())
	assert.Contains(t, body, "You can register: admin")
	assert.Contains(t, body, env.root.Hex()[:10]+"...")

	w = serve(t, env.router, http.MethodGet, "/?panel=new-period", nil)
	assert.Contains(t, w.Body.String(), "New registration period")

	w = serve(t, env.router, http.MethodGet, "/?account=0xABCDEF0000000000000000000000000000000000&check=nobody", nil)
	body = w.Body.String()
	assert.Contains(t, body, "0xABCDEF... not found")
	assert.Contains(t, body, "owner: none")
}

func postForm(t *testing.T, router http.Handler, target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUIForms(t *testing.T) {
	env := setupTestEnvironment(t)
	ctx := context.Background()

	w := postForm(t, env.router, "/ui/register", url.Values{"root": {env.root.Hex()}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	location, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/", location.Path)
	assert.Contains(t, location.Query().Get("status"), "Submitted registration")

	username, err := env.registry.OwnerToUsername(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, "admin", username)

	// The dashboard now greets the registered account
	w = serve(t, env.router, http.MethodGet, "/", nil)
	assert.Contains(t, w.Body.String(), "You are registered as admin")

	w = postForm(t, env.router, "/ui/roots", url.Values{"root": {"nope"}, "account": {alice.Hex()}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	location, err = url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.NotEmpty(t, location.Query().Get("error"))
	assert.Equal(t, alice.Hex(), location.Query().Get("account"))

	w = postForm(t, env.router, "/ui/deregister", url.Values{})
	require.Equal(t, http.StatusSeeOther, w.Code)
	username, err = env.registry.OwnerToUsername(ctx, admin)
	require.NoError(t, err)
	assert.Empty(t, username)
}

func TestHandleAccount_ReadOnlyServer(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend, err := storage.NewFileBackend(t.TempDir(), logger)
	require.NoError(t, err)

	reg := registry.NewMockRegistryClient(admin)
	router := newTestRouter(NewHandler(reg, claims.NewResolver(backend, logger), logger))

	w := serve(t, router, http.MethodGet, "/api/account", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Empty(t, decode[dashboard.View](t, w).Account)
}

func TestUIForms_OtherAccount(t *testing.T) {
	env := setupTestEnvironment(t)
	ctx := context.Background()

	// Viewing another account does not offer buttons signed by the server key
	w := serve(t, env.router, http.MethodGet, "/?account="+alice.Hex(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "You can register: alice")
	assert.Contains(t, w.Body.String(), "disabled>Register</button>")

	w = serve(t, env.router, http.MethodGet, "/", nil)
	assert.NotContains(t, w.Body.String(), "disabled>Register</button>")

	w = postForm(t, env.router, "/ui/register", url.Values{"root": {env.root.Hex()}, "account": {alice.Hex()}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	location, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, ErrAccountMismatch.Error(), location.Query().Get("error"))
	assert.Equal(t, alice.Hex(), location.Query().Get("account"))

	for _, account := range []common.Address{admin, alice} {
		username, err := env.registry.OwnerToUsername(ctx, account)
		require.NoError(t, err)
		assert.Empty(t, username, account.Hex())
	}

	// The server's own account, given explicitly, is accepted
	w = postForm(t, env.router, "/ui/register", url.Values{"root": {env.root.Hex()}, "account": {strings.ToLower(admin.Hex())}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	username, err := env.registry.OwnerToUsername(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, "admin", username)

	w = postForm(t, env.router, "/ui/deregister", url.Values{"account": {alice.Hex()}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	username, err = env.registry.OwnerToUsername(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, "admin", username)
}

func TestSameOrigin(t *testing.T) {
	env := setupTestEnvironment(t)
	ctx := context.Background()

	w := postForm(t, env.router, "/ui/register", url.Values{"root": {env.root.Hex()}})
	require.Equal(t, http.StatusSeeOther, w.Code)

	for _, tc := range []struct {
		name    string
		headers map[string]string
	}{
		{"cross-site fetch", map[string]string{"Origin": "https://evil.example", "Sec-Fetch-Site": "cross-site"}},
		{"same-site fetch", map[string]string{"Sec-Fetch-Site": "same-site"}},
		{"foreign origin", map[string]string{"Origin": "https://evil.example"}},
		{"opaque origin", map[string]string{"Origin": "null"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/ui/deregister", strings.NewReader(""))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusForbidden, w.Code)
			assert.Equal(t, ErrCrossOrigin.Error(), decode[api.ErrorResponse](t, w).Error)

			username, err := env.registry.OwnerToUsername(ctx, admin)
			require.NoError(t, err)
			assert.Equal(t, "admin", username)
		})
	}

	// A form posted by the dashboard itself goes through
	req := httptest.NewRequest(http.MethodPost, "/ui/deregister", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Origin", "http://"+req.Host)
	req.Header.Set("Sec-Fetch-Site", "same-origin")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusSeeOther, w.Code)

	username, err := env.registry.OwnerToUsername(ctx, admin)
	require.NoError(t, err)
	assert.Empty(t, username)
}

func TestRequireJSON(t *testing.T) {
	env := setupTestEnvironment(t)
	ctx := context.Background()

	other := common.HexToHash("0xbbdacbe4000000000000000000000000000000000000000000000000000000aa")
	body, err := json.Marshal(api.AddRootRequest{Root: other.Hex()})
	require.NoError(t, err)

	for _, contentType := range []string{"", "text/plain", "application/x-www-form-urlencoded"} {
		req := httptest.NewRequest(http.MethodPost, "/api/admin/roots", bytes.NewReader(body))
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnsupportedMediaType, w.Code, contentType)
	}

	roots, err := env.registry.Roots(ctx)
	require.NoError(t, err)
	assert.Len(t, roots, 1)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/roots", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	roots, err = env.registry.Roots(ctx)
	require.NoError(t, err)
	assert.Len(t, roots, 2)
}
