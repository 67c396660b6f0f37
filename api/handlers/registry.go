package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/go-chi/chi/v5"

	"github.com/ruteri/username-registry/api"
	"github.com/ruteri/username-registry/claims"
	"github.com/ruteri/username-registry/dashboard"
	"github.com/ruteri/username-registry/interfaces"
	"github.com/ruteri/username-registry/registry"
)

// maxBodySize is the maximum allowed request body size (1MB).
const maxBodySize = 1024 * 1024

var (
	// ErrNoClaim is returned when registering from published claims and the account has none.
	ErrNoClaim = errors.New("account has no claim under root")

	// ErrAccountMismatch is returned when a form acts for an account other than the server's.
	ErrAccountMismatch = errors.New("transactions can only be sent from the server account")

	errBadRequest = errors.New("bad request")
)

// Handler serves the registry API and the HTML dashboard.
type Handler struct {
	registry interfaces.UsernameRegistry
	claims   dashboard.ClaimSource
	composer *dashboard.Composer
	log      *slog.Logger
}

// NewHandler creates a handler over the registry contract and the claim sets published for it.
func NewHandler(registry interfaces.UsernameRegistry, claimSource dashboard.ClaimSource, log *slog.Logger) *Handler {
	return &Handler{
		registry: registry,
		claims:   claimSource,
		composer: dashboard.NewComposer(registry, claimSource, log),
		log:      log,
	}
}

// HandleRoots lists the accepted roots.
//
// URL format: GET /api/roots
func (h *Handler) HandleRoots(w http.ResponseWriter, r *http.Request) {
	roots, err := h.registry.Roots(r.Context())
	if err != nil {
		h.writeError(w, r, fmt.Errorf("could not get roots: %w", err))
		return
	}

	infos := make([]api.RootInfo, len(roots))
	for i, root := range roots {
		infos[i] = api.RootInfo{Index: i, Root: root, Prefix: interfaces.RootPrefix(root)}
	}
	h.writeJSON(w, http.StatusOK, infos)
}

// HandleAccount returns the dashboard view for an account. Without an
// address it shows the server's own account.
//
// URL format: GET /api/accounts/{address}?panel=&root=&check= or GET /api/account
func (h *Handler) HandleAccount(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "address")
	if account == "" {
		account = h.accountParam(r)
	}

	query := r.URL.Query()
	view, err := h.composer.Compose(r.Context(), dashboard.Request{
		Account:   account,
		Panel:     dashboard.PanelKind(query.Get("panel")),
		PanelRoot: query.Get("root"),
		Check:     query.Get("check"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

// HandleUsernameOwner reports who owns a username.
//
// URL format: GET /api/usernames/{username}/owner
func (h *Handler) HandleUsernameOwner(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	owner, err := h.registry.UsernameToOwner(r.Context(), username)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, api.OwnerResponse{
		Username:   username,
		Owner:      owner,
		Registered: owner != (common.Address{}),
	})
}

// HandleClaims returns the verified claim set of a root.
//
// URL format: GET /api/claims/{root}
func (h *Handler) HandleClaims(w http.ResponseWriter, r *http.Request) {
	root, err := interfaces.NewRootFromHex(chi.URLParam(r, "root"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	set, err := h.claims.ClaimsFor(r.Context(), root)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, set)
}

// HandleAddRoot opens a registration period.
//
// URL format: POST /api/admin/roots with body {"root": "0x..."}
func (h *Handler) HandleAddRoot(w http.ResponseWriter, r *http.Request) {
	var req api.AddRootRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	tx, err := h.addRoot(r, req.Root)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, api.TxResponse{TxHash: tx.Hash()})
}

// HandleRegister registers the server's account.
//
// URL format: POST /api/register with an api.RegisterRequest body
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	tx, err := h.register(r, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, api.TxResponse{TxHash: tx.Hash()})
}

// HandleDeregister releases the server account's username.
//
// URL format: POST /api/deregister
func (h *Handler) HandleDeregister(w http.ResponseWriter, r *http.Request) {
	tx, err := h.registry.DeregisterSelf(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.log.Info("Submitted deregistration", "tx", tx.Hash().Hex())
	h.writeJSON(w, http.StatusOK, api.TxResponse{TxHash: tx.Hash()})
}

func (h *Handler) addRoot(r *http.Request, rawRoot string) (*types.Transaction, error) {
	root, err := interfaces.NewRootFromHex(rawRoot)
	if err != nil {
		return nil, err
	}

	tx, err := h.registry.AddRoot(r.Context(), root)
	if err != nil {
		return nil, err
	}

	h.log.Info("Submitted new root", "root", root.Hex(), "tx", tx.Hash().Hex())
	return tx, nil
}

// register resolves the username and proof of req and submits the registration.
func (h *Handler) register(r *http.Request, req api.RegisterRequest) (*types.Transaction, error) {
	root, err := interfaces.NewRootFromHex(req.Root)
	if err != nil {
		return nil, err
	}

	username, proof := req.Username, req.Proof
	switch {
	case username != "":
	case req.Claim != "":
		username, proof, err = claims.ParseClaimPaste(req.Claim)
		if err != nil {
			return nil, err
		}
	default:
		account, ok := h.registry.Account()
		if !ok {
			return nil, registry.ErrNoTransactOpts
		}
		set, err := h.claims.ClaimsFor(r.Context(), root)
		if err != nil {
			return nil, err
		}
		claim, found := set.Find(account)
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrNoClaim, account.Hex())
		}
		username, proof = claim.Username, claim.Proof
	}

	tx, err := h.registry.RegisterSelf(r.Context(), root, username, proof)
	if err != nil {
		return nil, err
	}

	h.log.Info("Submitted registration", "root", root.Hex(), "username", username, "tx", tx.Hash().Hex())
	return tx, nil
}

func decodeBody(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("%w: could not read body: %v", errBadRequest, err)
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
	}
	return nil
}

// statusFor maps domain errors to HTTP status codes.
// Anything unrecognized is a failed contract or backend call.
func statusFor(err error) int {
	switch {
	case errors.Is(err, registry.ErrNoTransactOpts):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrCrossOrigin),
		errors.Is(err, ErrAccountMismatch):
		return http.StatusForbidden
	case errors.Is(err, ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, errBadRequest),
		errors.Is(err, interfaces.ErrInvalidRoot),
		errors.Is(err, interfaces.ErrEmptyUsername),
		errors.Is(err, interfaces.ErrInvalidUsername),
		errors.Is(err, claims.ErrInvalidPaste),
		errors.Is(err, dashboard.ErrInvalidAccount):
		return http.StatusBadRequest
	case errors.Is(err, claims.ErrNoClaimSet),
		errors.Is(err, ErrNoClaim):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		h.log.Error("Request failed", "path", r.URL.Path, "status", status, "err", err)
	} else {
		h.log.Debug("Request rejected", "path", r.URL.Path, "status", status, "err", err)
	}
	h.writeJSON(w, status, api.ErrorResponse{Error: err.Error()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}

// isServerAccount reports whether account is the address transactions are sent from.
func (h *Handler) isServerAccount(account string) bool {
	sender, ok := h.registry.Account()
	if !ok {
		return false
	}
	account = strings.TrimSpace(account)
	return common.IsHexAddress(account) && common.HexToAddress(account) == sender
}

// accountParam returns the account to show: the explicit one or the server's own.
func (h *Handler) accountParam(r *http.Request) string {
	if account := strings.TrimSpace(r.URL.Query().Get("account")); account != "" {
		return account
	}
	if account, ok := h.registry.Account(); ok {
		return account.Hex()
	}
	return ""
}
