// Package dashboard composes the registry dashboard shown to a connected account:
// the accepted roots with the account's claim under each, the welcome banner,
// the side panel and the username ownership check.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ruteri/username-registry/claims"
	"github.com/ruteri/username-registry/interfaces"
)

var ErrInvalidAccount = errors.New("invalid account address")

// Registry is the part of the registry contract the dashboard reads.
type Registry interface {
	interfaces.RootReader
	interfaces.UsernameDirectory
}

// ClaimSource resolves the claim set published for a root.
type ClaimSource interface {
	ClaimsFor(ctx context.Context, root interfaces.Root) (claims.ClaimSet, error)
}

type NoticeKind string

const (
	NoticeAction NoticeKind = "action"
	NoticeAlert  NoticeKind = "alert"
	NoticeInfo   NoticeKind = "info"
)

type Notice struct {
	Kind NoticeKind `json:"kind"`
	Text string     `json:"text"`
}

// RootCard is one accepted root as seen by the account.
type RootCard struct {
	Index       int             `json:"index"`
	Root        interfaces.Root `json:"root"`
	Short       string          `json:"short"`
	Claim       *claims.Claim   `json:"claim,omitempty"`
	CanRegister bool            `json:"can_register"`
	Notices     []Notice        `json:"notices"`
}

type PanelKind string

const (
	PanelNone      PanelKind = ""
	PanelRegister  PanelKind = "register"
	PanelNewPeriod PanelKind = "new-period"
)

// Panel is the side panel state. A closed panel has no kind.
type Panel struct {
	Open  bool            `json:"open"`
	Kind  PanelKind       `json:"kind,omitempty"`
	Title string          `json:"title,omitempty"`
	Root  interfaces.Root `json:"root,omitempty"`
}

// NameCheck is the result of looking up who owns a username.
type NameCheck struct {
	Username   string         `json:"username"`
	Owner      common.Address `json:"owner"`
	Registered bool           `json:"registered"`
}

// Request carries the dashboard inputs.
type Request struct {
	// Account is the connected account, empty when none.
	Account string
	Panel   PanelKind
	// PanelRoot is the root the register panel is opened for.
	PanelRoot string
	// Check is the username submitted to the ownership check.
	Check string
}

type View struct {
	Account   string     `json:"account"`
	Welcome   string     `json:"welcome,omitempty"`
	Roots     []RootCard `json:"roots"`
	Panel     Panel      `json:"panel"`
	NameCheck *NameCheck `json:"name_check,omitempty"`
}

// Composer builds dashboard views.
type Composer struct {
	registry Registry
	claims   ClaimSource
	log      *slog.Logger
}

func NewComposer(registry Registry, claims ClaimSource, log *slog.Logger) *Composer {
	return &Composer{registry: registry, claims: claims, log: log}
}

// Compose builds the view for req.
func (c *Composer) Compose(ctx context.Context, req Request) (*View, error) {
	view := &View{Account: strings.TrimSpace(req.Account)}

	var account common.Address
	if view.Account != "" {
		if !common.IsHexAddress(view.Account) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidAccount, view.Account)
		}
		account = common.HexToAddress(view.Account)

		username, err := c.registry.OwnerToUsername(ctx, account)
		if err != nil {
			return nil, fmt.Errorf("could not get username: %w", err)
		}
		view.Welcome = username
	}

	roots, err := c.registry.Roots(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not get roots: %w", err)
	}

	view.Roots = make([]RootCard, 0, len(roots))
	for i, root := range roots {
		view.Roots = append(view.Roots, c.rootCard(ctx, i, root, view.Account, account, view.Welcome))
	}

	view.Panel, err = OpenPanel(req.Panel, req.PanelRoot)
	if err != nil {
		return nil, err
	}

	if check := strings.TrimSpace(req.Check); check != "" {
		owner, err := c.registry.UsernameToOwner(ctx, check)
		if err != nil {
			return nil, fmt.Errorf("could not check username: %w", err)
		}
		view.NameCheck = &NameCheck{
			Username:   check,
			Owner:      owner,
			Registered: owner != (common.Address{}),
		}
	}

	return view, nil
}

func (c *Composer) rootCard(ctx context.Context, index int, root interfaces.Root, accountStr string, account common.Address, username string) RootCard {
	card := RootCard{
		Index:   index,
		Root:    root,
		Short:   interfaces.ShortRoot(root, 10),
		Notices: []Notice{},
	}

	claimsUnavailable := false
	if accountStr != "" {
		set, err := c.claims.ClaimsFor(ctx, root)
		switch {
		case err == nil:
			if claim, ok := set.Find(account); ok {
				card.Claim = claim
			}
		case errors.Is(err, claims.ErrNoClaimSet):
			// Periods without published claims list nobody.
		default:
			c.log.Warn("Could not load claims", "root", root.Hex(), "err", err)
			claimsUnavailable = true
		}
	}

	card.CanRegister = card.Claim != nil && username == ""

	if username == "" && card.Claim != nil {
		card.Notices = append(card.Notices, Notice{Kind: NoticeAction, Text: "You can register: " + card.Claim.Username})
	}
	if accountStr != "" && card.Claim == nil {
		if claimsUnavailable {
			card.Notices = append(card.Notices, Notice{Kind: NoticeAlert, Text: "Claims for this period are unavailable"})
		} else {
			card.Notices = append(card.Notices, Notice{Kind: NoticeAlert, Text: shortAccount(accountStr) + "... not found"})
		}
	}
	if username != "" {
		card.Notices = append(card.Notices, Notice{Kind: NoticeInfo, Text: "You are registered as " + username})
	}

	return card
}

// OpenPanel returns the side panel state for kind. Unknown or empty kinds close the panel.
func OpenPanel(kind PanelKind, root string) (Panel, error) {
	switch kind {
	case PanelRegister:
		parsed, err := interfaces.NewRootFromHex(root)
		if err != nil {
			return Panel{}, err
		}
		return Panel{
			Open:  true,
			Kind:  PanelRegister,
			Title: fmt.Sprintf("Register in period: %s", interfaces.ShortRoot(parsed, 7)),
			Root:  parsed,
		}, nil
	case PanelNewPeriod:
		return Panel{Open: true, Kind: PanelNewPeriod, Title: "New registration period"}, nil
	default:
		return Panel{}, nil
	}
}

func shortAccount(account string) string {
	if len(account) > 8 {
		return account[:8]
	}
	return account
}
