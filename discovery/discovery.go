package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/ruteri/username-registry/interfaces"
)

// TXTPrefix marks the TXT string carrying the registry address.
const TXTPrefix = "username-registry="

// DefaultServer is used when no resolv.conf is available.
const DefaultServer = "127.0.0.53:53"

var (
	ErrNoRecord       = errors.New("no registry TXT record")
	ErrInvalidRecord  = errors.New("invalid registry TXT record")
	ErrLookupRejected = errors.New("dns lookup rejected")
)

// Resolver looks up the registry contract address published under a domain.
type Resolver struct {
	server string
	client *dns.Client
}

// NewResolver creates a resolver querying server (host:port). An empty server
// selects the first nameserver from /etc/resolv.conf.
func NewResolver(server string, timeout time.Duration) *Resolver {
	if server == "" {
		server = SystemServer()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Resolver{
		server: server,
		client: &dns.Client{Net: "udp", Timeout: timeout},
	}
}

// SystemServer returns the first nameserver configured in /etc/resolv.conf.
func SystemServer() string {
	conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(conf.Servers) == 0 {
		return DefaultServer
	}
	return net.JoinHostPort(conf.Servers[0], conf.Port)
}

// ResolveContract returns the registry address from the TXT records of domain.
// The record is either "username-registry=0x<address>" or a bare address.
func (r *Resolver) ResolveContract(ctx context.Context, domain string) (interfaces.ContractAddress, error) {
	records, err := r.lookupTXT(ctx, domain)
	if err != nil {
		return interfaces.ContractAddress{}, err
	}

	var bare []string
	for _, record := range records {
		if value, ok := strings.CutPrefix(record, TXTPrefix); ok {
			return parseAddress(value)
		}
		bare = append(bare, record)
	}

	for _, record := range bare {
		if addr, err := parseAddress(record); err == nil {
			return addr, nil
		}
	}

	return interfaces.ContractAddress{}, fmt.Errorf("%w: %s", ErrNoRecord, domain)
}

func (r *Resolver) lookupTXT(ctx context.Context, domain string) ([]string, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(domain), dns.TypeTXT)
	m.RecursionDesired = true

	in, _, err := r.client.ExchangeContext(ctx, m, r.server)
	if err != nil {
		return nil, fmt.Errorf("dns exchange with %s failed: %w", r.server, err)
	}

	switch in.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return nil, fmt.Errorf("%w: %s", ErrNoRecord, domain)
	default:
		return nil, fmt.Errorf("%w: %s", ErrLookupRejected, dns.RcodeToString[in.Rcode])
	}

	var records []string
	for _, answer := range in.Answer {
		if txt, ok := answer.(*dns.TXT); ok {
			records = append(records, strings.Join(txt.Txt, ""))
		}
	}
	return records, nil
}

func parseAddress(value string) (interfaces.ContractAddress, error) {
	addr, err := interfaces.NewContractAddressFromHex(strings.TrimSpace(value))
	if err != nil {
		return interfaces.ContractAddress{}, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	return addr, nil
}
