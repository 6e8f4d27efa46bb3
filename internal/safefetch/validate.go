package safefetch

import (
	"context"
	"fmt"
	"net/netip"
	"net/url"
	"strings"
)

// Resolver performs hostname resolution. *net.Resolver satisfies it; tests
// inject static fakes.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// disallowedRanges covers loopback, link-local, unique-local, multicast,
// broadcast, RFC 1918, CGNAT, benchmarking, and IETF reserved space. IPv4
// addresses mapped into IPv6 are unmapped before matching, so the v4 entries
// cover their ::ffff: equivalents too.
var disallowedRanges = func() []netip.Prefix {
	cidrs := []string{
		"0.0.0.0/8",
		"10.0.0.0/8",
		"100.64.0.0/10",
		"127.0.0.0/8",
		"169.254.0.0/16",
		"172.16.0.0/12",
		"192.0.0.0/24",
		"192.168.0.0/16",
		"198.18.0.0/15",
		"224.0.0.0/4",
		"240.0.0.0/4",
		"255.255.255.255/32",
		"::/128",
		"::1/128",
		"fc00::/7",
		"fe80::/10",
		"ff00::/8",
	}
	prefixes := make([]netip.Prefix, 0, len(cidrs))
	for _, cidr := range cidrs {
		prefixes = append(prefixes, netip.MustParsePrefix(cidr))
	}
	return prefixes
}()

func addrDisallowed(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, prefix := range disallowedRanges {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

func hostnameBlocked(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	if host == "local" || strings.HasSuffix(host, ".local") {
		return true
	}
	return false
}

// parseAndValidate applies the pre-network validation pipeline: URL shape,
// scheme, credentials, hostname blocklist, and literal-address range checks.
// DNS-backed checks run separately so redirect hops revalidate everything.
func parseAndValidate(rawURL string) (*url.URL, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidURL, rawURL, err)
	}
	switch parsed.Scheme {
	case "http", "https":
	default:
		return nil, fmt.Errorf("%w: %q", ErrDisallowedProtocol, parsed.Scheme)
	}
	if parsed.User != nil {
		return nil, fmt.Errorf("%w: embedded credentials", ErrInvalidURL)
	}
	host := parsed.Hostname()
	if host == "" {
		return nil, fmt.Errorf("%w: empty host", ErrInvalidURL)
	}
	if hostnameBlocked(host) {
		return nil, fmt.Errorf("%w: %q", ErrDisallowedHost, host)
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		if addrDisallowed(addr) {
			return nil, fmt.Errorf("%w: address %s is not public", ErrDisallowedHost, addr)
		}
	}
	return parsed, nil
}

// checkResolvedHost resolves host and applies the range checks to every
// returned address. Literal addresses skip resolution; they were already
// checked during parsing.
func checkResolvedHost(ctx context.Context, resolver Resolver, host string) error {
	if _, err := netip.ParseAddr(host); err == nil {
		return nil
	}
	addrs, err := resolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrResolutionFailed, host, err)
	}
	if len(addrs) == 0 {
		return fmt.Errorf("%w: %q returned no addresses", ErrResolutionFailed, host)
	}
	for _, addr := range addrs {
		if addrDisallowed(addr) {
			return fmt.Errorf("%w: %q resolves to non-public address %s", ErrDisallowedHost, host, addr)
		}
	}
	return nil
}
