// Package security checks lesson locations before they are fetched.
package security

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

var (
	// ErrScheme is returned for anything other than http and https.
	ErrScheme = errors.New("lesson URL must use http or https")
	// ErrBlockedHost is returned when a URL points into an internal network.
	ErrBlockedHost = errors.New("lesson URL host is not reachable from this server")
)

// URLPolicy decides which remote lesson URLs may be fetched.
type URLPolicy struct {
	// AllowPrivate permits localhost and private, loopback and link-local
	// addresses. Only for development servers and tests.
	AllowPrivate bool
}

// blockedRanges classifies literal IPs; the first match names the reason.
var blockedRanges = []struct {
	reason string
	match  func(net.IP) bool
}{
	{"loopback", net.IP.IsLoopback},
	{"private", net.IP.IsPrivate},
	{"link-local", func(ip net.IP) bool { return ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() }},
	{"unspecified", net.IP.IsUnspecified},
}

// Check returns nil when rawURL may be fetched. Hostnames are not resolved;
// only "localhost" and literal addresses are classified.
func (p URLPolicy) Check(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse lesson URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: %q", ErrScheme, u.Scheme)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("lesson URL %q has no host", rawURL)
	}
	if p.AllowPrivate {
		return nil
	}

	if host == "localhost" || strings.HasSuffix(host, ".localhost") || host == "localhost.localdomain" {
		return fmt.Errorf("%w: %s is localhost", ErrBlockedHost, host)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return nil
	}
	for _, r := range blockedRanges {
		if r.match(ip) {
			return fmt.Errorf("%w: %s is a %s address", ErrBlockedHost, host, r.reason)
		}
	}
	return nil
}
