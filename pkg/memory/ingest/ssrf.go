package ingest

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/hsgraph/hsg/pkg/memory/model"
)

// blockedCIDRs enumerates the private/loopback/link-local ranges §4.7
// requires URL ingestion to reject, grounded on the CIDR-table pattern used
// for internal-network gating in the pack's relay server.
var blockedCIDRs []*net.IPNet

func init() {
	for _, cidr := range []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"169.254.0.0/16",
		"127.0.0.0/8",
		"::1/128",
		"fc00::/7",
	} {
		_, network, err := net.ParseCIDR(cidr)
		if err == nil {
			blockedCIDRs = append(blockedCIDRs, network)
		}
	}
}

func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedCIDRs {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

const fetchTimeout = 30 * time.Second

// FetchURL enforces the SSRF protections from §4.7: only http(s), reject
// literal private/loopback/link-local addresses, resolve hostnames and
// re-check every resolved address, fail closed on DNS errors.
func FetchURL(ctx context.Context, rawURL string) (string, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", model.NewError(model.InvalidRequest, "ingest", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", "", model.NewError(model.SsrfBlocked, "ingest", fmt.Errorf("scheme %q not allowed", u.Scheme))
	}
	host := u.Hostname()
	if host == "" {
		return "", "", model.NewError(model.InvalidRequest, "ingest", fmt.Errorf("missing host"))
	}

	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return "", "", model.NewError(model.SsrfBlocked, "ingest", fmt.Errorf("literal address %s is blocked", host))
		}
	} else {
		resolver := net.DefaultResolver
		addrs, err := resolver.LookupIPAddr(ctx, host)
		if err != nil {
			return "", "", model.NewError(model.SsrfBlocked, "ingest", fmt.Errorf("dns resolution failed, failing closed: %w", err))
		}
		if len(addrs) == 0 {
			return "", "", model.NewError(model.SsrfBlocked, "ingest", fmt.Errorf("no addresses resolved for %s", host))
		}
		for _, addr := range addrs {
			if isBlockedIP(addr.IP) {
				return "", "", model.NewError(model.SsrfBlocked, "ingest", fmt.Errorf("resolved address %s is blocked", addr.IP))
			}
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", "", model.NewError(model.Internal, "ingest", err)
	}
	client := &http.Client{Timeout: fetchTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return "", "", model.NewError(model.ProviderFailure, "ingest", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", "", model.NewError(model.ProviderFailure, "ingest", fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode))
	}
	body := make([]byte, 0, 64*1024)
	buf := make([]byte, 32*1024)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			body = append(body, buf[:n]...)
		}
		if readErr != nil {
			break
		}
	}
	return string(body), resp.Header.Get("Content-Type"), nil
}
