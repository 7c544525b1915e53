package client

import (
	"net"
	"regexp"
	"strings"
)

// DefaultBackendPort is the port the sync backend listens on when the
// frontend is served from a plain deployment host.
const DefaultBackendPort = "8080"

// Hosts where the page origin itself proxies the sync endpoint, so the
// socket connects back to the page host as-is (dev servers proxy /ws).
var localDevHosts = map[string]struct{}{
	"localhost": {},
	"127.0.0.1": {},
	"::1":       {},
}

// Tunnel services terminate TLS on 443 and forward to the backend, so no
// explicit port is appended for them either.
var tunnelHostPattern = regexp.MustCompile(`(?i)(\.ngrok(-free)?\.app|\.trycloudflare\.com|\.loca\.lt)$`)

// Endpoint derives the sync WebSocket URL from the page host. The scheme
// upgrades to wss when the page is served securely. Local dev aliases and
// tunnel hostnames keep the page host untouched; any other host gets the
// fixed backend port.
func Endpoint(pageHost string, secure bool) string {
	scheme := "ws"
	if secure {
		scheme = "wss"
	}

	hostname := pageHost
	if h, _, err := net.SplitHostPort(pageHost); err == nil {
		hostname = h
	}
	hostname = strings.Trim(hostname, "[]")

	if _, ok := localDevHosts[hostname]; ok || tunnelHostPattern.MatchString(hostname) {
		return scheme + "://" + pageHost + "/ws"
	}
	return scheme + "://" + net.JoinHostPort(hostname, DefaultBackendPort) + "/ws"
}
