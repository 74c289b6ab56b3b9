package util

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP resolves the caller address for rate limiting. Forwarded headers
// are honored only when the direct peer is loopback, which covers a reverse
// proxy on the same host without letting remote clients spoof their address.
func ClientIP(r *http.Request) string {
	remote := parseRemoteIP(r.RemoteAddr)
	if remote == nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	if !remote.IsLoopback() {
		return remote.String()
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		// The first hop in the chain is the original client.
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if ip := net.ParseIP(first); ip != nil {
			return ip.String()
		}
	}
	if real := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); real != nil {
		return real.String()
	}
	return remote.String()
}

func parseRemoteIP(addr string) net.IP {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return net.ParseIP(host)
	}
	return net.ParseIP(addr)
}
