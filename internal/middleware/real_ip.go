package middleware

import (
	"net/http"
	"net/netip"
	"strings"

	"github.com/automsp/portal-server-go/internal/audit"
)

// TrustedProxyMiddleware rewrites RemoteAddr from X-Forwarded-For or X-Real-IP,
// but only when the TCP peer is one of the trusted proxies. Requests from any
// other peer keep their socket address, so forwarded headers cannot move them
// into a fresh rate-limit bucket.
type TrustedProxyMiddleware struct {
	trusted []netip.Prefix
}

func NewTrustedProxyMiddleware(trusted []netip.Prefix) *TrustedProxyMiddleware {
	return &TrustedProxyMiddleware{trusted: trusted}
}

func (m *TrustedProxyMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if client, ok := m.clientAddr(r); ok {
			r.RemoteAddr = client.String()
		}
		next.ServeHTTP(w, r)
	})
}

// clientAddr walks X-Forwarded-For from the right and returns the first hop
// that is not a trusted proxy.
func (m *TrustedProxyMiddleware) clientAddr(r *http.Request) (netip.Addr, bool) {
	if len(m.trusted) == 0 {
		return netip.Addr{}, false
	}

	peer, err := netip.ParseAddr(audit.ClientIP(r))
	if err != nil || !m.isTrusted(peer) {
		return netip.Addr{}, false
	}

	var hops []string
	for _, v := range r.Header.Values("X-Forwarded-For") {
		hops = append(hops, strings.Split(v, ",")...)
	}

	var client netip.Addr
	for i := len(hops) - 1; i >= 0; i-- {
		addr, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
		if err != nil {
			break
		}
		client = addr.Unmap()
		if !m.isTrusted(client) {
			return client, true
		}
	}
	if client.IsValid() {
		return client, true
	}

	if addr, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return addr.Unmap(), true
	}
	return netip.Addr{}, false
}

func (m *TrustedProxyMiddleware) isTrusted(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range m.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
