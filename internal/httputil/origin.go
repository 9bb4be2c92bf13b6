package httputil

import (
	"net/url"
	"strings"
)

// OriginPolicy decides which browser origins may call the API.
type OriginPolicy struct {
	allowed    map[string]bool
	allowLocal bool
}

// NewOriginPolicy builds a policy from an allow list. allowLocal admits
// localhost and 127.0.0.1 on any port.
func NewOriginPolicy(allowed []string, allowLocal bool) *OriginPolicy {
	p := &OriginPolicy{allowed: make(map[string]bool), allowLocal: allowLocal}
	for _, o := range allowed {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "" {
			continue
		}
		p.allowed[o] = true
	}
	return p
}

func (p *OriginPolicy) IsAllowed(origin string) bool {
	if origin == "" {
		return false
	}
	if p.allowed[origin] {
		return true
	}
	return p.allowLocal && isLocalOrigin(origin)
}

func isLocalOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1"
}
