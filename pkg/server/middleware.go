package server

import (
	"net"
	"net/http"
	"strings"

	"github.com/RomainDECOSTER/scoutquest/pkg/config"
	"github.com/RomainDECOSTER/scoutquest/pkg/logger"
)

// ipRestriction enforces the optional CIDR allow/deny policy. The
// denied list has priority over the allowed list; an empty allowed
// list is a configuration error when the middleware is enabled (the
// caller validates that at construction, not here).
type ipRestriction struct {
	enabled           bool
	allowed           []*net.IPNet
	denied            []*net.IPNet
	rejectOnDeny      bool
	trustProxyHeaders bool
}

// newIPRestriction parses cfg into a ready middleware. Returns an error
// if any CIDR fails to parse, or if restrictions are enabled with an
// empty allow list.
func newIPRestriction(cfg config.NetworkConfig) (*ipRestriction, error) {
	if !cfg.Enabled {
		return &ipRestriction{enabled: false}, nil
	}

	allowed, err := parseCIDRs(cfg.AllowedCIDRs)
	if err != nil {
		return nil, err
	}
	if len(allowed) == 0 {
		return nil, errInvalidNetworkConfig("allowed_cidrs cannot be empty when network restrictions are enabled")
	}
	denied, err := parseCIDRs(cfg.DeniedCIDRs)
	if err != nil {
		return nil, err
	}

	return &ipRestriction{
		enabled:           true,
		allowed:           allowed,
		denied:            denied,
		rejectOnDeny:      strings.EqualFold(cfg.DenyAction, "reject"),
		trustProxyHeaders: cfg.TrustProxyHeaders,
	}, nil
}

func parseCIDRs(raw []string) ([]*net.IPNet, error) {
	out := make([]*net.IPNet, 0, len(raw))
	for _, s := range raw {
		_, network, err := net.ParseCIDR(s)
		if err != nil {
			return nil, errInvalidNetworkConfig("invalid CIDR " + s)
		}
		out = append(out, network)
	}
	return out, nil
}

func (m *ipRestriction) Middleware(next http.Handler) http.Handler {
	if !m.enabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := m.clientIP(r)
		if !m.isAllowed(ip) {
			if m.rejectOnDeny {
				logger.L().WarnContext(r.Context(), "access denied by CIDR policy", "ip", ip)
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			logger.L().WarnContext(r.Context(), "access would be denied (log_only)", "ip", ip)
		}
		next.ServeHTTP(w, r)
	})
}

func (m *ipRestriction) clientIP(r *http.Request) net.IP {
	if m.trustProxyHeaders {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first := strings.TrimSpace(strings.Split(xff, ",")[0])
			if ip := net.ParseIP(first); ip != nil {
				return ip
			}
		}
		if real := r.Header.Get("X-Real-IP"); real != "" {
			if ip := net.ParseIP(strings.TrimSpace(real)); ip != nil {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return net.ParseIP(host)
}

func (m *ipRestriction) isAllowed(ip net.IP) bool {
	if ip == nil {
		return false
	}
	for _, denied := range m.denied {
		if denied.Contains(ip) {
			return false
		}
	}
	for _, allowed := range m.allowed {
		if allowed.Contains(ip) {
			return true
		}
	}
	return false
}

// apiKeyAuth rejects requests missing the configured static API key in
// the X-API-Key header. A blank key disables the check entirely.
// /health is always exempt, so load balancers and orchestrators can
// probe liveness without a key.
func apiKeyAuth(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}
			if r.Header.Get("X-API-Key") != key {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// cors applies the configured origin policy. "*" in origins means any
// origin is accepted.
func cors(enabled bool, origins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		anyOrigin := containsStar(origins)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case anyOrigin:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case containsString(origins, origin):
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func containsStar(origins []string) bool {
	return containsString(origins, "*")
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
