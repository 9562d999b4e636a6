package middleware

import (
	"log/slog"
	"net/http"
	"net/http/pprof"
	"net/netip"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/Ivanjochie0/luxuryproducts-cart/pkg/httputil"
)

// MountPprof serves the runtime profiles under /debug/pprof to peers inside
// allowedCIDRs. With no CIDRs nothing is mounted and the path is a 404.
func MountPprof(r chi.Router, allowedCIDRs []string, logger *slog.Logger) {
	if len(allowedCIDRs) == 0 {
		return
	}

	debug := chi.NewRouter()
	debug.Use(IPAllowlist(allowedCIDRs, logger))
	debug.Get("/cmdline", pprof.Cmdline)
	debug.Get("/profile", pprof.Profile)
	debug.HandleFunc("/symbol", pprof.Symbol)
	debug.Get("/trace", pprof.Trace)
	// Index also serves the named profiles: heap, goroutine, allocs...
	debug.Get("/*", pprof.Index)
	r.Mount("/debug/pprof", debug)
}

// IPAllowlist answers 403 to a peer outside every prefix. Only the TCP peer
// address is checked; forwarding headers are ignored. Entries that do not
// parse are logged and dropped.
func IPAllowlist(cidrs []string, logger *slog.Logger) func(http.Handler) http.Handler {
	var prefixes []netip.Prefix
	for _, cidr := range cidrs {
		p, err := netip.ParsePrefix(cidr)
		if err != nil {
			logger.Warn("ignoring allowlist entry", slog.String("cidr", cidr), slog.String("error", err.Error()))
			continue
		}
		prefixes = append(prefixes, p.Masked())
	}

	permits := func(peer string) bool {
		addr, err := netip.ParseAddr(peer)
		if err != nil {
			return false
		}
		addr = addr.Unmap()
		return slices.ContainsFunc(prefixes, func(p netip.Prefix) bool { return p.Contains(addr) })
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if peer := PeerIP(r); !permits(peer) {
				logger.WarnContext(r.Context(), "debug endpoint refused",
					slog.String("peer", peer),
					slog.String("path", r.URL.Path),
				)
				httputil.WriteJSON(w, http.StatusForbidden, httputil.Response{
					Error: &httputil.ErrorResponse{Code: "FORBIDDEN", Message: "not allowed from this address"},
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
