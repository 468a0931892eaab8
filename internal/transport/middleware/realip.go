package middleware

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// RealIP rewrites RemoteAddr from forwarding headers, but only when the TCP
// peer is one of trusted. X-Forwarded-For is walked right to left and the first
// hop that is not itself a trusted proxy wins, so a client cannot pick its own
// address by prepending hops. Requests from other peers pass through untouched.
func RealIP(trusted []netip.Prefix) func(http.Handler) http.Handler {
	isTrusted := func(addr netip.Addr) bool {
		addr = addr.Unmap()
		for _, p := range trusted {
			if p.Contains(addr) {
				return true
			}
		}
		return false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			peer, ok := remoteAddr(r.RemoteAddr)
			if !ok || !isTrusted(peer) {
				next.ServeHTTP(w, r)
				return
			}
			if ip, ok := forwardedClient(r.Header, isTrusted); ok {
				r.RemoteAddr = ip.String()
			}
			next.ServeHTTP(w, r)
		})
	}
}

func remoteAddr(s string) (netip.Addr, bool) {
	host, _, err := net.SplitHostPort(s)
	if err != nil {
		host = s
	}
	addr, err := netip.ParseAddr(host)
	return addr, err == nil
}

func forwardedClient(h http.Header, isTrusted func(netip.Addr) bool) (netip.Addr, bool) {
	var hops []netip.Addr
	for _, v := range h.Values("X-Forwarded-For") {
		for _, part := range strings.Split(v, ",") {
			addr, err := netip.ParseAddr(strings.TrimSpace(part))
			if err != nil {
				// A malformed hop ends the trusted chain.
				hops = hops[:0]
				continue
			}
			hops = append(hops, addr.Unmap())
		}
	}
	for i := len(hops) - 1; i >= 0; i-- {
		if !isTrusted(hops[i]) {
			return hops[i], true
		}
	}
	if len(hops) > 0 {
		return hops[0], true
	}
	if len(h.Values("X-Forwarded-For")) > 0 {
		return netip.Addr{}, false
	}
	if xr := strings.TrimSpace(h.Get("X-Real-IP")); xr != "" {
		if addr, err := netip.ParseAddr(xr); err == nil {
			return addr.Unmap(), true
		}
	}
	return netip.Addr{}, false
}
