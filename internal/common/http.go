package common

import (
	"net"
	"net/http"
	"net/netip"
)

// ClientIP returns the caller address from RemoteAddr. Proxy headers are
// resolved earlier by chi's RealIP middleware, which rewrites RemoteAddr.
// Anything that does not parse as an IP is returned unchanged.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if ap, err := netip.ParseAddrPort(r.RemoteAddr); err == nil {
		return ap.Addr().Unmap().String()
	}
	if addr, err := netip.ParseAddr(r.RemoteAddr); err == nil {
		return addr.Unmap().String()
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
