package httpx

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the caller address without port. It relies on
// chi's RealIP middleware having normalised RemoteAddr.
func ClientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
