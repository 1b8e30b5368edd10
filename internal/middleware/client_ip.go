package middleware

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP extracts the caller's address, preferring proxy headers
func ClientIP(r *http.Request) string {
	// Check for IP in various headers (in order of preference)
	headers := []string{
		"CF-Connecting-IP", // Cloudflare
		"X-Forwarded-For",  // Standard proxy header
		"X-Real-IP",        // Nginx proxy
	}

	for _, header := range headers {
		value := r.Header.Get(header)
		if value == "" {
			continue
		}
		// X-Forwarded-For can contain multiple IPs, take the first one
		if first := strings.TrimSpace(strings.Split(value, ",")[0]); first != "" {
			return first
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
