package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
)

// hashValue returns a short, stable hash of value for log correlation
// without recording the value itself.
func hashValue(value string) string {
	if value == "" {
		return ""
	}

	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:8])
}

// hashClientAddr hashes the host part of a remote address. The port changes
// per connection and is dropped so one client hashes the same way.
func hashClientAddr(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	return hashValue(host)
}

// remoteIP is the peer address of the connection, ignoring forwarding headers.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
