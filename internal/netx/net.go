// Package netx classifies network failures so callers can decide whether a
// request is worth repeating.
package netx

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"syscall"
)

// IsTransient reports whether err looks like a temporary transport failure:
// timeouts, refused or reset connections, DNS hiccups and truncated responses.
// Context cancellation by the caller is not transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && (dnsErr.IsTemporary || dnsErr.IsTimeout)
}

// IsTransientStatus reports whether an HTTP status means the upstream could
// not be reached through a gateway rather than that it refused the request.
func IsTransientStatus(code int) bool {
	switch code {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
