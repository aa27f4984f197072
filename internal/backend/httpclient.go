package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/http2"

	"github.com/chaz8081/whisperclip/internal/errs"
)

const userAgent = "whisperclip/1.0"

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 4 << 20

// newHTTPClient builds the shared client for the remote backends. No
// client-level timeout is set: the per-request context carries the
// deadline.
func newHTTPClient() *http.Client {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   15 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		MaxIdleConns:          8,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	// Speak HTTP/2 where the server supports it, HTTP/1.1 otherwise.
	_ = http2.ConfigureTransport(tr)
	return &http.Client{Transport: tr}
}

// classifyTransportError maps a failed round trip into the taxonomy.
// Cancellation passes through unclassified so callers can tell a reset
// or shutdown apart from a real failure.
func classifyTransportError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.E(errs.Timeout, op, "transcription timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errs.E(errs.Timeout, op, "transcription timed out", err)
	}
	return errs.E(errs.Network, op, "cannot reach transcription api", err)
}

// statusKind maps an HTTP status to a taxonomy kind and hint.
func statusKind(status int) (errs.Kind, string) {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errs.Auth, "api key rejected"
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return errs.Timeout, "transcription timed out"
	case status == http.StatusTooManyRequests || status >= 500:
		return errs.Unavailable, "service unavailable"
	default:
		return errs.Unavailable, fmt.Sprintf("unexpected status %d", status)
	}
}

// classifyStatus maps a non-200 response into the taxonomy, keeping a
// body snippet for the log.
func classifyStatus(op string, status int, body []byte) error {
	kind, hint := statusKind(status)
	return errs.E(kind, op, hint, fmt.Errorf("status %d: %s", status, snippet(body)))
}

// snippet truncates a response body for embedding in error detail.
func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	if s == "" {
		s = "<empty body>"
	}
	return s
}
