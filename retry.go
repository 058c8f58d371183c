package httpclient

import (
	"errors"
	"net/url"
	"strings"
	"syscall"
)

// Constants for classifying retry reasons.
const (
	RetryReasonServerError = "server_error"
	RetryReasonRateLimit   = "rate_limit"
	RetryReasonConnReset   = "conn_reset"
)

// connResetErrorStrings contains error substrings reported when the peer
// reset the connection. Used when the errno is lost in wrapping (TLS, proxies).
var connResetErrorStrings = []string{
	"connection reset by peer",
	"connection reset",
	"forcibly closed by the remote host",
}

// isConnectionReset checks if an error means the remote side reset the
// connection. Only these transport errors are retried.
func isConnectionReset(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	// Unwrap url.Error
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}

	errStr := err.Error()
	for _, s := range connResetErrorStrings {
		if strings.Contains(errStr, s) {
			return true
		}
	}

	return false
}

// isRetryableStatus reports the transient server errors retried with backoff.
func isRetryableStatus(status int) bool {
	switch status {
	case 500, 502, 503, 504:
		return true
	}
	return false
}
