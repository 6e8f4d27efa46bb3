package safefetch

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidURL marks URLs that fail to parse or embed credentials.
	ErrInvalidURL = errors.New("invalid url")
	// ErrDisallowedProtocol marks schemes other than http and https.
	ErrDisallowedProtocol = errors.New("disallowed protocol")
	// ErrDisallowedHost marks targets in private, loopback, or otherwise
	// special address ranges, and blocklisted hostnames.
	ErrDisallowedHost = errors.New("disallowed host")
	// ErrResolutionFailed marks hostnames that resolve to zero addresses.
	ErrResolutionFailed = errors.New("hostname resolution failed")
	// ErrTooManyRedirects marks exhaustion of the redirect budget.
	ErrTooManyRedirects = errors.New("too many redirects")
	// ErrRedirectMissingLocation marks 3xx responses without a Location header.
	ErrRedirectMissingLocation = errors.New("redirect missing location")
	// ErrSizeLimitExceeded marks transfers that exceed the byte cap, whether
	// declared up front or discovered while streaming.
	ErrSizeLimitExceeded = errors.New("size limit exceeded")
)

// UpstreamError reports a non-2xx final response. It is the only fetch
// failure a caller may reasonably retry.
type UpstreamError struct {
	StatusCode int
	URL        string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d for %s", e.StatusCode, e.URL)
}

// Retryable reports whether a fetch error is worth retrying. Validation
// failures are final; upstream 5xx and 429 responses and transport-level
// errors are transient.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	for _, sentinel := range []error{
		ErrInvalidURL,
		ErrDisallowedProtocol,
		ErrDisallowedHost,
		ErrResolutionFailed,
		ErrTooManyRedirects,
		ErrRedirectMissingLocation,
		ErrSizeLimitExceeded,
	} {
		if errors.Is(err, sentinel) {
			return false
		}
	}
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream.StatusCode >= 500 || upstream.StatusCode == 429
	}
	return true
}
