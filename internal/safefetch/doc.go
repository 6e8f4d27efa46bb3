// Package safefetch downloads remote assets with server-side request forgery
// protections and bounded resource consumption.
//
// Every network round trip, including each redirect hop, passes the full
// validation pipeline first: scheme and credential checks, hostname
// blocklists, and private/special IP range checks applied both to literal
// addresses and to every address a hostname resolves to. Redirects are
// disabled at the transport level and re-validated manually, and byte caps
// are enforced against both the declared Content-Length and the actually
// transferred count.
//
// The fetcher never retries; callers compose a RetryPolicy around it.
package safefetch
