package safefetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"montage/internal/config"
	"montage/internal/logging"
)

const defaultTimeout = 60 * time.Second

// Options bounds one fetch. Zero values fall back to safe defaults except
// MaxRedirects, where zero genuinely means "no redirects allowed".
type Options struct {
	Timeout      time.Duration
	MaxBytes     int64
	MaxRedirects int
}

// OptionsFromConfig translates the fetch config section into Options.
func OptionsFromConfig(cfg config.Fetch) Options {
	return Options{
		Timeout:      time.Duration(cfg.TimeoutSeconds) * time.Second,
		MaxBytes:     cfg.MaxBytes,
		MaxRedirects: cfg.MaxRedirects,
	}
}

func (o Options) normalized() Options {
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxRedirects < 0 {
		o.MaxRedirects = 0
	}
	return o
}

// Result is a successfully validated 2xx response. Body enforces the byte cap
// while streaming; Close releases the underlying connection and the fetch
// deadline.
type Result struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
	FinalURL      string
}

// Fetcher issues hardened downloads. Construct with New; the zero value is
// not usable.
type Fetcher struct {
	client   *http.Client
	resolver Resolver
	logger   *slog.Logger
}

// FetcherOption customizes construction, primarily for tests.
type FetcherOption func(*Fetcher)

// WithHTTPClient replaces the transport. The fetcher still disables the
// client's own redirect following.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithResolver replaces the DNS resolver used for host range checks.
func WithResolver(resolver Resolver) FetcherOption {
	return func(f *Fetcher) {
		if resolver != nil {
			f.resolver = resolver
		}
	}
}

// New constructs a Fetcher with redirects disabled at the transport level.
func New(logger *slog.Logger, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:   &http.Client{},
		resolver: net.DefaultResolver,
		logger:   logging.NewComponentLogger(logger, "safefetch"),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return f
}

// Fetch validates and downloads rawURL, following at most opts.MaxRedirects
// redirect hops, each re-validated from scratch. The returned Result's Body
// must be closed by the caller.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, opts Options) (*Result, error) {
	opts = opts.normalized()

	fetchCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	result, err := f.fetch(fetchCtx, rawURL, opts)
	if err != nil {
		cancel()
		return nil, err
	}
	// The deadline keeps covering the body stream; Close releases it.
	result.Body = &cancelReadCloser{ReadCloser: result.Body, cancel: cancel}
	return result, nil
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string, opts Options) (*Result, error) {
	budget := opts.MaxRedirects
	current := rawURL

	for {
		target, err := parseAndValidate(current)
		if err != nil {
			return nil, err
		}
		if err := checkResolvedHost(ctx, f.resolver, target.Hostname()); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
		}
		resp, err := f.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", target.Host, err)
		}

		if resp.StatusCode >= 300 && resp.StatusCode < 400 {
			location := resp.Header.Get("Location")
			drainAndClose(resp.Body)
			if location == "" {
				return nil, fmt.Errorf("%w: status %d from %s", ErrRedirectMissingLocation, resp.StatusCode, target.Host)
			}
			if budget <= 0 {
				return nil, fmt.Errorf("%w: budget of %d exhausted at %s", ErrTooManyRedirects, opts.MaxRedirects, target.Host)
			}
			budget--

			next, err := target.Parse(location)
			if err != nil {
				return nil, fmt.Errorf("%w: redirect target %q: %v", ErrInvalidURL, location, err)
			}
			f.logger.Debug("following redirect",
				logging.String("from", target.Redacted()),
				logging.String("to", next.Redacted()),
				logging.Int("remaining", budget))
			current = next.String()
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			drainAndClose(resp.Body)
			return nil, &UpstreamError{StatusCode: resp.StatusCode, URL: target.Redacted()}
		}

		if opts.MaxBytes > 0 && resp.ContentLength > opts.MaxBytes {
			drainAndClose(resp.Body)
			return nil, fmt.Errorf("%w: declared length %d exceeds cap %d", ErrSizeLimitExceeded, resp.ContentLength, opts.MaxBytes)
		}

		body := resp.Body
		if opts.MaxBytes > 0 {
			body = newCappedReader(body, opts.MaxBytes)
		}
		return &Result{
			Body:          body,
			ContentType:   resp.Header.Get("Content-Type"),
			ContentLength: resp.ContentLength,
			FinalURL:      target.String(),
		}, nil
	}
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.CopyN(io.Discard, body, 4096)
	_ = body.Close()
}

// cappedReader fails with ErrSizeLimitExceeded once more than max bytes have
// been transferred, guarding against absent or lying Content-Length headers.
type cappedReader struct {
	inner io.ReadCloser
	max   int64
	read  int64
}

func newCappedReader(inner io.ReadCloser, max int64) io.ReadCloser {
	return &cappedReader{inner: inner, max: max}
}

func (c *cappedReader) Read(p []byte) (int, error) {
	n, err := c.inner.Read(p)
	c.read += int64(n)
	if c.read > c.max {
		return n, fmt.Errorf("%w: transferred %d bytes with cap %d", ErrSizeLimitExceeded, c.read, c.max)
	}
	return n, err
}

func (c *cappedReader) Close() error {
	return c.inner.Close()
}

type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
