package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ligustah/blobstream/pkg/chunked"
)

// Common errors. A *StatusError matches the sentinel for its code with
// errors.Is.
var (
	ErrRangeNotSupported = errors.New("http: server does not support range requests")
	ErrNotFound          = fmt.Errorf("http: %w", chunked.ErrNotFound)
	ErrForbidden         = errors.New("http: access forbidden")
	ErrUnauthorized      = errors.New("http: unauthorized")
	ErrServerError       = errors.New("http: server error")
	ErrUnknownSize       = errors.New("http: server did not report a content length")
	ErrObjectChanged     = errors.New("http: object changed during download")
)

// StatusError is a response with a status the client does not accept.
type StatusError struct {
	Method string
	URL    string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.Code, http.StatusText(e.Code))
}

func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrNotFound, chunked.ErrNotFound:
		return e.Code == http.StatusNotFound || e.Code == http.StatusGone
	case ErrForbidden:
		return e.Code == http.StatusForbidden
	case ErrUnauthorized:
		return e.Code == http.StatusUnauthorized
	case ErrRangeNotSupported:
		return e.Code == http.StatusRequestedRangeNotSatisfiable
	case ErrObjectChanged:
		return e.Code == http.StatusPreconditionFailed
	case ErrServerError:
		return e.Code >= 500
	}
	return false
}

// Options configures the HTTP client.
type Options struct {
	// MaxIdleConnsPerHost sets the maximum idle connections per host.
	// Default: 100
	MaxIdleConnsPerHost int

	// Timeout for individual requests.
	// Default: 30s
	Timeout time.Duration

	// RetryAttempts is the number of retries after the first attempt.
	// Default: 5
	RetryAttempts int

	// RetryBackoff is the delay before the first retry.
	// Default: 1s
	RetryBackoff time.Duration

	// RetryMaxBackoff caps the retry delay.
	// Default: 30s
	RetryMaxBackoff time.Duration

	// Header is added to every request, e.g. Authorization.
	Header http.Header

	// UserAgent defaults to "blobstream".
	UserAgent string

	// PinETag sends If-Match with range requests once the object's strong
	// ETag is known, so a replaced object fails with ErrObjectChanged
	// instead of yielding a mix of two versions.
	PinETag bool
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxIdleConnsPerHost: 100,
		Timeout:             30 * time.Second,
		RetryAttempts:       5,
		RetryBackoff:        time.Second,
		RetryMaxBackoff:     30 * time.Second,
		UserAgent:           "blobstream",
		PinETag:             true,
	}
}

// Metadata describes a remote object as reported by HEAD.
type Metadata struct {
	Size          int64 // -1 when the server sent no Content-Length
	ETag          string
	AcceptsRanges bool
	LastModified  time.Time
}

// StrongETag returns the ETag if it is usable with If-Match.
func (m *Metadata) StrongETag() (string, bool) {
	if m.ETag == "" || strings.HasPrefix(m.ETag, "W/") {
		return "", false
	}
	return m.ETag, true
}

// Client is an HTTP client for ranged reads of large files.
type Client struct {
	client *http.Client
	opts   Options
}

// NewClient creates a new HTTP client with the given options.
func NewClient(opts Options) *Client {
	if opts.UserAgent == "" {
		opts.UserAgent = "blobstream"
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: opts.MaxIdleConnsPerHost,
		MaxIdleConns:        opts.MaxIdleConnsPerHost * 2,
		IdleConnTimeout:     90 * time.Second,
		DisableCompression:  true, // ranges address the raw bytes
	}

	return &Client{
		client: &http.Client{Transport: transport, Timeout: opts.Timeout},
		opts:   opts,
	}
}

// Stat issues a HEAD request for url.
func (c *Client) Stat(ctx context.Context, url string) (*Metadata, error) {
	resp, err := c.do(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, err
	}
	resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, &StatusError{Method: http.MethodHead, URL: url, Code: resp.StatusCode}
	}

	md := &Metadata{
		Size:          resp.ContentLength,
		ETag:          resp.Header.Get("ETag"),
		AcceptsRanges: resp.Header.Get("Accept-Ranges") == "bytes",
	}
	if lm, err := http.ParseTime(resp.Header.Get("Last-Modified")); err == nil {
		md.LastModified = lm
	}
	return md, nil
}

// ReadRange fetches the inclusive byte range [first, last] of url. A
// non-empty ifMatch is sent as If-Match.
func (c *Client) ReadRange(ctx context.Context, url string, first, last int64, ifMatch string) ([]byte, error) {
	header := http.Header{}
	header.Set("Range", fmt.Sprintf("bytes=%d-%d", first, last))
	if ifMatch != "" {
		header.Set("If-Match", ifMatch)
	}

	resp, err := c.do(ctx, http.MethodGet, url, header)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusPartialContent:
	case http.StatusOK:
		// A 200 without Content-Range is the whole object.
		if resp.Header.Get("Content-Range") == "" {
			return nil, fmt.Errorf("%w: %s", ErrRangeNotSupported, url)
		}
	default:
		return nil, &StatusError{Method: http.MethodGet, URL: url, Code: resp.StatusCode}
	}

	if h := resp.Header.Get("Content-Range"); h != "" {
		cr, err := parseContentRange(h)
		if err != nil {
			return nil, err
		}
		if cr.first != first {
			return nil, fmt.Errorf("server returned range starting at %d, want %d", cr.first, first)
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read range %d-%d: %w", first, last, err)
	}
	return data, nil
}

// do sends a request, retrying transport failures and 5xx responses. Any
// other response is returned for the caller to inspect.
func (c *Client) do(ctx context.Context, method, url string, header http.Header) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.opts.RetryAttempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, c.retryDelay(attempt)); err != nil {
				return nil, err
			}
		}

		req, err := c.newRequest(ctx, method, url, header)
		if err != nil {
			return nil, err
		}

		resp, err := c.client.Do(req)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			lastErr = fmt.Errorf("%s %s: %w", method, url, err)
		case resp.StatusCode >= 500:
			resp.Body.Close()
			lastErr = &StatusError{Method: method, URL: url, Code: resp.StatusCode}
		default:
			return resp, nil
		}
	}

	if c.opts.RetryAttempts == 0 {
		return nil, lastErr
	}
	return nil, fmt.Errorf("failed after %d attempts: %w", c.opts.RetryAttempts+1, lastErr)
}

func (c *Client) newRequest(ctx context.Context, method, url string, header http.Header) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range c.opts.Header {
		req.Header[k] = v
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	return req, nil
}

// retryDelay doubles RetryBackoff per attempt up to RetryMaxBackoff and
// scales the result by a random factor in [0.5, 1.5).
func (c *Client) retryDelay(attempt int) time.Duration {
	d := c.opts.RetryMaxBackoff
	if attempt-1 < 62 {
		if b := c.opts.RetryBackoff << uint(attempt-1); b > 0 && (d <= 0 || b < d) {
			d = b
		}
	}
	return time.Duration(float64(d) * (0.5 + rand.Float64()))
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// contentRange is a parsed "bytes first-last/total" header. total is -1
// for "*".
type contentRange struct {
	first, last, total int64
}

func parseContentRange(h string) (contentRange, error) {
	invalid := fmt.Errorf("invalid Content-Range %q", h)

	rest, ok := strings.CutPrefix(h, "bytes ")
	if !ok {
		return contentRange{}, invalid
	}
	rng, total, ok := strings.Cut(rest, "/")
	if !ok {
		return contentRange{}, invalid
	}
	first, last, ok := strings.Cut(rng, "-")
	if !ok {
		return contentRange{}, invalid
	}

	var cr contentRange
	var err error
	if cr.first, err = strconv.ParseInt(first, 10, 64); err != nil {
		return contentRange{}, invalid
	}
	if cr.last, err = strconv.ParseInt(last, 10, 64); err != nil {
		return contentRange{}, invalid
	}
	if cr.last < cr.first {
		return contentRange{}, invalid
	}

	cr.total = -1
	if total != "*" {
		if cr.total, err = strconv.ParseInt(total, 10, 64); err != nil {
			return contentRange{}, invalid
		}
	}
	return cr, nil
}
