package crawler

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/html/charset"

	"github.com/nao1215/spidercrab/internal/model"
)

// Fetcher retrieves a URL and classifies the result.
// Implementations must be safe for concurrent use.
type Fetcher interface {
	Fetch(ctx context.Context, url string) model.FetchOutcome
}

// Default fetcher settings.
const (
	DefaultTimeout     = 10 * time.Second
	DefaultUserAgent   = "spidercrab (+https://github.com/nao1215/spidercrab)"
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB
)

// maxDrainSize bounds how much of an unread body is discarded so the
// connection can be reused. Larger bodies close the connection instead.
const maxDrainSize = 64 * 1024

// HTTPFetcher fetches URLs over HTTP(S).
// It does a single GET per call and never retries.
type HTTPFetcher struct {
	// client performs the requests. Redirects are followed by the client.
	client *http.Client

	// userAgent is the User-Agent header to use.
	userAgent string

	// headers are added to every request.
	headers map[string]string

	// maxBodySize limits how many decoded bytes of an HTML body are kept.
	maxBodySize int64

	// limiter spaces requests per host. Nil disables it.
	limiter *HostLimiter

	logger *slog.Logger
}

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *HTTPFetcher) {
		f.client = client
	}
}

// WithTimeout sets the per-request timeout, including reading the body.
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *HTTPFetcher) {
		f.client.Timeout = d
	}
}

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *HTTPFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithHeaders adds extra request headers.
func WithHeaders(headers map[string]string) FetcherOption {
	return func(f *HTTPFetcher) {
		f.headers = headers
	}
}

// WithMaxBodySize sets the maximum number of body bytes read.
func WithMaxBodySize(size int64) FetcherOption {
	return func(f *HTTPFetcher) {
		f.maxBodySize = size
	}
}

// WithRateLimit limits requests per second per host. Zero disables limiting.
func WithRateLimit(perSecond float64) FetcherOption {
	return func(f *HTTPFetcher) {
		f.limiter = NewHostLimiter(perSecond)
	}
}

// WithFetcherLogger sets the logger.
func WithFetcherLogger(logger *slog.Logger) FetcherOption {
	return func(f *HTTPFetcher) {
		f.logger = logger
	}
}

// NewHTTPFetcher creates a fetcher with default settings.
func NewHTTPFetcher(opts ...FetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client:      &http.Client{Timeout: DefaultTimeout},
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch performs one GET request for rawURL.
//
// A 2xx response is a success. Its body is kept only when the media type is
// HTML, decoded to UTF-8. Any other status is an HTTP error, and a failure to
// connect or to read the body is a transport error.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) model.FetchOutcome {
	out := model.FetchOutcome{URL: rawURL, FinalURL: rawURL}

	if err := f.limiter.Wait(ctx, model.Host(rawURL)); err != nil {
		return transportError(out, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return transportError(out, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,*/*;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}

	f.logger.Debug("fetching", "url", rawURL, "headers", req.Header)

	resp, err := f.client.Do(req)
	if err != nil {
		return transportError(out, err)
	}
	defer closeBody(resp.Body)

	if resp.Request != nil && resp.Request.URL != nil {
		if final, err := model.NormalizeURL(resp.Request.URL.String()); err == nil {
			out.FinalURL = final
		}
	}

	out.Code = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		out.Status = model.StatusHTTPError
		return out
	}

	out.Status = model.StatusSuccess
	rawType := resp.Header.Get("Content-Type")
	out.ContentType = mediaType(rawType)
	if !isHTML(out.ContentType) {
		return out
	}

	body, err := f.readBody(resp, rawType)
	if err != nil {
		return transportError(out, err)
	}
	out.Body = body
	return out
}

// readBody decodes the content encoding, caps the size and converts the
// document to UTF-8.
func (f *HTTPFetcher) readBody(resp *http.Response, contentType string) ([]byte, error) {
	reader := io.Reader(resp.Body)

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if errors.Is(err, io.EOF) {
			return []byte{}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "deflate":
		fl := flate.NewReader(resp.Body)
		defer fl.Close()
		reader = fl
	}

	limited := io.LimitReader(reader, f.maxBodySize)
	utf8Reader, err := charset.NewReader(limited, contentType)
	if err != nil {
		return nil, fmt.Errorf("decode charset: %w", err)
	}
	body, err := io.ReadAll(utf8Reader)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if body == nil {
		body = []byte{}
	}
	return body, nil
}

// closeBody discards what is left of body, up to maxDrainSize, and closes it.
func closeBody(body io.ReadCloser) {
	//nolint:errcheck // best effort drain before close
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxDrainSize))
	_ = body.Close()
}

func transportError(out model.FetchOutcome, err error) model.FetchOutcome {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		err = uerr.Err
	}
	out.Status = model.StatusTransportError
	out.Code = 0
	out.Reason = err.Error()
	out.Body = nil
	return out
}

// mediaType strips parameters from a Content-Type value and lowercases it.
func mediaType(contentType string) string {
	mt, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

func isHTML(mt string) bool {
	return mt == "text/html" || mt == "application/xhtml+xml"
}
