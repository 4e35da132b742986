// Package datasource fetches and normalizes Korean equity data scraped from
// public pages: the KRX corporate listing and Naver Finance detail, daily
// price and popular-search pages. It also provides headline search and an
// aggregator that runs the lookup pipeline end to end.
package datasource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html/charset"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/time/rate"

	"github.com/seenimoa/kstock/internal/logging"
	"github.com/seenimoa/kstock/internal/metrics"
)

// --- Sentinel errors ---

// ErrTickerNotFound is returned when no listed security matches a query.
// It is an expected outcome, not a failure.
var ErrTickerNotFound = fmt.Errorf("ticker not found")

// ErrFetchFailed marks transport-level failures reaching an origin document.
var ErrFetchFailed = fmt.Errorf("fetch failed")

// ErrExtractionFailed is returned when a detail page could not be fetched or
// holds nothing that looks like a quote.
var ErrExtractionFailed = fmt.Errorf("extraction failed")

// FetchError describes a failed origin request. It matches ErrFetchFailed
// under errors.Is.
type FetchError struct {
	URL        string
	StatusCode int // 0 when no response was received
	Status     string
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("GET %s: HTTP %s", e.URL, e.Status)
	}
	return fmt.Sprintf("GET %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is reports whether target is ErrFetchFailed.
func (e *FetchError) Is(target error) bool { return target == ErrFetchFailed }

// Describe maps an error to the user-facing message for its kind.
func Describe(err error) string {
	var fe *FetchError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTickerNotFound):
		return "no listed security matches that name"
	case errors.Is(err, ErrExtractionFailed):
		return "the quote page could not be read; the page may be unreachable or its format may have changed"
	case errors.As(err, &fe) && fe.StatusCode != 0:
		return fmt.Sprintf("the data source answered %s; try again later", fe.Status)
	case errors.Is(err, ErrFetchFailed):
		return "network problem reaching the data source"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "the request timed out"
	default:
		return err.Error()
	}
}

// Document kinds, used to label fetch metrics and logs.
const (
	DocListing = "listing"
	DocDetail  = "detail"
	DocDaily   = "daily"
	DocPopular = "popular"
	DocNews    = "news"
)

// --- Shared HTTP fetcher ---

// DefaultUserAgent is the user agent string used for HTTP requests.
// The origin sites reject requests without a browser-like identity.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// DefaultRateLimit is the request rate when none is configured.
const DefaultRateLimit = 5 // requests per second

// Fetcher issues identified GET requests and returns UTF-8 document bytes.
// It is safe for concurrent use.
type Fetcher struct {
	client    *http.Client
	userAgent string
	limiter   *rate.Limiter
	metrics   *metrics.Metrics
	log       *logrus.Entry
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithUserAgent overrides the identifying header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithTimeout sets an overall request timeout. Zero or less keeps the
// transport default, which has none beyond dial and TLS handshake limits.
func WithTimeout(timeout time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if timeout > 0 {
			f.client.Timeout = timeout
		}
	}
}

// WithRateLimit sets the request rate. Zero or less disables limiting.
func WithRateLimit(requestsPerSecond int) FetcherOption {
	return func(f *Fetcher) {
		if requestsPerSecond <= 0 {
			f.limiter = nil
			return
		}
		f.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithMetrics records every fetch on m.
func WithMetrics(m *metrics.Metrics) FetcherOption {
	return func(f *Fetcher) { f.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(log *logrus.Entry) FetcherOption {
	return func(f *Fetcher) {
		if log != nil {
			f.log = log
		}
	}
}

// WithHTTPClient replaces the underlying client (tests).
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// NewFetcher creates a fetcher with a cookie jar, the default browser
// identity and a modest rate limit.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	f := &Fetcher{
		client:    &http.Client{Jar: jar},
		userAgent: DefaultUserAgent,
		limiter:   rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		log:       logging.Discard(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch performs one GET and returns the body transcoded to UTF-8.
// There are no retries: any transport error or non-2xx status is returned
// as a *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, kind, url string) ([]byte, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, &FetchError{URL: url, Err: err}
		}
	}

	start := time.Now()
	body, err := f.doGet(ctx, url)
	elapsed := time.Since(start)

	log := f.log.WithFields(logrus.Fields{"document": kind, "url": url, "elapsed": elapsed})
	if err != nil {
		f.metrics.ObserveFetch(kind, metrics.OutcomeError, elapsed)
		log.WithError(err).Warn("fetch failed")
		return nil, err
	}
	f.metrics.ObserveFetch(kind, metrics.OutcomeOK, elapsed)
	log.WithField("bytes", len(body)).Debug("fetched")
	return body, nil
}

// Document fetches url and parses it as HTML.
func (f *Fetcher) Document(ctx context.Context, kind, url string) (*goquery.Document, error) {
	body, err := f.Fetch(ctx, kind, url)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s HTML: %w", kind, err)
	}
	return doc, nil
}

func (f *Fetcher) doGet(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("create request: %w", err)}
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ko-KR,ko;q=0.9,en-US;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}
	return toUTF8(raw, resp.Header.Get("Content-Type"))
}

// toUTF8 transcodes a body using the declared or sniffed charset. Bodies that
// declare nothing and are not valid UTF-8 are taken to be EUC-KR, which is
// what the Korean origins serve.
func toUTF8(raw []byte, contentType string) ([]byte, error) {
	enc, name, certain := charset.DetermineEncoding(raw, contentType)
	if !certain && name == "windows-1252" {
		if utf8.Valid(raw) {
			return raw, nil
		}
		enc, name = korean.EUCKR, "euc-kr"
	}
	if name == "utf-8" {
		return raw, nil
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s body: %w", name, err)
	}
	return out, nil
}
