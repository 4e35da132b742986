package datasource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/korean"

	"github.com/seenimoa/kstock/internal/metrics"
)

// --- Fixture helpers shared by the package tests ---

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return b
}

func eucKR(t *testing.T, b []byte) []byte {
	t.Helper()
	out, err := korean.EUCKR.NewEncoder().Bytes(b)
	require.NoError(t, err)
	return out
}

// serveEUCKR serves a fixture the way the Korean origins do.
func serveEUCKR(t *testing.T, name string) http.HandlerFunc {
	body := eucKR(t, fixture(t, name))
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html;charset=EUC-KR")
		_, _ = w.Write(body)
	}
}

func serveStatus(code int) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, http.StatusText(code), code)
	}
}

func testFetcher(opts ...FetcherOption) *Fetcher {
	return NewFetcher(append([]FetcherOption{WithRateLimit(0)}, opts...)...)
}

// --- Fetcher ---

func TestFetchSendsBrowserHeaders(t *testing.T) {
	var ua, lang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		lang = r.Header.Get("Accept-Language")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	f := testFetcher(WithUserAgent("kstock-test/1.0"))
	body, err := f.Fetch(context.Background(), DocDetail, srv.URL)
	require.NoError(t, err)
	assert.Contains(t, string(body), "ok")
	assert.Equal(t, "kstock-test/1.0", ua)
	assert.Contains(t, lang, "ko-KR")
}

func TestFetchDefaultUserAgent(t *testing.T) {
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	_, err := testFetcher().Fetch(context.Background(), DocDetail, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, DefaultUserAgent, ua)
}

func TestFetchNon2xxIsFetchError(t *testing.T) {
	srv := httptest.NewServer(serveStatus(http.StatusServiceUnavailable))
	defer srv.Close()

	_, err := testFetcher().Fetch(context.Background(), DocDaily, srv.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFetchFailed))

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusServiceUnavailable, fe.StatusCode)
	assert.Equal(t, srv.URL, fe.URL)
}

func TestFetchTransportErrorIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := testFetcher(WithTimeout(time.Second)).Fetch(context.Background(), DocListing, url)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFetchFailed))

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Zero(t, fe.StatusCode)
}

func TestFetchNoRetries(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testFetcher().Fetch(context.Background(), DocDetail, srv.URL)
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestFetchTranscodesEUCKR(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
	}{
		{"declared in header", "text/html;charset=EUC-KR", "<html><body>삼성전자</body></html>"},
		{"declared in meta", "text/html", `<html><head><meta charset="euc-kr"></head><body>삼성전자</body></html>`},
		{"undeclared", "text/html", "<html><body>삼성전자</body></html>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := eucKR(t, []byte(tt.body))
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				_, _ = w.Write(raw)
			}))
			defer srv.Close()

			doc, err := testFetcher().Document(context.Background(), DocDetail, srv.URL)
			require.NoError(t, err)
			assert.Equal(t, "삼성전자", doc.Find("body").Text())
		})
	}
}

func TestFetchKeepsUTF8(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<rss><channel><title>삼성전자 뉴스</title></channel></rss>"))
	}))
	defer srv.Close()

	body, err := testFetcher().Fetch(context.Background(), DocNews, srv.URL)
	require.NoError(t, err)
	assert.Contains(t, string(body), "삼성전자 뉴스")
}

func TestFetchRecordsMetrics(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	defer ok.Close()
	bad := httptest.NewServer(serveStatus(http.StatusNotFound))
	defer bad.Close()

	m := metrics.New()
	f := testFetcher(WithMetrics(m))
	_, err := f.Fetch(context.Background(), DocDetail, ok.URL)
	require.NoError(t, err)
	_, err = f.Fetch(context.Background(), DocDetail, bad.URL)
	require.Error(t, err)

	n, err := testutil.GatherAndCount(m.Registry(), "kstock_fetch_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "one series per outcome")
}

func TestFetchHonoursCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFetcher(WithRateLimit(1)).Fetch(ctx, DocDetail, srv.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFetchFailed))
}

func TestFetcherTimeoutIsOptIn(t *testing.T) {
	assert.Zero(t, NewFetcher().client.Timeout, "transport default")
	assert.Zero(t, NewFetcher(WithTimeout(0)).client.Timeout)
	assert.Equal(t, 2*time.Second, NewFetcher(WithTimeout(2*time.Second)).client.Timeout)
}

// --- Error descriptions ---

func TestDescribeDistinguishesKinds(t *testing.T) {
	errs := []error{
		ErrTickerNotFound,
		ErrExtractionFailed,
		&FetchError{URL: "u", StatusCode: 503, Status: "503 Service Unavailable"},
		&FetchError{URL: "u", Err: errors.New("connection refused")},
	}
	seen := map[string]bool{}
	for _, err := range errs {
		msg := Describe(err)
		assert.NotEmpty(t, msg)
		assert.False(t, seen[msg], "duplicate description %q", msg)
		seen[msg] = true
	}
	assert.Empty(t, Describe(nil))
}

func TestDescribeUnwrapsWrappedErrors(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), ErrTickerNotFound)
	assert.Equal(t, Describe(ErrTickerNotFound), Describe(wrapped))
}
