package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/seenimoa/kstock/internal/config"
	"github.com/seenimoa/kstock/internal/infra"
)

// ════════════════════════════════════════════════════════════════════
// Test Helpers
// ════════════════════════════════════════════════════════════════════

const dailyPage = `<html><body><table class="type2">
<tr><th>날짜</th><th>종가</th><th>전일비</th><th>시가</th><th>고가</th><th>저가</th><th>거래량</th></tr>
<tr><td>2024.01.09</td><td>75,000</td><td>1,000</td><td>74,000</td><td>75,500</td><td>73,900</td><td>3,000</td></tr>
<tr><td>2024.01.08</td><td>74,000</td><td>1,000</td><td>73,000</td><td>74,500</td><td>72,900</td><td>2,000</td></tr>
<tr><td>2024.01.05</td><td>73,000</td><td>500</td><td>72,500</td><td>73,200</td><td>72,100</td><td>1,000</td></tr>
</table></body></html>`

func serveFixture(t *testing.T, name string) http.HandlerFunc {
	t.Helper()
	body, err := os.ReadFile(filepath.Join("..", "internal", "datasource", "testdata", name))
	if err != nil {
		t.Fatalf("read fixture %s: %v", name, err)
	}
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(body)
	}
}

// testServer builds a server whose origins are served by a local test server.
// detail overrides the quote page handler when non-nil.
func testServer(t *testing.T, detail http.HandlerFunc) *Server {
	t.Helper()
	if detail == nil {
		detail = serveFixture(t, "detail.html")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/corpList.do", serveFixture(t, "listing.html"))
	mux.HandleFunc("/item/main.naver", detail)
	mux.HandleFunc("/item/sise_day.naver", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(dailyPage))
	})
	mux.HandleFunc("/sise/lastsearch2.naver", serveFixture(t, "popular.html"))
	origin := httptest.NewServer(mux)
	t.Cleanup(origin.Close)

	cfg := &config.Config{
		Sources: config.SourcesConfig{
			ListingURL: origin.URL + "/corpList.do",
			DetailURL:  origin.URL + "/item/main.naver?code=%s",
			DailyURL:   origin.URL + "/item/sise_day.naver?code=%s&page=%d",
			PopularURL: origin.URL + "/sise/lastsearch2.naver",
			NewsURL:    origin.URL + "/rss/search?q=%s",
		},
		Series:  config.SeriesConfig{DayPages: 2, WeekPages: 2, MonthPages: 2},
		Popular: config.PopularConfig{Limit: 5},
		Logging: config.LoggingConfig{Level: "error", Format: "text"},
	}
	return NewServer(infra.New(cfg, &bytes.Buffer{}))
}

func doGet(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

// decodeData re-decodes the envelope's data field into v.
func decodeData(t *testing.T, resp APIResponse, v any) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
}

// ════════════════════════════════════════════════════════════════════
// Health / metrics / config
// ════════════════════════════════════════════════════════════════════

func TestHealth(t *testing.T) {
	srv := testServer(t, nil)
	for _, path := range []string{"/health", "/api/v1/health"} {
		rec := doGet(t, srv, path)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, want 200", path, rec.Code)
		}
		var h HealthResponse
		decodeData(t, decodeResponse(t, rec), &h)
		if h.Status != "ok" || h.MarketStatus == "" {
			t.Errorf("%s: unexpected health %+v", path, h)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := testServer(t, nil)
	doGet(t, srv, "/api/v1/popular")

	rec := doGet(t, srv, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "kstock_fetch_total") {
		t.Error("metrics output missing kstock_fetch_total")
	}
}

func TestGetConfig(t *testing.T) {
	srv := testServer(t, nil)
	rec := doGet(t, srv, "/api/v1/config")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var cr struct {
		Settings []config.SettingStatus `json:"settings"`
	}
	decodeData(t, decodeResponse(t, rec), &cr)
	if len(cr.Settings) == 0 {
		t.Fatal("expected settings in config response")
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := testServer(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got == "" {
		t.Error("missing Access-Control-Allow-Origin header")
	}
}

// ════════════════════════════════════════════════════════════════════
// Resolve
// ════════════════════════════════════════════════════════════════════

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		status   int
		wantCode string
		errCode  string
	}{
		{"exact name", "삼성전자", http.StatusOK, "005930", ""},
		{"unknown name", "없는회사", http.StatusNotFound, "", CodeNotFound},
		{"missing query", "", http.StatusBadRequest, "", CodeBadRequest},
	}

	srv := testServer(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doGet(t, srv, "/api/v1/resolve?q="+urlEscape(tt.query))
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			resp := decodeResponse(t, rec)
			if resp.Code != tt.errCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.errCode)
			}
			if tt.wantCode == "" {
				return
			}
			var sec struct {
				Code string `json:"code"`
			}
			decodeData(t, resp, &sec)
			if sec.Code != tt.wantCode {
				t.Errorf("resolved code = %q, want %q", sec.Code, tt.wantCode)
			}
		})
	}
}

// ════════════════════════════════════════════════════════════════════
// Quote
// ════════════════════════════════════════════════════════════════════

func TestQuote(t *testing.T) {
	srv := testServer(t, nil)
	rec := doGet(t, srv, "/api/v1/quote/005930")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "72,300원") {
		t.Errorf("body missing current price: %s", rec.Body.String())
	}
}

func TestQuoteErrors(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		detail  http.HandlerFunc
		status  int
		errCode string
	}{
		{
			name:    "invalid code",
			path:    "/api/v1/quote/abc",
			status:  http.StatusBadRequest,
			errCode: CodeBadRequest,
		},
		{
			name:   "page without quote area",
			path:   "/api/v1/quote/005930",
			detail: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				_, _ = w.Write([]byte("<html><body><p>점검 중입니다</p></body></html>"))
			},
			status:  http.StatusBadGateway,
			errCode: CodeExtractionFailed,
		},
		{
			name:   "origin unavailable",
			path:   "/api/v1/quote/005930",
			detail: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "down", http.StatusServiceUnavailable)
			},
			status:  http.StatusBadGateway,
			errCode: CodeExtractionFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testServer(t, tt.detail)
			rec := doGet(t, srv, tt.path)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			resp := decodeResponse(t, rec)
			if resp.Success {
				t.Error("expected success=false")
			}
			if resp.Code != tt.errCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.errCode)
			}
			if resp.Error == "" {
				t.Error("expected an error message")
			}
		})
	}
}

// ════════════════════════════════════════════════════════════════════
// Series
// ════════════════════════════════════════════════════════════════════

func TestSeries(t *testing.T) {
	srv := testServer(t, nil)

	rec := doGet(t, srv, "/api/v1/series/005930?period=day")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var daily SeriesResponse
	decodeData(t, decodeResponse(t, rec), &daily)
	if len(daily.Bars) != 3 {
		t.Fatalf("daily bars = %d, want 3", len(daily.Bars))
	}
	if !daily.Bars[0].Date.Before(daily.Bars[2].Date) {
		t.Error("bars not in ascending date order")
	}
	if daily.Pages != 2 {
		t.Errorf("pages = %d, want configured 2", daily.Pages)
	}

	// 2024-01-05 (Fri) and 2024-01-08/09 (Mon/Tue) fall in two weeks.
	rec = doGet(t, srv, "/api/v1/series/005930?period=week&pages=1")
	var weekly SeriesResponse
	decodeData(t, decodeResponse(t, rec), &weekly)
	if len(weekly.Bars) != 2 {
		t.Fatalf("weekly bars = %d, want 2", len(weekly.Bars))
	}
	if weekly.Bars[1].Volume != 5000 {
		t.Errorf("second week volume = %d, want 5000", weekly.Bars[1].Volume)
	}
}

func TestSeriesBadParams(t *testing.T) {
	srv := testServer(t, nil)
	for _, path := range []string{
		"/api/v1/series/005930?period=year",
		"/api/v1/series/005930?pages=0",
		"/api/v1/series/005930?pages=9999",
		"/api/v1/series/xyz",
	} {
		rec := doGet(t, srv, path)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, rec.Code)
		}
	}
}

// ════════════════════════════════════════════════════════════════════
// Lookup / compare / popular
// ════════════════════════════════════════════════════════════════════

func TestLookup(t *testing.T) {
	srv := testServer(t, nil)
	rec := doGet(t, srv, "/api/v1/lookup?q="+urlEscape("삼성전자")+"&period=month")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var res struct {
		Security struct {
			Code string `json:"code"`
		} `json:"security"`
		Period string            `json:"period"`
		Series []json.RawMessage `json:"series"`
		Errors map[string]string `json:"errors"`
	}
	decodeData(t, decodeResponse(t, rec), &res)
	if res.Security.Code != "005930" || res.Period != "month" {
		t.Errorf("unexpected lookup header %+v", res)
	}
	if len(res.Series) != 1 {
		t.Errorf("monthly bars = %d, want 1", len(res.Series))
	}
	if len(res.Errors) != 0 {
		t.Errorf("unexpected part errors %v", res.Errors)
	}
}

func TestLookupPartialFailure(t *testing.T) {
	srv := testServer(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	})
	rec := doGet(t, srv, "/api/v1/lookup?q="+urlEscape("삼성전자"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var res struct {
		Snapshot json.RawMessage   `json:"snapshot"`
		Errors   map[string]string `json:"errors"`
	}
	decodeData(t, decodeResponse(t, rec), &res)
	if res.Snapshot != nil {
		t.Error("snapshot should be absent")
	}
	if res.Errors["snapshot"] == "" {
		t.Error("expected a snapshot error description")
	}
}

func TestLookupNotFound(t *testing.T) {
	srv := testServer(t, nil)
	rec := doGet(t, srv, "/api/v1/lookup?q="+urlEscape("없는회사"))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestCompare(t *testing.T) {
	srv := testServer(t, nil)
	rec := doGet(t, srv, "/api/v1/compare?q="+urlEscape("삼성전자,없는회사"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var entries []CompareEntry
	decodeData(t, decodeResponse(t, rec), &entries)
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Lookup == nil || entries[0].Error != "" {
		t.Errorf("first entry should succeed: %+v", entries[0])
	}
	if entries[1].Lookup != nil || entries[1].Error == "" {
		t.Errorf("second entry should fail: %+v", entries[1])
	}

	if rec := doGet(t, srv, "/api/v1/compare"); rec.Code != http.StatusBadRequest {
		t.Errorf("empty compare: status = %d, want 400", rec.Code)
	}
}

func TestPopular(t *testing.T) {
	srv := testServer(t, nil)

	rec := doGet(t, srv, "/api/v1/popular")
	var rows []json.RawMessage
	decodeData(t, decodeResponse(t, rec), &rows)
	if len(rows) != 5 {
		t.Errorf("default rows = %d, want configured 5", len(rows))
	}

	rec = doGet(t, srv, "/api/v1/popular?limit=2")
	decodeData(t, decodeResponse(t, rec), &rows)
	if len(rows) != 2 {
		t.Errorf("rows = %d, want 2", len(rows))
	}

	if rec := doGet(t, srv, "/api/v1/popular?limit=-1"); rec.Code != http.StatusBadRequest {
		t.Errorf("negative limit: status = %d, want 400", rec.Code)
	}
}

func urlEscape(s string) string {
	return url.QueryEscape(s)
}
