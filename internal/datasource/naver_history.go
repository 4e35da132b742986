package datasource

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/seenimoa/kstock/pkg/models"
	"github.com/seenimoa/kstock/pkg/utils"
)

// Daily table header names.
const (
	colDate   = "날짜"
	colClose  = "종가"
	colOpen   = "시가"
	colHigh   = "고가"
	colLow    = "저가"
	colVolume = "거래량"
)

var dailyColumns = []string{colDate, colClose, colOpen, colHigh, colLow, colVolume}

// PageDepth is how many daily pages (10 rows each) to read per periodicity.
type PageDepth struct {
	Day   int
	Week  int
	Month int
}

// DefaultPageDepth gives roughly 2 weeks of days, 6 months of weeks and
// 2.5 years of months.
var DefaultPageDepth = PageDepth{Day: 10, Week: 30, Month: 60}

// PagesFor returns the page count for a periodicity, falling back to the
// default when unset.
func (d PageDepth) PagesFor(p models.Period) int {
	var n, def int
	switch p {
	case models.PeriodWeek:
		n, def = d.Week, DefaultPageDepth.Week
	case models.PeriodMonth:
		n, def = d.Month, DefaultPageDepth.Month
	default:
		n, def = d.Day, DefaultPageDepth.Day
	}
	if n <= 0 {
		return def
	}
	return n
}

// GetSeries fetches pages 1..pages of the daily price table and returns the
// bars in ascending date order with unique dates. Pages are fetched in order
// and the first fetch error is returned. Rows with a missing or unparseable
// field are dropped; an empty series is not an error.
//
// Reading stops early once a page adds no new dates: the origin keeps
// serving its last page for out-of-range page numbers.
func (n *Naver) GetSeries(ctx context.Context, code string, pages int) (models.PriceSeries, error) {
	code = utils.NormalizeCode(code)
	if pages <= 0 {
		pages = DefaultPageDepth.Day
	}

	seen := make(map[time.Time]bool)
	var series models.PriceSeries

	for page := 1; page <= pages; page++ {
		doc, err := n.fetcher.Document(ctx, DocDaily, fmt.Sprintf(n.urls.DailyURL, code, page))
		if err != nil {
			return nil, fmt.Errorf("daily prices %s page %d: %w", code, page, err)
		}

		added := 0
		for _, bar := range parseDailyTable(doc) {
			if seen[bar.Date] {
				continue
			}
			seen[bar.Date] = true
			series = append(series, bar)
			added++
		}

		if added == 0 || page >= lastPage(doc, pages) {
			n.log.WithFields(logrus.Fields{"code": code, "page": page, "requested": pages}).Debug("daily table exhausted")
			break
		}
	}

	sort.SliceStable(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
	return series, nil
}

// parseDailyTable reads every complete row of a daily price page, in page
// order. Columns are located by header name.
func parseDailyTable(doc *goquery.Document) []models.PriceBar {
	var bars []models.PriceBar
	doc.Find("table.type2").Each(func(_ int, table *goquery.Selection) {
		cols := map[string]int{}
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			if ths := row.Find("th"); ths.Length() > 0 {
				ths.Each(func(i int, th *goquery.Selection) {
					cols[utils.CleanText(th.Text())] = i
				})
				return
			}
			if !hasColumns(cols) {
				return
			}
			if bar, ok := parseDailyRow(row.Find("td"), cols); ok {
				bars = append(bars, bar)
			}
		})
	})
	return bars
}

func hasColumns(cols map[string]int) bool {
	for _, name := range dailyColumns {
		if _, ok := cols[name]; !ok {
			return false
		}
	}
	return true
}

func parseDailyRow(cells *goquery.Selection, cols map[string]int) (models.PriceBar, bool) {
	text := func(name string) string {
		i := cols[name]
		if i >= cells.Length() {
			return ""
		}
		return utils.CleanText(cells.Eq(i).Text())
	}

	date, err := utils.ParseDate(text(colDate))
	if err != nil {
		return models.PriceBar{}, false
	}
	bar := models.PriceBar{Date: date}

	prices := []struct {
		col string
		dst *decimal.Decimal
	}{
		{colOpen, &bar.Open},
		{colHigh, &bar.High},
		{colLow, &bar.Low},
		{colClose, &bar.Close},
	}
	for _, p := range prices {
		v, ok := parsePrice(text(p.col))
		if !ok {
			return models.PriceBar{}, false
		}
		*p.dst = v
	}

	vol, ok := utils.ParseInt(text(colVolume))
	if !ok {
		return models.PriceBar{}, false
	}
	bar.Volume = vol
	return bar, true
}

func parsePrice(s string) (decimal.Decimal, bool) {
	if _, ok := utils.ParseNumber(s); !ok {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(stripGrouping(s))
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

func stripGrouping(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == ',' || r == ' ' {
			continue
		}
		out = append(out, r)
	}
	return string(out)
}

// lastPage reads the pager's last page number, or returns fallback when the
// page has no pager.
func lastPage(doc *goquery.Document, fallback int) int {
	last := 0
	doc.Find("table.Nnavi a, .pgRR a").Each(func(_ int, a *goquery.Selection) {
		u, err := url.Parse(a.AttrOr("href", ""))
		if err != nil {
			return
		}
		if p, err := strconv.Atoi(u.Query().Get("page")); err == nil && p > last {
			last = p
		}
	})
	if last == 0 {
		return fallback
	}
	return last
}
